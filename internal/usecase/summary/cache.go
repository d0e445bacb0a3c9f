package summary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Cache stores one summary as a text file.
type Cache struct {
	path string
}

// NewCache creates a cache at path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Path returns the file location.
func (c *Cache) Path() string { return c.path }

// Load returns the cached summary. A missing or blank file returns domain.ErrNotFound.
func (c *Cache) Load() (string, error) {
	data, err := os.ReadFile(filepath.Clean(c.path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("summary %s: %w", c.path, domain.ErrNotFound)
		}
		return "", fmt.Errorf("read summary %s: %w", c.path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("summary %s is empty: %w", c.path, domain.ErrNotFound)
	}
	return text, nil
}

// Save writes text atomically (temp file then rename).
func (c *Cache) Save(text string) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".summary-*")
	if err != nil {
		return fmt.Errorf("create temp summary: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("rename summary: %w", err)
	}
	return nil
}

// LoadOrSummarize returns the cached summary when present; otherwise it runs
// the agent and saves the result. cached reports which path was taken.
func LoadOrSummarize(
	ctx context.Context, c *Cache, a *Agent, docs []domain.Document,
) (text string, cached bool, err error) {
	text, err = c.Load()
	if err == nil {
		return text, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", false, err
	}

	text, err = a.Summarize(ctx, docs)
	if err != nil {
		return "", false, err
	}
	if err := c.Save(text); err != nil {
		return "", false, err
	}
	return text, false, nil
}
