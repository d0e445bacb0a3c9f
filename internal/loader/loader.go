// Package loader reads plain text documents from a directory.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Extensions lists the file types LoadDir picks up.
var Extensions = []string{".txt", ".md"}

// LoadDir returns one Document per supported file directly inside dir, in
// filename order. The filename is the source id. Subdirectories and dotfiles
// are ignored; an empty file yields a Document with empty text.
func LoadDir(dir string) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("read dir %s: %w", dir, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var docs []domain.Document
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !supported(name) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		docs = append(docs, domain.Document{
			SourceID: name,
			Text:     strings.ToValidUTF8(string(data), "�"),
		})
	}
	return docs, nil
}

// ReadText reads a whole text file, trimming surrounding whitespace.
// A missing file returns domain.ErrNotFound.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("read %s: %w", path, domain.ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
