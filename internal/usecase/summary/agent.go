// Package summary condenses all documents into one sectioned profile: a
// parallel extraction pass over small chunks, then a single merge call.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Sections every merged summary is organised into.
var Sections = []string{
	"Profile",
	"Skills",
	"Projects & Experience",
	"Repository Index",
	"Education",
	"Soft Skills",
}

const extractPrompt = "Extract ALL details in structured bullet-point notes. Do NOT summarize or drop information."

// Splitter cuts a document into extraction units.
type Splitter interface {
	ChunkDocument(doc domain.Document) ([]domain.Chunk, error)
}

// Config holds agent settings.
type Config struct {
	Workers   int // fixed extraction pool size
	MaxTokens int // per completion call
}

// Agent runs the two-pass summarization.
type Agent struct {
	completer domain.Completer
	splitter  Splitter
	cfg       Config
	logger    *zap.Logger
}

// NewAgent creates an Agent. Workers <= 0 selects 5; MaxTokens <= 0 selects 2048.
func NewAgent(completer domain.Completer, splitter Splitter, cfg Config, logger *zap.Logger) *Agent {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Agent{completer: completer, splitter: splitter, cfg: cfg, logger: logger}
}

// MergePrompt is the system prompt of the merge call.
func MergePrompt() string {
	var b strings.Builder
	b.WriteString("You are a specialized summarization agent.\n")
	b.WriteString("Create ONE unified summary of a person's profile, skills, projects, repositories, and education.\n\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("1. Do not drop any repository or project; every single one must appear.\n")
	b.WriteString("2. Merge duplicates (same repo listed multiple times).\n")
	b.WriteString("3. Organize content into these sections, each as a Markdown heading:\n")
	for _, s := range Sections {
		b.WriteString("   - " + s + "\n")
	}
	b.WriteString("4. Keep the final output in clean Markdown with headings and bullet points.\n")
	return b.String()
}

// Summarize extracts notes from every chunk, waits for all of them, then
// merges. Any failed extraction fails the run with every chunk error joined;
// no merge is attempted on partial notes.
func (a *Agent) Summarize(ctx context.Context, docs []domain.Document) (string, error) {
	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := a.splitter.ChunkDocument(d)
		if errors.Is(err, domain.ErrEmptyDocument) {
			a.logger.Warn("Skipping empty document", zap.String("source_id", d.SourceID))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("chunk %s: %w", d.SourceID, err)
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("summarize: %w", domain.ErrEmptyDocument)
	}

	notes, err := a.extract(ctx, chunks)
	if err != nil {
		return "", err
	}

	merged, err := a.completer.Complete(ctx, domain.CompletionRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: MergePrompt()},
			{Role: domain.RoleUser, Content: strings.Join(notes, "\n\n")},
		},
		Temperature: 0,
		MaxTokens:   a.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("merge notes: %w", err)
	}
	merged = strings.TrimSpace(merged)

	if missing := MissingSections(merged); len(missing) > 0 {
		a.logger.Warn("Summary is missing sections", zap.Strings("sections", missing))
	}
	a.logger.Info("Summary merged",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chars", len(merged)),
	)
	return merged, nil
}

func (a *Agent) extract(ctx context.Context, chunks []domain.Chunk) ([]string, error) {
	notes := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, c := range chunks {
		g.Go(func() error {
			out, err := a.completer.Complete(gctx, domain.CompletionRequest{
				Messages: []domain.Message{
					{Role: domain.RoleSystem, Content: extractPrompt},
					{Role: domain.RoleUser, Content: c.Text},
				},
				Temperature: 0,
				MaxTokens:   a.cfg.MaxTokens,
			})
			if err != nil {
				errs[i] = fmt.Errorf("extract %s: %w", c.ID(), err)
				return nil
			}
			notes[i] = strings.TrimSpace(out)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures live in errs

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("extract notes: %w", err)
	}
	return notes, nil
}

// MissingSections lists the sections whose name does not appear in text.
func MissingSections(text string) []string {
	lower := strings.ToLower(text)
	var missing []string
	for _, s := range Sections {
		if !strings.Contains(lower, strings.ToLower(s)) {
			missing = append(missing, s)
		}
	}
	return missing
}
