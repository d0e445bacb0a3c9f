// Package ingest turns documents into indexed chunks: chunk, embed with
// retries in a bounded pool, then write in document order.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/askfolio/internal/domain"
	"github.com/kailas-cloud/askfolio/internal/logger"
	"github.com/kailas-cloud/askfolio/internal/retry"
)

// Mode selects how a run treats existing collection contents.
type Mode string

// Ingest modes.
const (
	ModeIncremental Mode = "incremental"
	ModeRebuild     Mode = "rebuild"
)

// ParseMode validates a mode name. Empty means incremental.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeIncremental:
		return ModeIncremental, nil
	case ModeRebuild:
		return ModeRebuild, nil
	default:
		return "", fmt.Errorf("%w: unknown ingest mode %q", domain.ErrInvalidRequest, s)
	}
}

// Report counts documents by outcome.
type Report struct {
	Collection string
	Documents  int
	Indexed    int
	Skipped    int
	Failed     int
	Chunks     int // chunks written
}

// Config holds pool and retry settings.
type Config struct {
	Workers int
	Retry   retry.Policy
}

// Service runs ingestion.
type Service struct {
	splitter    Splitter
	embedder    Embedder
	cfg         Config
	chunksTotal *prometheus.CounterVec
}

// NewService creates an ingest service. chunksTotal may be nil.
func NewService(splitter Splitter, embedder Embedder, cfg Config, chunksTotal *prometheus.CounterVec) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &Service{splitter: splitter, embedder: embedder, cfg: cfg, chunksTotal: chunksTotal}
}

type unit struct {
	doc     domain.Document
	chunks  []domain.Chunk
	entries []domain.IndexEntry
	err     error
}

// Ingest adds docs to target. Per-document problems are counted in the report;
// the returned error is reserved for collection-level failures and cancellation.
// A rebuild that lost documents to an upstream outage, or that indexed
// nothing, returns an error and leaves the index and its saved copy alone.
func (s *Service) Ingest(ctx context.Context, target Target, docs []domain.Document, mode Mode) (Report, error) {
	ctx, log := logger.With(ctx, zap.String("collection", target.Name), zap.String("mode", string(mode)))
	rep := Report{Collection: target.Name, Documents: len(docs)}

	existing := map[string]struct{}{}
	if mode == ModeIncremental {
		ids, err := target.Index.SourceIDs(ctx)
		if err != nil {
			return rep, fmt.Errorf("list sources in %s: %w", target.Name, err)
		}
		existing = ids
	}

	units := s.plan(log, docs, existing, &rep)
	if err := s.embedAll(ctx, units); err != nil {
		return rep, err
	}

	written, err := s.write(ctx, log, target, mode, units, &rep)
	if err != nil {
		return rep, err
	}
	if written && target.Save != nil {
		if err := target.Save(ctx); err != nil {
			return rep, fmt.Errorf("save %s: %w", target.Name, err)
		}
	}

	log.Info("Ingest finished",
		zap.Int("documents", rep.Documents),
		zap.Int("indexed", rep.Indexed),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
		zap.Int("chunks", rep.Chunks),
	)
	return rep, nil
}

// plan chunks every document and drops the ones that need no work.
func (s *Service) plan(log *zap.Logger, docs []domain.Document, existing map[string]struct{}, rep *Report) []*unit {
	seen := make(map[string]struct{}, len(docs))
	units := make([]*unit, 0, len(docs))
	for _, d := range docs {
		if _, ok := existing[d.SourceID]; ok {
			log.Debug("Source already indexed", zap.String("source_id", d.SourceID))
			rep.Skipped++
			continue
		}
		if _, ok := seen[d.SourceID]; ok {
			log.Warn("Duplicate source in input", zap.String("source_id", d.SourceID))
			rep.Skipped++
			continue
		}
		seen[d.SourceID] = struct{}{}

		chunks, err := s.splitter.ChunkDocument(d)
		if err != nil {
			log.Warn("Skipping document", zap.String("source_id", d.SourceID), zap.Error(err))
			rep.Skipped++
			continue
		}
		units = append(units, &unit{doc: d, chunks: chunks})
	}
	return units
}

func (s *Service) embedAll(ctx context.Context, units []*unit) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, u := range units {
		g.Go(func() error {
			u.entries, u.err = s.embed(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (s *Service) embed(ctx context.Context, u *unit) ([]domain.IndexEntry, error) {
	texts := make([]string, len(u.chunks))
	for i, c := range u.chunks {
		texts[i] = c.Text
	}

	var res domain.BatchEmbeddingResult
	err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var err error
		res, err = s.embedder.BatchEmbed(ctx, texts)
		return err
	}, func(attempt int, err error) {
		logger.FromContext(ctx).Warn("Retrying embedding",
			zap.String("source_id", u.doc.SourceID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", u.doc.SourceID, err)
	}
	if len(res.Embeddings) != len(u.chunks) {
		return nil, fmt.Errorf("embed %s: %w: got %d vectors for %d chunks",
			u.doc.SourceID, domain.ErrUpstreamUnavailable, len(res.Embeddings), len(u.chunks))
	}

	entries := make([]domain.IndexEntry, len(u.chunks))
	for i, c := range u.chunks {
		entries[i] = domain.NewIndexEntry(c, res.Embeddings[i])
	}
	return entries, nil
}

func (s *Service) write(
	ctx context.Context, log *zap.Logger, target Target, mode Mode, units []*unit, rep *Report,
) (bool, error) {
	var (
		ok       []*unit
		failures []error
	)
	for _, u := range units {
		if u.err != nil {
			log.Warn("Document failed", zap.String("source_id", u.doc.SourceID), zap.Error(u.err))
			s.count(target.Name, "failed", len(u.chunks))
			rep.Failed++
			failures = append(failures, u.err)
			continue
		}
		ok = append(ok, u)
	}

	if mode == ModeRebuild {
		if err := rebuildBlocked(rep, ok, failures); err != nil {
			return false, fmt.Errorf("rebuild %s: %w", target.Name, err)
		}
		var all []domain.IndexEntry
		for _, u := range ok {
			all = append(all, u.entries...)
		}
		if err := target.Index.Build(ctx, all); err != nil {
			return false, fmt.Errorf("build %s: %w", target.Name, err)
		}
		for _, u := range ok {
			s.indexed(target.Name, u, rep)
		}
		return true, nil
	}

	written := false
	for _, u := range ok {
		err := target.Index.Add(ctx, u.entries)
		if errors.Is(err, domain.ErrDuplicateID) || errors.Is(err, domain.ErrDimensionMismatch) {
			log.Warn("Skipping document", zap.String("source_id", u.doc.SourceID), zap.Error(err))
			s.count(target.Name, "skipped", len(u.chunks))
			rep.Skipped++
			continue
		}
		if err != nil {
			return written, fmt.Errorf("add %s to %s: %w", u.doc.SourceID, target.Name, err)
		}
		written = true
		s.indexed(target.Name, u, rep)
	}
	return written, nil
}

// rebuildBlocked refuses to replace an index when an upstream outage cost
// documents or when nothing from a non-empty input survived. The existing
// index is left as it was.
func rebuildBlocked(rep *Report, ok []*unit, failures []error) error {
	upstream := false
	for _, err := range failures {
		if errors.Is(err, domain.ErrUpstreamUnavailable) {
			upstream = true
			break
		}
	}
	switch {
	case upstream:
		return fmt.Errorf("%d of %d documents failed: %w", len(failures), rep.Documents, errors.Join(failures...))
	case len(ok) == 0 && rep.Documents > 0:
		if len(failures) == 0 {
			return fmt.Errorf("%w: no document of %d produced chunks", domain.ErrInvalidRequest, rep.Documents)
		}
		return fmt.Errorf("no document of %d indexed: %w", rep.Documents, errors.Join(failures...))
	}
	return nil
}

func (s *Service) indexed(collection string, u *unit, rep *Report) {
	rep.Indexed++
	rep.Chunks += len(u.entries)
	s.count(collection, "indexed", len(u.entries))
}

func (s *Service) count(collection, result string, n int) {
	if s.chunksTotal == nil || n == 0 {
		return
	}
	s.chunksTotal.WithLabelValues(collection, result).Add(float64(n))
}
