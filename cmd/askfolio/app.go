package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/askfolio/internal/chunker"
	"github.com/kailas-cloud/askfolio/internal/config"
	dbRedis "github.com/kailas-cloud/askfolio/internal/db/redis"
	"github.com/kailas-cloud/askfolio/internal/domain"
	"github.com/kailas-cloud/askfolio/internal/embedding/hashing"
	"github.com/kailas-cloud/askfolio/internal/index/filestore"
	"github.com/kailas-cloud/askfolio/internal/index/flat"
	"github.com/kailas-cloud/askfolio/internal/loader"
	"github.com/kailas-cloud/askfolio/internal/metrics"
	"github.com/kailas-cloud/askfolio/internal/repository/embcache"
	"github.com/kailas-cloud/askfolio/internal/repository/vector"
	"github.com/kailas-cloud/askfolio/internal/retry"
	openaiT "github.com/kailas-cloud/askfolio/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/askfolio/internal/usecase/embedding"
	ingestuc "github.com/kailas-cloud/askfolio/internal/usecase/ingest"
	"github.com/kailas-cloud/askfolio/internal/usecase/retrieval"
	summaryuc "github.com/kailas-cloud/askfolio/internal/usecase/summary"
)

const defaultSystemPrompt = "You are a helpful assistant for this portfolio. " +
	"Answer questions about the person's background, skills and projects using only the provided context."

// app holds the shared components of every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  *dbRedis.Store // nil unless the index backend or the cache needs Redis
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	metrics.Register()

	a := &app{cfg: cfg, logger: logger}
	if cfg.Index.Backend != config.BackendRedis && !cfg.Embedding.Cache.Enabled {
		return a, nil
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("db_addrs", cfg.Database.Addrs))
	a.store = store
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// embedderStack is the decorated embedder plus the raw provider for health checks.
type embedderStack struct {
	*embeddinguc.InstrumentedEmbedder
	provider domain.HealthChecker
	model    string
}

// buildEmbedder assembles the decorator chain: provider -> cache -> rate limit -> instrumented.
func (a *app) buildEmbedder() embedderStack {
	ec := a.cfg.Embedding

	var (
		base    domain.Embedder
		checker domain.HealthChecker
		model   string
	)
	switch ec.Provider {
	case config.ProviderHashing:
		h := hashing.New(ec.Dimensions)
		base, checker, model = h, h, hashing.ModelName
	default:
		o := openaiT.NewEmbedder(&openaiT.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Timeout:    time.Duration(ec.TimeoutSec) * time.Second,
			Provider:   ec.Provider,
			Logger:     a.logger,
		})
		base, checker, model = o, o, ec.Model
	}

	embedder := base
	if ec.Cache.Enabled && a.store != nil {
		ttl := time.Duration(ec.Cache.TTLHour) * time.Hour
		embedder = embcache.New(embedder, a.store, model, ttl, metrics.EmbeddingCacheTotal, a.logger)
	}
	embedder = embeddinguc.NewRateLimitedEmbedder(embedder, ec.RequestsPerSecond)

	a.logger.Info("Embedder created",
		zap.String("provider", ec.Provider),
		zap.String("model", model),
		zap.Int("dimensions", ec.Dimensions),
		zap.Bool("cache", ec.Cache.Enabled),
	)
	return embedderStack{
		InstrumentedEmbedder: embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, model, ec.BatchSize, a.logger),
		provider:             checker,
		model:                model,
	}
}

// buildCompleter creates the chat completion client. It needs an API key.
func (a *app) buildCompleter() (*openaiT.Completer, error) {
	cc := a.cfg.Completion
	if cc.APIKey == "" {
		return nil, fmt.Errorf("%w: completion.api_key (or embedding.api_key) is required", domain.ErrConfig)
	}
	var limiter *rate.Limiter
	if cc.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cc.RequestsPerSecond), 1)
	}
	return openaiT.NewCompleter(&openaiT.CompleterConfig{
		APIKey:  cc.APIKey,
		BaseURL: cc.BaseURL,
		Model:   cc.Model,
		Timeout: time.Duration(cc.TimeoutSec) * time.Second,
		Limiter: limiter,
		Logger:  a.logger,
	}), nil
}

func (a *app) metric() domain.Metric {
	m, _ := domain.ParseMetric(a.cfg.Index.Metric) // validated at load
	return m
}

// checkMetric rejects a persisted index built with another distance metric.
// Distances from different metrics cannot be ranked against each other.
func (a *app) checkMetric(name string, idx *flat.Index) error {
	if got, want := idx.Metric(), a.metric(); got != want {
		return fmt.Errorf("%w: %s index metric %s != configured %s", domain.ErrConfig, name, got, want)
	}
	return nil
}

// openTarget returns a writable collection for ingestion. For the file
// backend the existing files are loaded when present and saved after the run.
func (a *app) openTarget(ctx context.Context, col config.CollectionConfig) (ingestuc.Target, error) {
	switch a.cfg.Index.Backend {
	case config.BackendRedis:
		c, err := vector.New(a.store, col.Name, a.metric(), a.cfg.Embedding.Dimensions)
		if err != nil {
			return ingestuc.Target{}, err
		}
		if err := c.Ensure(ctx); err != nil {
			return ingestuc.Target{}, fmt.Errorf("ensure %s: %w", col.Name, err)
		}
		return ingestuc.Target{Name: col.Name, Index: c}, nil

	case config.BackendFile:
		dir := a.cfg.Index.Dir
		idx, err := filestore.Load(dir, col.Name)
		if errors.Is(err, domain.ErrNotFound) {
			idx, err = flat.New(a.metric()), nil
		}
		if err != nil {
			return ingestuc.Target{}, fmt.Errorf("load %s: %w", col.Name, err)
		}
		if err := a.checkMetric(col.Name, idx); err != nil {
			return ingestuc.Target{}, err
		}
		return ingestuc.Target{
			Name:  col.Name,
			Index: idx,
			Save:  func(context.Context) error { return filestore.Save(dir, col.Name, idx) },
		}, nil

	default:
		return ingestuc.Target{Name: col.Name, Index: flat.New(a.metric())}, nil
	}
}

// loadRegistry opens every configured collection for serving. Collections
// that fail to load are registered as unavailable.
func (a *app) loadRegistry(ctx context.Context) *retrieval.Registry {
	reg := retrieval.NewRegistry()
	for _, col := range a.cfg.Collections {
		idx, err := a.openServing(ctx, col)
		if err != nil {
			a.logger.Warn("Collection unavailable", zap.String("collection", col.Name), zap.Error(err))
			reg.RegisterUnavailable(col.Name, col.Header, err)
			continue
		}
		n, _ := idx.Len(ctx)
		a.logger.Info("Collection loaded", zap.String("collection", col.Name), zap.Int("chunks", n))
		reg.Register(col.Name, col.Header, idx)
	}
	return reg
}

func (a *app) openServing(ctx context.Context, col config.CollectionConfig) (domain.VectorIndex, error) {
	switch a.cfg.Index.Backend {
	case config.BackendRedis:
		c, err := vector.New(a.store, col.Name, a.metric(), a.cfg.Embedding.Dimensions)
		if err != nil {
			return nil, err
		}
		ok, err := c.Available(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexUnavailable, col.Name)
		}
		return c, nil

	case config.BackendFile:
		idx, err := filestore.Load(a.cfg.Index.Dir, col.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
		}
		if err := a.checkMetric(col.Name, idx); err != nil {
			return nil, err
		}
		return idx, nil

	default:
		return flat.New(a.metric()), nil
	}
}

// newIngester builds the ingestion service over the embedder chain.
func (a *app) newIngester(emb embedderStack) (*ingestuc.Service, error) {
	splitter, err := chunker.New(a.cfg.Chunking.ChunkSize, a.cfg.Chunking.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return ingestuc.NewService(splitter, emb, ingestuc.Config{
		Workers: a.cfg.Ingest.Workers,
		Retry: retry.Policy{
			MaxRetries: a.cfg.Ingest.MaxRetries,
			BaseDelay:  time.Duration(a.cfg.Ingest.RetryDelayMs) * time.Millisecond,
		},
	}, metrics.IngestChunksTotal), nil
}

// ingestCollections loads each collection's directory and ingests it.
func (a *app) ingestCollections(
	ctx context.Context, svc *ingestuc.Service, cols []config.CollectionConfig,
	targets func(config.CollectionConfig) (ingestuc.Target, error), mode ingestuc.Mode,
) ([]ingestuc.Report, error) {
	reports := make([]ingestuc.Report, 0, len(cols))
	for _, col := range cols {
		docs, err := loader.LoadDir(col.Dir)
		if err != nil {
			return reports, fmt.Errorf("load %s documents: %w", col.Name, err)
		}
		target, err := targets(col)
		if err != nil {
			return reports, err
		}
		rep, err := svc.Ingest(ctx, target, docs, mode)
		reports = append(reports, rep)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// loadSystemPrompt reads the prompt file, falling back to a default.
func (a *app) loadSystemPrompt() (string, bool) {
	path := a.cfg.Prompt.SystemPromptFile
	if path == "" {
		return defaultSystemPrompt, false
	}
	text, err := loader.ReadText(path)
	if err != nil || text == "" {
		a.logger.Warn("System prompt not loaded, using default", zap.String("path", path), zap.Error(err))
		return defaultSystemPrompt, false
	}
	return text, true
}

// allDocuments reads every collection directory, in config order.
func (a *app) allDocuments() ([]domain.Document, error) {
	var docs []domain.Document
	for _, col := range a.cfg.Collections {
		d, err := loader.LoadDir(col.Dir)
		if errors.Is(err, domain.ErrNotFound) {
			a.logger.Warn("Collection directory missing", zap.String("dir", col.Dir))
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, d...)
	}
	return docs, nil
}

func (a *app) newSummaryAgent(completer domain.Completer) (*summaryuc.Agent, error) {
	splitter, err := chunker.New(a.cfg.Summary.ChunkSize, a.cfg.Summary.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return summaryuc.NewAgent(completer, splitter, summaryuc.Config{
		Workers: a.cfg.Summary.Workers,
	}, a.logger), nil
}
