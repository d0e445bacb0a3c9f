package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/config"
	"github.com/kailas-cloud/askfolio/internal/domain"
	"github.com/kailas-cloud/askfolio/internal/metrics"
	"github.com/kailas-cloud/askfolio/internal/session"
	chiTransport "github.com/kailas-cloud/askfolio/internal/transport/chi"
	chatuc "github.com/kailas-cloud/askfolio/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/askfolio/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/askfolio/internal/usecase/ingest"
	"github.com/kailas-cloud/askfolio/internal/usecase/retrieval"
	summaryuc "github.com/kailas-cloud/askfolio/internal/usecase/summary"
	"github.com/kailas-cloud/askfolio/internal/version"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if port > 0 {
				cfg.HTTP.Port = port
			}
			return runServe(cmd.Context(), env, cfg, logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override http.port")
	return cmd
}

func runServe(ctx context.Context, env string, cfg config.Config, logger *zap.Logger) error {
	logger.Info("Starting askfolio API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("retrieval_mode", cfg.Retrieval.Mode),
	)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	emb := a.buildEmbedder()
	completer, err := a.buildCompleter()
	if err != nil {
		return err
	}
	gen, err := chatuc.NewGenerator(completer, chatuc.GeneratorConfig{
		Model:       cfg.Completion.Model,
		Temperature: cfg.Completion.Temperature,
		MaxTokens:   cfg.Completion.MaxTokens,
	})
	if err != nil {
		return err
	}

	reg, err := a.servingRegistry(ctx, emb)
	if err != nil {
		return err
	}

	var source chatuc.ContextSource
	switch cfg.Retrieval.Mode {
	case config.ModeSummary:
		text, err := a.profileSummary(ctx, completer)
		if err != nil {
			return err
		}
		source = chatuc.NewStaticSource(text)
	default:
		retriever := retrieval.NewRetriever(emb, reg,
			time.Duration(cfg.Retrieval.SearchTimeoutSec)*time.Second, metrics.RetrievalErrorsTotal)
		source = chatuc.NewRAGSource(retriever, cfg.Retrieval.TopK, cfg.Retrieval.MaxContextChars)
	}

	systemPrompt, promptLoaded := a.loadSystemPrompt()
	sessions := session.NewMemory(metrics.ActiveSessions)
	chatSvc := chatuc.NewService(sessions, source, gen, systemPrompt)

	deps := healthuc.Deps{
		Embedding:          emb.provider,
		Collections:        reg,
		Sessions:           sessions,
		SystemPromptLoaded: promptLoaded,
		Timeout:            5 * time.Second,
	}
	if a.store != nil {
		deps.DB = a.store
	}
	healthSvc := healthuc.New(deps)

	server := chiTransport.NewServer(chatSvc, sessions, healthSvc, logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:     cfg.Auth.APIKeys,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// servingRegistry loads persisted collections, or for the memory backend
// ingests every collection directory at startup.
func (a *app) servingRegistry(ctx context.Context, emb embedderStack) (*retrieval.Registry, error) {
	if a.cfg.Index.Backend != config.BackendMemory {
		return a.loadRegistry(ctx), nil
	}

	svc, err := a.newIngester(emb)
	if err != nil {
		return nil, err
	}
	reg := retrieval.NewRegistry()
	for _, col := range a.cfg.Collections {
		target, err := a.openTarget(ctx, col)
		if err != nil {
			return nil, err
		}
		if _, err := a.ingestCollections(ctx, svc, []config.CollectionConfig{col},
			func(config.CollectionConfig) (ingestuc.Target, error) { return target, nil },
			ingestuc.ModeRebuild,
		); err != nil {
			a.logger.Warn("Collection unavailable", zap.String("collection", col.Name), zap.Error(err))
			reg.RegisterUnavailable(col.Name, col.Header, err)
			continue
		}
		reg.Register(col.Name, col.Header, target.Index)
	}
	return reg, nil
}

// profileSummary returns the cached profile summary, generating it on first use.
func (a *app) profileSummary(ctx context.Context, completer domain.Completer) (string, error) {
	agent, err := a.newSummaryAgent(completer)
	if err != nil {
		return "", err
	}
	docs, err := a.allDocuments()
	if err != nil {
		return "", err
	}
	text, cached, err := summaryuc.LoadOrSummarize(ctx, summaryuc.NewCache(a.cfg.Summary.Path), agent, docs)
	if err != nil {
		return "", fmt.Errorf("profile summary: %w", err)
	}
	a.logger.Info("Profile summary ready", zap.Bool("cached", cached), zap.Int("chars", len(text)))
	return text, nil
}
