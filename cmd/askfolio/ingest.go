package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/config"
	"github.com/kailas-cloud/askfolio/internal/domain"
	logpkg "github.com/kailas-cloud/askfolio/internal/logger"
	ingestuc "github.com/kailas-cloud/askfolio/internal/usecase/ingest"
)

type ingestFlags struct {
	collection string
	dir        string
	mode       string
}

func newIngestCmd(flags *globalFlags) *cobra.Command {
	f := &ingestFlags{}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and index collection documents",
		Long: `Reads .txt and .md files from each collection directory and indexes them.

Incremental mode (default) skips files already present in the collection;
rebuild mode drops the collection and indexes everything again.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cols, mode, err := f.resolve(cfg)
			if err != nil {
				return err
			}

			ctx := logpkg.ContextWithLogger(cmd.Context(), logger)
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.newIngester(a.buildEmbedder())
			if err != nil {
				return err
			}
			reports, err := a.ingestCollections(ctx, svc, cols, func(col config.CollectionConfig) (ingestuc.Target, error) {
				return a.openTarget(ctx, col)
			}, mode)
			for _, r := range reports {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d documents, %d indexed (%d chunks), %d skipped, %d failed\n",
					r.Collection, r.Documents, r.Indexed, r.Chunks, r.Skipped, r.Failed)
			}
			if err != nil {
				logger.Error("Ingest failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.collection, "collection", "c", "", "ingest only this collection")
	cmd.Flags().StringVar(&f.dir, "dir", "", "read documents from this directory (requires --collection)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "incremental or rebuild (default: ingest.mode)")
	return cmd
}

// resolve applies the flags to the configured collections and mode.
func (f *ingestFlags) resolve(cfg config.Config) ([]config.CollectionConfig, ingestuc.Mode, error) {
	if cfg.Index.Backend == config.BackendMemory {
		return nil, "", fmt.Errorf("%w: index backend %q does not persist; use file or redis",
			domain.ErrConfig, config.BackendMemory)
	}

	modeName := f.mode
	if modeName == "" {
		modeName = cfg.Ingest.Mode
	}
	mode, err := ingestuc.ParseMode(modeName)
	if err != nil {
		return nil, "", err
	}

	if f.collection == "" {
		if f.dir != "" {
			return nil, "", fmt.Errorf("%w: --dir requires --collection", domain.ErrInvalidRequest)
		}
		return cfg.Collections, mode, nil
	}

	col, ok := cfg.Collection(f.collection)
	if !ok {
		return nil, "", fmt.Errorf("collection %q: %w", f.collection, domain.ErrNotFound)
	}
	if f.dir != "" {
		col.Dir = f.dir
	}
	return []config.CollectionConfig{col}, mode, nil
}
