package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/domain"
	"github.com/kailas-cloud/askfolio/internal/loader"
	logpkg "github.com/kailas-cloud/askfolio/internal/logger"
	summaryuc "github.com/kailas-cloud/askfolio/internal/usecase/summary"
)

func newSummarizeCmd(flags *globalFlags) *cobra.Command {
	var (
		dir   string
		out   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Condense all documents into one profile summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if out != "" {
				cfg.Summary.Path = out
			}

			ctx := logpkg.ContextWithLogger(cmd.Context(), logger)
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			completer, err := a.buildCompleter()
			if err != nil {
				return err
			}
			agent, err := a.newSummaryAgent(completer)
			if err != nil {
				return err
			}
			docs, err := summaryDocuments(a, dir)
			if err != nil {
				return err
			}

			cache := summaryuc.NewCache(cfg.Summary.Path)
			var cached bool
			if force {
				var text string
				if text, err = agent.Summarize(ctx, docs); err == nil {
					err = cache.Save(text)
				}
			} else {
				_, cached, err = summaryuc.LoadOrSummarize(ctx, cache, agent, docs)
			}
			if err != nil {
				logger.Error("Summarize failed", zap.Error(err))
				return err
			}

			state := "written"
			if cached {
				state = "already present (use --force to regenerate)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "summary %s: %s\n", state, cache.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "read documents from this directory instead of the collections")
	cmd.Flags().StringVar(&out, "out", "", "summary file (default: summary.path)")
	cmd.Flags().BoolVar(&force, "force", false, "regenerate even if the summary file exists")
	return cmd
}

func summaryDocuments(a *app, dir string) ([]domain.Document, error) {
	if dir == "" {
		return a.allDocuments()
	}
	docs, err := loader.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", dir, err)
	}
	return docs, nil
}

