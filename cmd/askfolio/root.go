package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/askfolio/internal/config"
	logpkg "github.com/kailas-cloud/askfolio/internal/logger"
	"github.com/kailas-cloud/askfolio/internal/version"
)

type globalFlags struct {
	configPath string
	env        string
}

// NewRootCmd builds the askfolio command tree.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "askfolio",
		Short: "Ask questions about a portfolio",
		Long: `askfolio answers questions about one person's CV and projects.

It ingests text documents into vector collections, serves a chat API grounded
in the nearest chunks, and can condense everything into one profile summary.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: config/<env>.yaml)")
	root.PersistentFlags().StringVar(&flags.env, "env", "", "environment name (default: $ASKFOLIO_ENV or local)")

	root.AddCommand(
		newServeCmd(flags),
		newIngestCmd(flags),
		newSummarizeCmd(flags),
	)
	return root
}

// load resolves env, config and logger for a command run.
func (f *globalFlags) load() (string, config.Config, *zap.Logger, error) {
	env := f.env
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return "", config.Config{}, nil, err
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return "", config.Config{}, nil, err
	}
	return env, cfg, logger, nil
}
