package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Andrej220/go-utils/partition/config"
)

type rootFlags struct {
	configPath string
	batchSize  int
	threads    int
	logLevel   string
	logFile    string
}

// loadConfig reads --config if given and applies flag overrides on top.
func (f *rootFlags) loadConfig(cmd *cobra.Command) (config.File, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return config.File{}, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("batch-size") {
		cfg.Executor.BatchSize = f.batchSize
	}
	if flags.Changed("threads") {
		cfg.Executor.ThreadCount = f.threads
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Log.File = f.logFile
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "partitionrun",
		Short:         "Run work over resource ids in partitioned batches",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	pf.IntVar(&flags.batchSize, "batch-size", 0, "maximum ids per batch (overrides config)")
	pf.IntVar(&flags.threads, "threads", 0, "maximum number of workers (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	pf.StringVar(&flags.logFile, "log-file", "", "write logs to a rotated file instead of stderr")

	cmd.AddCommand(newPlanCmd(flags))
	cmd.AddCommand(newExpungeCmd(flags))
	return cmd
}

// setupLogger builds the command logger and installs it as zap's global.
func setupLogger(cmd *cobra.Command, cfg config.Log) (*zap.Logger, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
