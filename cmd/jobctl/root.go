package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/jobmatch/internal/app"
	"github.com/markdave123-py/jobmatch/internal/config"
	"github.com/markdave123-py/jobmatch/internal/logger"
)

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:           "jobctl",
		Short:         "jobctl runs jobmatch pipeline stages from the command line",
		SilenceUsage:  true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug logging")
}

// withApp loads config, builds the application and runs fn with a logger-carrying context.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log := logger.New(&logger.Config{Level: level, Format: cfg.Log.Format, File: cfg.Log.File, ServiceName: "jobctl"})
	logger.SetDefault(log)
	ctx := log.WithContext(cmd.Context())

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer a.Close()
	return fn(ctx, a)
}
