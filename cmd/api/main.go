package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/jobmatch/internal/app"
	"github.com/markdave123-py/jobmatch/internal/config"
	"github.com/markdave123-py/jobmatch/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Default().WithError(err).Fatal("failed to load config")
	}

	log := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File, ServiceName: "jobmatch-api"})
	logger.SetDefault(log)
	ctx = log.WithContext(ctx)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer application.Close()

	if err := application.StartBackground(ctx); err != nil {
		log.WithError(err).Fatal("background workers failed to start")
	}

	server := app.NewServer(ctx, application)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	log.Info("jobmatch is running")
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server error")
		}
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(log.WithContext(shutdownCtx)); err != nil {
		log.WithError(err).Warn("server shutdown incomplete")
	}
	log.Info("shutting down")
}
