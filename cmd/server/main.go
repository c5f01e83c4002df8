package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/hperssn/wizard/internal/config"
	httpapi "github.com/hperssn/wizard/internal/http"
	"github.com/hperssn/wizard/internal/logging"
	"github.com/hperssn/wizard/internal/runner"
	"github.com/hperssn/wizard/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		logging.NewLogger(os.Stderr, logging.LevelInfo).Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadServer()
	if err != nil {
		logging.NewLogger(os.Stderr, logging.LevelInfo).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	repo, err := storage.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	blobs, err := storage.NewBlobStore(afero.NewOsFs(), cfg.UploadDir)
	if err != nil {
		logger.Error("failed to prepare upload dir", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	manager := runner.NewSessionManager(repo, blobs, logger, runner.Config{
		SessionTTL:      cfg.SessionTTL,
		CleanupInterval: cfg.CleanupInterval,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(manager, logger, httpapi.Options{MaxRequestBytes: cfg.MaxRequestBytes}),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return manager.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}
