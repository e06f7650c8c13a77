package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fuzzyscore/config"
	"fuzzyscore/db"
	fhttp "fuzzyscore/http"
	"fuzzyscore/logging"
	"fuzzyscore/monitoring"
	"fuzzyscore/scoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload pages, JSON API and result feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(cmd.Context(), cfg, path)
	},
}

func serve(parent context.Context, cfg *config.Config, path string) error {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	store, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	logger.Info("database ready", zap.String("path", cfg.Database.Path))

	metrics := monitoring.NewMetrics()
	hub := monitoring.NewHub(logger, cfg.HTTP.AllowedOrigins, metrics)
	svc, err := scoring.New(cfg, store, hub, metrics, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)

	if _, err := os.Stat(path); err == nil {
		go func() {
			err := config.Watch(ctx, path, logger, func(next *config.Config) {
				// HTTP, database and log settings need a restart.
				svc.Reload(next)
			})
			if err != nil {
				logger.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	handlers := fhttp.NewHandlers(svc, hub, metrics.Handler(), logger)
	server := fhttp.NewServer(fhttp.ServerConfigFrom(cfg.HTTP), handlers, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("exiting")
	return nil
}
