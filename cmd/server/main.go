// Package main serves the silencesplit job API over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/silencesplit/internal/bootstrap"
	"github.com/maauso/silencesplit/internal/config"
	"github.com/maauso/silencesplit/internal/server"
)

// shutdownGrace bounds how long in-flight requests may take once a signal arrives.
const shutdownGrace = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "silencesplit-server: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	params := cfg.SplitParams()
	handlers := server.NewHandlers(deps.Service, logger, server.WithDefaultParams(params))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.NewRouter(handlers, logger, server.DefaultConfig()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("accepting split jobs",
			slog.String("addr", srv.Addr),
			slog.String("output_dir", cfg.OutputDir),
			slog.Int("min_silence_ms", params.MinSilenceMs),
			slog.Float64("silence_thresh_db", params.SilenceThreshDB),
			slog.Int("keep_silence_ms", params.KeepSilenceMs),
			slog.String("level_meter", cfg.LevelMeter),
			slog.Bool("s3_enabled", cfg.S3Enabled()),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("draining HTTP requests", slog.Duration("grace", shutdownGrace))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("drain requests: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
