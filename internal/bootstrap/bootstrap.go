// Package bootstrap wires the application's dependencies from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/silencesplit/internal/audio"
	"github.com/maauso/silencesplit/internal/config"
	"github.com/maauso/silencesplit/internal/fetch"
	"github.com/maauso/silencesplit/internal/job"
	"github.com/maauso/silencesplit/internal/media"
	"github.com/maauso/silencesplit/internal/pipeline"
	"github.com/maauso/silencesplit/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Pipeline *pipeline.Pipeline
	Fetcher  fetch.Fetcher
	Storage  storage.Storage
	Service  *job.Service
}

// NewPipeline builds the extraction and segmentation pipeline.
func NewPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	meter, err := audio.MeterByName(cfg.LevelMeter)
	if err != nil {
		return nil, fmt.Errorf("configure level meter: %w", err)
	}

	extractor := media.NewFFmpegExtractor(
		media.WithFFmpegPath(cfg.FFmpegPath),
		media.WithFFprobePath(cfg.FFprobePath),
		media.WithLogger(logger),
	)
	segmenter := audio.NewSegmenter(
		audio.WithLevelMeter(meter),
		audio.WithLogger(logger),
	)
	return pipeline.New(extractor, segmenter, logger), nil
}

// NewFetcher builds the media fetcher.
func NewFetcher(cfg *config.Config, logger *slog.Logger) fetch.Fetcher {
	return fetch.NewYtDlpFetcher(
		fetch.WithBinaryPath(cfg.YtDlpPath),
		fetch.WithMaxHeight(cfg.MaxVideoHeight),
		fetch.WithLogger(logger),
	)
}

// NewDependencies creates and initializes all dependencies for the server.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := NewStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	p, err := NewPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}
	fetcher := NewFetcher(cfg, logger)

	svc := job.NewService(
		job.NewMemoryRepository(),
		fetcher,
		p,
		store,
		job.ServiceConfig{
			OutputRoot: cfg.OutputDir,
			Defaults:   cfg.SplitParams(),
			S3Enabled:  cfg.S3Enabled(),
		},
		logger,
	)

	return &Dependencies{
		Pipeline: p,
		Fetcher:  fetcher,
		Storage:  store,
		Service:  svc,
	}, nil
}

// NewStorage creates the storage backend: S3 when a bucket is configured,
// local disk otherwise.
func NewStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
