// Package bootstrap provides dependency initialization for the extraction tools.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/songseg/internal/cache"
	"github.com/maauso/songseg/internal/config"
	"github.com/maauso/songseg/internal/segment"
	"github.com/maauso/songseg/internal/song"
	"github.com/maauso/songseg/internal/spect"
	"github.com/maauso/songseg/internal/storage"
)

// Dependencies holds all initialized dependencies for one extraction run.
type Dependencies struct {
	Store   storage.Storage
	Loader  *song.Loader
	Spect   spect.Config
	Segment segment.Config
	// Cache is nil when no cache directory is configured.
	Cache *cache.Store
	// FixedWidth is nil when syllables keep their native width.
	FixedWidth *float64
}

// NewDependencies creates and initializes all dependencies for the application.
// spectOpts describe the spectrogram when no preset is configured; a
// configured preset takes precedence.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, spectOpts ...spect.Option) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := append([]spect.Option{spect.WithLogger(logger)}, spectOpts...)
	if cfg.SpectPreset != "" {
		opts = append(opts, spect.WithPreset(spect.Preset(cfg.SpectPreset)))
	}
	spectCfg, err := spect.NewConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("spectrogram config: %w", err)
	}

	segCfg := segment.Config{
		Threshold:      cfg.SegmentThreshold,
		MinSyllableDur: cfg.SegmentMinSyllableDur,
		MinSilentDur:   cfg.SegmentMinSilentDur,
	}
	if err := segCfg.Validate(); err != nil {
		return nil, fmt.Errorf("segmentation config: %w", err)
	}

	deps := &Dependencies{
		Store:   store,
		Loader:  song.NewLoader(store, song.WithLoaderLogger(logger), song.WithTextSampleRate(cfg.TextSampleRate)),
		Spect:   spectCfg,
		Segment: segCfg,
	}
	if cfg.SyllableWidthSec > 0 {
		w := cfg.SyllableWidthSec
		deps.FixedWidth = &w
	}

	if cfg.CacheEnabled() {
		c, err := cache.Open(cfg.SpectCacheDir)
		if err != nil {
			return nil, fmt.Errorf("open spectrogram cache: %w", err)
		}
		logger.Info("spectrogram cache configured",
			slog.String("dir", cfg.SpectCacheDir),
		)
		deps.Cache = c
	}

	return deps, nil
}

// Close releases the cache, if any.
func (d *Dependencies) Close() error {
	if d.Cache == nil {
		return nil
	}
	return d.Cache.Close()
}

// MaterializeOptions returns the materialization options implied by the
// configuration.
func (d *Dependencies) MaterializeOptions() []song.MaterializeOption {
	var opts []song.MaterializeOption
	if d.FixedWidth != nil {
		opts = append(opts, song.WithFixedWidth(*d.FixedWidth))
	}
	if d.Cache != nil {
		opts = append(opts, song.WithCache(d.Cache))
	}
	return opts
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.DataDir == "" {
		return nil, errors.New("bootstrap: data directory is required")
	}
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.DataDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("data_dir", cfg.DataDir),
		)
		return s3Store, nil
	}

	logger.Info("local storage configured",
		slog.String("data_dir", cfg.DataDir),
	)
	return storage.NewLocalStorage(cfg.DataDir), nil
}
