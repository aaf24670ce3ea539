// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all configuration for the extraction tools.
type Config struct {
	// Storage settings
	DataDir string `env:"DATA_DIR, default=." json:"data_dir" validate:"required"`

	// Spectrogram settings
	SpectPreset   string `env:"SPECT_PRESET" json:"spect_preset,omitempty" validate:"omitempty,oneof=tachibana koumura"`
	SpectCacheDir string `env:"SPECT_CACHE_DIR" json:"spect_cache_dir,omitempty"`

	// Segmentation settings
	SegmentThreshold      float64 `env:"SEGMENT_THRESHOLD, default=5000" json:"segment_threshold"`
	SegmentMinSyllableDur float64 `env:"SEGMENT_MIN_SYLLABLE_DUR, default=0.02" json:"segment_min_syllable_dur" validate:"gt=0"`
	SegmentMinSilentDur   float64 `env:"SEGMENT_MIN_SILENT_DUR, default=0.002" json:"segment_min_silent_dur" validate:"gte=0"`

	// Syllable settings; zero keeps every syllable at its native width.
	SyllableWidthSec float64 `env:"SYLLABLE_WIDTH_SEC, default=0" json:"syllable_width_sec" validate:"gte=0"`
	TextSampleRate   int     `env:"TEXT_SAMPLE_RATE, default=30303" json:"text_sample_rate" validate:"gt=0"`

	// Optional S3 settings
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json TEXT JSON"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"` // "debug", "info", "warn", "error"
}

var validate = validator.New()

// S3Enabled returns true if s3:// paths can be resolved.
func (c *Config) S3Enabled() bool {
	return c.S3Region != ""
}

// CacheEnabled returns true if spectrograms should be cached on disk.
func (c *Config) CacheEnabled() bool {
	return c.SpectCacheDir != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return LoadWith(context.Background(), envconfig.OsLookuper())
}

// LoadWith reads configuration through lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a structured logger on stderr based on the configuration.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stderr)
}

// NewLoggerTo creates a structured logger writing to w.
// When LogFormat is "json", it outputs JSON logs suitable for pipelines.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, SpectPreset: %s, SpectCacheDir: %s, SegmentThreshold: %g, SegmentMinSyllableDur: %g, SegmentMinSilentDur: %g, SyllableWidthSec: %g, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.DataDir,
		c.SpectPreset,
		c.SpectCacheDir,
		c.SegmentThreshold,
		c.SegmentMinSyllableDur,
		c.SegmentMinSilentDur,
		c.SyllableWidthSec,
		c.S3Region,
		c.S3Endpoint,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
