// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/silencesplit/internal/audio"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("config: invalid value")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port" validate:"gt=0,lte=65535"`

	// Storage settings
	TempDir   string `env:"TEMP_DIR, default=/tmp/silencesplit" json:"temp_dir" validate:"required"`
	OutputDir string `env:"OUTPUT_DIR, default=./clips" json:"output_dir" validate:"required"`

	// Segmentation defaults
	MinSilenceMs    int     `env:"MIN_SILENCE_MS, default=420" json:"min_silence_ms" validate:"gt=0"`
	SilenceThreshDB float64 `env:"SILENCE_THRESH_DB, default=-40" json:"silence_thresh_db" validate:"lte=0"`
	KeepSilenceMs   int     `env:"KEEP_SILENCE_MS, default=250" json:"keep_silence_ms" validate:"gte=0"`
	FrameMs         int     `env:"FRAME_MS, default=10" json:"frame_ms" validate:"gt=0,lte=1000"`
	LevelMeter      string  `env:"LEVEL_METER, default=rms" json:"level_meter" validate:"oneof=rms peak"`

	// External tools
	FFmpegPath     string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath    string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	YtDlpPath      string `env:"YTDLP_PATH, default=yt-dlp" json:"ytdlp_path"`
	MaxVideoHeight int    `env:"MAX_VIDEO_HEIGHT, default=1080" json:"max_video_height" validate:"gt=0"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

var validate = validator.New()

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// SplitParams returns the default segmentation parameters.
func (c *Config) SplitParams() audio.Params {
	return audio.Params{
		MinSilenceMs:    c.MinSilenceMs,
		SilenceThreshDB: c.SilenceThreshDB,
		KeepSilenceMs:   c.KeepSilenceMs,
		FrameMs:         c.FrameMs,
	}
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	return load(context.Background(), envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.LevelMeter = strings.ToLower(cfg.LevelMeter)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all values are within range.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (got %v)", ErrInvalidConfig, fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs. Logs go to stderr so the
// CLI can keep stdout for results.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	if strings.ToLower(c.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, OutputDir: %s, MinSilenceMs: %d, SilenceThreshDB: %g, KeepSilenceMs: %d, FrameMs: %d, LevelMeter: %s, S3Bucket: %s, S3Region: %s, AWSAccessKeyID: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.OutputDir,
		c.MinSilenceMs,
		c.SilenceThreshDB,
		c.KeepSilenceMs,
		c.FrameMs,
		c.LevelMeter,
		c.S3Bucket,
		c.S3Region,
		mask(c.AWSAccessKeyID),
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
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
