package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config holds sheetbuilder configuration.
// Stored at: config.yaml in the working directory or ~/.sheetbuilder.
type Config struct {
	Server            ServerCfg            `mapstructure:"server" yaml:"server"`
	UploadReliability UploadReliabilityCfg `mapstructure:"upload_reliability" yaml:"upload_reliability"`
	FileStorage       FileStorageCfg       `mapstructure:"file_storage" yaml:"file_storage"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
}

// UploadReliabilityCfg configures submission deduplication and the
// large-upload policy.
type UploadReliabilityCfg struct {
	// EnforceProgressForLarge makes the synchronous endpoint refuse uploads
	// at or above LargeFileThresholdMB.
	EnforceProgressForLarge bool `mapstructure:"enforce_progress_for_large" yaml:"enforce_progress_for_large"`
	// LargeFileThresholdMB is the synchronous-path cutoff in MiB (1-2048).
	LargeFileThresholdMB int `mapstructure:"large_file_threshold_mb" yaml:"large_file_threshold_mb"`
	// IdempotencyActive deduplicates equivalent submissions.
	IdempotencyActive bool `mapstructure:"idempotency_active" yaml:"idempotency_active"`
	// RecentResultTTLMinutes is how long completed results answer duplicate
	// submissions (1-1440).
	RecentResultTTLMinutes int `mapstructure:"recent_result_ttl_minutes" yaml:"recent_result_ttl_minutes"`
}

// FileStorageCfg configures the uploads directory.
type FileStorageCfg struct {
	// Directory holds staged uploads and composed outputs.
	Directory string `mapstructure:"directory" yaml:"directory"`
	// MaxStorageAgeDays is the retention for stored files; zero disables the
	// cleanup sweep.
	MaxStorageAgeDays int `mapstructure:"max_storage_age_days" yaml:"max_storage_age_days"`
	// OptimizeOutput rewrites composed outputs through the PDF optimizer.
	OptimizeOutput bool `mapstructure:"optimize_output" yaml:"optimize_output"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host:     "0.0.0.0",
			Port:     8080,
			LogLevel: "info",
		},
		UploadReliability: UploadReliabilityCfg{
			EnforceProgressForLarge: true,
			LargeFileThresholdMB:    200,
			IdempotencyActive:       true,
			RecentResultTTLMinutes:  30,
		},
		FileStorage: FileStorageCfg{
			Directory:         "uploads",
			MaxStorageAgeDays: 7,
			OptimizeOutput:    true,
		},
	}
}

// Validate rejects out-of-range settings.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 1-65535", c.Server.Port)
	}
	if t := c.UploadReliability.LargeFileThresholdMB; t < 1 || t > 2048 {
		return fmt.Errorf("upload_reliability.large_file_threshold_mb %d out of range 1-2048", t)
	}
	if ttl := c.UploadReliability.RecentResultTTLMinutes; ttl < 1 || ttl > 1440 {
		return fmt.Errorf("upload_reliability.recent_result_ttl_minutes %d out of range 1-1440", ttl)
	}
	if c.FileStorage.Directory == "" {
		return fmt.Errorf("file_storage.directory must not be empty")
	}
	if c.FileStorage.MaxStorageAgeDays < 0 {
		return fmt.Errorf("file_storage.max_storage_age_days must not be negative")
	}
	return nil
}

// SlogLevel maps the configured log level onto slog's levels, defaulting to
// info for unknown values.
func (c ServerCfg) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

