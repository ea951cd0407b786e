package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/sheetbuilder/sheetbuilder/internal/reliability"
	"github.com/sheetbuilder/sheetbuilder/internal/storage"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("server.host", defaults.Server.Host)
	viper.SetDefault("server.port", defaults.Server.Port)
	viper.SetDefault("server.log_level", defaults.Server.LogLevel)
	viper.SetDefault("upload_reliability.enforce_progress_for_large", defaults.UploadReliability.EnforceProgressForLarge)
	viper.SetDefault("upload_reliability.large_file_threshold_mb", defaults.UploadReliability.LargeFileThresholdMB)
	viper.SetDefault("upload_reliability.idempotency_active", defaults.UploadReliability.IdempotencyActive)
	viper.SetDefault("upload_reliability.recent_result_ttl_minutes", defaults.UploadReliability.RecentResultTTLMinutes)
	viper.SetDefault("file_storage.directory", defaults.FileStorage.Directory)
	viper.SetDefault("file_storage.max_storage_age_days", defaults.FileStorage.MaxStorageAgeDays)
	viper.SetDefault("file_storage.optimize_output", defaults.FileStorage.OptimizeOutput)

	// Environment variables with SHEETBUILDER_ prefix,
	// e.g. SHEETBUILDER_SERVER_PORT=9090
	viper.SetEnvPrefix("SHEETBUILDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.sheetbuilder")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. A reload that fails
// to parse or validate leaves the previous configuration in place.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ToReliabilityConfig converts the upload_reliability section to a format
// suitable for reliability.Registry.
func (c *Config) ToReliabilityConfig(logger *slog.Logger) reliability.Config {
	return reliability.Config{
		IdempotencyActive:       c.UploadReliability.IdempotencyActive,
		EnforceProgressForLarge: c.UploadReliability.EnforceProgressForLarge,
		LargeFileThresholdMB:    c.UploadReliability.LargeFileThresholdMB,
		ResultTTL:               time.Duration(c.UploadReliability.RecentResultTTLMinutes) * time.Minute,
		Logger:                  logger,
	}
}

// ToStorageConfig converts the file_storage section to a format suitable
// for storage.New.
func (c *Config) ToStorageConfig(logger *slog.Logger) storage.Config {
	return storage.Config{
		Directory:  c.FileStorage.Directory,
		MaxAgeDays: c.FileStorage.MaxStorageAgeDays,
		Logger:     logger,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Sheetbuilder configuration
# Any value can be overridden with a SHEETBUILDER_ environment variable,
# e.g. SHEETBUILDER_SERVER_PORT=9090 SHEETBUILDER_FILE_STORAGE_DIRECTORY=/var/sheets

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
