// Package config loads ledgersync settings. Environment variables prefixed
// LEDGERSYNC_ override the YAML file, which overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. LEDGERSYNC_REMOTE_TOKEN.
const EnvPrefix = "LEDGERSYNC"

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type BackupConfig struct {
	Format string `mapstructure:"format"`
}

// Config is the full set of settings.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Profile  string         `mapstructure:"profile"`
	Log      LogConfig      `mapstructure:"log"`
	Backup   BackupConfig   `mapstructure:"backup"`
}

var defaults = map[string]any{
	"database.path":  "ledgersync.db",
	"remote.url":     "",
	"remote.token":   "",
	"remote.timeout": 30 * time.Second,
	"sync.page_size": 200,
	"profile":        "",
	"log.level":      "warn",
	"backup.format":  "json",
}

// Load reads the config file at path. With an empty path it looks for
// ledgersync.yaml in the working directory and in $HOME/.config/ledgersync;
// finding none is not an error. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path == "" {
		v.SetConfigName("ledgersync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ledgersync"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Sync.PageSize <= 0 {
		return nil, fmt.Errorf("sync.page_size must be positive, got %d", c.Sync.PageSize)
	}
	return &c, nil
}

// LogLevel parses Log.Level, defaulting to warn for unknown values.
func (c *Config) LogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelWarn
	}
	return l
}
