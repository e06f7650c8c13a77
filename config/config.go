// Package config loads the service configuration from YAML, including the
// definition of the fuzzy engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"

	"fuzzyscore/fuzzy"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Uploads  UploadConfig   `yaml:"uploads"`
	Labels   LabelConfig    `yaml:"labels"`
	Engine   EngineConfig   `yaml:"engine"`
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Path      string `yaml:"path"`
	EnableWAL bool   `yaml:"enable_wal"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type UploadConfig struct {
	// Dir archives every uploaded file when set.
	Dir             string `yaml:"dir"`
	Encoding        string `yaml:"encoding"`
	SkipInvalidRows bool   `yaml:"skip_invalid_rows"`
}

type LabelConfig struct {
	Locale string `yaml:"locale"`
}

// Default returns the satisfaction survey setup: two 1..5 inputs read from
// the metode_pengajaran and fasilitas_pembelajaran columns, one 1..5 output,
// five diagonal rules.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           8080,
			Timeout:        30 * time.Second,
			MaxUploadBytes: 10 << 20,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Path:      "data/fuzzyscore.db",
			EnableWAL: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Uploads: UploadConfig{
			Dir:      "uploads",
			Encoding: "utf-8",
		},
		Labels: LabelConfig{Locale: "en"},
		Engine: DefaultEngine(),
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := Default()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks the settings that do not need the engine to be compiled.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be positive")
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.max_upload_bytes must be positive")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Engine.Workers < 0 {
		return errors.New("engine.workers must not be negative")
	}
	if c.Engine.CacheSize < 0 {
		return errors.New("engine.cache_size must not be negative")
	}
	return nil
}

// LabelSet returns the label table for the configured locale.
func (c *Config) LabelSet() fuzzy.Labels {
	return fuzzy.MatchLabels(c.Labels.Locale)
}
