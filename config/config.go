// Package config loads service settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override, e.g. HOUSING_HTTP_PORT.
// Keys come from field names; leaf fields carry no envconfig tag so an
// unset HOUSING_MODEL_PATH never falls back to a bare PATH variable.
const EnvPrefix = "HOUSING"

// DefaultFile is looked up in the working directory and its parent.
const DefaultFile = "config.yaml"

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Model       ModelConfig       `yaml:"model"`
	Predictions PredictionsConfig `yaml:"predictions"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type HTTPConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	Metrics bool          `yaml:"metrics"`
}

type ModelConfig struct {
	Type      string `yaml:"type"`
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size" split_words:"true"`
	Watch     bool   `yaml:"watch"`
}

// PredictionsConfig locates the prediction log written by the desktop form.
type PredictionsConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb" split_words:"true"`
	MaxBackups  int    `yaml:"max_backups" split_words:"true"`
	MaxAgeDays  int    `yaml:"max_age_days" split_words:"true"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:    "0.0.0.0",
			Port:    5000,
			Timeout: 30 * time.Second,
			Metrics: true,
		},
		Model: ModelConfig{
			Type:      "gradient_boosting",
			Path:      "gradient_boosting_model.json",
			CacheSize: 1024,
		},
		Predictions: PredictionsConfig{
			Backend: "csv",
			Path:    "predictions.csv",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// FindFile returns name if it exists, else ../name, else "".
func FindFile(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	parent := filepath.Join("..", name)
	if _, err := os.Stat(parent); err == nil {
		return parent
	}
	return ""
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and HOUSING_* environment variables, in that order.
// Relative paths in a file found outside the working directory are
// resolved against that file's directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
		if dir := filepath.Dir(path); dir != "." {
			cfg.Model.Path = relativeTo(dir, cfg.Model.Path)
			cfg.Predictions.Path = relativeTo(dir, cfg.Predictions.Path)
			cfg.Logging.File = relativeTo(dir, cfg.Logging.File)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func relativeTo(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTP.Port)
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http timeout must not be negative")
	}
	if c.Model.Path == "" {
		return fmt.Errorf("model path is required")
	}
	switch c.Predictions.Backend {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("unknown predictions backend %q", c.Predictions.Backend)
	}
	if c.Predictions.Path == "" {
		return fmt.Errorf("predictions path is required")
	}
	return nil
}

// Addr is the listen address for the HTTP service.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
