// Package config loads pyexplain settings from a YAML file and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvDB       = "PYEXPLAIN_DB"
	EnvLogLevel = "PYEXPLAIN_LOG_LEVEL"
	EnvModel    = "PYEXPLAIN_MODEL"
	EnvWorkers  = "PYEXPLAIN_WORKERS"
)

// Config is the on-disk configuration.
type Config struct {
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`
	Workers  int    `yaml:"workers"`
	Assist   Assist `yaml:"assist"`
}

// Assist configures the chat-completion collaborator.
type Assist struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:   ".pyexplain.db",
		LogLevel: "warn",
		Assist: Assist{
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			APIKeyEnv:   "OPENAI_API_KEY",
		},
	}
}

// DefaultPath returns ~/.config/pyexplain/config.yaml, or "" when the
// user config directory cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "pyexplain", "config.yaml")
}

// Load reads path over Default and then applies environment overrides.
// A missing file is not an error. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvModel); v != "" {
		c.Assist.Model = v
	}
	if v := getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must be >= 0, got %d", c.Workers)
	}
	if c.Assist.Temperature < 0 || c.Assist.Temperature > 2 {
		return fmt.Errorf("config: assist.temperature must be in [0, 2], got %g", c.Assist.Temperature)
	}
	return nil
}

// Level returns the parsed log level. Validate guarantees it parses.
func (c Config) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zapcore.WarnLevel
	}
	return lvl
}

// APIKey returns the key from the environment variable named by
// Assist.APIKeyEnv.
func (c Config) APIKey() string {
	name := c.Assist.APIKeyEnv
	if name == "" {
		name = "OPENAI_API_KEY"
	}
	return os.Getenv(name)
}
