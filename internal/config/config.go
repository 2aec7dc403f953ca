package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv overrides the default config file location.
const ConfigPathEnv = "PROXYCONSOLE_CONFIG"

// DefaultConfigPath is used when neither a flag nor the environment names a config file.
const DefaultConfigPath = "config.yaml"

// AppConfig holds process-level options resolved from the command line.
type AppConfig struct {
	ConfigPath string
}

// Config is the on-disk console configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig controls where the console API is mounted.
type APIConfig struct {
	BasePath string `yaml:"base-path"` // Prefix for every console route.
}

// DatabaseConfig holds the DSN for the settings database.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // Postgres URL/keywords or a SQLite path.
}

// JWTConfig holds admin token signing settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RedisConfig enables the proxy configuration cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache-ttl"`
}

// LogConfig controls logrus output and rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // Empty logs to stdout.
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// Defaults returns a config populated with fallback values.
func Defaults() Config {
	return Config{
		Listen: ":8080",
		API:    APIConfig{BasePath: "/api/beta"},
		Database: DatabaseConfig{
			DSN: "file:data/proxyconsole.db",
		},
		JWT: JWTConfig{Expiry: 24 * time.Hour},
		Redis: RedisConfig{
			CacheTTL: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// ResolveConfigPath picks the explicit path, then the environment, then the default.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(ConfigPathEnv)); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads the YAML config at path on top of Defaults.
// A missing file yields the defaults; the JWT secret is still required.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, errRead := os.ReadFile(path)
	if errRead != nil && !errors.Is(errRead, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if len(data) > 0 {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	}

	cfg.normalize()
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Validate reports settings the console cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.JWT.Expiry <= 0 {
		return errors.New("config: jwt.expiry must be positive")
	}
	return nil
}

// normalize trims values and reapplies defaults cleared by the file.
func (c *Config) normalize() {
	defaults := Defaults()
	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = defaults.Listen
	}
	base := strings.TrimSpace(c.API.BasePath)
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	c.API.BasePath = strings.TrimSuffix(base, "/")
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = defaults.Redis.CacheTTL
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = defaults.Log.Level
	}
}
