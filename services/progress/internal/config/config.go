// Package config loads the progress service settings: an optional YAML file
// first, then environment variables on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Port         string `yaml:"port"`
	Env          string `yaml:"env"`
	CookieSecret string `yaml:"cookie_secret"`
	RateLimit    int    `yaml:"rate_limit"`
	RateWindowMS int    `yaml:"rate_window_ms"`
	RateBackend  string `yaml:"rate_backend"`
	RedisAddr    string `yaml:"redis_addr"`
	DatabaseURL  string `yaml:"database_url"`
	LogLevel     string `yaml:"log_level"`
}

func Default() Config {
	return Config{
		Port:         "8080",
		Env:          "development",
		RateLimit:    25,
		RateWindowMS: 60000,
		RateBackend:  BackendMemory,
		LogLevel:     "info",
	}
}

// Load reads JOURNEY_CONFIG when set and applies env overrides.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

func LoadFrom(getenv func(string) string) (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(getenv("JOURNEY_CONFIG")); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.Port = envDefault(getenv, "SERVICE_PORT", c.Port)
	c.Env = envDefault(getenv, "APP_ENV", c.Env)
	c.CookieSecret = envDefault(getenv, "PROGRESS_COOKIE_SECRET", c.CookieSecret)
	c.RateLimit = envIntDefault(getenv, "PROGRESS_RATE_LIMIT", c.RateLimit)
	c.RateWindowMS = envIntDefault(getenv, "PROGRESS_RATE_WINDOW_MS", c.RateWindowMS)
	c.RateBackend = strings.ToLower(envDefault(getenv, "RATE_LIMIT_BACKEND", c.RateBackend))
	c.RedisAddr = envDefault(getenv, "REDIS_ADDR", c.RedisAddr)
	c.DatabaseURL = envDefault(getenv, "DATABASE_URL", c.DatabaseURL)
	c.LogLevel = envDefault(getenv, "LOG_LEVEL", c.LogLevel)
}

func (c Config) Validate() error {
	if c.RateLimit <= 0 {
		return errors.New("rate_limit must be positive")
	}
	if c.RateWindowMS <= 0 {
		return errors.New("rate_window_ms must be positive")
	}
	switch c.RateBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis rate limit backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres rate limit backend")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.RateBackend)
	}
	return nil
}

func (c Config) Addr() string { return ":" + c.Port }

func (c Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowMS) * time.Millisecond
}

// SecureCookies is true in production only, so local http works.
func (c Config) SecureCookies() bool {
	return strings.EqualFold(c.Env, "production")
}

func envDefault(getenv func(string) string, key, def string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return def
}

func envIntDefault(getenv func(string) string, key string, def int) int {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v <= 0 {
		return def
	}
	return v
}
