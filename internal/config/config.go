// Package config loads runtime configuration from the environment.
//
// An optional .env file is loaded first (useful in development), then
// cleanenv fills Config from environment variables, applying the env-default
// tags for anything unset.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Cache backends for quote snapshots.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	Port        int    `env:"PORT" env-default:"8080"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	DBPath      string `env:"DB_PATH" env-default:"data/portfolio.db"`
	TemplateDir string `env:"TEMPLATE_DIR" env-default:"web/templates"`
	StaticDir   string `env:"STATIC_DIR" env-default:"web/static"`

	Auth   AuthConfig
	CORS   CORSConfig
	Market MarketConfig
	Cache  CacheConfig
}

type AuthConfig struct {
	JWTSecret          string        `env:"JWT_SECRET"`
	SessionTTL         time.Duration `env:"SESSION_TTL" env-default:"24h"`
	CookieSecure       bool          `env:"COOKIE_SECURE" env-default:"false"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string        `env:"GOOGLE_CALLBACK_URL"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://127.0.0.1:5500"`
}

type MarketConfig struct {
	QuoteURL    string        `env:"YAHOO_QUOTE_URL" env-default:"https://query1.finance.yahoo.com/v7/finance/quote"`
	ChartURL    string        `env:"YAHOO_CHART_URL" env-default:"https://query1.finance.yahoo.com/v8/finance/chart"`
	Timeout     time.Duration `env:"MARKET_TIMEOUT" env-default:"8s"`
	Retries     int           `env:"MARKET_RETRIES" env-default:"1"`
	Concurrency int           `env:"MARKET_FETCH_CONCURRENCY" env-default:"4"`
}

type CacheConfig struct {
	Backend       string        `env:"QUOTE_CACHE_BACKEND" env-default:"memory"`
	Size          int           `env:"QUOTE_CACHE_SIZE" env-default:"1024"`
	TTL           time.Duration `env:"QUOTE_CACHE_TTL" env-default:"60s"`
	RedisAddr     string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading from environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	if cfg.Auth.GoogleCallbackURL == "" {
		cfg.Auth.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/authorize", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that would only fail later, at request time.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Market.Timeout <= 0 {
		errs = append(errs, errors.New("MARKET_TIMEOUT must be positive"))
	}
	if c.Market.Retries < 0 {
		errs = append(errs, errors.New("MARKET_RETRIES must not be negative"))
	}
	if c.Market.Concurrency <= 0 {
		errs = append(errs, errors.New("MARKET_FETCH_CONCURRENCY must be positive"))
	}
	switch c.Cache.Backend {
	case CacheMemory:
		if c.Cache.Size <= 0 {
			errs = append(errs, errors.New("QUOTE_CACHE_SIZE must be positive"))
		}
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("QUOTE_CACHE_BACKEND %q is not one of memory, redis", c.Cache.Backend))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("QUOTE_CACHE_TTL must be positive"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps LOG_LEVEL to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", s)
}

// GoogleEnabled reports whether OAuth credentials are configured.
func (c *Config) GoogleEnabled() bool {
	return c.Auth.GoogleClientID != "" && c.Auth.GoogleClientSecret != ""
}
