// Package config loads server settings from the environment and an optional
// config.yml.
//
// PRECEDENCE (highest first):
//
//	1. environment variables     PORT=9000 ./server
//	2. .env                      loaded into the environment by cmd/server
//	3. config.yml                in the working directory, if present
//	4. the defaults table below
//
// Keys are the environment variable names in every layer, so config.yml
// reads like a .env file in YAML:
//
//	PORT: 9000
//	REDIS_URL: redis://localhost:6379/0
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const devSecret = "dev-secret-change-me-in-production"

// Config holds every setting the server reads at startup.
//
// It is read once in main and passed down by pointer; nothing else reads
// the environment. Tests build a Config literal directly.
type Config struct {
	Env                 string `mapstructure:"APP_ENV"`
	Port                int    `mapstructure:"PORT"`
	DBPath              string `mapstructure:"DB_PATH"`
	TemplateDir         string `mapstructure:"TEMPLATE_DIR"`
	StaticDir           string `mapstructure:"STATIC_DIR"`
	MediaDir            string `mapstructure:"MEDIA_DIR"`
	JWTSecret           string `mapstructure:"JWT_SECRET"`
	SessionSecret       string `mapstructure:"SESSION_SECRET"`
	GitHubClientID      string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret  string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL   string `mapstructure:"GITHUB_CALLBACK_URL"`
	RedisURL            string `mapstructure:"REDIS_URL"`
	LogLevel            string `mapstructure:"LOG_LEVEL"`
	FetchTimeoutSeconds int    `mapstructure:"FETCH_TIMEOUT_SECONDS"`
	CookieSecure        bool   `mapstructure:"COOKIE_SECURE"`
}

var defaults = map[string]any{
	"APP_ENV":               "development",
	"PORT":                  8080,
	"DB_PATH":               "data/bookmarks.db",
	"TEMPLATE_DIR":          "web/templates",
	"STATIC_DIR":            "web/static",
	"MEDIA_DIR":             "data/media",
	"JWT_SECRET":            devSecret,
	"SESSION_SECRET":        devSecret,
	"GITHUB_CLIENT_ID":      "",
	"GITHUB_CLIENT_SECRET":  "",
	"GITHUB_CALLBACK_URL":   "",
	"REDIS_URL":             "",
	"LOG_LEVEL":             "info",
	"FETCH_TIMEOUT_SECONDS": 15,
	"COOKIE_SECURE":         false,
}

// Load reads config.yml from the working directory (if present) and lets
// environment variables override it.
func Load() (*Config, error) {
	return load(viper.New(), ".")
}

// load does the work of Load against a caller-supplied viper instance and
// search path, so tests can point it at a temp dir without touching the
// global viper.
//
// AutomaticEnv only consults the environment for keys viper already knows
// about. SetDefault registers every key, which is why each setting needs
// an entry in defaults even when the default is empty.
func load(v *viper.Viper, dirs ...string) (*Config, error) {
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// A missing file is fine; a present but malformed one is not.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with. Production
// additionally refuses the built-in development secrets.
//
// The server exits at startup on any of these rather than running half
// configured: a short JWT secret is guessable, and a production deploy on
// the development secret would accept tokens minted by anyone who has
// read this file.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH is required")
	}
	if c.MediaDir == "" {
		return errors.New("MEDIA_DIR is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if len(c.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}
	if c.FetchTimeoutSeconds <= 0 {
		return errors.New("FETCH_TIMEOUT_SECONDS must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == devSecret || c.SessionSecret == devSecret {
			return errors.New("JWT_SECRET and SESSION_SECRET must be changed from the default value in production")
		}
		if !c.CookieSecure {
			return errors.New("COOKIE_SECURE must be true in production")
		}
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "production" || env == "prod"
}

// GitHubEnabled reports whether GitHub sign-in is configured. The callback
// URL always has a value (load fills in a localhost default), so only the
// client credentials decide.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// FetchTimeout returns FETCH_TIMEOUT_SECONDS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to Info.
// Unknown values fall back to Info rather than failing startup over a typo.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
