// Command server runs the image bookmarks web site.
//
// Configuration comes from environment variables, optionally seeded from a
// .env file and a config.yml in the working directory. See internal/config
// for the keys.
package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sakif/bookmarks/internal/config"
	"github.com/sakif/bookmarks/internal/server"
)

func main() {
	// The real logger's level comes from the config, which is not loaded
	// yet. bootLogger covers the lines before that.
	bootLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		bootLogger.Warn("could not read .env file", slog.String("error", err.Error()))
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	// Validate already refuses the default secrets in production. In
	// development they are allowed, but sharing one value between the JWT
	// and the flash cookie is worth a nudge.
	if !cfg.IsProduction() && cfg.JWTSecret == cfg.SessionSecret {
		logger.Warn("JWT_SECRET and SESSION_SECRET are identical; set distinct secrets outside development")
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
