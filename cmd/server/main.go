// Package main is the entry point for the account portal server.
//
// The main package is kept minimal. Its job is to:
// 1. Read configuration (.env, config.yaml, environment)
// 2. Create dependencies (logger, provider client)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sakif/account-portal/internal/config"
	"github.com/sakif/account-portal/internal/server"
	"github.com/sakif/account-portal/internal/supabase"
)

func main() {
	// === 1. LOAD .env ===
	// A .env file is a local development convenience. Variables already set
	// in the environment win; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. READ CONFIGURATION ===
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. SET UP LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error
	level, _ := cfg.LogLevel() // validated by config.Load
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// The sqlite dev store creates its file but not the directory.
	if cfg.Store.Driver == config.StoreSQLite && cfg.Store.SQLitePath != ":memory:" {
		dbDir := filepath.Dir(cfg.Store.SQLitePath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. PROVIDER CLIENT ===
	// One process-lifetime client with the service-role key. Handlers get
	// per-request copies bound to the caller's cookies.
	base, err := supabase.New(supabase.Options{
		URL:        cfg.Supabase.URL,
		Key:        cfg.Supabase.ServiceRoleKey,
		HTTPClient: &http.Client{Timeout: cfg.Provider.Timeout},
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create provider client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, base, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
