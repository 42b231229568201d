package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/statement-flow/internal/ingest"
	"github.com/Veraticus/statement-flow/internal/storage"
	"github.com/Veraticus/statement-flow/internal/taxonomy"
)

func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := cfg.Database.Path
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		closeStorage(store)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if _, err := taxonomy.Bootstrap(ctx, store, cfg.User.ID); err != nil {
		closeStorage(store)
		return nil, fmt.Errorf("failed to bootstrap taxonomy: %w", err)
	}

	return store, nil
}

func closeStorage(store *storage.SQLiteStorage) {
	if err := store.Close(); err != nil {
		slog.Error("Failed to close storage", "error", err)
	}
}

func newService(store *storage.SQLiteStorage, progress ingest.ProgressFunc) *ingest.Service {
	opts := cfg.IngestOptions()
	opts.Progress = progress
	return ingest.New(store, opts)
}

func boolMark(b bool) string {
	if b {
		return "✓"
	}
	return ""
}

func categoryPath(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " / ")
}
