package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/cardscan/internal/storage"
)

// getDatabase opens and migrates the scan history database at dbPath.
func getDatabase(ctx context.Context, dbPath string) (*storage.SQLiteStorage, func(), error) {
	db, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run migrations
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("Opened scan history", "path", db.Path())

	cleanup := func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}

	return db, cleanup, nil
}
