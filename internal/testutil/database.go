package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/service"
	"github.com/Veraticus/cardscan/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.ScanStore
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// SeedScan stores a scan of source taken at the given time. An empty number
// records a scan that found nothing.
func (db *TestDB) SeedScan(source, number string, at time.Time) model.ScanRecord {
	db.t.Helper()

	rec := model.NewScanRecord(source, number, number != "", nil)
	rec.ScannedAt = at
	rec.Attempts = 1
	if err := db.Storage.SaveScan(context.Background(), &rec); err != nil {
		db.t.Fatalf("failed to seed scan %q: %v", source, err)
	}
	return rec
}
