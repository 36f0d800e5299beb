package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/event-catalog/internal/application"
	"github.com/example/event-catalog/internal/persistence/sqlite"
	"github.com/example/event-catalog/internal/persistence/sqlite/migration"
)

// NewSQLiteStore opens a migrated SQLite blob store in a temporary directory.
// The store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "catalog.db")
	store, err := sqlite.Open(context.Background(), migration.DefaultSQLiteConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open sqlite store: %v", err)
	}
	tb.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewSQLiteState returns application state backed by NewSQLiteStore.
func NewSQLiteState(tb testing.TB) application.StateRepository {
	tb.Helper()
	return application.NewStateRepository(NewSQLiteStore(tb))
}
