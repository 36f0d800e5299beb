package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/example/event-catalog/internal/persistence"
	"github.com/example/event-catalog/internal/persistence/blobtest"
	"github.com/example/event-catalog/internal/persistence/sqlite/migration"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), migration.InMemorySQLiteConfig(), nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestBlobRepository(t *testing.T) {
	blobtest.Run(t, func(t *testing.T) persistence.BlobRepository {
		return newTestStore(t)
	})
}

func TestBlobRepository_DetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if _, err := store.Save(ctx, []persistence.Blob{{Key: "events", Value: []byte(`[]`)}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := store.pool.DB().ExecContext(ctx, `UPDATE kv_blobs SET value = ? WHERE key = 'events'`, []byte(`[{}]`)); err != nil {
		t.Fatalf("tamper failed: %v", err)
	}
	if _, err := store.Load(ctx, "events"); !errors.Is(err, persistence.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "catalog.db")

	store, err := Open(ctx, migration.DefaultSQLiteConfig(dsn), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := store.Save(ctx, []persistence.Blob{{Key: "savedRecords", Value: []byte(`[{"id":"saved_1"}]`)}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(ctx, migration.DefaultSQLiteConfig(dsn), nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	blobs, err := reopened.Load(ctx, "savedRecords")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := blobs["savedRecords"]; string(got.Value) != `[{"id":"saved_1"}]` || got.Revision != 1 {
		t.Fatalf("unexpected blob after reopen %+v", got)
	}
}

func TestErrorMapper_MapError(t *testing.T) {
	mapper := NewErrorMapper()
	if err := mapper.MapError(errors.New("UNIQUE constraint failed: kv_blobs.key")); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mapper.MapError(errors.New("database is locked (5) (SQLITE_BUSY)")); !errors.Is(err, errDatabaseLocked) {
		t.Fatalf("expected lock error, got %v", err)
	}
	if err := mapper.MapError(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestRetryHelper_WithRetry(t *testing.T) {
	helper := NewRetryHelper(RetryConfig{MaxRetries: 2, BackoffFactor: 2})
	calls := 0
	err := helper.WithRetry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on second attempt, got %v after %d calls", err, calls)
	}

	calls = 0
	err = helper.WithRetry(context.Background(), func() error {
		calls++
		return persistence.ErrConflict
	})
	if !errors.Is(err, persistence.ErrConflict) || calls != 1 {
		t.Fatalf("expected conflicts not to be retried, got %v after %d calls", err, calls)
	}
}
