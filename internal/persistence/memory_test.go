package persistence_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/event-catalog/internal/persistence"
	"github.com/example/event-catalog/internal/persistence/blobtest"
)

func TestMemoryStore(t *testing.T) {
	blobtest.Run(t, func(t *testing.T) persistence.BlobRepository {
		return persistence.NewMemoryStore()
	})
}

func TestMemoryStore_LoadReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	if _, err := store.Save(ctx, []persistence.Blob{{Key: "events", Value: []byte(`[]`)}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	blobs, _ := store.Load(ctx, "events")
	blobs["events"].Value[0] = 'x'

	again, _ := store.Load(ctx, "events")
	if string(again["events"].Value) != `[]` {
		t.Fatalf("expected stored value to be isolated, got %s", again["events"].Value)
	}
}

func TestVerify(t *testing.T) {
	blob := persistence.Blob{Key: "events", Value: []byte(`[]`), Checksum: persistence.Checksum([]byte(`[]`))}
	if err := persistence.Verify(blob); err != nil {
		t.Fatalf("expected valid checksum, got %v", err)
	}
	blob.Value = []byte(`[1]`)
	if err := persistence.Verify(blob); !errors.Is(err, persistence.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if err := persistence.Verify(persistence.Blob{Key: "legacy", Value: []byte(`x`)}); err != nil {
		t.Fatalf("expected blobs without checksum to pass, got %v", err)
	}
}
