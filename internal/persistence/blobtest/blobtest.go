// Package blobtest holds behaviour checks shared by every BlobRepository.
package blobtest

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/example/event-catalog/internal/persistence"
)

// Factory returns an empty repository. Cleanup is registered on t.
type Factory func(t *testing.T) persistence.BlobRepository

// Run exercises the revision, atomicity and listing rules of a BlobRepository.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("missing keys are absent", func(t *testing.T) {
		repo := newRepo(t)
		blobs, err := repo.Load(context.Background(), "events", "myEvents")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(blobs) != 0 {
			t.Fatalf("expected no blobs, got %v", blobs)
		}
	})

	t.Run("writes advance the revision", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		revs, err := repo.Save(ctx, []persistence.Blob{{Key: "events", Value: []byte(`[]`)}})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if revs["events"] != 1 {
			t.Fatalf("expected revision 1, got %v", revs)
		}

		revs, err = repo.Save(ctx, []persistence.Blob{{Key: "events", Value: []byte(`[{"id":"a"}]`), Revision: 1}})
		if err != nil {
			t.Fatalf("second Save failed: %v", err)
		}
		if revs["events"] != 2 {
			t.Fatalf("expected revision 2, got %v", revs)
		}

		blobs, err := repo.Load(ctx, "events")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		got := blobs["events"]
		if string(got.Value) != `[{"id":"a"}]` || got.Revision != 2 {
			t.Fatalf("unexpected blob %+v", got)
		}
		if got.Checksum != persistence.Checksum(got.Value) {
			t.Fatalf("expected checksum to be stored, got %q", got.Checksum)
		}
		if got.UpdatedAt.IsZero() {
			t.Fatalf("expected UpdatedAt to be set")
		}
	})

	t.Run("stale revision conflicts and writes nothing", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		if _, err := repo.Save(ctx, []persistence.Blob{{Key: "events", Value: []byte(`[]`)}}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		_, err := repo.Save(ctx, []persistence.Blob{
			{Key: "lastUpdated", Value: []byte(`"now"`)},
			{Key: "events", Value: []byte(`[1]`), Revision: 0},
		})
		if !errors.Is(err, persistence.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		blobs, err := repo.Load(ctx, "events", "lastUpdated")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if _, ok := blobs["lastUpdated"]; ok {
			t.Fatalf("expected the batch to be rejected as a whole")
		}
		if string(blobs["events"].Value) != `[]` {
			t.Fatalf("expected events to be untouched, got %s", blobs["events"].Value)
		}
	})

	t.Run("delete ignores revisions and missing keys", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		if _, err := repo.Save(ctx, []persistence.Blob{{Key: "events", Value: []byte(`[]`)}}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := repo.Delete(ctx, "events", "never-written"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		blobs, err := repo.Load(ctx, "events")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if len(blobs) != 0 {
			t.Fatalf("expected events to be deleted")
		}
		revs, err := repo.Save(ctx, []persistence.Blob{{Key: "events", Value: []byte(`[]`)}})
		if err != nil || revs["events"] != 1 {
			t.Fatalf("expected a deleted key to start over, got %v %v", revs, err)
		}
	})

	t.Run("keys are listed by prefix", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		_, err := repo.Save(ctx, []persistence.Blob{
			{Key: "notified-b-7", Value: []byte(`true`)},
			{Key: "events", Value: []byte(`[]`)},
			{Key: "notified-a-3", Value: []byte(`true`)},
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		keys, err := repo.Keys(ctx, "notified-")
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if !slices.Equal(keys, []string{"notified-a-3", "notified-b-7"}) {
			t.Fatalf("unexpected keys %v", keys)
		}
	})
}
