package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/example/event-catalog/internal/persistence"
	"github.com/example/event-catalog/internal/persistence/blobtest"
)

// newTestRepository connects to CATALOG_TEST_REDIS_ADDR and isolates each
// test under a random namespace.
func newTestRepository(t *testing.T) *BlobRepository {
	t.Helper()

	addr := os.Getenv("CATALOG_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CATALOG_TEST_REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	namespace := "catalog-test-" + uuid.NewString()
	repo := NewBlobRepository(client, namespace)
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := repo.Keys(ctx, "")
		_ = repo.Delete(ctx, keys...)
		_ = client.Close()
	})
	return repo
}

func TestBlobRepository(t *testing.T) {
	blobtest.Run(t, func(t *testing.T) persistence.BlobRepository {
		return newTestRepository(t)
	})
}

func TestDecodeFields(t *testing.T) {
	blob, err := decodeFields("events", map[string]string{
		"value":      `[]`,
		"checksum":   persistence.Checksum([]byte(`[]`)),
		"revision":   "4",
		"updated_at": "2025-03-10T09:30:00Z",
	})
	if err != nil {
		t.Fatalf("decodeFields failed: %v", err)
	}
	if blob.Revision != 4 || string(blob.Value) != `[]` || blob.UpdatedAt.IsZero() {
		t.Fatalf("unexpected blob %+v", blob)
	}
	if _, err := decodeFields("events", map[string]string{"value": "x"}); err == nil {
		t.Fatalf("expected missing revision to fail")
	}
}
