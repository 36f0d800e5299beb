package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process BlobRepository used by tests and by the
// "memory" storage driver.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
	now   func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string]Blob),
		now:   time.Now,
	}
}

// Close releases resources held by the store. No-op for the in-memory implementation.
func (s *MemoryStore) Close() error {
	return nil
}

// Load returns copies of the stored blobs for keys.
func (s *MemoryStore) Load(ctx context.Context, keys ...string) (map[string]Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]Blob, len(keys))
	for _, key := range keys {
		blob, ok := s.blobs[key]
		if !ok {
			continue
		}
		if err := Verify(blob); err != nil {
			return nil, err
		}
		found[key] = cloneBlob(blob)
	}
	return found, nil
}

// Save applies every write or none of them.
func (s *MemoryStore) Save(ctx context.Context, blobs []Blob) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, blob := range blobs {
		if current := s.blobs[blob.Key].Revision; current != blob.Revision {
			return nil, fmt.Errorf("%w: key %q at revision %d, write expected %d", ErrConflict, blob.Key, current, blob.Revision)
		}
	}

	now := s.now().UTC()
	revisions := make(map[string]int64, len(blobs))
	for _, blob := range blobs {
		stored := cloneBlob(blob)
		stored.Revision = blob.Revision + 1
		stored.Checksum = Checksum(blob.Value)
		stored.UpdatedAt = now
		s.blobs[blob.Key] = stored
		revisions[blob.Key] = stored.Revision
	}
	return revisions, nil
}

// Delete removes keys.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.blobs, key)
	}
	return nil
}

// Keys lists stored keys with the given prefix.
func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

var _ BlobRepository = (*MemoryStore)(nil)
