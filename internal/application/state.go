package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/event-catalog/internal/persistence"
)

// Keys of the persisted key-value blobs.
const (
	KeyEvents                 = "events"
	KeyMyEvents               = "myEvents"
	KeyLastUpdated            = "lastUpdated"
	KeySavedRecords           = "savedRecords"
	KeyCustomEvents           = "customEvents"
	KeySavedRecordsLastUpdate = "savedRecordsLastUpdate"
)

// StoredBlob is one persisted value together with the revision it was read at.
type StoredBlob struct {
	Key      string
	Value    []byte
	Revision int64
}

// StateRepository captures the key-value persistence operations needed by the services.
type StateRepository interface {
	// Load returns the blobs that exist among keys. Missing keys are absent from the map.
	Load(ctx context.Context, keys ...string) (map[string]StoredBlob, error)
	// Save writes every blob atomically. Each blob's Revision must match the
	// stored revision (zero for a new key); the new revisions are returned.
	Save(ctx context.Context, blobs []StoredBlob) (map[string]int64, error)
	// Delete removes keys regardless of revision.
	Delete(ctx context.Context, keys ...string) error
	// Keys lists the stored keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// NewStateRepository exposes a persistence blob store to the services.
func NewStateRepository(repo persistence.BlobRepository) StateRepository {
	return blobRepositoryAdapter{repo: repo}
}

type blobRepositoryAdapter struct {
	repo persistence.BlobRepository
}

func (a blobRepositoryAdapter) Load(ctx context.Context, keys ...string) (map[string]StoredBlob, error) {
	blobs, err := a.repo.Load(ctx, keys...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]StoredBlob, len(blobs))
	for key, blob := range blobs {
		out[key] = StoredBlob{Key: blob.Key, Value: blob.Value, Revision: blob.Revision}
	}
	return out, nil
}

func (a blobRepositoryAdapter) Save(ctx context.Context, blobs []StoredBlob) (map[string]int64, error) {
	writes := make([]persistence.Blob, len(blobs))
	for i, blob := range blobs {
		writes[i] = persistence.Blob{Key: blob.Key, Value: blob.Value, Revision: blob.Revision}
	}
	return a.repo.Save(ctx, writes)
}

func (a blobRepositoryAdapter) Delete(ctx context.Context, keys ...string) error {
	return a.repo.Delete(ctx, keys...)
}

func (a blobRepositoryAdapter) Keys(ctx context.Context, prefix string) ([]string, error) {
	return a.repo.Keys(ctx, prefix)
}

// blobState tracks the revisions of a fixed set of keys owned by one service.
type blobState struct {
	repo      StateRepository
	revisions map[string]int64
}

func newBlobState(repo StateRepository) *blobState {
	return &blobState{repo: repo, revisions: make(map[string]int64)}
}

func (b *blobState) load(ctx context.Context, keys ...string) (map[string][]byte, error) {
	values := make(map[string][]byte, len(keys))
	if b == nil || b.repo == nil {
		return values, nil
	}
	blobs, err := b.repo.Load(ctx, keys...)
	if err != nil {
		return nil, mapStateRepoError(err)
	}
	for _, key := range keys {
		blob, ok := blobs[key]
		if !ok {
			b.revisions[key] = 0
			continue
		}
		b.revisions[key] = blob.Revision
		values[key] = blob.Value
	}
	return values, nil
}

func (b *blobState) save(ctx context.Context, values map[string][]byte) error {
	if b == nil || b.repo == nil {
		return nil
	}
	blobs := make([]StoredBlob, 0, len(values))
	for key, value := range values {
		blobs = append(blobs, StoredBlob{Key: key, Value: value, Revision: b.revisions[key]})
	}
	revisions, err := b.repo.Save(ctx, blobs)
	if err != nil {
		return mapStateRepoError(err)
	}
	for key, rev := range revisions {
		b.revisions[key] = rev
	}
	return nil
}

func mapStateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func encodeBlob(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

func decodeBlob(key string, data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func timestampBlob(t time.Time) []byte {
	data, _ := json.Marshal(t.UTC().Format(time.RFC3339Nano))
	return data
}
