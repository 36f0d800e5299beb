package persistence

import "context"

// BlobRepository persists revisioned key-value blobs.
type BlobRepository interface {
	// Load returns the blobs stored under keys. Missing keys are absent from the map.
	Load(ctx context.Context, keys ...string) (map[string]Blob, error)
	// Save writes every blob in a single atomic step. Each blob's Revision must
	// equal the stored revision, otherwise nothing is written and ErrConflict is
	// returned. The new revision of every key is returned on success.
	Save(ctx context.Context, blobs []Blob) (map[string]int64, error)
	// Delete removes keys regardless of their revision. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Keys lists the stored keys that start with prefix, in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
