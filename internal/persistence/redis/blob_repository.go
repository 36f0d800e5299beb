// Package redis stores revisioned blobs in Redis hashes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/example/event-catalog/internal/persistence"
)

// BlobRepository keeps each blob in a hash named <namespace>:blob:<key> and
// indexes the keys in the sorted set <namespace>:keys for prefix listing.
type BlobRepository struct {
	client    goredis.UniversalClient
	namespace string
	now       func() time.Time
}

// NewBlobRepository wraps client. An empty namespace defaults to "catalog".
func NewBlobRepository(client goredis.UniversalClient, namespace string) *BlobRepository {
	if namespace == "" {
		namespace = "catalog"
	}
	return &BlobRepository{client: client, namespace: namespace, now: time.Now}
}

func (r *BlobRepository) blobKey(key string) string {
	return r.namespace + ":blob:" + key
}

func (r *BlobRepository) indexKey() string {
	return r.namespace + ":keys"
}

// Load returns the stored blobs for keys.
func (r *BlobRepository) Load(ctx context.Context, keys ...string) (map[string]persistence.Blob, error) {
	found := make(map[string]persistence.Blob, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(keys))
	_, err := r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, r.blobKey(key))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis load: %w", err)
	}

	for i, key := range keys {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		blob, err := decodeFields(key, fields)
		if err != nil {
			return nil, err
		}
		if err := persistence.Verify(blob); err != nil {
			return nil, err
		}
		found[key] = blob
	}
	return found, nil
}

// Save applies every write inside one MULTI block guarded by WATCH. A stale
// revision, or a concurrent write to any watched key, yields ErrConflict.
func (r *BlobRepository) Save(ctx context.Context, blobs []persistence.Blob) (map[string]int64, error) {
	if len(blobs) == 0 {
		return map[string]int64{}, nil
	}
	watched := make([]string, len(blobs))
	for i, blob := range blobs {
		watched[i] = r.blobKey(blob.Key)
	}

	revisions := make(map[string]int64, len(blobs))
	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		for _, blob := range blobs {
			current, err := tx.HGet(ctx, r.blobKey(blob.Key), "revision").Int64()
			if errors.Is(err, goredis.Nil) {
				current = 0
			} else if err != nil {
				return err
			}
			if current != blob.Revision {
				return fmt.Errorf("%w: key %q at revision %d, write expected %d", persistence.ErrConflict, blob.Key, current, blob.Revision)
			}
		}

		updatedAt := r.now().UTC().Format(time.RFC3339Nano)
		_, err := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for _, blob := range blobs {
				next := blob.Revision + 1
				pipe.HSet(ctx, r.blobKey(blob.Key),
					"value", blob.Value,
					"checksum", persistence.Checksum(blob.Value),
					"revision", next,
					"updated_at", updatedAt,
				)
				pipe.ZAdd(ctx, r.indexKey(), goredis.Z{Score: 0, Member: blob.Key})
				revisions[blob.Key] = next
			}
			return nil
		})
		return err
	}, watched...)

	if errors.Is(err, goredis.TxFailedErr) {
		return nil, fmt.Errorf("%w: concurrent write", persistence.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return revisions, nil
}

// Delete removes keys and their index entries.
func (r *BlobRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, r.blobKey(key))
			pipe.ZRem(ctx, r.indexKey(), key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Keys lists stored keys with the given prefix in lexical order.
func (r *BlobRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	by := &goredis.ZRangeBy{Min: "-", Max: "+"}
	if prefix != "" {
		by = &goredis.ZRangeBy{Min: "[" + prefix, Max: "[" + prefix + "\xff"}
	}
	keys, err := r.client.ZRangeByLex(ctx, r.indexKey(), by).Result()
	if err != nil {
		return nil, fmt.Errorf("redis keys: %w", err)
	}
	return keys, nil
}

// Ping checks the connection.
func (r *BlobRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *BlobRepository) Close() error {
	return r.client.Close()
}

func decodeFields(key string, fields map[string]string) (persistence.Blob, error) {
	revision, err := strconv.ParseInt(fields["revision"], 10, 64)
	if err != nil {
		return persistence.Blob{}, fmt.Errorf("%w: key %q has revision %q", persistence.ErrCorrupt, key, fields["revision"])
	}
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])
	return persistence.Blob{
		Key:       key,
		Value:     []byte(fields["value"]),
		Checksum:  fields["checksum"],
		Revision:  revision,
		UpdatedAt: updatedAt,
	}, nil
}

var _ persistence.BlobRepository = (*BlobRepository)(nil)
