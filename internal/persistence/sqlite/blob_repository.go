package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/event-catalog/internal/persistence"
)

// BlobRepository implements persistence.BlobRepository on the kv_blobs table.
type BlobRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewBlobRepository creates a repository over a migrated pool.
func NewBlobRepository(pool *ConnectionPool) *BlobRepository {
	return &BlobRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

// Load returns the stored blobs for keys, verifying each checksum.
func (r *BlobRepository) Load(ctx context.Context, keys ...string) (map[string]persistence.Blob, error) {
	found := make(map[string]persistence.Blob, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	query := `SELECT key, value, checksum, revision, updated_at FROM kv_blobs WHERE key IN (` + placeholders + `)`
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			blob      persistence.Blob
			updatedAt string
		)
		if err := rows.Scan(&blob.Key, &blob.Value, &blob.Checksum, &blob.Revision, &updatedAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if err := persistence.Verify(blob); err != nil {
			return nil, err
		}
		if blob.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at of %q: %w", blob.Key, err)
		}
		found[blob.Key] = blob
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return found, nil
}

// Save writes all blobs in one transaction. Every write is conditional on the
// stored revision, so a stale revision rolls back the whole batch.
func (r *BlobRepository) Save(ctx context.Context, blobs []persistence.Blob) (map[string]int64, error) {
	var revisions map[string]int64
	err := r.retry.WithRetry(ctx, func() error {
		revisions = make(map[string]int64, len(blobs))
		updatedAt := r.now().UTC().Format(time.RFC3339Nano)
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, blob := range blobs {
				next, err := r.writeBlob(ctx, tx, blob, updatedAt)
				if err != nil {
					return err
				}
				revisions[blob.Key] = next
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return revisions, nil
}

func (r *BlobRepository) writeBlob(ctx context.Context, tx *sql.Tx, blob persistence.Blob, updatedAt string) (int64, error) {
	value := blob.Value
	if value == nil {
		value = []byte{}
	}
	next := blob.Revision + 1
	checksum := persistence.Checksum(value)

	var (
		result sql.Result
		err    error
	)
	if blob.Revision == 0 {
		result, err = tx.ExecContext(ctx,
			`INSERT INTO kv_blobs (key, value, checksum, revision, updated_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(key) DO NOTHING`,
			blob.Key, value, checksum, next, updatedAt,
		)
	} else {
		result, err = tx.ExecContext(ctx,
			`UPDATE kv_blobs SET value = ?, checksum = ?, revision = ?, updated_at = ? WHERE key = ? AND revision = ?`,
			value, checksum, next, updatedAt, blob.Key, blob.Revision,
		)
	}
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected != 1 {
		return 0, fmt.Errorf("%w: key %q is not at revision %d", persistence.ErrConflict, blob.Key, blob.Revision)
	}
	return next, nil
}

// Delete removes keys.
func (r *BlobRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, key := range keys {
				if _, err := tx.ExecContext(ctx, `DELETE FROM kv_blobs WHERE key = ?`, key); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Keys lists stored keys that start with prefix.
func (r *BlobRepository) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT key FROM kv_blobs WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`, prefix)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, r.mapper.MapError(err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return keys, nil
}

var _ persistence.BlobRepository = (*BlobRepository)(nil)
