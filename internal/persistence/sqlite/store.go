package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/event-catalog/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is a migrated SQLite database exposed as a blob repository.
type Store struct {
	*BlobRepository
	pool *ConnectionPool
}

// Open connects to the database described by config and applies pending migrations.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{BlobRepository: NewBlobRepository(pool), pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *ConnectionPool, logger *slog.Logger) error {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(pool.DB()),
		logger,
	)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("migrate sqlite store: %w", err)
	}
	return nil
}

// Ping tests the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
