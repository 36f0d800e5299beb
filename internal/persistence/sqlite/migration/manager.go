package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager orchestrates the migration process
type Manager struct {
	source   Source
	executor Executor
	logger   *slog.Logger
}

// NewManager creates a Manager. A nil logger falls back to slog.Default.
func NewManager(source Source, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source:   source,
		executor: executor,
		logger:   logger.With(slog.String("component", "migration")),
	}
}

// Run executes all pending migrations in sequential order and returns how many ran.
func (m *Manager) Run(ctx context.Context) (int, error) {
	started := time.Now()
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return 0, fmt.Errorf("initialize version table: %w", err)
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date")
		return 0, nil
	}

	for i, migration := range pending {
		m.logger.InfoContext(ctx, "applying migration",
			"version", migration.Version,
			"description", migration.Description,
			"step", i+1,
			"total", len(pending),
		)
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "error", err)
			return i, err
		}
	}

	m.logger.InfoContext(ctx, "migrations applied", "count", len(pending), "duration", time.Since(started))
	return len(pending), nil
}

// Pending returns the migrations that have not been applied yet.
//
// An applied version missing from the source, or whose checksum changed,
// is reported as a conflict.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	available, err := m.source.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("get applied migrations: %w", err)
	}

	byVersion := make(map[string]Migration, len(available))
	for _, migration := range available {
		byVersion[migration.Version] = migration
	}
	done := make(map[string]bool, len(applied))
	for _, a := range applied {
		migration, ok := byVersion[a.Version]
		if !ok {
			return nil, fmt.Errorf("%w: applied migration %s not found in source", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return nil, NewMigrationError(a.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
		done[a.Version] = true
	}

	var pending []Migration
	for _, migration := range available {
		if !done[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}
