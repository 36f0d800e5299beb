// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_create_kv_blobs.sql") and are read from an fs.FS, usually an
// embedded directory. Applied versions are tracked in the schema_migrations
// table so every file runs exactly once.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(files, "."), migration.NewSQLiteExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
