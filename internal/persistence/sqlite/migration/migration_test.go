package migration

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/001_create_items.sql": {Data: []byte("-- Description: create items\nCREATE TABLE items (id TEXT PRIMARY KEY);\n")},
		"migrations/002_add_name.sql":     {Data: []byte("ALTER TABLE items ADD COLUMN name TEXT;\nCREATE INDEX idx_items_name ON items(name);\n")},
		"migrations/README.md":            {Data: []byte("ignored")},
	}
}

func TestScanner_ScanMigrations(t *testing.T) {
	migrations, err := NewScanner(testFS(), "migrations").ScanMigrations()
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[0].Description != "create items" {
		t.Fatalf("unexpected first migration %+v", migrations[0])
	}
	if migrations[1].Description != "add name" {
		t.Fatalf("expected description from filename, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum == "" || migrations[0].Checksum == migrations[1].Checksum {
		t.Fatalf("expected distinct checksums")
	}
}

func TestScanner_RejectsInvalidFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name":  {"m/create.sql": {Data: []byte("CREATE TABLE a (id TEXT);")}},
		"empty":     {"m/001_empty.sql": {Data: []byte("-- nothing here\n")}},
		"duplicate": {"m/001_a.sql": {Data: []byte("SELECT 1;")}, "m/001_b.sql": {Data: []byte("SELECT 1;")}},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewScanner(files, "m").ScanMigrations()
			if err == nil {
				t.Fatalf("expected error")
			}
			var mErr *MigrationError
			if !errors.As(err, &mErr) {
				t.Fatalf("expected MigrationError, got %T", err)
			}
		})
	}
}

func TestManager_Run(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(InMemorySQLiteConfig())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer db.Close()

	files := testFS()
	manager := NewManager(NewScanner(files, "migrations"), NewSQLiteExecutor(db), nil)
	applied, err := manager.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 migrations applied, got %d", applied)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO items (id, name) VALUES ('a', 'b')"); err != nil {
		t.Fatalf("expected schema to exist: %v", err)
	}

	applied, err = manager.Run(ctx)
	if err != nil || applied != 0 {
		t.Fatalf("expected second run to be a no-op, got %d %v", applied, err)
	}

	t.Run("detects edited migrations", func(t *testing.T) {
		files["migrations/001_create_items.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE items (id INTEGER);")}
		_, err := manager.Run(ctx)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}

func TestManager_RunRollsBackFailedMigration(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(InMemorySQLiteConfig())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer db.Close()

	files := fstest.MapFS{
		"m/001_ok.sql":     {Data: []byte("CREATE TABLE a (id TEXT);")},
		"m/002_broken.sql": {Data: []byte("CREATE TABLE b (id TEXT);\nINSERT INTO missing VALUES (1);")},
	}
	executor := NewSQLiteExecutor(db)
	applied, err := NewManager(NewScanner(files, "m"), executor, nil).Run(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected one migration before the failure, got %d", applied)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO b VALUES ('x')"); err == nil {
		t.Fatalf("expected table b to be rolled back")
	}
	versions, err := executor.AppliedMigrations(ctx)
	if err != nil || len(versions) != 1 || versions[0].Version != "001" {
		t.Fatalf("unexpected applied versions %+v %v", versions, err)
	}
}

func TestSQLiteConfig_Validate(t *testing.T) {
	if err := (SQLiteConfig{}).Validate(); err == nil {
		t.Fatalf("expected empty DSN to fail")
	}
	if err := (SQLiteConfig{DSN: ":memory:", JournalMode: "FAST"}).Validate(); err == nil {
		t.Fatalf("expected unknown journal mode to fail")
	}
	if err := DefaultSQLiteConfig("/tmp/catalog.db").Validate(); err != nil {
		t.Fatalf("expected defaults to be valid, got %v", err)
	}
}
