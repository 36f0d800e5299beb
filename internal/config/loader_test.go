package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		t.Setenv(ConfigFileEnv, "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTP.Addr != ":8080" {
			t.Fatalf("expected default address :8080, got %q", cfg.HTTP.Addr)
		}
		if cfg.Store.Driver != StoreSQLite || cfg.Store.SQLitePath != "catalog.db" {
			t.Fatalf("unexpected default store %+v", cfg.Store)
		}
		if cfg.Search.Timeout != 30*time.Second || cfg.Notifier.Interval != time.Hour || !cfg.Notifier.Enabled {
			t.Fatalf("unexpected defaults %+v %+v", cfg.Search, cfg.Notifier)
		}
		if cfg.ExportedBy != "event-catalog" {
			t.Fatalf("unexpected exportedBy %q", cfg.ExportedBy)
		}
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("CATALOG_HTTP_ADDR", "127.0.0.1:9000")
		t.Setenv("CATALOG_STORE_DRIVER", "redis")
		t.Setenv("CATALOG_STORE_REDIS_ADDR", "localhost:6379")
		t.Setenv("CATALOG_STORE_REDIS_DB", "2")
		t.Setenv("CATALOG_SEARCH_TIMEOUT", "5s")
		t.Setenv("CATALOG_NOTIFIER_ENABLED", "false")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTP.Addr != "127.0.0.1:9000" {
			t.Fatalf("unexpected address %q", cfg.HTTP.Addr)
		}
		if cfg.Store.Driver != StoreRedis || cfg.Store.RedisAddr != "localhost:6379" || cfg.Store.RedisDB != 2 {
			t.Fatalf("unexpected store %+v", cfg.Store)
		}
		if cfg.Search.Timeout != 5*time.Second || cfg.Notifier.Enabled {
			t.Fatalf("unexpected overrides %+v %+v", cfg.Search, cfg.Notifier)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		t.Setenv("CATALOG_STORE_DRIVER", "redis")
		t.Setenv("CATALOG_STORE_REDIS_ADDR", "")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required configuration is missing: CATALOG_STORE_REDIS_ADDR"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		t.Setenv("CATALOG_HTTP_READ_TIMEOUT", "soon")
		t.Setenv("CATALOG_LOG_LEVEL", "loud")
		t.Setenv("CATALOG_STORE_DRIVER", "postgres")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "configuration values are invalid: CATALOG_HTTP_READ_TIMEOUT, CATALOG_LOG_LEVEL, CATALOG_STORE_DRIVER"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := []byte("store:\n  driver: memory\nsearch:\n  timeout: 12s\nexported_by: ops team\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("CATALOG_EXPORTED_BY", "env wins")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.Driver != StoreMemory || cfg.Search.Timeout != 12*time.Second {
		t.Fatalf("expected file values, got %+v %+v", cfg.Store, cfg.Search)
	}
	if cfg.ExportedBy != "env wins" {
		t.Fatalf("expected environment to override the file, got %q", cfg.ExportedBy)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}
