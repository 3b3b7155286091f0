package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sydlexius/artbrowser/internal/logging"
)

func TestOpenAndMigrate_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "artbrowser.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close() //nolint:errcheck

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Second run is a no-op.
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}

	for _, table := range []string{"users", "sessions", "connections", "settings"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestSettings(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close() //nolint:errcheck
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, ok, err := GetSetting(ctx, db, "logging.level"); err != nil || ok {
		t.Fatalf("unset setting: ok=%v err=%v", ok, err)
	}
	if err := SetSetting(ctx, db, "logging.level", "debug"); err != nil {
		t.Fatal(err)
	}
	if err := SetSetting(ctx, db, "logging.level", "warn"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := GetSetting(ctx, db, "logging.level")
	if err != nil || !ok || v != "warn" {
		t.Errorf("GetSetting = %q, %v, %v", v, ok, err)
	}

	if got := GetIntSetting(ctx, db, "browser.page_size", 30); got != 30 {
		t.Errorf("fallback = %d", got)
	}
	_ = SetSetting(ctx, db, "browser.page_size", "12")
	if got := GetIntSetting(ctx, db, "browser.page_size", 30); got != 12 {
		t.Errorf("GetIntSetting = %d", got)
	}
	_ = SetSetting(ctx, db, "browser.page_size", "many")
	if got := GetIntSetting(ctx, db, "browser.page_size", 30); got != 30 {
		t.Errorf("non-numeric fallback = %d", got)
	}
}

func TestLoggingOverrides(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close() //nolint:errcheck
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	base := logging.Config{Level: "info", Format: "json", FileMaxSizeMB: 10}

	if got := LoggingOverrides(ctx, db, base); got != base {
		t.Errorf("no overrides changed config: %+v", got)
	}

	saved := logging.Config{Level: "debug", Format: "text", FilePath: "/tmp/ab.log", FileMaxSizeMB: 5, FileMaxFiles: 2, FileMaxAgeDays: 3}
	if err := SaveLogging(ctx, db, saved); err != nil {
		t.Fatal(err)
	}
	if got := LoggingOverrides(ctx, db, base); got != saved {
		t.Errorf("overrides = %+v, want %+v", got, saved)
	}

	if err := SetSetting(ctx, db, "logging.level", "loud"); err != nil {
		t.Fatal(err)
	}
	if got := LoggingOverrides(ctx, db, base); got.Level != "info" {
		t.Errorf("invalid stored level applied: %q", got.Level)
	}
}
