package maintenance

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sydlexius/artbrowser/internal/database"
)

func newTestService(t *testing.T, retention int) (*Service, *sql.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "artbrowser.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	backupDir := filepath.Join(dir, "backups")
	return NewService(db, backupDir, retention, logger), db, backupDir
}

// clock returns successive times one minute apart.
func clock(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * time.Minute)
		n++
		return t
	}
}

func TestBackup(t *testing.T) {
	svc, db, backupDir := newTestService(t, 3)
	ctx := context.Background()
	if err := database.SetSetting(ctx, db, "probe", "hello"); err != nil {
		t.Fatal(err)
	}

	snap, err := svc.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if !snapshotPattern.MatchString(snap.Filename) || snap.Size == 0 {
		t.Fatalf("snapshot = %+v", snap)
	}

	copyDB, err := database.Open(filepath.Join(backupDir, snap.Filename))
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	defer copyDB.Close() //nolint:errcheck
	v, ok, err := database.GetSetting(ctx, copyDB, "probe")
	if err != nil || !ok || v != "hello" {
		t.Errorf("snapshot setting = %q, %v, %v", v, ok, err)
	}
}

func TestListAndPrune(t *testing.T) {
	svc, _, backupDir := newTestService(t, 2)
	svc.now = clock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for range 4 {
		if _, err := svc.Backup(ctx); err != nil {
			t.Fatalf("Backup: %v", err)
		}
	}
	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(backupDir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	snaps, err := svc.List()
	if err != nil || len(snaps) != 4 {
		t.Fatalf("List = %d snapshots, %v", len(snaps), err)
	}
	if !snaps[0].CreatedAt.After(snaps[3].CreatedAt) {
		t.Error("snapshots not sorted newest first")
	}

	removed, err := svc.Prune()
	if err != nil || removed != 2 {
		t.Fatalf("Prune = %d, %v", removed, err)
	}
	left, _ := svc.List()
	if len(left) != 2 || left[0].Filename != snaps[0].Filename {
		t.Errorf("after prune = %+v", left)
	}
}

func TestListMissingDir(t *testing.T) {
	svc, _, _ := newTestService(t, 1)
	snaps, err := svc.List()
	if err != nil || snaps != nil {
		t.Errorf("List = %v, %v", snaps, err)
	}
}

func TestRunRecordsLastRun(t *testing.T) {
	svc, _, _ := newTestService(t, 1)
	svc.now = clock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, ok := svc.LastRun(ctx); ok {
		t.Fatal("LastRun set before any run")
	}
	if err := svc.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := svc.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	last, ok := svc.LastRun(ctx)
	if !ok || last.IsZero() {
		t.Error("LastRun not recorded")
	}
	snaps, _ := svc.List()
	if len(snaps) != 1 {
		t.Errorf("retention 1 kept %d snapshots", len(snaps))
	}
}
