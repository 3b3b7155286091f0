// Package maintenance keeps the SQLite store healthy: periodic optimize,
// point-in-time snapshots and snapshot pruning.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sydlexius/artbrowser/internal/database"
)

const (
	snapshotPrefix = "artbrowser-"
	snapshotLayout = "20060102-150405"
	lastRunKey     = "maintenance.last_run_at"
)

var snapshotPattern = regexp.MustCompile(`^artbrowser-\d{8}-\d{6}\.db$`)

// Snapshot describes one backup file.
type Snapshot struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service runs maintenance against one database.
type Service struct {
	db        *sql.DB
	backupDir string
	retention int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service. retention is the number of snapshots kept.
func NewService(db *sql.DB, backupDir string, retention int, logger *slog.Logger) *Service {
	if retention < 1 {
		retention = 1
	}
	return &Service{
		db:        db,
		backupDir: backupDir,
		retention: retention,
		logger:    logger.With(slog.String("component", "maintenance")),
		now:       time.Now,
	}
}

// Backup writes a consistent copy of the database with VACUUM INTO.
func (s *Service) Backup(ctx context.Context) (*Snapshot, error) {
	if err := os.MkdirAll(s.backupDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	created := s.now().UTC()
	name := snapshotPrefix + created.Format(snapshotLayout) + ".db"
	dest := filepath.Join(s.backupDir, name)
	if _, err := os.Stat(dest); err == nil {
		return nil, fmt.Errorf("snapshot %s already exists", name)
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	s.logger.Info("snapshot written", slog.String("file", name), slog.Int64("size", info.Size()))
	return &Snapshot{Filename: name, Size: info.Size(), CreatedAt: created}, nil
}

// List returns snapshots newest first. A missing directory is empty.
func (s *Service) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var out []Snapshot
	for _, e := range entries {
		if e.IsDir() || !snapshotPattern.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(e.Name(), snapshotPrefix), ".db")
		ts, err := time.Parse(snapshotLayout, stamp)
		if err != nil {
			ts = info.ModTime()
		}
		out = append(out, Snapshot{Filename: e.Name(), Size: info.Size(), CreatedAt: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Prune removes snapshots beyond the retention count and reports how many
// were deleted.
func (s *Service) Prune() (int, error) {
	snaps, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(snaps) <= s.retention {
		return 0, nil
	}

	removed := 0
	for _, snap := range snaps[s.retention:] {
		if err := os.Remove(filepath.Join(s.backupDir, snap.Filename)); err != nil {
			s.logger.Warn("removing old snapshot", slog.String("file", snap.Filename), slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}

// Optimize runs PRAGMA optimize and truncates the WAL.
func (s *Service) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}
	return nil
}

// Run does one full pass: optimize, snapshot, prune. The finish time is
// recorded in the settings table.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Optimize(ctx); err != nil {
		return err
	}
	if _, err := s.Backup(ctx); err != nil {
		return err
	}
	removed, err := s.Prune()
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("pruned snapshots", slog.Int("removed", removed))
	}
	if err := database.SetSetting(ctx, s.db, lastRunKey, s.now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("recording maintenance run", "error", err)
	}
	return nil
}

// LastRun returns when Run last completed.
func (s *Service) LastRun(ctx context.Context) (time.Time, bool) {
	v, ok, err := database.GetSetting(ctx, s.db, lastRunKey)
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Start runs Run every interval until ctx ends.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("scheduled maintenance failed", slog.Any("error", err))
			}
		}
	}
}
