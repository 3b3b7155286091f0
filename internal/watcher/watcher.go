// Package watcher reloads configuration files when they change on disk.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sydlexius/artbrowser/internal/event"
)

// Target is one watched file and what to do when it changes.
type Target struct {
	// Name identifies the target in logs and events, e.g. "config".
	Name   string
	Path   string
	Reload func(ctx context.Context) error
}

// Service watches target files and calls their Reload functions after a
// quiet period. Directories are watched rather than files so that editors
// replacing a file by rename are still noticed. When fsnotify is not
// available the service falls back to polling modification times.
type Service struct {
	targets      []Target
	events       event.Publisher
	logger       *slog.Logger
	debounce     time.Duration
	pollInterval time.Duration

	mu      sync.Mutex
	pending map[string]bool      // target name -> reload due
	modTime map[string]time.Time // target name -> last seen mtime (poll mode)
}

// NewService creates a watcher for targets. Targets with an empty path are
// skipped. events may be nil.
func NewService(targets []Target, events event.Publisher, logger *slog.Logger) *Service {
	var kept []Target
	for _, t := range targets {
		if t.Path != "" && t.Reload != nil {
			t.Path = filepath.Clean(t.Path)
			kept = append(kept, t)
		}
	}
	return &Service{
		targets:      kept,
		events:       events,
		logger:       logger.With("component", "config-watcher"),
		debounce:     500 * time.Millisecond,
		pollInterval: 30 * time.Second,
		pending:      make(map[string]bool),
		modTime:      make(map[string]time.Time),
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// SetPollInterval overrides the poll-mode interval (for testing).
func (s *Service) SetPollInterval(d time.Duration) {
	s.pollInterval = d
}

// Start blocks until ctx is canceled.
func (s *Service) Start(ctx context.Context) {
	if len(s.targets) == 0 {
		return
	}

	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	var pollCh <-chan time.Time

	w, err := s.newFSWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, polling for changes", "error", err)
		s.snapshotModTimes()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		pollCh = ticker.C
	} else {
		defer w.Close() //nolint:errcheck
		eventCh = w.Events
		errCh = w.Errors
	}

	// Debounce timer starts stopped and is reset on every relevant change.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	s.logger.Info("config watcher starting", "targets", len(s.targets))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("config watcher stopping")
			return

		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			if s.markPending(ev) {
				resetTimer(debounceTimer, s.debounce)
			}

		case err, ok := <-errCh:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-pollCh:
			if s.pollModTimes() {
				resetTimer(debounceTimer, s.debounce)
			}

		case <-debounceTimer.C:
			s.reloadPending(ctx)
		}
	}
}

func (s *Service) newFSWatcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dirs := make(map[string]bool)
	for _, t := range s.targets {
		dirs[filepath.Dir(t.Path)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			s.logger.Warn("cannot watch directory", "path", dir, "error", err)
		}
	}
	return w, nil
}

// markPending records which targets an fsnotify event touches.
func (s *Service) markPending(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	hit := false
	s.mu.Lock()
	for _, t := range s.targets {
		if t.Path == name {
			s.pending[t.Name] = true
			hit = true
		}
	}
	s.mu.Unlock()
	return hit
}

func (s *Service) snapshotModTimes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.targets {
		if info, err := os.Stat(t.Path); err == nil {
			s.modTime[t.Name] = info.ModTime()
		}
	}
}

func (s *Service) pollModTimes() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, t := range s.targets {
		info, err := os.Stat(t.Path)
		if err != nil {
			continue
		}
		if !info.ModTime().Equal(s.modTime[t.Name]) {
			s.modTime[t.Name] = info.ModTime()
			s.pending[t.Name] = true
			changed = true
		}
	}
	return changed
}

func (s *Service) reloadPending(ctx context.Context) {
	s.mu.Lock()
	var due []Target
	for _, t := range s.targets {
		if s.pending[t.Name] {
			due = append(due, t)
			delete(s.pending, t.Name)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		if err := t.Reload(ctx); err != nil {
			s.logger.Error("reload failed, keeping previous settings", "target", t.Name, "path", t.Path, "error", err)
			continue
		}
		s.logger.Info("reloaded", "target", t.Name, "path", t.Path)
		if s.events != nil {
			s.events.Publish(event.Event{
				Type: event.ConfigReloaded,
				Data: map[string]any{"target": t.Name, "path": t.Path},
			})
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
