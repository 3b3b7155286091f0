// Package browser implements remote image browse sessions: the filter and
// paging state of one image browser dialog, the fetches that fill it, and
// the download that ends it.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/artbrowser/internal/event"
	"github.com/sydlexius/artbrowser/internal/remoteimage"
)

// Session errors.
var (
	ErrSessionNotFound = errors.New("browse session not found")
	ErrSessionClosed   = errors.New("browse session is closed")
	// ErrStaleResponse marks a fetch result that was superseded by a newer
	// fetch or arrived after the session closed. It is discarded.
	ErrStaleResponse = errors.New("stale response discarded")
	// ErrInvalidRequest wraps bad caller input to Open and Download.
	ErrInvalidRequest = errors.New("invalid browse request")
)

// Defaults for Options.
const (
	DefaultPageSize     = 30
	DefaultSlowPageSize = 6
	DefaultSessionTTL   = 30 * time.Minute
)

// ClientResolver returns the media server client for a server ID.
type ClientResolver interface {
	ClientFor(ctx context.Context, serverID string) (remoteimage.Client, error)
}

// ResolverFunc adapts a function to ClientResolver.
type ResolverFunc func(ctx context.Context, serverID string) (remoteimage.Client, error)

// ClientFor calls f.
func (f ResolverFunc) ClientFor(ctx context.Context, serverID string) (remoteimage.Client, error) {
	return f(ctx, serverID)
}

// itemTyper is implemented by clients that can look up an item's type.
type itemTyper interface {
	ItemType(ctx context.Context, itemID string) (string, error)
}

// OpenParams identifies the item a session browses images for.
type OpenParams struct {
	ItemID   string
	ServerID string
	// ItemType is looked up from the server when empty.
	ItemType string
	// ImageType defaults to Primary.
	ImageType remoteimage.ImageType
	Layout    Layout
}

// DownloadRequest identifies the image chosen by the user.
type DownloadRequest struct {
	ImageURL     string
	Type         remoteimage.ImageType
	ProviderName string
}

// Options tunes a Manager.
type Options struct {
	PageSize     int
	SlowPageSize int
	SessionTTL   time.Duration
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.SlowPageSize <= 0 {
		o.SlowPageSize = DefaultSlowPageSize
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	return o
}

// Manager owns all open browse sessions.
type Manager struct {
	resolver  ClientResolver
	indicator Indicator
	events    event.Publisher
	logger    *slog.Logger
	opts      Options
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. events may be nil.
func NewManager(resolver ClientResolver, indicator Indicator, events event.Publisher, logger *slog.Logger, opts Options) *Manager {
	if indicator == nil {
		indicator = &BusyCounter{}
	}
	return &Manager{
		resolver:  resolver,
		indicator: indicator,
		events:    events,
		logger:    logger.With(slog.String("component", "browser")),
		opts:      opts.withDefaults(),
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Open starts a session and fetches its first page. A failed first fetch
// does not fail Open; the error is kept on the session for display.
func (m *Manager) Open(ctx context.Context, p OpenParams) (*Session, error) {
	if p.ItemID == "" {
		return nil, fmt.Errorf("%w: item id is required", ErrInvalidRequest)
	}
	if p.ImageType != "" {
		t, err := remoteimage.ParseImageType(string(p.ImageType))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		p.ImageType = t
	}

	client, err := m.resolver.ClientFor(ctx, p.ServerID)
	if err != nil {
		return nil, fmt.Errorf("resolving server %s: %w", p.ServerID, err)
	}

	if p.ItemType == "" {
		if it, ok := client.(itemTyper); ok {
			itemType, err := it.ItemType(ctx, p.ItemID)
			if err != nil {
				m.logger.Warn("item type lookup failed", "item_id", p.ItemID, "error", err)
			} else {
				p.ItemType = itemType
			}
		}
	}

	pageSize := m.opts.PageSize
	if p.Layout.Slow {
		pageSize = m.opts.SlowPageSize
	}

	s := newSession(uuid.New().String(), p, pageSize, client, m.now())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("browse session opened",
		slog.String("session_id", s.ID),
		slog.String("server_id", s.ServerID),
		slog.String("item_id", s.ItemID),
		slog.String("image_type", string(s.state.ImageType)))
	m.publish(event.BrowseOpened, s, nil)

	if err := m.fetch(ctx, s); err != nil && !remoteimage.IsNetworkError(err) && !errors.Is(err, ErrStaleResponse) {
		return s, err
	}
	return s, nil
}

// Show opens a session and blocks until it closes. If ctx ends first the
// session is closed unchanged and ctx's error is returned.
func (m *Manager) Show(ctx context.Context, p OpenParams) (Outcome, error) {
	s, err := m.Open(ctx, p)
	if err != nil {
		return OutcomeUnchanged, err
	}
	outcome, err := s.Wait(ctx)
	if err != nil {
		_, _ = m.Close(s.ID)
		return OutcomeUnchanged, err
	}
	return outcome, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Apply runs a filter or paging change and re-fetches when the change asks
// for it.
func (m *Manager) Apply(ctx context.Context, id string, change Change) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	refetch, err := s.apply(change, m.now())
	if err != nil {
		return err
	}
	if !refetch {
		return nil
	}
	return m.fetch(ctx, s)
}

// Reload re-fetches the current page, e.g. after a failed fetch.
func (m *Manager) Reload(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.touch(m.now())
	return m.fetch(ctx, s)
}

// Download commits the chosen image. On success the session is closed with
// OutcomeChanged. On failure it stays open and the error is kept for
// display.
func (m *Manager) Download(ctx context.Context, id string, req DownloadRequest) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if req.ImageURL == "" {
		return fmt.Errorf("%w: image url is required", ErrInvalidRequest)
	}
	t, err := remoteimage.ParseImageType(string(req.Type))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.Type = t
	s.touch(m.now())

	commit := remoteimage.Commit{
		ItemID:       s.ItemID,
		Type:         req.Type,
		ImageURL:     req.ImageURL,
		ProviderName: req.ProviderName,
	}

	if err := s.beginCommit(); err != nil {
		return err
	}
	m.indicator.Show()
	err = s.client.DownloadRemoteImage(ctx, commit)
	s.endCommit(err == nil)
	if err != nil {
		m.indicator.Hide()
		err = s.recordError(remoteimage.OpDownload, err)
		m.logger.Warn("remote image download failed",
			slog.String("session_id", s.ID),
			slog.String("item_id", s.ItemID),
			slog.Any("error", err))
		m.publish(event.DownloadFailed, s, map[string]any{"error": err.Error()})
		return err
	}

	m.publish(event.ImageDownloaded, s, map[string]any{
		"image_url": req.ImageURL,
		"type":      string(req.Type),
		"provider":  req.ProviderName,
	})
	_, closeErr := m.Close(id)
	m.indicator.Hide()
	if closeErr != nil && !errors.Is(closeErr, ErrSessionNotFound) {
		return closeErr
	}
	return nil
}

// Close ends a session and returns its outcome.
func (m *Manager) Close(id string) (Outcome, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return OutcomeUnchanged, ErrSessionNotFound
	}

	outcome, first := s.close()
	if first {
		m.logger.Info("browse session closed",
			slog.String("session_id", s.ID),
			slog.String("outcome", outcome.String()))
		m.publish(event.BrowseClosed, s, map[string]any{"outcome": outcome.String()})
	}
	return outcome, nil
}

// CloseAll closes every open session, e.g. on shutdown.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_, _ = m.Close(id)
	}
}

// ReapIdle closes sessions idle for longer than the session TTL and returns
// how many were closed.
func (m *Manager) ReapIdle() int {
	cutoff := m.now().Add(-m.opts.SessionTTL)

	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		_, _ = m.Close(id)
	}
	return len(idle)
}

// StartReaper closes idle sessions every interval until ctx is canceled.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.ReapIdle(); n > 0 {
				m.logger.Info("reaped idle browse sessions", slog.Int("count", n))
			}
		}
	}
}

func (m *Manager) fetch(ctx context.Context, s *Session) error {
	fetchCtx, q, gen, err := s.beginFetch(ctx)
	if err != nil {
		return err
	}

	m.indicator.Show()
	page, err := s.client.ListRemoteImages(fetchCtx, q)
	m.indicator.Hide()

	if err == nil && page == nil {
		page = &remoteimage.Page{}
	}

	refetch, err := s.finishFetch(gen, page, err)
	switch {
	case err == nil && refetch:
		m.logger.Debug("result set shrank, refetching last page",
			slog.String("session_id", s.ID),
			slog.Int("total", page.TotalRecordCount))
		return m.fetch(ctx, s)
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleResponse):
		m.logger.Debug("discarding stale fetch result",
			slog.String("session_id", s.ID),
			slog.Uint64("generation", gen))
		return err
	default:
		m.logger.Warn("remote image listing failed",
			slog.String("session_id", s.ID),
			slog.String("item_id", s.ItemID),
			slog.Any("error", err))
		m.publish(event.FetchFailed, s, map[string]any{"error": err.Error()})
		return err
	}
}

func (m *Manager) publish(t event.Type, s *Session, extra map[string]any) {
	if m.events == nil {
		return
	}
	data := map[string]any{
		"session_id": s.ID,
		"server_id":  s.ServerID,
		"item_id":    s.ItemID,
	}
	for k, v := range extra {
		data[k] = v
	}
	m.events.Publish(event.Event{Type: t, Data: data})
}
