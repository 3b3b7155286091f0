package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sydlexius/artbrowser/internal/remoteimage"
)

// Outcome is delivered when a session closes.
type Outcome int

// Session outcomes.
const (
	// OutcomeUnchanged means no image was downloaded.
	OutcomeUnchanged Outcome = iota
	// OutcomeChanged means an image was downloaded and the caller should
	// refresh its view of the item.
	OutcomeChanged
)

func (o Outcome) String() string {
	if o == OutcomeChanged {
		return "changed"
	}
	return "unchanged"
}

// Session is the state of one open image browser dialog.
type Session struct {
	ID        string
	ServerID  string
	ItemID    string
	ItemType  string
	Layout    Layout
	CreatedAt time.Time

	client remoteimage.Client

	mu          sync.Mutex
	state       State
	generation  uint64
	page        *remoteimage.Page
	lastErr     error
	loading     bool
	hasChanges  bool
	closed      bool
	outcome     Outcome
	lastActive  time.Time
	cancelFetch context.CancelFunc
	// commits counts downloads in flight. close waits on commitIdle until
	// it drops to zero so the outcome reflects every finished commit.
	commits    int
	commitIdle *sync.Cond
	done       chan struct{}
}

func newSession(id string, p OpenParams, pageSize int, client remoteimage.Client, now time.Time) *Session {
	imageType := p.ImageType
	if imageType == "" {
		imageType = remoteimage.TypePrimary
	}
	s := &Session{
		ID:        id,
		ServerID:  p.ServerID,
		ItemID:    p.ItemID,
		ItemType:  p.ItemType,
		Layout:    p.Layout,
		CreatedAt: now,
		client:    client,
		state: State{
			ImageType: imageType,
			PageSize:  pageSize,
		},
		lastActive: now,
		done:       make(chan struct{}),
	}
	s.commitIdle = sync.NewCond(&s.mu)
	return s
}

// Snapshot is a consistent copy of a session's mutable fields.
type Snapshot struct {
	ID       string
	ServerID string
	ItemID   string
	ItemType string
	Layout   Layout
	State    State
	Page     *remoteimage.Page
	Err      error
	Loading  bool
	Closed   bool
	Outcome  Outcome
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:       s.ID,
		ServerID: s.ServerID,
		ItemID:   s.ItemID,
		ItemType: s.ItemType,
		Layout:   s.Layout,
		State:    s.state,
		Page:     s.page,
		Err:      s.lastErr,
		Loading:  s.loading,
		Closed:   s.closed,
		Outcome:  s.outcome,
	}
}

// State returns the current filter and paging state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasChanges reports whether a download has succeeded in this session.
func (s *Session) HasChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasChanges
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session closes and returns its outcome.
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.outcome, nil
	case <-ctx.Done():
		return OutcomeUnchanged, ctx.Err()
	}
}

func (s *Session) apply(change Change, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}
	s.lastActive = now
	return change(&s.state), nil
}

// beginFetch starts a new fetch generation. Any in-flight fetch is canceled
// and its response will be discarded.
func (s *Session) beginFetch(parent context.Context) (context.Context, remoteimage.Query, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remoteimage.Query{}, 0, ErrSessionClosed
	}
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancelFetch = cancel
	s.generation++
	s.loading = true
	return ctx, s.state.query(s.ItemID), s.generation, nil
}

// finishFetch applies a fetch result if it belongs to the current
// generation of a still-open session. It reports refetch when the result
// set shrank below the requested start index and the index was pulled back
// onto the last page.
func (s *Session) finishFetch(gen uint64, page *remoteimage.Page, err error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation {
		return false, ErrStaleResponse
	}
	s.loading = false
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	if err != nil {
		s.lastErr = asNetworkError(remoteimage.OpList, err)
		return false, s.lastErr
	}
	s.page = page
	s.lastErr = nil
	return s.state.applyTotal(page.TotalRecordCount), nil
}

func (s *Session) recordError(op string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = asNetworkError(op, err)
	return s.lastErr
}

// beginCommit registers an in-flight download. It fails once the session
// is closed.
func (s *Session) beginCommit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.commits++
	return nil
}

// endCommit retires a download started by beginCommit and records whether
// it changed the item.
func (s *Session) endCommit(changed bool) {
	s.mu.Lock()
	if changed {
		s.hasChanges = true
	}
	s.commits--
	if s.commits == 0 {
		s.commitIdle.Broadcast()
	}
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// close marks the session closed and releases waiters. A download in
// flight is allowed to finish first. It returns false if the session was
// already closed.
func (s *Session) close() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.commits > 0 {
		s.commitIdle.Wait()
	}
	if s.closed {
		return s.outcome, false
	}
	s.closed = true
	s.loading = false
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	if s.hasChanges {
		s.outcome = OutcomeChanged
	}
	close(s.done)
	return s.outcome, true
}

func asNetworkError(op string, err error) error {
	var ne *remoteimage.NetworkError
	if errors.As(err, &ne) {
		return ne
	}
	return &remoteimage.NetworkError{Op: op, Cause: err}
}
