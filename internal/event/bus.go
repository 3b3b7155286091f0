package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Type identifies a category of event.
type Type string

// Known event types.
const (
	BrowseOpened    Type = "browse.opened"
	BrowseClosed    Type = "browse.closed"
	ImageDownloaded Type = "image.downloaded"
	FetchFailed     Type = "browse.fetch_failed"
	DownloadFailed  Type = "browse.download_failed"
	ConfigReloaded  Type = "config.reloaded"
)

// AllTypes returns every known event type.
func AllTypes() []Type {
	return []Type{BrowseOpened, BrowseClosed, ImageDownloaded, FetchFailed, DownloadFailed, ConfigReloaded}
}

// Event represents something that happened in the system.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher is the sending side of a Bus.
type Publisher interface {
	Publish(e Event)
}

// Handler processes one event.
type Handler func(Event)

// Bus fans events out to subscribers from a single goroutine, in publish
// order. Publish never blocks: when the buffer is full the event is counted
// as dropped. A panicking handler is logged and the remaining handlers
// still run.
type Bus struct {
	ch     chan Event
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[Type][]Handler

	started  atomic.Bool
	dropped  atomic.Int64
	stopOnce sync.Once
	done     chan struct{}
	finished chan struct{}
}

// NewBus creates a bus buffering up to bufSize events; non-positive means 256.
func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:       make(chan Event, bufSize),
		logger:   logger,
		subs:     make(map[Type][]Handler),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Subscribe registers h for events of type t.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// SubscribeAll registers h for every known event type.
func (b *Bus) SubscribeAll(h Handler) {
	for _, t := range AllTypes() {
		b.Subscribe(t, h)
	}
}

// Publish queues e, stamping it when Timestamp is zero.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case b.ch <- e:
	default:
		b.dropped.Add(1)
		b.logger.Warn("event bus full, dropping event", "type", string(e.Type))
	}
}

// Dropped reports how many events Publish discarded.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Start delivers events until Stop, then drains what is still buffered.
// Only the first call does anything.
func (b *Bus) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	defer close(b.finished)
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-b.done:
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

// Stop ends delivery. When Start is running, Stop returns after the buffer
// has been drained.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
	if b.started.Load() {
		<-b.finished
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(h, e)
	}
}

func (b *Bus) call(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "type", string(e.Type), "panic", r)
		}
	}()
	h(e)
}
