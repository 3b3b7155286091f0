package browser

import "sync/atomic"

// Indicator is the global busy indicator shown while a remote call runs.
type Indicator interface {
	Show()
	Hide()
}

// BusyCounter is an Indicator that counts calls in flight.
type BusyCounter struct {
	n atomic.Int64
}

// Show records the start of a remote call.
func (b *BusyCounter) Show() { b.n.Add(1) }

// Hide records the end of a remote call.
func (b *BusyCounter) Hide() {
	for {
		cur := b.n.Load()
		if cur <= 0 || b.n.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// InFlight returns the number of remote calls in progress.
func (b *BusyCounter) InFlight() int64 { return b.n.Load() }

// Busy reports whether any remote call is in progress.
func (b *BusyCounter) Busy() bool { return b.n.Load() > 0 }
