package connection

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// defaultRequestsPerSecond bounds outbound calls to a single media server.
const defaultRequestsPerSecond = 5

// RateLimiterMap holds one rate.Limiter per connection, created on first use.
type RateLimiterMap struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewRateLimiterMap creates a limiter map allowing rps requests per second
// per connection. A non-positive rps selects the default.
func NewRateLimiterMap(rps float64) *RateLimiterMap {
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	return &RateLimiterMap{
		limit:    rate.Limit(rps),
		burst:    2,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the limiter for connID allows a request, or ctx is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, connID string) error {
	m.mu.Lock()
	limiter, ok := m.limiters[connID]
	if !ok {
		limiter = rate.NewLimiter(m.limit, m.burst)
		m.limiters[connID] = limiter
	}
	m.mu.Unlock()
	return limiter.Wait(ctx)
}

// Forget drops the limiter for a deleted connection.
func (m *RateLimiterMap) Forget(connID string) {
	m.mu.Lock()
	delete(m.limiters, connID)
	m.mu.Unlock()
}
