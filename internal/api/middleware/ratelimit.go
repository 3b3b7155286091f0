package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 15 * time.Minute
	limiterSweepEvery = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter throttles requests per client address with a token bucket.
type IPRateLimiter struct {
	every time.Duration
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewIPRateLimiter allows one request per interval with the given burst for
// each client. Idle clients are forgotten by a sweep that runs until ctx is
// done; a nil ctx disables the sweep.
func NewIPRateLimiter(ctx context.Context, every time.Duration, burst int) *IPRateLimiter {
	rl := &IPRateLimiter{
		every:   every,
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
	if ctx != nil {
		go rl.sweepLoop(ctx)
	}
	return rl
}

// NewLoginRateLimiter is the limiter for credential endpoints: five
// attempts, then one every twelve seconds.
func NewLoginRateLimiter(ctx context.Context) *IPRateLimiter {
	return NewIPRateLimiter(ctx, 12*time.Second, 5)
}

// Middleware answers 429 with Retry-After once a client runs out of tokens.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := rl.limiterFor(clientIP(r))
		now := rl.now()
		if !l.AllowN(now, 1) {
			missing := 1 - l.TokensAt(now)
			wait := time.Duration(missing * float64(rl.every))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(wait.Seconds())))))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rate.Every(rl.every), rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = rl.now()
	return c.limiter
}

// sweep drops clients idle for longer than limiterIdleTTL.
func (rl *IPRateLimiter) sweep() {
	cutoff := rl.now().Add(-limiterIdleTTL)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *IPRateLimiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// clientIP returns the peer address. Forwarding headers count only when the
// peer is on a private network, i.e. a local reverse proxy, and then the
// rightmost X-Forwarded-For entry wins because the proxy appended it.
func clientIP(r *http.Request) string {
	remote, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remote = r.RemoteAddr
	}
	if !isPrivateIP(remote) {
		return remote
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[len(parts)-1]); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-Ip")); xri != "" {
		return xri
	}
	return remote
}

func isPrivateIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
