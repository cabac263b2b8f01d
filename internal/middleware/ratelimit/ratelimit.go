// Package ratelimit provides per-client token bucket rate limiting. Write
// requests, which fan out into explorer calls, draw from a separate and
// usually smaller bucket than reads.
package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/contraverify/internal/middleware/realip"
)

// Config holds the configuration for rate limiting
type Config struct {
	Enabled bool
	// RequestsPerMin is the read budget per client
	RequestsPerMin int
	// WritesPerMin is the write budget per client; zero shares the read bucket
	WritesPerMin int
	BurstSize    int
	// CleanupMinutes is both the sweep interval and the idle time after
	// which a client's buckets are dropped
	CleanupMinutes int
}

// exemptPaths are never limited
var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type class int

const (
	classRead class = iota
	classWrite
)

type key struct {
	client string
	class  class
}

// RateLimiter manages per-client buckets.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[key]*bucket
	read    rate.Limit
	write   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// New creates a RateLimiter and starts its sweeper.
func New(cfg Config) *RateLimiter {
	idle := time.Duration(cfg.CleanupMinutes) * time.Minute
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}

	rl := &RateLimiter{
		buckets: make(map[key]*bucket),
		read:    perMinute(cfg.RequestsPerMin),
		write:   perMinute(cfg.WritesPerMin),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if cfg.WritesPerMin <= 0 {
		rl.write = rl.read
	}

	go rl.sweepLoop()
	return rl
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// Stop stops the sweeper. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// sweep drops buckets idle for longer than the cleanup interval.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	for k, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// allow takes a token for client and returns how long to wait when none is
// left.
func (rl *RateLimiter) allow(client string, c class) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	k := key{client: client, class: c}
	b, ok := rl.buckets[k]
	if !ok {
		limit := rl.read
		if c == classWrite {
			limit = rl.write
		}
		b = &bucket{limiter: rate.NewLimiter(limit, rl.burst)}
		rl.buckets[k] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return true, 0
	}
	limit := float64(b.limiter.Limit())
	if limit <= 0 {
		return false, time.Minute
	}
	missing := 1 - b.limiter.TokensAt(now)
	return false, time.Duration(missing / limit * float64(time.Second))
}

// Middleware returns an HTTP middleware that rate limits requests per client.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			c := classRead
			if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
				c = classWrite
			}

			ok, wait := rl.allow(realip.GetClientIP(r), c)
			if !ok {
				retry := int(math.Ceil(wait.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "RATE_LIMIT_EXCEEDED",
						"message": "Too many requests. Please try again later.",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Middleware returns a rate limiting middleware with the given configuration.
// The sweeper runs for the lifetime of the process.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return New(cfg).Middleware()
}
