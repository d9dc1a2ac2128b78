package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// ByRemoteIP keys on X-Real-Ip (set by chi's RealIP) or RemoteAddr.
func ByRemoteIP(r *http.Request) string {
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// BySender keys inbound webhooks on the sender's number so one chatty
// patient cannot starve the others behind the same provider IP.
func BySender(r *http.Request) string {
	if from := r.PostFormValue("From"); from != "" {
		return from
	}
	return ByRemoteIP(r)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per key.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

// NewRateLimiter allows perSecond requests per key with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

// Allow charges one request to key.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	e, ok := rl.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = e
	}
	e.lastSeen = now
	rl.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// Prune drops buckets idle for longer than the idle window and reports
// how many were removed.
func (rl *RateLimiter) Prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-rl.idle)
	removed := 0
	for key, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, key)
			removed++
		}
	}
	return removed
}

// Len is the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// RateLimit rejects requests over the limit with 429. Pruning piggybacks
// on traffic, so no background goroutine is needed.
func RateLimit(rl *RateLimiter, key KeyFunc, logger *logging.Logger) func(http.Handler) http.Handler {
	if key == nil {
		key = ByRemoteIP
	}
	if logger == nil {
		logger = logging.Default()
	}
	var (
		mu        sync.Mutex
		lastPrune = rl.now()
	)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			if rl.now().Sub(lastPrune) > time.Minute {
				lastPrune = rl.now()
				mu.Unlock()
				rl.Prune()
			} else {
				mu.Unlock()
			}

			k := key(r)
			if !rl.Allow(k) {
				logger.Warn("rate limit exceeded", "key", k, "path", r.URL.Path)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
