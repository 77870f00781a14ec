package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter is a sliding-window counter keyed by client IP. Old timestamps
// are swept on every check, so memory stays proportional to active clients.
type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]int64
	windowMs int64
	max      int
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{
		requests: make(map[string][]int64),
		windowMs: time.Minute.Milliseconds(),
		max:      perMinute,
	}
}

// allow records a request for the key and reports whether it is within the
// window budget.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	cutoff := now - rl.windowMs

	kept := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t > cutoff {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.max {
		rl.requests[key] = kept
		return false
	}
	rl.requests[key] = append(kept, now)
	return true
}

// limit is chi middleware applying the per-IP budget.
func (rl *rateLimiter) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !rl.allow(ip) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
