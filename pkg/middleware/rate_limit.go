package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "escaperoom/pkg/errors"
	httputil "escaperoom/pkg/http"
	"escaperoom/pkg/logger"

	"golang.org/x/time/rate"
)

const HolderHeader = "X-User-ID"

type KeyFunc func(r *http.Request) string

// HolderKeyFunc keys on the caller's user id header and falls back to the
// remote IP.
func HolderKeyFunc(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(HolderHeader)); v != "" {
		return "user:" + v
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return "ip:" + host
	}
	return "ip:" + r.RemoteAddr
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key and forgets idle keys.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	keyFunc KeyFunc
	log     *logger.Logger
}

func NewRateLimiter(rps float64, burst int, keyFunc KeyFunc, log *logger.Logger) *RateLimiter {
	if keyFunc == nil {
		keyFunc = HolderKeyFunc
	}
	return &RateLimiter{
		entries: make(map[string]*limiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		keyFunc: keyFunc,
		log:     log,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if ent, ok := rl.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.entries[key] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

func (rl *RateLimiter) Cleanup() {
	cutoff := time.Now().Add(-rl.idleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for k, ent := range rl.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(rl.entries, k)
		}
	}
}

// StartJanitor runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				rl.Cleanup()
			}
		}
	}()
}

func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			if rl.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			rl.log.Warn("Rate limit exceeded",
				"request_id", RequestIDFromContext(r.Context()),
				"key", key,
				"path", r.URL.Path,
			)
			w.Header().Set("Retry-After", "1")
			_ = httputil.WriteError(w, apperrors.RateLimited("Rate limit exceeded"))
		})
	}
}
