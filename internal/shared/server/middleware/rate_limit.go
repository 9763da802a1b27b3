package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// WindowLimiter is a fixed-window request counter keyed by client identifier.
// State is in-process only; a restart clears every window.
type WindowLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	window  time.Duration
	max     int
	now     func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// NewWindowLimiter constructs a limiter allowing max requests per window.
func NewWindowLimiter(window time.Duration, max int, now func() time.Time) *WindowLimiter {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 10
	}
	return &WindowLimiter{
		entries: make(map[string]*windowEntry),
		window:  window,
		max:     max,
		now:     now,
	}
}

// Allow records a request for key and reports whether it is within the cap.
// When rejected it also returns how long the caller should wait.
func (l *WindowLimiter) Allow(key string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.After(entry.resetAt) {
		l.entries[key] = &windowEntry{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}

	entry.count++
	if entry.count > l.max {
		return false, entry.resetAt.Sub(now)
	}
	return true, 0
}

// Sweep drops expired windows. Called periodically by the bootstrap scheduler.
func (l *WindowLimiter) Sweep() int {
	if l == nil {
		return 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, entry := range l.entries {
		if now.After(entry.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Size reports the number of tracked windows.
func (l *WindowLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RateLimit guards API routes with the given limiter. Infra endpoints
// outside /api/ (health, metrics) pass through uncounted.
func RateLimit(limiter *WindowLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Next()
			return
		}

		allowed, retryAfter := limiter.Allow(ClientKey(c))
		if allowed {
			c.Next()
			return
		}

		retryAfterSeconds := int(math.Ceil(retryAfter.Seconds()))
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": "rate_limited",
			"code":  "RATE_LIMIT_EXCEEDED",
		})
	}
}

// ClientKey derives the rate-limit identifier for a request. Behind some
// proxies every client collapses into the "unknown" bucket; that is a known
// property of the header-based derivation, not something to paper over here.
func ClientKey(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		return realIP
	}
	return "unknown"
}
