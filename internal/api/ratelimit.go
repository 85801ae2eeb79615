package api

import (
    "context"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"
)

// Decision is the limiter's verdict for one request.
type Decision struct {
    Allowed   bool
    Limit     int
    Remaining int
    ResetAt   time.Time
}

// Limiter is the admission check guarding the public gateway.
type Limiter interface {
    Admit(ctx context.Context, clientID string) (Decision, error)
}

// WindowLimiter is a fixed-window limiter over an in-memory map. The lock is
// held only around the map mutation; the check-and-increment is atomic so a
// client cannot exceed its quota under concurrent load.
type WindowLimiter struct {
    mu       sync.Mutex
    window   time.Duration
    capacity int
    buckets  map[string]*bucket
    now      func() time.Time
}

type bucket struct {
    count   int
    resetAt time.Time
}

func NewWindowLimiter(window time.Duration, capacity int) *WindowLimiter {
    return &WindowLimiter{
        window:   window,
        capacity: capacity,
        buckets:  map[string]*bucket{},
        now:      time.Now,
    }
}

func (l *WindowLimiter) Admit(ctx context.Context, clientID string) (Decision, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    now := l.now()
    b := l.buckets[clientID]
    if b == nil || now.After(b.resetAt) {
        b = &bucket{count: 1, resetAt: now.Add(l.window)}
        l.buckets[clientID] = b
        return Decision{Allowed: true, Limit: l.capacity, Remaining: l.capacity - 1, ResetAt: b.resetAt}, nil
    }
    if b.count < l.capacity {
        b.count++
        return Decision{Allowed: true, Limit: l.capacity, Remaining: l.capacity - b.count, ResetAt: b.resetAt}, nil
    }
    return Decision{Allowed: false, Limit: l.capacity, Remaining: 0, ResetAt: b.resetAt}, nil
}

// SetClock replaces the time source, for tests.
func (l *WindowLimiter) SetClock(now func() time.Time) { l.now = now }

// clientID buckets a request for rate limiting: API key first, forwarded IP
// second, one shared anonymous bucket last so unauthenticated traffic cannot
// bypass the limiter. Never used for authorization.
func clientID(r *http.Request) (id, kind string) {
    if v := strings.TrimSpace(r.Header.Get("X-Api-Key")); v != "" {
        return "key:" + v, "key"
    }
    if v := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); v != "" {
        // first hop is the original client
        if i := strings.IndexByte(v, ','); i > 0 { v = v[:i] }
        return "ip:" + strings.TrimSpace(v), "ip"
    }
    return "unknown", "unknown"
}

// writeRateLimited emits the 429 with standard quota headers.
func writeRateLimited(w http.ResponseWriter, d Decision, now time.Time) {
    retryAfter := int(d.ResetAt.Sub(now).Seconds())
    if retryAfter < 1 { retryAfter = 1 }
    w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
    w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
    w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
    w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
    writeJSON(w, http.StatusTooManyRequests, map[string]any{"success": false, "error": "превышен лимит запросов, повторите позже"})
}
