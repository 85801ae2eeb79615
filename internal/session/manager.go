// Package session caches carrier auth tokens with a TTL and serialized refresh.
package session

import (
    "context"
    "errors"
    "sync"
    "time"

    "freightgw/internal/metrics"
)

// Session is a carrier auth token with its internal expiry.
type Session struct {
    Token     string
    ExpiresAt time.Time
}

// Valid reports whether the session can still be used at time now.
func (s Session) Valid(now time.Time) bool { return s.Token != "" && now.Before(s.ExpiresAt) }

// LoginFunc performs a carrier login. lifetime is the carrier-stated session
// lifetime; zero means the carrier does not state one.
type LoginFunc func(ctx context.Context) (token string, lifetime time.Duration, err error)

// safetyMargin is shaved off the carrier-stated lifetime so we never present
// a token the carrier is about to reject.
const safetyMargin = 5 * time.Minute

var ErrUnknownCarrier = errors.New("carrier not registered")

type entry struct {
    fallbackTTL time.Duration
    login       LoginFunc

    // refreshMu serializes the login path per carrier so concurrent expired
    // requests do not cause a login storm. It is distinct from Manager.mu,
    // which is never held across a network call.
    refreshMu sync.Mutex
    cur       Session
}

// Manager owns one cached Session per carrier.
type Manager struct {
    mu      sync.Mutex
    entries map[string]*entry
    now     func() time.Time
}

func NewManager() *Manager {
    return &Manager{entries: map[string]*entry{}, now: time.Now}
}

// Register installs a carrier login. fallbackTTL applies when the carrier
// does not state a session lifetime.
func (m *Manager) Register(carrier string, fallbackTTL time.Duration, login LoginFunc) {
    if fallbackTTL <= 0 { fallbackTTL = 55 * time.Minute }
    m.mu.Lock()
    m.entries[carrier] = &entry{fallbackTTL: fallbackTTL, login: login}
    m.mu.Unlock()
}

func (m *Manager) entry(carrier string) *entry {
    m.mu.Lock()
    defer m.mu.Unlock()
    return m.entries[carrier]
}

// Get returns a valid session, performing a login only when the cached one
// is missing or expired.
func (m *Manager) Get(ctx context.Context, carrier string) (Session, error) {
    e := m.entry(carrier)
    if e == nil { return Session{}, ErrUnknownCarrier }

    e.refreshMu.Lock()
    defer e.refreshMu.Unlock()
    if e.cur.Valid(m.now()) { return e.cur, nil }

    token, lifetime, err := e.login(ctx)
    if err != nil {
        metrics.SessionLogins.WithLabelValues(carrier, "error").Inc()
        return Session{}, err
    }
    ttl := e.fallbackTTL
    if lifetime > safetyMargin { ttl = lifetime - safetyMargin }
    e.cur = Session{Token: token, ExpiresAt: m.now().Add(ttl)}
    metrics.SessionLogins.WithLabelValues(carrier, "ok").Inc()
    return e.cur, nil
}

// Invalidate drops the cached session so the next Get performs a fresh login.
// Called when a request using a previously valid token is rejected as
// unauthenticated.
func (m *Manager) Invalidate(carrier string) {
    e := m.entry(carrier)
    if e == nil { return }
    e.refreshMu.Lock()
    e.cur = Session{}
    e.refreshMu.Unlock()
}

// SetClock replaces the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }
