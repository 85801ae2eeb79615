package store

import (
    "context"
    "sync"

    "github.com/google/uuid"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu      sync.Mutex
    records []QuoteRecord // newest last
    byID    map[string]int
}

func NewMemory() *Memory {
    return &Memory{byID: map[string]int{}}
}

func (m *Memory) SaveQuote(ctx context.Context, rec QuoteRecord) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if rec.ID == "" { rec.ID = uuid.New().String() }
    m.byID[rec.ID] = len(m.records)
    m.records = append(m.records, rec)
    return nil
}

func (m *Memory) ListQuotes(ctx context.Context, company, cursor string, limit int) ([]QuoteRecord, string, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    if limit <= 0 { limit = 100 }
    // newest first; cursor is the last returned id
    start := len(m.records) - 1
    if cursor != "" {
        idx, ok := m.byID[cursor]
        if !ok { return nil, "", ErrNotFound }
        start = idx - 1
    }
    out := []QuoteRecord{}
    next := ""
    for i := start; i >= 0 && len(out) < limit; i-- {
        r := m.records[i]
        if company != "" && r.Company != company { continue }
        out = append(out, r)
        next = r.ID
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}
