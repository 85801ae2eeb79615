// Package store persists gateway calculation history.
package store

import (
    "context"
    "errors"
    "time"
)

// QuoteRecord is one completed gateway calculation, successful or not.
type QuoteRecord struct {
    ID        string    `json:"id"`
    RequestID string    `json:"requestId"`
    Company   string    `json:"company"`
    FromCity  string    `json:"fromCity"`
    ToCity    string    `json:"toCity"`
    Weight    float64   `json:"weight"`
    Volume    float64   `json:"volume"`
    Price     float64   `json:"price"`
    Days      int       `json:"days"`
    Error     string    `json:"error,omitempty"`
    CreatedAt time.Time `json:"createdAt"`
}

// Store is the persistence interface used by the API server.
type Store interface {
    SaveQuote(ctx context.Context, rec QuoteRecord) error
    ListQuotes(ctx context.Context, company, cursor string, limit int) (items []QuoteRecord, nextCursor string, err error)
}

var ErrNotFound = errors.New("not found")
