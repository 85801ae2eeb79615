// Package upstream wraps outbound carrier API calls with deadlines,
// bounded transport retry and a per-host request throttle.
package upstream

import (
    "bytes"
    "context"
    "io"
    "net/http"
    "net/url"
    "sync"
    "time"

    "golang.org/x/time/rate"
)

// Client is safe for concurrent use. One instance is shared by all adapters.
type Client struct {
    HTTP *http.Client
    // TransportRetries is how many extra attempts are made after a transport
    // error (connection refused, reset). HTTP error statuses are never retried
    // here; classification happens in the scheduler.
    TransportRetries int

    mu       sync.Mutex
    limiters map[string]*rate.Limiter // host -> limiter
    perHost  rate.Limit
    burst    int
}

// New returns a Client with the given overall call timeout.
func New(timeout time.Duration) *Client {
    return &Client{
        HTTP:             &http.Client{Timeout: timeout},
        TransportRetries: 1,
        limiters:         map[string]*rate.Limiter{},
        perHost:          rate.Limit(10), // carrier APIs tolerate ~10 rps per host
        burst:            20,
    }
}

func (c *Client) limiter(host string) *rate.Limiter {
    c.mu.Lock()
    defer c.mu.Unlock()
    l, ok := c.limiters[host]
    if !ok {
        l = rate.NewLimiter(c.perHost, c.burst)
        c.limiters[host] = l
    }
    return l
}

// Response carries the status and body of a completed upstream call.
type Response struct {
    Status int
    Body   []byte
}

// PostJSON sends a JSON payload and reads the full response body.
// The context deadline bounds the whole call including the throttle wait.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload []byte, headers map[string]string) (Response, error) {
    return c.do(ctx, http.MethodPost, rawURL, payload, headers)
}

// Get performs a GET and reads the full response body.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (Response, error) {
    return c.do(ctx, http.MethodGet, rawURL, nil, headers)
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte, headers map[string]string) (Response, error) {
    u, err := url.Parse(rawURL)
    if err != nil { return Response{}, err }
    if err := c.limiter(u.Host).Wait(ctx); err != nil { return Response{}, err }

    var lastErr error
    for attempt := 0; attempt <= c.TransportRetries; attempt++ {
        var body io.Reader
        if payload != nil { body = bytes.NewReader(payload) }
        req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
        if err != nil { return Response{}, err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        for k, v := range headers { req.Header.Set(k, v) }
        resp, err := c.HTTP.Do(req)
        if err != nil {
            lastErr = err
            if ctx.Err() != nil { return Response{}, ctx.Err() }
            continue
        }
        data, err := io.ReadAll(resp.Body)
        _ = resp.Body.Close()
        if err != nil { lastErr = err; continue }
        return Response{Status: resp.StatusCode, Body: data}, nil
    }
    return Response{}, lastErr
}
