package api

import (
    "context"
    "net/http/httptest"
    "sync"
    "testing"
    "time"
)

func TestWindowLimiterExactCapacity(t *testing.T) {
    l := NewWindowLimiter(time.Minute, 5)
    for i := 0; i < 5; i++ {
        d, err := l.Admit(context.Background(), "key:a")
        if err != nil { t.Fatalf("admit: %v", err) }
        if !d.Allowed { t.Fatalf("request %d rejected inside quota", i+1) }
        if d.Remaining != 4-i { t.Fatalf("remaining after %d: %d", i+1, d.Remaining) }
    }
    d, _ := l.Admit(context.Background(), "key:a")
    if d.Allowed { t.Fatal("request over quota admitted") }
    if d.Remaining != 0 { t.Fatalf("remaining: %d", d.Remaining) }
}

func TestWindowLimiterResets(t *testing.T) {
    base := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
    now := base
    l := NewWindowLimiter(time.Minute, 1)
    l.SetClock(func() time.Time { return now })

    if d, _ := l.Admit(context.Background(), "ip:1.2.3.4"); !d.Allowed { t.Fatal("first rejected") }
    if d, _ := l.Admit(context.Background(), "ip:1.2.3.4"); d.Allowed { t.Fatal("second admitted") }

    now = base.Add(61 * time.Second)
    d, _ := l.Admit(context.Background(), "ip:1.2.3.4")
    if !d.Allowed { t.Fatal("new window rejected") }
    if got := d.ResetAt; !got.Equal(now.Add(time.Minute)) { t.Fatalf("resetAt: %v", got) }
}

func TestWindowLimiterIsolatesBuckets(t *testing.T) {
    l := NewWindowLimiter(time.Minute, 1)
    if d, _ := l.Admit(context.Background(), "key:a"); !d.Allowed { t.Fatal("a rejected") }
    if d, _ := l.Admit(context.Background(), "key:b"); !d.Allowed { t.Fatal("b must have its own bucket") }
}

func TestWindowLimiterConcurrent(t *testing.T) {
    l := NewWindowLimiter(time.Minute, 100)
    var wg sync.WaitGroup
    var mu sync.Mutex
    allowed := 0
    for i := 0; i < 150; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            d, _ := l.Admit(context.Background(), "key:hot")
            if d.Allowed {
                mu.Lock()
                allowed++
                mu.Unlock()
            }
        }()
    }
    wg.Wait()
    if allowed != 100 { t.Fatalf("allowed %d of 150, want exactly 100", allowed) }
}

func TestClientIDPrecedence(t *testing.T) {
    r := httptest.NewRequest("POST", "/freight/quote", nil)
    r.Header.Set("X-Api-Key", "abc")
    r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
    if id, kind := clientID(r); id != "key:abc" || kind != "key" {
        t.Fatalf("got %q %q", id, kind)
    }

    r.Header.Del("X-Api-Key")
    if id, kind := clientID(r); id != "ip:10.0.0.1" || kind != "ip" {
        t.Fatalf("got %q %q", id, kind)
    }

    r.Header.Del("X-Forwarded-For")
    if id, kind := clientID(r); id != "unknown" || kind != "unknown" {
        t.Fatalf("got %q %q", id, kind)
    }
}
