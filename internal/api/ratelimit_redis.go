package api

import (
    "context"
    "os"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// RedisLimiter keeps rate-limit windows in Redis so quotas survive process
// restarts and are shared across replicas. Selected when REDIS_URL is set.
type RedisLimiter struct {
    rdb      *redis.Client
    window   time.Duration
    capacity int
}

func NewRedisLimiter(window time.Duration, capacity int) (*RedisLimiter, error) {
    opt, err := redis.ParseURL(os.Getenv("REDIS_URL"))
    if err != nil { return nil, err }
    return &RedisLimiter{rdb: redis.NewClient(opt), window: window, capacity: capacity}, nil
}

// Admit counts with INCR; the first hit in a window sets the expiry. Redis
// failures admit the request: a degraded limiter must not take the gateway
// down with it.
func (l *RedisLimiter) Admit(ctx context.Context, clientID string) (Decision, error) {
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    key := "rl:" + clientID
    n, err := l.rdb.Incr(ctx, key).Result()
    if err != nil {
        return Decision{Allowed: true, Limit: l.capacity, Remaining: l.capacity - 1, ResetAt: time.Now().Add(l.window)}, nil
    }
    if n == 1 {
        _ = l.rdb.Expire(ctx, key, l.window).Err()
    }
    ttl, err := l.rdb.TTL(ctx, key).Result()
    if err != nil || ttl < 0 { ttl = l.window }
    remaining := l.capacity - int(n)
    if remaining < 0 { remaining = 0 }
    return Decision{
        Allowed:   n <= int64(l.capacity),
        Limit:     l.capacity,
        Remaining: remaining,
        ResetAt:   time.Now().Add(ttl),
    }, nil
}
