package api

import (
    "os"
    "strings"
    "time"

    "freightgw/internal/carrier"
    "freightgw/internal/config"
    "freightgw/internal/geo"
    "freightgw/internal/metrics"
    "freightgw/internal/session"
    "freightgw/internal/store"
    "freightgw/internal/upstream"
)

type Server struct {
    Cfg      config.Config
    Adapters carrier.Registry
    Limiter  Limiter
    Store    store.Store
    Sessions *session.Manager
}

// NewServer wires the carrier adapters, admission limiter and history store.
// If DATABASE_URL is unset, uses the in-memory store; if REDIS_URL is set,
// rate-limit windows live in Redis and survive restarts.
func NewServer() (*Server, error) {
    cfg, err := config.Load()
    if err != nil {
        return nil, err
    }
    metrics.RegisterDefault()

    client := upstream.New(30 * time.Second)
    sessions := session.NewManager()
    gc := &geo.Geocoder{URL: cfg.Geocoder.URL, Token: cfg.Geocoder.Token, Client: client}
    adapters := carrier.Registry{
        carrier.PEK:    carrier.NewPek(cfg.Carrier("pek"), client, sessions, gc),
        carrier.Baikal: carrier.NewBaikal(cfg.Carrier("baikal"), client, sessions, gc),
    }

    var s store.Store
    dsn := os.Getenv("DATABASE_URL")
    if strings.TrimSpace(dsn) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(dsn)
        if err != nil {
            return nil, err
        }
        if os.Getenv("DB_MIGRATE") != "false" {
            _ = sp.Migrate()
        }
        s = sp
    }

    var limiter Limiter
    if os.Getenv("REDIS_URL") != "" {
        if rl, err := NewRedisLimiter(cfg.RateLimit.Window.Std(), cfg.RateLimit.Capacity); err == nil {
            limiter = rl
        } else {
            limiter = NewWindowLimiter(cfg.RateLimit.Window.Std(), cfg.RateLimit.Capacity)
        }
    } else {
        limiter = NewWindowLimiter(cfg.RateLimit.Window.Std(), cfg.RateLimit.Capacity)
    }

    return &Server{Cfg: cfg, Adapters: adapters, Limiter: limiter, Store: s, Sessions: sessions}, nil
}
