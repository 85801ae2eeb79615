package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
    t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
    cfg, err := Load()
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.Listen != ":8080" { t.Fatalf("listen: %q", cfg.Listen) }
    if cfg.RateLimit.Window.Std() != time.Minute { t.Fatalf("window: %v", cfg.RateLimit.Window.Std()) }
    if cfg.RateLimit.Capacity != 100 { t.Fatalf("capacity: %d", cfg.RateLimit.Capacity) }
}

func TestLoadFromFile(t *testing.T) {
    path := filepath.Join(t.TempDir(), "config.yaml")
    data := `
listen: ":9090"
rateLimit:
  window: "30s"
  capacity: 10
carriers:
  pek:
    baseURL: "https://api.pek.example"
    login: "demo"
    apiKey: "secret"
    sessionTTL: "40m"
  baikal:
    baseURL: "https://api.baikal.example"
geocoder:
  url: "https://geo.example/normalize"
  token: "tok"
`
    if err := os.WriteFile(path, []byte(data), 0o600); err != nil { t.Fatal(err) }
    t.Setenv("CONFIG_PATH", path)

    cfg, err := Load()
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.Listen != ":9090" { t.Fatalf("listen: %q", cfg.Listen) }
    if cfg.RateLimit.Window.Std() != 30*time.Second { t.Fatalf("window: %v", cfg.RateLimit.Window.Std()) }

    pek := cfg.Carrier("pek")
    if pek.BaseURL != "https://api.pek.example" || pek.SessionTTL.Std() != 40*time.Minute {
        t.Fatalf("pek: %+v", pek)
    }
    // TTL defaults when the file omits it
    if got := cfg.Carrier("baikal").SessionTTL.Std(); got != 55*time.Minute {
        t.Fatalf("baikal ttl: %v", got)
    }
    if got := cfg.Carrier("missing").SessionTTL.Std(); got != 55*time.Minute {
        t.Fatalf("missing ttl: %v", got)
    }
}

func TestLoadRejectsBadDuration(t *testing.T) {
    path := filepath.Join(t.TempDir(), "config.yaml")
    if err := os.WriteFile(path, []byte("rateLimit:\n  window: \"soon\"\n"), 0o600); err != nil { t.Fatal(err) }
    t.Setenv("CONFIG_PATH", path)
    if _, err := Load(); err == nil { t.Fatal("expected error") }
}

func TestPortOverride(t *testing.T) {
    t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
    t.Setenv("PORT", "3000")
    cfg, err := Load()
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.Listen != ":3000" { t.Fatalf("listen: %q", cfg.Listen) }
}
