// Package config loads gateway configuration from a YAML file plus env overrides.
package config

import (
    "fmt"
    "os"
    "time"

    yaml "gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "55m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
    var s string
    if err := n.Decode(&s); err != nil { return err }
    v, err := time.ParseDuration(s)
    if err != nil { return fmt.Errorf("invalid duration %q: %w", s, err) }
    *d = Duration(v)
    return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// CarrierConfig holds per-carrier API endpoints and credentials.
type CarrierConfig struct {
    BaseURL    string   `yaml:"baseURL"`
    Login      string   `yaml:"login"`
    APIKey     string   `yaml:"apiKey"`
    SessionTTL Duration `yaml:"sessionTTL"`
}

// GeocoderConfig points at the external address-normalization service.
type GeocoderConfig struct {
    URL   string `yaml:"url"`
    Token string `yaml:"token"`
}

// RateLimitConfig controls the gateway admission window.
type RateLimitConfig struct {
    Window   Duration `yaml:"window"`
    Capacity int      `yaml:"capacity"`
}

type Config struct {
    Listen    string                   `yaml:"listen"`
    RateLimit RateLimitConfig          `yaml:"rateLimit"`
    Carriers  map[string]CarrierConfig `yaml:"carriers"`
    Geocoder  GeocoderConfig           `yaml:"geocoder"`
}

// Load reads CONFIG_PATH (default config.yaml) if present and applies defaults.
// A missing file is not an error; carriers can be configured via env in dev.
func Load() (Config, error) {
    cfg := Config{}
    path := os.Getenv("CONFIG_PATH")
    if path == "" { path = "config.yaml" }
    if data, err := os.ReadFile(path); err == nil {
        if err := yaml.Unmarshal(data, &cfg); err != nil { return Config{}, err }
    }
    cfg.applyDefaults()
    return cfg, nil
}

func (c *Config) applyDefaults() {
    if c.Listen == "" { c.Listen = ":8080" }
    if v := os.Getenv("PORT"); v != "" { c.Listen = ":" + v }
    if c.RateLimit.Window <= 0 { c.RateLimit.Window = Duration(60 * time.Second) }
    if c.RateLimit.Capacity <= 0 { c.RateLimit.Capacity = 100 }
    if c.Carriers == nil { c.Carriers = map[string]CarrierConfig{} }
    for name, cc := range c.Carriers {
        if cc.SessionTTL <= 0 { cc.SessionTTL = Duration(55 * time.Minute) }
        c.Carriers[name] = cc
    }
}

// Carrier returns the config for a carrier, with TTL defaulted when absent.
func (c Config) Carrier(name string) CarrierConfig {
    cc := c.Carriers[name]
    if cc.SessionTTL <= 0 { cc.SessionTTL = Duration(55 * time.Minute) }
    return cc
}
