package geo

import (
    "strings"
    "sync"
)

// Directory is a bundled city → terminal lookup consulted before the carrier
// terminal-search endpoint. Hits skip the network call entirely.
type Directory struct {
    mu sync.Mutex
    m  map[string]Terminal // city|direction -> terminal
}

func NewDirectory() *Directory { return &Directory{m: map[string]Terminal{}} }

func key(city string, dir Direction) string {
    return strings.ToLower(strings.TrimSpace(city)) + "|" + dir.String()
}

// Add registers a bundled terminal for a city and direction.
func (d *Directory) Add(city string, dir Direction, t Terminal) {
    d.mu.Lock()
    d.m[key(city, dir)] = t
    d.mu.Unlock()
}

// Find returns the bundled terminal for a city and direction, if any.
func (d *Directory) Find(city string, dir Direction) (Terminal, bool) {
    d.mu.Lock()
    defer d.mu.Unlock()
    t, ok := d.m[key(city, dir)]
    return t, ok
}
