// Package geo resolves quote endpoints to either a carrier terminal id or a
// normalized door-delivery address string.
package geo

import (
    "context"
    "fmt"
    "strings"
)

// Direction distinguishes pickup from dropoff terminal search; carriers keep
// separate terminal sets per direction.
type Direction int

const (
    Pickup Direction = iota
    Dropoff
)

func (d Direction) String() string {
    if d == Pickup { return "pickup" }
    return "dropoff"
}

// Terminal is a carrier-operated pickup/drop-off point.
type Terminal struct {
    ID    string `json:"id"`
    Title string `json:"title,omitempty"`
    City  string `json:"city,omitempty"`
}

// Location is the resolved endpoint of a shipment: exactly one of Terminal or
// Address is set.
type Location struct {
    Terminal *Terminal
    Address  string
}

func (l Location) IsTerminal() bool { return l.Terminal != nil }

// TerminalSearcher is implemented by each carrier adapter on top of the
// carrier's terminal-search endpoint.
type TerminalSearcher interface {
    SearchTerminals(ctx context.Context, city string, dir Direction) ([]Terminal, error)
}

// Query describes one end of a shipment.
type Query struct {
    City            string
    Address         string
    AddressDelivery bool
    Direction       Direction
}

// Resolver combines a bundled terminal directory, the carrier terminal search
// and the external geocoder.
type Resolver struct {
    Directory *Directory
    Geocoder  *Geocoder
}

// Resolve returns a terminal for terminal-to-terminal service, or a carrier
// formatted address string for door delivery. Address normalization never
// fails: the geocoder's best effort or the raw input is returned instead.
func (r *Resolver) Resolve(ctx context.Context, ts TerminalSearcher, q Query) (Location, error) {
    if q.AddressDelivery {
        text := strings.TrimSpace(q.Address)
        if text == "" { text = q.City }
        norm := r.Geocoder.Normalize(ctx, text)
        return Location{Address: norm}, nil
    }
    if q.City == "" {
        return Location{}, fmt.Errorf("город не указан")
    }
    if r.Directory != nil {
        if t, ok := r.Directory.Find(q.City, q.Direction); ok {
            return Location{Terminal: &t}, nil
        }
    }
    terms, err := ts.SearchTerminals(ctx, q.City, q.Direction)
    if err != nil {
        return Location{}, fmt.Errorf("поиск терминала в городе %s не удался: %w", q.City, err)
    }
    if len(terms) == 0 {
        return Location{}, fmt.Errorf("терминал в городе %s не найден", q.City)
    }
    t := terms[0]
    return Location{Terminal: &t}, nil
}
