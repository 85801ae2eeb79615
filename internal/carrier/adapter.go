// Package carrier fronts third-party freight carriers behind one adapter
// interface. Each adapter owns its carrier's auth, terminal search, payload
// shape and failure classification.
package carrier

import (
    "context"
    "encoding/json"
)

// Name identifies a supported carrier. The set is closed: routing happens
// through a table keyed by Name, so adding a carrier is one table edit.
type Name string

const (
    PEK    Name = "pek"
    Baikal Name = "baikal"
)

// Supported lists the carriers the gateway can route to, in stable order.
func Supported() []Name { return []Name{PEK, Baikal} }

// Known reports whether name is a supported carrier.
func Known(name string) bool {
    for _, n := range Supported() {
        if string(n) == name { return true }
    }
    return false
}

// Item is one cargo piece. Dimensions are centimeters, weight kilograms.
type Item struct {
    Length   float64 `json:"length"`
    Width    float64 `json:"width"`
    Height   float64 `json:"height"`
    Weight   float64 `json:"weight"`
    Quantity int     `json:"quantity,omitempty"`
}

// Options are carrier-agnostic service flags projected into carrier payloads.
type Options struct {
    Insurance bool `json:"insurance,omitempty"`
    Packaging bool `json:"packaging,omitempty"`
    Urgent    bool `json:"urgent,omitempty"`
}

// Request is the carrier-shaped quote request produced by the gateway router.
type Request struct {
    FromCity        string  `json:"fromCity"`
    ToCity          string  `json:"toCity"`
    FromAddress     string  `json:"fromAddress,omitempty"`
    ToAddress       string  `json:"toAddress,omitempty"`
    AddressPickup   bool    `json:"addressPickup,omitempty"`
    AddressDelivery bool    `json:"addressDelivery,omitempty"`
    Cargo           []Item  `json:"cargo"`
    Options         Options `json:"options,omitempty"`
}

// Totals are the derived cargo aggregates, computed once per request.
type Totals struct {
    Weight float64 // kg
    Volume float64 // m3
    MaxDim float64 // cm, max per-axis dimension across items
}

// Aggregate computes cargo totals. Quantity defaults to 1.
func Aggregate(items []Item) Totals {
    t := Totals{}
    for _, it := range items {
        q := it.Quantity
        if q <= 0 { q = 1 }
        t.Weight += it.Weight * float64(q)
        t.Volume += it.Length * it.Width * it.Height / 1e6 * float64(q)
        for _, d := range []float64{it.Length, it.Width, it.Height} {
            if d > t.MaxDim { t.MaxDim = d }
        }
    }
    return t
}

// Result is the terminal output of one adapter. Adapters never return an
// error for expected failure modes: Price 0 plus Error set signals a failure
// the caller still renders side by side with other carriers.
type Result struct {
    Company      string          `json:"company"`
    Price        float64         `json:"price"`
    Days         int             `json:"days"`
    Error        string          `json:"error,omitempty"`
    Details      string          `json:"details,omitempty"`
    RequestData  json.RawMessage `json:"requestData,omitempty"`
    ResponseData json.RawMessage `json:"responseData,omitempty"`
}

// Adapter is the per-carrier quote backend.
type Adapter interface {
    Name() Name
    Quote(ctx context.Context, req Request) Result
}

// Registry is the static carrier → adapter routing table.
type Registry map[Name]Adapter

// Lookup returns the adapter for a carrier name.
func (r Registry) Lookup(name string) (Adapter, bool) {
    a, ok := r[Name(name)]
    return a, ok
}
