package quote

import (
    "encoding/json"
    "math"
    "strconv"
    "strings"
    "time"
)

// maxProbeDepth bounds the recursive response walk so a pathological payload
// cannot blow the stack.
const maxProbeDepth = 12

// Normalized is the uniform shape extracted from a carrier response.
type Normalized struct {
    Price       float64
    TransitDays int
}

// Normalize extracts the carrier-computed price and a transit-day estimate
// from an arbitrarily nested response. priceKey and arrivalKey are
// carrier-specific field names; the pickup timestamp field is literally named
// "pickup" across the carriers we front. A response without both timestamps
// yields TransitDays 0, which callers treat as "unknown".
func Normalize(body []byte, priceKey, arrivalKey string) Normalized {
    var tree any
    if err := json.Unmarshal(body, &tree); err != nil {
        return Normalized{}
    }
    n := Normalized{}
    if v, ok := probe(tree, priceKey, 0); ok {
        if f, ok := asNumber(v); ok && f >= 0 { n.Price = f }
    }
    pick, okP := probe(tree, "pickup", 0)
    arr, okA := probe(tree, arrivalKey, 0)
    if okP && okA {
        n.TransitDays = transitDays(pick, arr)
    }
    return n
}

// probe does a depth-first search for the shallowest field with the given
// name. Shallowest wins so a top-level summary field beats a nested echo of
// the request.
func probe(tree any, field string, depth int) (any, bool) {
    v, _, ok := probeDepth(tree, field, depth)
    return v, ok
}

func probeDepth(tree any, field string, depth int) (any, int, bool) {
    if depth > maxProbeDepth { return nil, 0, false }
    switch t := tree.(type) {
    case map[string]any:
        if v, ok := t[field]; ok { return v, depth, true }
        var best any
        bestDepth := -1
        for _, v := range t {
            if got, d, ok := probeDepth(v, field, depth+1); ok && (bestDepth == -1 || d < bestDepth) {
                best, bestDepth = got, d
            }
        }
        if bestDepth >= 0 { return best, bestDepth, true }
    case []any:
        var best any
        bestDepth := -1
        for _, v := range t {
            if got, d, ok := probeDepth(v, field, depth+1); ok && (bestDepth == -1 || d < bestDepth) {
                best, bestDepth = got, d
            }
        }
        if bestDepth >= 0 { return best, bestDepth, true }
    }
    return nil, 0, false
}

func asNumber(v any) (float64, bool) {
    switch n := v.(type) {
    case float64:
        return n, true
    case string:
        f, err := strconv.ParseFloat(strings.ReplaceAll(n, ",", "."), 64)
        if err != nil { return 0, false }
        return f, true
    }
    return 0, false
}

// transitDays computes ceil((arrival-pickup)/1 day), floored at 1. Carrier
// timestamps appear either as millisecond epochs or as date strings.
func transitDays(pickup, arrival any) int {
    p, okP := asTime(pickup)
    a, okA := asTime(arrival)
    if !okP || !okA { return 0 }
    diff := a.Sub(p)
    if diff <= 0 { return 1 }
    days := int(math.Ceil(diff.Hours() / 24))
    if days < 1 { days = 1 }
    return days
}

var timeLayouts = []string{
    time.RFC3339,
    "2006-01-02T15:04:05",
    "2006-01-02 15:04:05",
    "2006-01-02",
}

func asTime(v any) (time.Time, bool) {
    switch t := v.(type) {
    case float64:
        // millisecond epoch
        return time.UnixMilli(int64(t)).UTC(), true
    case string:
        for _, layout := range timeLayouts {
            if ts, err := time.Parse(layout, t); err == nil { return ts, true }
        }
    }
    return time.Time{}, false
}
