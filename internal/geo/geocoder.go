package geo

import (
    "context"
    "encoding/json"
    "strings"

    "freightgw/internal/upstream"
)

// Geocoder fronts the external address-normalization service. It is a
// black-box HTTP dependency: one POST with the free-text address, one
// structured response.
type Geocoder struct {
    URL    string
    Token  string
    Client *upstream.Client
}

type geocodeResponse struct {
    Result string `json:"result"`
    Region string `json:"region_with_type"`
    City   string `json:"city_with_type"`
    Street string `json:"street_with_type"`
    House  string `json:"house"`
    Block  string `json:"block"`
}

// Normalize reformats a free-text address into the comma-joined shape carrier
// APIs expect (region, city, street, house, block). Failures are non-fatal:
// the geocoder's own best-effort string or the raw input is returned, so the
// caller always gets a usable string.
func (g *Geocoder) Normalize(ctx context.Context, text string) string {
    if g == nil || g.URL == "" { return text }
    payload, _ := json.Marshal(map[string]string{"query": text})
    headers := map[string]string{}
    if g.Token != "" { headers["Authorization"] = "Token " + g.Token }
    resp, err := g.Client.PostJSON(ctx, g.URL, payload, headers)
    if err != nil || resp.Status != 200 { return text }
    var gr geocodeResponse
    if err := json.Unmarshal(resp.Body, &gr); err != nil { return text }
    parts := []string{}
    for _, p := range []string{gr.Region, gr.City, gr.Street, gr.House} {
        if strings.TrimSpace(p) != "" { parts = append(parts, p) }
    }
    if gr.Block != "" { parts = append(parts, "к "+gr.Block) }
    if len(parts) < 2 {
        if gr.Result != "" { return gr.Result }
        return text
    }
    return strings.Join(parts, ", ")
}
