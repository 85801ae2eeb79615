package api

import (
    "encoding/json"
    "net/http"
    "time"
)

// Problem represents an RFC7807 problem details response body, used by the
// internal per-carrier endpoints.
type Problem struct {
    Type     string `json:"type"`
    Title    string `json:"title"`
    Status   int    `json:"status"`
    Detail   string `json:"detail,omitempty"`
    Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
    writeJSON(w, status, Problem{
        Type:     "about:blank",
        Title:    title,
        Status:   status,
        Detail:   detail,
        Instance: instance,
    })
}

// Metadata is attached to every gateway response, including errors, for
// cross-system tracing.
type Metadata struct {
    RequestID        string `json:"requestId"`
    Timestamp        string `json:"timestamp"`
    ProcessingTimeMs int64  `json:"processingTimeMs"`
}

// DeliveryTime is the public transit-time estimate.
type DeliveryTime struct {
    Min  int    `json:"min"`
    Max  int    `json:"max"`
    Unit string `json:"unit"`
}

// Calculation is the priced part of a successful gateway response.
type Calculation struct {
    TotalCost    float64            `json:"totalCost"`
    Currency     string             `json:"currency"`
    DeliveryTime DeliveryTime       `json:"deliveryTime"`
    Breakdown    map[string]float64 `json:"breakdown,omitempty"`
}

// GatewayResponse is the fixed public contract of POST /freight/quote.
type GatewayResponse struct {
    Success     bool         `json:"success"`
    Company     string       `json:"company,omitempty"`
    Calculation *Calculation `json:"calculation,omitempty"`
    Error       string       `json:"error,omitempty"`
    Metadata    Metadata     `json:"metadata"`
}

func newMetadata(requestID string, started time.Time) Metadata {
    return Metadata{
        RequestID:        requestID,
        Timestamp:        time.Now().UTC().Format(time.RFC3339),
        ProcessingTimeMs: time.Since(started).Milliseconds(),
    }
}

// writeGatewayError emits the public error shape with metadata attached.
func writeGatewayError(w http.ResponseWriter, status int, msg, requestID string, started time.Time) {
    writeJSON(w, status, GatewayResponse{Success: false, Error: msg, Metadata: newMetadata(requestID, started)})
}
