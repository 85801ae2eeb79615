package api

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "net/http"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"

    "freightgw/internal/carrier"
    "freightgw/internal/metrics"
    "freightgw/internal/store"
)

// QuoteRequest is the body of POST /freight/quote. Company is optional for
// the compare endpoints, which fan out to every supported carrier.
type QuoteRequest struct {
    Company         string          `json:"company"`
    FromCity        string          `json:"fromCity"`
    ToCity          string          `json:"toCity"`
    FromAddress     string          `json:"fromAddress,omitempty"`
    ToAddress       string          `json:"toAddress,omitempty"`
    AddressPickup   bool            `json:"addressPickup,omitempty"`
    AddressDelivery bool            `json:"addressDelivery,omitempty"`
    Cargo           []carrier.Item  `json:"cargo"`
    Options         carrier.Options `json:"options,omitempty"`
}

func (q QuoteRequest) carrierRequest() carrier.Request {
    return carrier.Request{
        FromCity:        q.FromCity,
        ToCity:          q.ToCity,
        FromAddress:     q.FromAddress,
        ToAddress:       q.ToAddress,
        AddressPickup:   q.AddressPickup,
        AddressDelivery: q.AddressDelivery,
        Cargo:           q.Cargo,
        Options:         q.Options,
    }
}

func newRequestID() string { return "req_" + uuid.New().String() }

// FreightQuoteHandler handles POST /freight/quote: admission check, strict
// validation, carrier dispatch, standardized response.
func (s *Server) FreightQuoteHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    started := time.Now()
    requestID := newRequestID()
    defer s.recoverTo500(w, requestID, started)

    if !s.admit(w, r) { return }

    var req QuoteRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeGatewayError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), requestID, started)
        return
    }
    if err := validateQuoteRequest(&req, true); err != nil {
        writeGatewayError(w, http.StatusBadRequest, err.Error(), requestID, started)
        return
    }
    adapter, ok := s.Adapters.Lookup(req.Company)
    if !ok {
        writeGatewayError(w, http.StatusBadRequest, "unsupported company: "+req.Company, requestID, started)
        return
    }
    res := adapter.Quote(r.Context(), req.carrierRequest())
    s.record(r.Context(), requestID, req, res)
    writeJSON(w, http.StatusOK, s.publicResponse(res, requestID, started))
}

// FreightCompareHandler handles POST /freight/compare: one request fanned out
// to all supported carriers concurrently, results rendered side by side.
// A single carrier failure is not fatal to the comparison.
func (s *Server) FreightCompareHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    started := time.Now()
    requestID := newRequestID()
    defer s.recoverTo500(w, requestID, started)

    if !s.admit(w, r) { return }

    var req QuoteRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeGatewayError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), requestID, started)
        return
    }
    if err := validateQuoteRequest(&req, false); err != nil {
        writeGatewayError(w, http.StatusBadRequest, err.Error(), requestID, started)
        return
    }

    names := carrier.Supported()
    results := make([]carrier.Result, len(names))
    var wg sync.WaitGroup
    for i, name := range names {
        adapter, ok := s.Adapters.Lookup(string(name))
        if !ok { continue }
        wg.Add(1)
        go func(i int, a carrier.Adapter) {
            defer wg.Done()
            results[i] = a.Quote(r.Context(), req.carrierRequest())
        }(i, adapter)
    }
    wg.Wait()

    items := make([]GatewayResponse, 0, len(results))
    for _, res := range results {
        s.record(r.Context(), requestID, req, res)
        items = append(items, s.publicResponse(res, requestID, started))
    }
    writeJSON(w, http.StatusOK, map[string]any{"results": items, "metadata": newMetadata(requestID, started)})
}

// CarrierQuoteHandler handles the internal per-carrier endpoints
// POST /v1/carriers/{name}/quote, returning the raw adapter contract with the
// outbound/inbound payloads echoed for diagnostics.
func (s *Server) CarrierQuoteHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/carriers/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing carrier", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    if len(parts) != 2 || parts[1] != "quote" {
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
        return
    }
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    adapter, ok := s.Adapters.Lookup(parts[0])
    if !ok {
        writeProblem(w, http.StatusNotFound, "Unknown carrier", parts[0], r.URL.Path)
        return
    }
    var req QuoteRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateQuoteRequest(&req, false); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid quote request", err.Error(), r.URL.Path)
        return
    }
    res := adapter.Quote(r.Context(), req.carrierRequest())
    writeJSON(w, http.StatusOK, res)
}

// AdminQuotesHandler lists calculation history: GET /v1/admin/quotes.
func (s *Server) AdminQuotesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/quotes" || r.Method != http.MethodGet {
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
        return
    }
    company := r.URL.Query().Get("company")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListQuotes(r.Context(), company, cursor, limit)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "List quotes failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using the Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil {
            writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
            return
        }
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// admit runs the rate limiter and writes the 429 when the window is full.
func (s *Server) admit(w http.ResponseWriter, r *http.Request) bool {
    id, kind := clientID(r)
    d, err := s.Limiter.Admit(r.Context(), id)
    if err != nil { return true }
    if !d.Allowed {
        metrics.RateLimited.WithLabelValues(kind).Inc()
        writeRateLimited(w, d, time.Now())
        return false
    }
    return true
}

// publicResponse transforms an adapter result into the fixed public contract.
// Field fallbacks tolerate legacy names from older adapter revisions.
func (s *Server) publicResponse(res carrier.Result, requestID string, started time.Time) GatewayResponse {
    var m map[string]any
    b, _ := json.Marshal(res)
    _ = json.Unmarshal(b, &m)
    total := pickNumber(m, "totalCost", "cost", "price")
    days := int(pickNumber(m, "days", "deliveryDays", "transitDays"))
    maxDays := days
    if days > 0 { maxDays = days + 1 }
    resp := GatewayResponse{
        Success: res.Error == "",
        Company: res.Company,
        Calculation: &Calculation{
            TotalCost:    total,
            Currency:     "RUB",
            DeliveryTime: DeliveryTime{Min: days, Max: maxDays, Unit: "days"},
        },
        Error:    res.Error,
        Metadata: newMetadata(requestID, started),
    }
    return resp
}

// pickNumber returns the first numeric field present under any of the keys.
func pickNumber(m map[string]any, keys ...string) float64 {
    for _, k := range keys {
        if v, ok := m[k]; ok {
            if f, ok := v.(float64); ok { return f }
        }
    }
    return 0
}

// record appends the calculation to history. Failures are logged, never
// surfaced: history is diagnostics, not the product.
func (s *Server) record(ctx context.Context, requestID string, req QuoteRequest, res carrier.Result) {
    if s.Store == nil { return }
    totals := carrier.Aggregate(req.Cargo)
    rec := store.QuoteRecord{
        ID:        uuid.New().String(),
        RequestID: requestID,
        Company:   res.Company,
        FromCity:  req.FromCity,
        ToCity:    req.ToCity,
        Weight:    totals.Weight,
        Volume:    totals.Volume,
        Price:     res.Price,
        Days:      res.Days,
        Error:     res.Error,
        CreatedAt: time.Now().UTC(),
    }
    if err := s.Store.SaveQuote(ctx, rec); err != nil {
        log.Printf("save quote history: %v", err)
    }
}

// recoverTo500 converts a handler panic into the public 500 shape so a bad
// carrier payload can never crash a request handler.
func (s *Server) recoverTo500(w http.ResponseWriter, requestID string, started time.Time) {
    if rec := recover(); rec != nil {
        log.Printf("panic in gateway handler: %v", rec)
        writeGatewayError(w, http.StatusInternalServerError, "Internal server error", requestID, started)
    }
}
