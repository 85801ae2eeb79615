package carrier

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "freightgw/internal/config"
    "freightgw/internal/quote"
    "freightgw/internal/session"
    "freightgw/internal/upstream"
)

func testRequest(from, to string) Request {
    return Request{
        FromCity: from,
        ToCity:   to,
        Cargo:    []Item{{Length: 100, Width: 50, Height: 50, Weight: 10, Quantity: 2}},
    }
}

func newPekAgainst(t *testing.T, handler http.Handler) (*Pek, *httptest.Server) {
    t.Helper()
    srv := httptest.NewServer(handler)
    t.Cleanup(srv.Close)
    cfg := config.CarrierConfig{
        BaseURL:    srv.URL,
        Login:      "demo",
        APIKey:     "key",
        SessionTTL: config.Duration(55 * time.Minute),
    }
    p := NewPek(cfg, upstream.New(5*time.Second), session.NewManager(), nil)
    return p, srv
}

func pekLogin(w http.ResponseWriter, sessionID string) {
    w.Header().Set("Content-Type", "application/json")
    w.Write([]byte(`{"sessionId":"` + sessionID + `","lifetimeSec":3600}`))
}

func TestPekQuoteWithTerminalSearch(t *testing.T) {
    var priceReq map[string]any
    mux := http.NewServeMux()
    mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) { pekLogin(w, "s1") })
    mux.HandleFunc("/branches/search", func(w http.ResponseWriter, r *http.Request) {
        if r.Header.Get("X-Session-Id") != "s1" {
            w.WriteHeader(401)
            return
        }
        var q map[string]string
        _ = json.NewDecoder(r.Body).Decode(&q)
        if q["city"] != "Новосибирск" { t.Errorf("search city: %q", q["city"]) }
        w.Write([]byte(`{"items":[{"id":"NSK01","title":"ПЭК Новосибирск","city":"Новосибирск"}]}`))
    })
    mux.HandleFunc("/calculator/price", func(w http.ResponseWriter, r *http.Request) {
        _ = json.NewDecoder(r.Body).Decode(&priceReq)
        w.Write([]byte(`{"prices":{"price":3100},"timetable":{"pickup":"2025-09-01","arrival":"2025-09-06"}}`))
    })
    p, _ := newPekAgainst(t, mux)

    res := p.Quote(context.Background(), testRequest("Москва", "Новосибирск"))
    if res.Error != "" { t.Fatalf("error: %s", res.Error) }
    if res.Price != 3100 { t.Fatalf("price: %v", res.Price) }
    if res.Days != 5 { t.Fatalf("days: %d", res.Days) }
    if res.Company != "ПЭК" { t.Fatalf("company: %q", res.Company) }

    // москва comes from the bundled directory, новосибирск from the search
    sender := priceReq["sender"].(map[string]any)
    receiver := priceReq["receiver"].(map[string]any)
    if sender["terminalId"] != "MSK01" { t.Fatalf("sender: %v", sender) }
    if receiver["terminalId"] != "NSK01" { t.Fatalf("receiver: %v", receiver) }
    if priceReq["totalWeight"].(float64) != 20 { t.Fatalf("totalWeight: %v", priceReq["totalWeight"]) }
}

func TestPekAdvancesPastUnavailableDates(t *testing.T) {
    var dates []string
    mux := http.NewServeMux()
    mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) { pekLogin(w, "s1") })
    mux.HandleFunc("/calculator/price", func(w http.ResponseWriter, r *http.Request) {
        var req map[string]any
        _ = json.NewDecoder(r.Body).Decode(&req)
        dates = append(dates, req["shipmentDate"].(string))
        if len(dates) <= 2 {
            w.Write([]byte(`{"error":{"code":3018,"message":"дата недоступна"}}`))
            return
        }
        w.Write([]byte(`{"prices":{"price":500},"timetable":{"pickup":"2025-09-03","arrival":"2025-09-04"}}`))
    })
    p, _ := newPekAgainst(t, mux)

    res := p.Quote(context.Background(), testRequest("Москва", "Санкт-Петербург"))
    if res.Error != "" { t.Fatalf("error: %s", res.Error) }
    if len(dates) != 3 { t.Fatalf("price calls: %d", len(dates)) }
    wantDate := time.Now().AddDate(0, 0, 2).Format("2006-01-02")
    if dates[2] != wantDate { t.Fatalf("third date: %s, want %s", dates[2], wantDate) }
    if !strings.Contains(res.Details, wantDate) { t.Fatalf("details: %q", res.Details) }
}

func TestPekReauthenticatesOnRejectedSession(t *testing.T) {
    logins := 0
    mux := http.NewServeMux()
    mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
        logins++
        if logins == 1 {
            pekLogin(w, "stale")
            return
        }
        pekLogin(w, "fresh")
    })
    mux.HandleFunc("/calculator/price", func(w http.ResponseWriter, r *http.Request) {
        if r.Header.Get("X-Session-Id") != "fresh" {
            w.WriteHeader(401)
            return
        }
        w.Write([]byte(`{"prices":{"price":700},"timetable":{"pickup":"2025-09-01","arrival":"2025-09-02"}}`))
    })
    p, _ := newPekAgainst(t, mux)

    res := p.Quote(context.Background(), testRequest("Москва", "Санкт-Петербург"))
    if res.Error != "" { t.Fatalf("error: %s", res.Error) }
    if logins != 2 { t.Fatalf("logins: %d", logins) }
    if res.Price != 700 { t.Fatalf("price: %v", res.Price) }
}

func TestPekFatalErrorSurfacedWithCalcURL(t *testing.T) {
    mux := http.NewServeMux()
    mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) { pekLogin(w, "s1") })
    mux.HandleFunc("/calculator/price", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(422)
        w.Write([]byte(`{"error":{"code":1007,"message":"габариты превышают допустимые"}}`))
    })
    p, srv := newPekAgainst(t, mux)

    res := p.Quote(context.Background(), testRequest("Москва", "Санкт-Петербург"))
    if res.Error == "" { t.Fatal("expected error") }
    if res.Price != 0 { t.Fatalf("price must stay 0, got %v", res.Price) }
    if !strings.Contains(res.Error, "габариты") { t.Fatalf("error: %q", res.Error) }
    if !strings.Contains(res.Error, srv.URL+"/calculator/price") { t.Fatalf("error lacks API URL: %q", res.Error) }
}

func TestPekUnknownCityReported(t *testing.T) {
    mux := http.NewServeMux()
    mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) { pekLogin(w, "s1") })
    mux.HandleFunc("/branches/search", func(w http.ResponseWriter, r *http.Request) {
        w.Write([]byte(`{"items":[]}`))
    })
    p, _ := newPekAgainst(t, mux)

    res := p.Quote(context.Background(), testRequest("Урюпинск", "Москва"))
    if res.Error == "" { t.Fatal("expected error") }
    if !strings.Contains(res.Error, "отправление") || !strings.Contains(res.Error, "Урюпинск") {
        t.Fatalf("error: %q", res.Error)
    }
}

func TestClassifyPek(t *testing.T) {
    cases := []struct {
        name   string
        status int
        body   string
        want   quote.Outcome
    }{
        {"success", 200, `{"prices":{"price":100}}`, quote.Success},
        {"http 401", 401, ``, quote.AuthError},
        {"http 403", 403, ``, quote.AuthError},
        {"session text in 400", 400, `{"error":{"code":9,"message":"invalid session"}}`, quote.AuthError},
        {"date unavailable", 200, `{"error":{"code":3018,"message":""}}`, quote.DateUnavailable},
        {"other carrier code", 200, `{"error":{"code":1007,"message":"x"}}`, quote.Fatal},
        {"http 500", 500, `{}`, quote.Fatal},
    }
    for _, tc := range cases {
        got, _ := classifyPek(tc.status, []byte(tc.body), nil)
        if got != tc.want { t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want) }
    }
    if got, _ := classifyPek(0, nil, context.DeadlineExceeded); got != quote.Fatal {
        t.Fatalf("transport error: got %v", got)
    }
}
