package carrier

import (
    "context"
    "encoding/json"
    "fmt"
    "strings"
    "time"

    "freightgw/internal/config"
    "freightgw/internal/geo"
    "freightgw/internal/metrics"
    "freightgw/internal/quote"
    "freightgw/internal/session"
    "freightgw/internal/upstream"
)

// pekDateUnavailable is the carrier error code for "no capacity on the
// requested ship date". Isolated here so a code change touches one adapter.
const pekDateUnavailable = 3018

// Pek quotes shipments through the PEK cabinet API: session login, terminal
// search by city, windowed price calculation.
type Pek struct {
    cfg      config.CarrierConfig
    client   *upstream.Client
    sessions *session.Manager
    resolver *geo.Resolver
    now      func() time.Time
}

func NewPek(cfg config.CarrierConfig, client *upstream.Client, sessions *session.Manager, gc *geo.Geocoder) *Pek {
    p := &Pek{
        cfg:      cfg,
        client:   client,
        sessions: sessions,
        resolver: &geo.Resolver{Directory: geo.NewDirectory(), Geocoder: gc},
        now:      time.Now,
    }
    // Bundled directory for the busiest cities; skips the search call.
    p.resolver.Directory.Add("москва", geo.Pickup, geo.Terminal{ID: "MSK01", Title: "ПЭК Москва Юг", City: "Москва"})
    p.resolver.Directory.Add("москва", geo.Dropoff, geo.Terminal{ID: "MSK02", Title: "ПЭК Москва Север", City: "Москва"})
    p.resolver.Directory.Add("санкт-петербург", geo.Pickup, geo.Terminal{ID: "SPB01", Title: "ПЭК СПб Парнас", City: "Санкт-Петербург"})
    p.resolver.Directory.Add("санкт-петербург", geo.Dropoff, geo.Terminal{ID: "SPB01", Title: "ПЭК СПб Парнас", City: "Санкт-Петербург"})
    sessions.Register(string(PEK), cfg.SessionTTL.Std(), p.login)
    return p
}

func (p *Pek) Name() Name { return PEK }

func (p *Pek) login(ctx context.Context) (string, time.Duration, error) {
    ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    payload, _ := json.Marshal(map[string]string{"login": p.cfg.Login, "apiKey": p.cfg.APIKey})
    resp, err := p.client.PostJSON(ctx, p.cfg.BaseURL+"/auth/login", payload, nil)
    if err != nil {
        metrics.UpstreamCalls.WithLabelValues(string(PEK), "login", "error").Inc()
        return "", 0, fmt.Errorf("вход в API ПЭК не удался: %v", err)
    }
    if resp.Status < 200 || resp.Status >= 300 {
        metrics.UpstreamCalls.WithLabelValues(string(PEK), "login", "rejected").Inc()
        return "", 0, fmt.Errorf("вход в API ПЭК отклонён (HTTP %d)", resp.Status)
    }
    var out struct {
        SessionID   string `json:"sessionId"`
        LifetimeSec int    `json:"lifetimeSec"`
    }
    if err := json.Unmarshal(resp.Body, &out); err != nil || out.SessionID == "" {
        metrics.UpstreamCalls.WithLabelValues(string(PEK), "login", "rejected").Inc()
        return "", 0, fmt.Errorf("ответ API ПЭК не содержит сессию")
    }
    metrics.UpstreamCalls.WithLabelValues(string(PEK), "login", "ok").Inc()
    return out.SessionID, time.Duration(out.LifetimeSec) * time.Second, nil
}

// SearchTerminals implements geo.TerminalSearcher over POST /branches/search.
func (p *Pek) SearchTerminals(ctx context.Context, city string, dir geo.Direction) ([]geo.Terminal, error) {
    ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    sess, err := p.sessions.Get(ctx, string(PEK))
    if err != nil { return nil, err }
    payload, _ := json.Marshal(map[string]string{"city": city, "direction": dir.String()})
    resp, err := p.client.PostJSON(ctx, p.cfg.BaseURL+"/branches/search", payload, map[string]string{"X-Session-Id": sess.Token})
    if err != nil {
        metrics.UpstreamCalls.WithLabelValues(string(PEK), "terminals", "error").Inc()
        return nil, err
    }
    if resp.Status != 200 {
        metrics.UpstreamCalls.WithLabelValues(string(PEK), "terminals", "rejected").Inc()
        return nil, fmt.Errorf("HTTP %d", resp.Status)
    }
    var out struct {
        Items []geo.Terminal `json:"items"`
    }
    if err := json.Unmarshal(resp.Body, &out); err != nil { return nil, err }
    metrics.UpstreamCalls.WithLabelValues(string(PEK), "terminals", "ok").Inc()
    return out.Items, nil
}

func (p *Pek) calcURL() string { return p.cfg.BaseURL + "/calculator/price" }

// Quote resolves both ends, then drives the date-window retry loop.
func (p *Pek) Quote(ctx context.Context, req Request) Result {
    started := p.now()
    res := p.quote(ctx, req)
    outcome := "ok"
    if res.Error != "" { outcome = "error" }
    metrics.QuoteDuration.WithLabelValues(string(PEK), outcome).Observe(p.now().Sub(started).Seconds())
    return res
}

func (p *Pek) quote(ctx context.Context, req Request) Result {
    res := Result{Company: "ПЭК"}

    from, err := p.resolver.Resolve(ctx, p, geo.Query{
        City: req.FromCity, Address: req.FromAddress, AddressDelivery: req.AddressPickup, Direction: geo.Pickup,
    })
    if err != nil {
        res.Error = fmt.Sprintf("отправление: %v (%s)", err, p.calcURL())
        return res
    }
    to, err := p.resolver.Resolve(ctx, p, geo.Query{
        City: req.ToCity, Address: req.ToAddress, AddressDelivery: req.AddressDelivery, Direction: geo.Dropoff,
    })
    if err != nil {
        res.Error = fmt.Sprintf("получение: %v (%s)", err, p.calcURL())
        return res
    }

    totals := Aggregate(req.Cargo)
    var lastPayload []byte
    sched := &quote.Scheduler{
        Sessions: managerSource{m: p.sessions, carrier: string(PEK)},
        Price: func(ctx context.Context, token string, date time.Time) (int, []byte, error) {
            ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
            defer cancel()
            payload, _ := json.Marshal(map[string]any{
                "sessionId":    token,
                "shipmentDate": date.Format("2006-01-02"),
                "sender":       pekLocationNode(from),
                "receiver":     pekLocationNode(to),
                "cargos":       pekCargos(req.Cargo),
                "totalWeight":  totals.Weight,
                "totalVolume":  totals.Volume,
                "maxDimension": totals.MaxDim,
                "services": map[string]bool{
                    "insurance": req.Options.Insurance,
                    "packaging": req.Options.Packaging,
                    "urgent":    req.Options.Urgent,
                },
            })
            lastPayload = payload
            resp, err := p.client.PostJSON(ctx, p.calcURL(), payload, map[string]string{"X-Session-Id": token})
            if err != nil {
                metrics.UpstreamCalls.WithLabelValues(string(PEK), "price", "error").Inc()
                return 0, nil, err
            }
            return resp.Status, resp.Body, nil
        },
        Classify: classifyPek,
    }

    out, err := sched.Run(ctx, p.now())
    res.RequestData = lastPayload
    if err != nil {
        res.Error = fmt.Sprintf("%v (%s)", err, p.calcURL())
        return res
    }
    metrics.UpstreamCalls.WithLabelValues(string(PEK), "price", "ok").Inc()
    norm := quote.Normalize(out.Body, "price", "arrival")
    res.Price = norm.Price
    res.Days = norm.TransitDays
    res.Details = "дата отгрузки " + out.Date.Format("2006-01-02")
    res.ResponseData = out.Body
    return res
}

func pekLocationNode(l geo.Location) map[string]any {
    if l.IsTerminal() {
        return map[string]any{"terminalId": l.Terminal.ID}
    }
    return map[string]any{"address": l.Address, "addressDelivery": true}
}

func pekCargos(items []Item) []map[string]any {
    out := make([]map[string]any, 0, len(items))
    for _, it := range items {
        q := it.Quantity
        if q <= 0 { q = 1 }
        out = append(out, map[string]any{
            "length": it.Length, "width": it.Width, "height": it.Height,
            "weight": it.Weight, "quantity": q,
        })
    }
    return out
}

type pekError struct {
    Error struct {
        Code    int    `json:"code"`
        Message string `json:"message"`
    } `json:"error"`
}

func classifyPek(status int, body []byte, err error) (quote.Outcome, string) {
    if err != nil {
        return quote.Fatal, fmt.Sprintf("сбой запроса к API ПЭК: %v", err)
    }
    if status == 401 || status == 403 {
        return quote.AuthError, fmt.Sprintf("сессия отклонена (HTTP %d)", status)
    }
    var pe pekError
    _ = json.Unmarshal(body, &pe)
    msg := pe.Error.Message
    if status == 400 && mentionsAuth(msg) {
        return quote.AuthError, msg
    }
    if pe.Error.Code == pekDateUnavailable {
        if msg == "" { msg = "дата отгрузки недоступна" }
        return quote.DateUnavailable, msg
    }
    if status >= 200 && status < 300 && pe.Error.Code == 0 {
        return quote.Success, ""
    }
    if msg == "" { msg = fmt.Sprintf("API ПЭК вернул HTTP %d", status) }
    return quote.Fatal, msg
}

func mentionsAuth(msg string) bool {
    m := strings.ToLower(msg)
    for _, marker := range []string{"session", "auth", "invalid", "сесси", "авториза"} {
        if strings.Contains(m, marker) { return true }
    }
    return false
}

// managerSource adapts session.Manager to the scheduler's SessionSource.
type managerSource struct {
    m       *session.Manager
    carrier string
}

func (s managerSource) Get(ctx context.Context) (string, error) {
    sess, err := s.m.Get(ctx, s.carrier)
    if err != nil { return "", err }
    return sess.Token, nil
}

func (s managerSource) Invalidate() { s.m.Invalidate(s.carrier) }
