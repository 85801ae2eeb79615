package carrier

import (
    "context"
    "encoding/json"
    "fmt"
    "net/url"
    "time"

    "freightgw/internal/config"
    "freightgw/internal/geo"
    "freightgw/internal/metrics"
    "freightgw/internal/quote"
    "freightgw/internal/session"
    "freightgw/internal/upstream"
)

// baikalDateUnavailable is Baikal Service's "no capacity on this date" code.
const baikalDateUnavailable = 2201

// Baikal quotes shipments through the Baikal Service v2 API. Bearer token
// auth, GET terminal search, "cost"/"delivery" response fields.
type BaikalService struct {
    cfg      config.CarrierConfig
    client   *upstream.Client
    sessions *session.Manager
    resolver *geo.Resolver
    now      func() time.Time
}

func NewBaikal(cfg config.CarrierConfig, client *upstream.Client, sessions *session.Manager, gc *geo.Geocoder) *BaikalService {
    b := &BaikalService{
        cfg:      cfg,
        client:   client,
        sessions: sessions,
        resolver: &geo.Resolver{Directory: geo.NewDirectory(), Geocoder: gc},
        now:      time.Now,
    }
    b.resolver.Directory.Add("москва", geo.Pickup, geo.Terminal{ID: "77-01", Title: "Байкал Сервис Котляково", City: "Москва"})
    b.resolver.Directory.Add("москва", geo.Dropoff, geo.Terminal{ID: "77-02", Title: "Байкал Сервис Видное", City: "Москва"})
    sessions.Register(string(Baikal), cfg.SessionTTL.Std(), b.login)
    return b
}

func (b *BaikalService) Name() Name { return Baikal }

func (b *BaikalService) login(ctx context.Context) (string, time.Duration, error) {
    ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    payload, _ := json.Marshal(map[string]string{"login": b.cfg.Login, "password": b.cfg.APIKey})
    resp, err := b.client.PostJSON(ctx, b.cfg.BaseURL+"/v2/auth", payload, nil)
    if err != nil {
        metrics.UpstreamCalls.WithLabelValues("baikal", "login", "error").Inc()
        return "", 0, fmt.Errorf("вход в API Байкал Сервис не удался: %v", err)
    }
    if resp.Status < 200 || resp.Status >= 300 {
        metrics.UpstreamCalls.WithLabelValues("baikal", "login", "rejected").Inc()
        return "", 0, fmt.Errorf("вход в API Байкал Сервис отклонён (HTTP %d)", resp.Status)
    }
    var out struct {
        Token     string `json:"token"`
        ExpiresIn int    `json:"expiresIn"`
    }
    if err := json.Unmarshal(resp.Body, &out); err != nil || out.Token == "" {
        metrics.UpstreamCalls.WithLabelValues("baikal", "login", "rejected").Inc()
        return "", 0, fmt.Errorf("ответ API Байкал Сервис не содержит токен")
    }
    metrics.UpstreamCalls.WithLabelValues("baikal", "login", "ok").Inc()
    return out.Token, time.Duration(out.ExpiresIn) * time.Second, nil
}

// SearchTerminals implements geo.TerminalSearcher over GET /v2/terminals.
func (b *BaikalService) SearchTerminals(ctx context.Context, city string, dir geo.Direction) ([]geo.Terminal, error) {
    ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()
    sess, err := b.sessions.Get(ctx, "baikal")
    if err != nil { return nil, err }
    q := url.Values{"city": {city}, "direction": {dir.String()}}
    resp, err := b.client.Get(ctx, b.cfg.BaseURL+"/v2/terminals?"+q.Encode(), map[string]string{"Authorization": "Bearer " + sess.Token})
    if err != nil {
        metrics.UpstreamCalls.WithLabelValues("baikal", "terminals", "error").Inc()
        return nil, err
    }
    if resp.Status != 200 {
        metrics.UpstreamCalls.WithLabelValues("baikal", "terminals", "rejected").Inc()
        return nil, fmt.Errorf("HTTP %d", resp.Status)
    }
    var out struct {
        Terminals []geo.Terminal `json:"terminals"`
    }
    if err := json.Unmarshal(resp.Body, &out); err != nil { return nil, err }
    metrics.UpstreamCalls.WithLabelValues("baikal", "terminals", "ok").Inc()
    return out.Terminals, nil
}

func (b *BaikalService) calcURL() string { return b.cfg.BaseURL + "/v2/calculation" }

func (b *BaikalService) Quote(ctx context.Context, req Request) Result {
    started := b.now()
    res := b.quote(ctx, req)
    outcome := "ok"
    if res.Error != "" { outcome = "error" }
    metrics.QuoteDuration.WithLabelValues("baikal", outcome).Observe(b.now().Sub(started).Seconds())
    return res
}

func (b *BaikalService) quote(ctx context.Context, req Request) Result {
    res := Result{Company: "Байкал Сервис"}

    from, err := b.resolver.Resolve(ctx, b, geo.Query{
        City: req.FromCity, Address: req.FromAddress, AddressDelivery: req.AddressPickup, Direction: geo.Pickup,
    })
    if err != nil {
        res.Error = fmt.Sprintf("отправление: %v (%s)", err, b.calcURL())
        return res
    }
    to, err := b.resolver.Resolve(ctx, b, geo.Query{
        City: req.ToCity, Address: req.ToAddress, AddressDelivery: req.AddressDelivery, Direction: geo.Dropoff,
    })
    if err != nil {
        res.Error = fmt.Sprintf("получение: %v (%s)", err, b.calcURL())
        return res
    }

    totals := Aggregate(req.Cargo)
    var lastPayload []byte
    sched := &quote.Scheduler{
        Sessions: managerSource{m: b.sessions, carrier: "baikal"},
        Price: func(ctx context.Context, token string, date time.Time) (int, []byte, error) {
            ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
            defer cancel()
            payload, _ := json.Marshal(map[string]any{
                "date":     date.Format("2006-01-02"),
                "from":     baikalLocationNode(from),
                "to":       baikalLocationNode(to),
                "positions": baikalPositions(req.Cargo),
                "weight":   totals.Weight,
                "volume":   totals.Volume,
                "oversize": totals.MaxDim,
                "insurance": req.Options.Insurance,
                "packaging": req.Options.Packaging,
                "express":   req.Options.Urgent,
            })
            lastPayload = payload
            resp, err := b.client.PostJSON(ctx, b.calcURL(), payload, map[string]string{"Authorization": "Bearer " + token})
            if err != nil {
                metrics.UpstreamCalls.WithLabelValues("baikal", "price", "error").Inc()
                return 0, nil, err
            }
            return resp.Status, resp.Body, nil
        },
        Classify: classifyBaikal,
    }

    out, err := sched.Run(ctx, b.now())
    res.RequestData = lastPayload
    if err != nil {
        res.Error = fmt.Sprintf("%v (%s)", err, b.calcURL())
        return res
    }
    metrics.UpstreamCalls.WithLabelValues("baikal", "price", "ok").Inc()
    norm := quote.Normalize(out.Body, "cost", "delivery")
    res.Price = norm.Price
    res.Days = norm.TransitDays
    res.Details = "дата отгрузки " + out.Date.Format("2006-01-02")
    res.ResponseData = out.Body
    return res
}

func baikalLocationNode(l geo.Location) map[string]any {
    if l.IsTerminal() {
        return map[string]any{"terminal": l.Terminal.ID}
    }
    return map[string]any{"address": l.Address}
}

func baikalPositions(items []Item) []map[string]any {
    out := make([]map[string]any, 0, len(items))
    for _, it := range items {
        q := it.Quantity
        if q <= 0 { q = 1 }
        out = append(out, map[string]any{
            "length": it.Length, "width": it.Width, "height": it.Height,
            "weight": it.Weight, "count": q,
        })
    }
    return out
}

type baikalError struct {
    Code    int    `json:"code"`
    Message string `json:"message"`
}

func classifyBaikal(status int, body []byte, err error) (quote.Outcome, string) {
    if err != nil {
        return quote.Fatal, fmt.Sprintf("сбой запроса к API Байкал Сервис: %v", err)
    }
    if status == 401 || status == 403 {
        return quote.AuthError, fmt.Sprintf("токен отклонён (HTTP %d)", status)
    }
    var be baikalError
    _ = json.Unmarshal(body, &be)
    if status == 400 && mentionsAuth(be.Message) {
        return quote.AuthError, be.Message
    }
    if be.Code == baikalDateUnavailable {
        msg := be.Message
        if msg == "" { msg = "дата отгрузки недоступна" }
        return quote.DateUnavailable, msg
    }
    if status >= 200 && status < 300 && be.Code == 0 {
        return quote.Success, ""
    }
    msg := be.Message
    if msg == "" { msg = fmt.Sprintf("API Байкал Сервис вернул HTTP %d", status) }
    return quote.Fatal, msg
}
