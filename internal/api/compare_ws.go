package api

import (
    "encoding/json"
    "net/http"
    "sync"
    "time"

    "github.com/gorilla/websocket"

    "freightgw/internal/carrier"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
    Type    string          `json:"type"`
    Payload json.RawMessage `json:"payload,omitempty"`
}

// CompareWSHandler streams per-carrier results over a websocket as each
// adapter finishes, so the UI can render fast carriers without waiting for
// slow ones. Protocol: client sends one {"type":"compare","payload":request}
// frame; server replies with a "result" frame per carrier and a final
// "complete" frame.
func (s *Server) CompareWSHandler(w http.ResponseWriter, r *http.Request) {
    if !s.admit(w, r) { return }
    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        return
    }
    defer func() { _ = conn.Close() }()

    conn.SetReadLimit(1 << 20)
    _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
    conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

    // Serialize writes: adapter goroutines finish in any order.
    var writeMu sync.Mutex
    write := func(v any) error {
        writeMu.Lock()
        defer writeMu.Unlock()
        return conn.WriteJSON(v)
    }

    var msg wsMessage
    if err := conn.ReadJSON(&msg); err != nil {
        return
    }
    if msg.Type != "compare" {
        _ = write(wsMessage{Type: "error", Payload: []byte(`{"message":"expected compare frame"}`)})
        return
    }
    started := time.Now()
    requestID := newRequestID()
    var req QuoteRequest
    if err := json.Unmarshal(msg.Payload, &req); err != nil {
        _ = write(wsMessage{Type: "error", Payload: []byte(`{"message":"invalid payload"}`)})
        return
    }
    if err := validateQuoteRequest(&req, false); err != nil {
        payload, _ := json.Marshal(map[string]string{"message": err.Error()})
        _ = write(wsMessage{Type: "error", Payload: payload})
        return
    }

    var wg sync.WaitGroup
    for _, name := range carrier.Supported() {
        adapter, ok := s.Adapters.Lookup(string(name))
        if !ok { continue }
        wg.Add(1)
        go func(a carrier.Adapter) {
            defer wg.Done()
            res := a.Quote(r.Context(), req.carrierRequest())
            s.record(r.Context(), requestID, req, res)
            payload, _ := json.Marshal(s.publicResponse(res, requestID, started))
            _ = write(wsMessage{Type: "result", Payload: payload})
        }(adapter)
    }
    wg.Wait()
    meta, _ := json.Marshal(newMetadata(requestID, started))
    _ = write(wsMessage{Type: "complete", Payload: meta})
}
