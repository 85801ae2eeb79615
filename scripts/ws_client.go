// Package main runs a demo WebSocket client against the compare stream.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/freight/compare/ws"}
	hdr := http.Header{}
	hdr.Set("X-Api-Key", "demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	req := map[string]any{
		"fromCity": "Москва",
		"toCity":   "Санкт-Петербург",
		"cargo": []map[string]any{
			{"length": 100, "width": 50, "height": 50, "weight": 10, "quantity": 2},
		},
	}
	payload, _ := json.Marshal(req)
	if err := c.WriteJSON(wsMessage{Type: "compare", Payload: payload}); err != nil {
		log.Fatal(err)
	}

	deadline := time.Now().Add(90 * time.Second)
	_ = c.SetReadDeadline(deadline)
	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			log.Printf("read: %v", err)
			return
		}
		log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		if m.Type == "complete" || m.Type == "error" {
			return
		}
	}
}
