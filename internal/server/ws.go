package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const maxInboundMessage = 4096

func registerWSRoute(mux *http.ServeMux, hub *Hub) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("ws upgrade error", zap.Error(err))
			return
		}
		defer func() { _ = conn.Close() }()

		connectionEvent := ConnectionEvent{
			Event:     newEvent("connection", time.Now().UTC()),
			Connected: true,
		}
		payload, err := json.Marshal(connectionEvent)
		if err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, payload)
		}

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		done := make(chan struct{})
		go readCloseRequests(conn, hub, done)

		for {
			select {
			case <-done:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	})
}

// readCloseRequests forwards close requests until the connection drops.
func readCloseRequests(conn *websocket.Conn, hub *Hub, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxInboundMessage)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req CloseRequest
		if err := json.Unmarshal(data, &req); err != nil {
			hub.log.Debug("ignoring malformed ws message", zap.Error(err))
			continue
		}
		if req.Type == "close" {
			hub.handleClose(req.SessionID)
		}
	}
}
