package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/theinhumaneme/hikari/internal/notifier"
)

var upgrader = websocket.Upgrader{
	// Agents dial from any host; the AdminAPI has no browser-facing session
	// to protect against cross-origin hijacking.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS upgrades to a WebSocket and relays Notifier events for the
// target named by ?client=&environment=&solution= as text frames, per
// spec.md §6.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	client, environment, solution := q.Get("client"), q.Get("environment"), q.Get("solution")
	if client == "" || environment == "" || solution == "" {
		jsonErr(w, http.StatusBadRequest, "client, environment, and solution are all required")
		return
	}
	target := notifier.Target(client, environment, solution)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := s.Notifier.Subscribe(target)
	defer s.Notifier.Unsubscribe(target, events)

	// Drain inbound control frames (ping/pong, close) on their own goroutine
	// so the connection notices the peer disconnecting.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(event)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
