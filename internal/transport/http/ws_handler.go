package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS streams leaderboard snapshots to the client: one on connect, then
// one whenever a finished quiz lands a new score.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	initial, err := h.service.Leaderboard(r.Context(), "")
	if err != nil {
		slog.Error("ws initial leaderboard", "error", err)
		return
	}
	if err := conn.WriteJSON(initial); err != nil {
		return
	}

	updates, cancel := h.hub.Subscribe()
	defer cancel()

	// Reader drains control frames and signals client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case lb, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(lb); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
