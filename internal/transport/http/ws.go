package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"progress-engine/internal/app"
	"progress-engine/internal/domain"
	"progress-engine/internal/leaderboard"
)

// FeedHandler streams leaderboard snapshots over a websocket: the current
// standings on connect, then a fresh snapshot after every point award.
type FeedHandler struct {
	engine   *app.Engine
	hub      *leaderboard.Hub
	upgrader websocket.Upgrader
}

func NewFeedHandler(engine *app.Engine, hub *leaderboard.Hub) *FeedHandler {
	return &FeedHandler{
		engine: engine,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type feedMessage struct {
	Type    string             `json:"type"`
	Payload domain.Leaderboard `json:"payload"`
}

// ServeWS upgrades the request and pushes leaderboard updates until the
// client disconnects.
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	initial, err := h.engine.GetLeaderboard(r.Context(), 0)
	if err != nil {
		log.Printf("ws initial snapshot: %v", err)
		return
	}
	if err := conn.WriteJSON(feedMessage{Type: "leaderboard", Payload: initial}); err != nil {
		return
	}

	updates, cancel := h.hub.Subscribe()
	defer cancel()

	// Reader only detects disconnects; the feed is one-way.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(feedMessage{Type: "leaderboard", Payload: update}); err != nil {
				return
			}
		case <-readerDone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
