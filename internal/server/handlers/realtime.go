package handlers

import (
	"net/http"

	"github.com/hooktide/hooktide/internal/realtime"
)

// RealtimeHandler exposes the WebSocket feed and its discovery endpoint.
type RealtimeHandler struct {
	hub *realtime.Hub
}

func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// HandleWebSocket handles GET /api/realtime.
func (h *RealtimeHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.HandleWebSocket(w, r)
}

// Info handles GET /api/websocket/info.
func (h *RealtimeHandler) Info(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.hub.Info("/api/realtime"))
}
