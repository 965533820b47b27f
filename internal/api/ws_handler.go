package api

import (
	"log"
	"net/http"

	gorilla "github.com/gorilla/websocket"
	"github.com/smartinbox/backend/internal/auth"
	ws "github.com/smartinbox/backend/internal/websocket"
)

// WebSocketHandler upgrades connections and registers them with the hub so
// clients receive sync-completed events.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader gorilla.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handle authenticates via the token query parameter (browsers cannot set
// headers on WebSocket connections), upgrades, and keeps the connection
// registered until the client disconnects.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userID, err := auth.ValidateToken(token)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocketHandler: Upgrade failed: %v", err)
		return
	}

	client := h.hub.Register(userID, conn)
	if client == nil {
		return
	}
	defer h.hub.Unregister(userID, client)

	// Drain client frames until the connection closes; the server only pushes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
