package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WSHandler fans the global simulation stream out to WebSocket clients
type WSHandler struct {
	eventBus providers.EventBus
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(eventBus providers.EventBus) *WSHandler {
	return &WSHandler{
		eventBus: eventBus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin enforcement happens in the CORS middleware
				return true
			},
		},
	}
}

// StreamUpdates handles GET /ws
func (h *WSHandler) StreamUpdates(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket connection: %v", err)
		return
	}
	defer conn.Close()

	eventChan, err := h.eventBus.Subscribe(r.Context(), providers.EventChannelSimUpdates)
	if err != nil {
		log.Printf("Failed to subscribe to channel %s: %v", providers.EventChannelSimUpdates, err)
		return
	}

	// Drain client frames so ping/pong and close handling work
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("Failed to write websocket event: %v", err)
				return
			}
		}
	}
}
