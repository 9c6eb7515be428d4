package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Ops surface is bound to localhost by default
	},
}

// clientBuffer caps queued events per connection; slow consumers drop
// events rather than stalling the publisher.
const clientBuffer = 64

// writeWait bounds a single frame write
const writeWait = 10 * time.Second

// WebSocketHandler streams the internal event bus (run progress, dedup
// sweeps, compliance changes) to connected operators.
type WebSocketHandler struct {
	events interfaces.EventService
	logger arbor.ILogger

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan models.Event

	// serverInstanceID lets clients detect a restart and resync
	serverInstanceID string
	unsubscribe      func()
}

func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		events:           events,
		logger:           logger,
		clients:          make(map[*websocket.Conn]chan models.Event),
		serverInstanceID: uuid.New().String(),
	}

	h.unsubscribe = events.SubscribeAll(h.broadcast)
	return h
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	queue := make(chan models.Event, clientBuffer)

	h.mu.Lock()
	h.clients[conn] = queue
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().
		Str("remote", r.RemoteAddr).
		Int("clients", count).
		Msg("WebSocket client connected")

	// Greeting carries the instance ID so clients can detect restarts
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteJSON(map[string]string{
		"type":               "connected",
		"server_instance_id": h.serverInstanceID,
	})

	go h.writeLoop(conn, queue)
	h.readLoop(conn)
}

// broadcast fans one event out to all connected clients. Full client
// queues drop the event; the stream is best-effort.
func (h *WebSocketHandler) broadcast(ctx context.Context, event models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn, queue := range h.clients {
		select {
		case queue <- event:
		default:
			h.logger.Debug().
				Str("event_type", string(event.Type)).
				Str("remote", conn.RemoteAddr().String()).
				Msg("Client queue full, event dropped")
		}
	}
}

func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, queue chan models.Event) {
	for event := range queue {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(event); err != nil {
			h.remove(conn)
			return
		}
	}
}

// readLoop drains client frames so pings are answered and closes are seen.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) remove(conn *websocket.Conn) {
	h.mu.Lock()
	queue, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(queue)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		conn.Close()
		h.logger.Info().Int("clients", count).Msg("WebSocket client disconnected")
	}
}

// Close unsubscribes from the bus and drops all clients.
func (h *WebSocketHandler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, queue := range h.clients {
		delete(h.clients, conn)
		close(queue)
		conn.Close()
	}
}
