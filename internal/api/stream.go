package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"heatbridge/internal/idgen"
	"heatbridge/internal/poller"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// streamClient is one connected WebSocket subscriber. The mutex serializes
// writes; gorilla connections allow only one concurrent writer.
type streamClient struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

func (c *streamClient) send(message []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// StreamHub fans poll updates out to WebSocket subscribers. Coordinators
// publish through Broadcast; every connected client receives every update.
type StreamHub struct {
	upgrader     websocket.Upgrader
	clients      map[string]*streamClient
	clientsMutex sync.RWMutex
	logger       *slog.Logger
}

// NewStreamHub creates an empty hub.
func NewStreamHub(logger *slog.Logger) *StreamHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Local bridge, clients are trusted LAN consumers.
				return true
			},
		},
		clients: make(map[string]*streamClient),
		logger:  logger.With("component", "stream"),
	}
}

// streamMessage is the wire format pushed to subscribers.
type streamMessage struct {
	Type     string           `json:"type"`
	DeviceID string           `json:"device_id"`
	Kind     string           `json:"kind"`
	Data     *poller.Snapshot `json:"data"`
}

// Broadcast sends a snapshot update to all connected clients. Safe to call
// from coordinator goroutines.
func (h *StreamHub) Broadcast(update poller.Update) {
	message, err := json.Marshal(streamMessage{
		Type:     "snapshot",
		DeviceID: update.DeviceID,
		Kind:     string(update.Kind),
		Data:     update.Snapshot,
	})
	if err != nil {
		h.logger.Error("Failed to encode stream message", "error", err)
		return
	}

	h.clientsMutex.RLock()
	clients := make(map[string]*streamClient, len(h.clients))
	for id, client := range h.clients {
		clients[id] = client
	}
	h.clientsMutex.RUnlock()

	for id, client := range clients {
		if err := client.send(message); err != nil {
			h.logger.Debug("Dropping stream client", "client_id", id, "error", err)
			h.removeClient(id)
		}
	}
}

// HandleStream upgrades the request to a WebSocket and registers the client
// GET /stream
func (h *StreamHub) HandleStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}

	clientID := idgen.New()
	client := &streamClient{conn: conn}

	h.clientsMutex.Lock()
	h.clients[clientID] = client
	h.clientsMutex.Unlock()

	h.logger.Info("Stream client connected", "client_id", clientID)

	// Subscribers only listen; the read loop exists to notice disconnects
	// and to service control frames.
	go func() {
		defer h.removeClient(clientID)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects every client, used during shutdown.
func (h *StreamHub) Close() {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	for id, client := range h.clients {
		client.conn.Close()
		delete(h.clients, id)
	}
}

func (h *StreamHub) removeClient(clientID string) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if client, ok := h.clients[clientID]; ok {
		client.conn.Close()
		delete(h.clients, clientID)
		h.logger.Info("Stream client disconnected", "client_id", clientID)
	}
}
