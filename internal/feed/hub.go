package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yeonjoon13/Flight-State-Relay/internal/logging"
)

const (
	writeWait = 5 * time.Second
	queueSize = 16
)

// Hub fans cycle reports out to websocket clients. Publish only queues;
// Run does the writes, so slow clients never hold up the publisher.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	queue    chan any

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  logger,
		queue:   make(chan any, queueSize),
		clients: make(map[*websocket.Conn]bool),
	}
}

// Publish queues v for broadcast. When the queue is full v is dropped.
func (h *Hub) Publish(v any) bool {
	select {
	case h.queue <- v:
		return true
	default:
		h.logger.Warn("feed queue full, dropping event")
		return false
	}
}

// Run broadcasts queued events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-h.queue:
			h.Broadcast(v)
		}
	}
}

// ServeHTTP upgrades the request and holds the connection until the client
// goes away. Clients only receive; anything they send is discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.logger.Info("feed client connected", "remote", conn.RemoteAddr().String())

	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.drop(conn)
			h.logger.Info("feed client disconnected", "remote", conn.RemoteAddr().String())
			return
		}
	}
}

// Broadcast sends v as a JSON text frame to every client, dropping clients
// whose write fails.
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("feed marshal", logging.Err(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Warn("feed write failed", logging.Err(err))
			client.Close()
			delete(h.clients, client)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if h.clients[conn] {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
