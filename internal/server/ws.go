package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/darpan/internal/broadcast"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// statsInterval is how often broadcaster stats are pushed to subscribers.
const statsInterval = time.Second

// StatsHandler pushes live broadcaster stats via WebSocket.
type StatsHandler struct {
	broadcast *broadcast.Server
	clients   map[*websocket.Conn]bool
	mu        sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewStatsHandler creates a new StatsHandler over the given broadcaster.
func NewStatsHandler(b *broadcast.Server) *StatsHandler {
	h := &StatsHandler{
		broadcast: b,
		clients:   make(map[*websocket.Conn]bool),
		done:      make(chan struct{}),
	}
	go h.push()
	return h
}

// Close stops the push goroutine and disconnects all subscribers.
func (h *StatsHandler) Close() {
	h.closeOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.mu.Unlock()
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// push sends stats to all connected clients once per interval.
func (h *StatsHandler) push() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		h.mu.RUnlock()

		msg, _ := json.Marshal(map[string]any{
			"stats":     h.broadcast.Stats(),
			"timestamp": time.Now().UnixMilli(),
		})

		h.mu.RLock()
		for conn := range h.clients {
			conn.WriteMessage(websocket.TextMessage, msg)
		}
		h.mu.RUnlock()
	}
}
