package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

const writeWait = 10 * time.Second

// Hub tracks connected feed subscribers. Subscribers only listen;
// anything they write is discarded. A subscriber whose write fails is
// dropped so a stuck client cannot pile up buffered events.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) Add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	_ = c.Close()
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.Lock()
	var dead []*websocket.Conn
	for c := range h.conns {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			logging.L().Warn("feed broadcast error, dropping subscriber", "error", err)
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		delete(h.conns, c)
	}
	h.mu.Unlock()

	for _, c := range dead {
		_ = c.Close()
	}
}
