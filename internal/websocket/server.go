package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/murpii/ddnet-discordbot/internal/shared/logging"
)

// Server exposes the lifecycle event feed at /feed. External tooling
// (the testing dashboard, release announcers) subscribes here.
type Server struct {
	addr string
	hub  *Hub
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{addr: addr, hub: hub}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.L().Warn("feed upgrade failed", "error", err)
		return
	}
	s.hub.Add(c)
	logging.L().Debug("feed subscriber connected", "subscribers", s.hub.Count())

	go func() {
		defer s.hub.Remove(c)
		for {
			// Drain and discard; the feed is one-way.
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", s.handleFeed)
	logging.L().Info("feed listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, mux)
}
