package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/racecore/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The feed is read-only and carries no credentials.
	CheckOrigin: func(*http.Request) bool { return true },
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	if s.ClientCount() >= s.config.MaxClients {
		s.logger.Warn("Maximum clients reached, rejecting connection",
			log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, s.config.SendBuffer),
		remote: conn.RemoteAddr().String(),
	}

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientCount.Add(1)
	s.clientsMu.Unlock()

	s.logger.Info("Client connected",
		log.String("remote_addr", c.remote),
		log.Int64("total_clients", s.clientCount.Load()))

	go s.writePump(c)
	s.readPump(c)
}

// readPump discards client frames; it only exists to notice disconnects.
func (s *Server) readPump(c *client) {
	defer s.remove(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.logger.Debug("Write failed", log.String("remote_addr", c.remote), log.Error(err))
			s.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(s.config.WriteTimeout))
}

func (s *Server) remove(c *client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.removeLocked(c)
}

// removeLocked closes c's queue once; the write pump then closes the socket.
func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	s.clientCount.Add(-1)

	s.logger.Info("Client disconnected",
		log.String("remote_addr", c.remote),
		log.Int64("total_clients", s.clientCount.Load()))
}

func (s *Server) dropAll() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		s.removeLocked(c)
	}
}
