// Package websocket carries the realtime boundary: telemetry
// snapshots arrive from connected feeders and advisories fan out to
// every connected client.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/mp-director/internal/advisory"
	"github.com/yegors/mp-director/internal/tracker"
	"github.com/yegors/mp-director/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 16
)

// Message is the envelope for everything crossing the socket
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SnapshotHandler receives parsed telemetry snapshots
type SnapshotHandler func(tracker.Snapshot)

// Server accepts websocket connections, feeds inbound snapshots to
// the handler and broadcasts outbound messages to every client
type Server struct {
	upgrader   websocket.Upgrader
	onSnapshot SnapshotHandler
	logger     *logger.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a websocket server. The snapshot handler may be
// nil when the socket is outbound-only.
func NewServer(onSnapshot SnapshotHandler, log *logger.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		onSnapshot: onSnapshot,
		logger:     log.Named("websocket"),
		clients:    make(map[*client]struct{}),
	}
}

// HandleWS upgrades an HTTP request and runs the connection until it
// closes
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", logger.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.register(c)
	s.logger.Info("Client connected", logger.String("remote", conn.RemoteAddr().String()))

	go s.writePump(c)
	s.readPump(c)
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// readPump parses inbound messages until the connection drops
func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister(c)
		c.conn.Close()
		s.logger.Info("Client disconnected", logger.String("remote", c.conn.RemoteAddr().String()))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Unexpected close", logger.Error(err))
			}
			return
		}
		s.handleMessage(raw)
	}
}

func (s *Server) handleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Warn("Malformed message", logger.Error(err))
		return
	}

	switch msg.Type {
	case "snapshot":
		if s.onSnapshot == nil {
			return
		}
		var snap tracker.Snapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			s.logger.Warn("Malformed snapshot", logger.Error(err))
			return
		}
		if snap.Time.IsZero() {
			snap.Time = time.Now().UTC()
		}
		s.onSnapshot(snap)
	default:
		s.logger.Debug("Ignoring message", logger.String("type", msg.Type))
	}
}

// writePump drains the client's send queue and keeps the connection
// alive with pings
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast sends a typed message to every connected client. Clients
// with a full send queue are skipped, never blocked on.
func (s *Server) Broadcast(msgType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	raw, err := json.Marshal(Message{Type: msgType, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- raw:
		default:
			s.logger.Warn("Dropping message for slow client")
		}
	}
	return nil
}

// Deliver broadcasts advisories to all clients. It reports an error
// when nobody is connected so the engine can log the missed delivery.
func (s *Server) Deliver(_ context.Context, advisories []*advisory.Advisory) error {
	if s.ClientCount() == 0 {
		return fmt.Errorf("no clients connected, %d advisories dropped", len(advisories))
	}
	return s.Broadcast("advisories", advisories)
}
