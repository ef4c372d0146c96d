// Package monitor streams intercepted calls to websocket clients.
package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrohook/hook"
)

const writeTimeout = 250 * time.Millisecond

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Server is an HTTP handler that upgrades requests to websocket connections
// and sends every observed call event to all of them as JSON text message.
// Clients that can not keep up are disconnected.
type Server struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New returns a monitor server without clients.
func New(logger *log.Logger) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrading monitor connection failed", log.Err(err))
		return
	}

	c := &client{conn: conn}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Debug("Monitor client connected", log.String("remote", r.RemoteAddr))

	// clients only receive, reading detects the closed connection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Observe implements hook.Observer.
func (s *Server) Observe(event hook.Event) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	if len(clients) == 0 {
		return
	}

	msg, err := encode(event)
	if err != nil {
		s.logger.Error("Encoding monitor event failed", log.Err(err))
		return
	}

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			s.logger.Debug("Dropping monitor client", log.Err(err))
			s.drop(c)
		}
	}
}

// Close disconnects all clients.
func (s *Server) Close() error {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	var firstErr error
	for c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		err := c.conn.Close()
		c.mu.Unlock()
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

func (c *client) send(msg *websocket.PreparedMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WritePreparedMessage(msg)
}

func encode(event hook.Event) (*websocket.PreparedMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshalling event: %w", err)
	}
	msg, err := websocket.NewPreparedMessage(websocket.TextMessage, data)
	if err != nil {
		return nil, fmt.Errorf("preparing message: %w", err)
	}
	return msg, nil
}
