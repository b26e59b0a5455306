// Package dispatch pushes best-effort notices to connected driver
// sessions over websocket. Drivers that miss a notice still see the
// request on their next poll.
package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/taxi-dispatch/internal/models"
)

// RequestNotice is the payload sent when a new pickup request appears.
type RequestNotice struct {
	RequestID string       `json:"request_id"`
	Origin    models.Coord `json:"origin"`
	CreatedAt string       `json:"created_at"`
}

// WSSession is one connected driver terminal.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(n RequestNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(n)
}

// WSRegistry holds driver sessions keyed by driver id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{sessions: make(map[string]*WSSession), logger: logger}
}

func (r *WSRegistry) Add(driverID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[driverID]; ok {
		_ = old.conn.Close()
	}
	r.sessions[driverID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(driverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, driverID)
}

// NotifyNewRequest fans the notice out to every connected session. Send
// failures drop the session; the driver reconnects or falls back to
// polling.
func (r *WSRegistry) NotifyNewRequest(req models.Request) {
	n := RequestNotice{RequestID: req.ID, Origin: req.Origin, CreatedAt: req.CreatedAt.Format(time.RFC3339)}
	r.mu.RLock()
	sessions := make(map[string]*WSSession, len(r.sessions))
	for id, s := range r.sessions {
		sessions[id] = s
	}
	r.mu.RUnlock()
	for id, s := range sessions {
		if err := s.Send(n); err != nil {
			r.logger.Warn("ws send failed, dropping session", "driver_id", id, "error", err)
			r.Remove(id)
		}
	}
}
