// Package dispatch pushes live tracking updates to websocket subscribers.
// Connections are grouped per service request; a request may have several
// subscribers (phone plus web session).
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the hub needs, split out so tests
// can subscribe fakes.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type session struct {
	conn Conn
	mu   sync.Mutex
}

func (s *session) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// Hub holds subscriber sessions keyed by request ID.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int64][]*session
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subs: make(map[int64][]*session), logger: logger}
}

func (h *Hub) Subscribe(requestID int64, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[requestID] = append(h.subs[requestID], &session{conn: conn})
}

func (h *Hub) Unsubscribe(requestID int64, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(requestID, conn)
}

func (h *Hub) removeLocked(requestID int64, conn Conn) {
	sessions := h.subs[requestID]
	for i, s := range sessions {
		if s.conn == conn {
			h.subs[requestID] = append(sessions[:i], sessions[i+1:]...)
			break
		}
	}
	if len(h.subs[requestID]) == 0 {
		delete(h.subs, requestID)
	}
}

// Broadcast sends v to every subscriber of the request, dropping sessions
// whose writes fail.
func (h *Hub) Broadcast(requestID int64, v interface{}) {
	h.mu.RLock()
	sessions := append([]*session(nil), h.subs[requestID]...)
	h.mu.RUnlock()

	var dead []Conn
	for _, s := range sessions {
		if err := s.send(v); err != nil {
			if h.logger != nil {
				h.logger.Warn("ws send failed", "request_id", requestID, "error", err)
			}
			dead = append(dead, s.conn)
		}
	}
	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			h.removeLocked(requestID, c)
		}
		h.mu.Unlock()
	}
}

// CloseRequest closes and drops every subscriber of the request. Called when
// the mechanic arrives and the tracking channel ends.
func (h *Hub) CloseRequest(requestID int64) {
	h.mu.Lock()
	sessions := h.subs[requestID]
	delete(h.subs, requestID)
	h.mu.Unlock()
	for _, s := range sessions {
		_ = s.conn.Close()
	}
}

// SubscriberCount reports the live sessions for a request.
func (h *Hub) SubscriberCount(requestID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[requestID])
}

// ensure *websocket.Conn satisfies Conn
var _ Conn = (*websocket.Conn)(nil)
