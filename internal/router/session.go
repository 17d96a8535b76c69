package router

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

// Session is one live connection, authenticated or not. The username is set
// by the router actor on successful login and cleared never: a superseded
// session keeps its name but loses its registry slot.
type Session struct {
	id     uuid.UUID
	writer *connWriter

	mu       sync.RWMutex
	username string
}

// NewSession wraps an upgraded connection with its writer goroutine.
func NewSession(conn *websocket.Conn, clock clockwork.Clock) *Session {
	return &Session{
		id:     uuid.New(),
		writer: newConnWriter(conn, clock),
	}
}

// ID returns the connection's correlation id.
func (s *Session) ID() uuid.UUID { return s.id }

// Username returns the authenticated name, or "" before login.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Session) setUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

// Send enqueues a frame for this session without blocking.
func (s *Session) Send(data []byte) error {
	return s.writer.trySend(data)
}

// Close tears down the writer and the underlying connection.
func (s *Session) Close() {
	s.writer.stop()
}
