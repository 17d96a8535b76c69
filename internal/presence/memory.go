package presence

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryStore keeps last-seen timestamps in process memory.
type MemoryStore struct {
	clock clockwork.Clock
	mu    sync.RWMutex
	seen  map[string]time.Time
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{clock: clock, seen: make(map[string]time.Time)}
}

func (s *MemoryStore) TouchOnline(_ context.Context, username string) error {
	s.touch(username)
	return nil
}

func (s *MemoryStore) TouchOffline(_ context.Context, username string) error {
	s.touch(username)
	return nil
}

func (s *MemoryStore) touch(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[username] = s.clock.Now()
}

func (s *MemoryStore) LastSeen(_ context.Context, username string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.seen[username]
	return ts, ok, nil
}
