package identity

import (
	"context"
	"sort"
	"sync"
)

type memoryUser struct {
	password string
	friends  map[string]struct{}
}

// MemoryStore is an in-memory Store for tests and database-less runs.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*memoryUser
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*memoryUser)}
}

func (s *MemoryStore) Verify(_ context.Context, username, password string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	return ok && u.password == password, nil
}

func (s *MemoryStore) Create(_ context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return ErrUsernameTaken
	}
	s.users[username] = &memoryUser{password: password, friends: make(map[string]struct{})}
	return nil
}

func (s *MemoryStore) AddFriendPair(_ context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ua, ok := s.users[a]
	if !ok {
		return ErrUnknownUser
	}
	ub, ok := s.users[b]
	if !ok {
		return ErrUnknownUser
	}

	ua.friends[b] = struct{}{}
	ub.friends[a] = struct{}{}
	return nil
}

func (s *MemoryStore) FriendsOf(_ context.Context, username string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, ErrUnknownUser
	}

	friends := make([]string, 0, len(u.friends))
	for f := range u.friends {
		friends = append(friends, f)
	}
	sort.Strings(friends)
	return friends, nil
}
