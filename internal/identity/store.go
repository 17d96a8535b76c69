package identity

import (
	"context"
	"errors"
)

var (
	// ErrUsernameTaken is returned by Create for an already-registered name.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrUnknownUser is returned when an operation names a user that does not exist.
	ErrUnknownUser = errors.New("unknown user")
)

// Store is the identity collaborator: credentials plus the friend graph.
// AddFriendPair is symmetric and atomic; after it returns, both directions
// are visible or neither is.
type Store interface {
	Verify(ctx context.Context, username, password string) (bool, error)
	Create(ctx context.Context, username, password string) error
	AddFriendPair(ctx context.Context, a, b string) error
	FriendsOf(ctx context.Context, username string) ([]string, error)
}
