package presence

import (
	"context"
	"time"
)

// Store abstracts last-seen tracking.
type Store interface {
	// TouchOnline records that username is connected right now.
	TouchOnline(ctx context.Context, username string) error
	// TouchOffline records the moment username disconnected.
	TouchOffline(ctx context.Context, username string) error
	// LastSeen returns the most recent online/offline timestamp for username.
	// The second return is false if the user has never been seen.
	LastSeen(ctx context.Context, username string) (time.Time, bool, error)
}
