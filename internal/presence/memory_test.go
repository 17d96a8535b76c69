package presence

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLastSeen(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := NewMemoryStore(clock)

	_, seen, err := store.LastSeen(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.TouchOnline(ctx, "alice"))
	onlineAt := clock.Now()

	ts, seen, err := store.LastSeen(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, onlineAt, ts)

	clock.Advance(5 * time.Minute)
	require.NoError(t, store.TouchOffline(ctx, "alice"))

	ts, seen, err = store.LastSeen(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, onlineAt.Add(5*time.Minute), ts)
}
