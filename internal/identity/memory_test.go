package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOnlyFirstSucceeds(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, "alice", "pw1"))
	assert.ErrorIs(t, store.Create(ctx, "alice", "pw2"), ErrUsernameTaken)
	assert.ErrorIs(t, store.Create(ctx, "alice", "pw1"), ErrUsernameTaken)

	// The original password still wins.
	ok, err := store.Verify(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, "alice", "secret"))

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"correct credentials", "alice", "secret", true},
		{"wrong password", "alice", "nope", false},
		{"unknown user", "ghost", "secret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := store.Verify(ctx, tt.username, tt.password)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestAddFriendPairIsSymmetric(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, "alice", "pw"))
	require.NoError(t, store.Create(ctx, "bob", "pw"))

	require.NoError(t, store.AddFriendPair(ctx, "alice", "bob"))

	friendsOfAlice, err := store.FriendsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, friendsOfAlice, "bob")

	friendsOfBob, err := store.FriendsOf(ctx, "bob")
	require.NoError(t, err)
	assert.Contains(t, friendsOfBob, "alice")
}

func TestAddFriendPairIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, "alice", "pw"))
	require.NoError(t, store.Create(ctx, "bob", "pw"))

	require.NoError(t, store.AddFriendPair(ctx, "alice", "bob"))
	require.NoError(t, store.AddFriendPair(ctx, "bob", "alice"))

	friends, err := store.FriendsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, friends)
}

func TestAddFriendPairUnknownTarget(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, "alice", "pw"))

	assert.ErrorIs(t, store.AddFriendPair(ctx, "alice", "ghost"), ErrUnknownUser)

	friends, err := store.FriendsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestFriendsOfUnknownUser(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.FriendsOf(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnknownUser)
}
