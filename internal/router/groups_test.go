package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupCreateRejectsDuplicates(t *testing.T) {
	g := newGroupTable()

	require.NoError(t, g.create("devs", []string{"alice", "bob"}))
	assert.ErrorIs(t, g.create("devs", []string{"carol"}), ErrGroupExists)

	// Membership of the original group is untouched.
	members, err := g.membersOf("devs")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, members)
}

func TestGroupMembershipSnapshotIsCopied(t *testing.T) {
	g := newGroupTable()
	initial := []string{"alice", "bob"}
	require.NoError(t, g.create("devs", initial))

	initial[0] = "mallory"

	members, err := g.membersOf("devs")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, members)
}

func TestGroupMembersOfUnknown(t *testing.T) {
	g := newGroupTable()
	_, err := g.membersOf("nope")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}
