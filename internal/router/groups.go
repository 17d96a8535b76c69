package router

import "errors"

var (
	// ErrGroupExists is returned when creating a group whose name is taken.
	// Duplicate creation rejects instead of overwriting the membership.
	ErrGroupExists = errors.New("group already exists")
	// ErrGroupNotFound is returned when routing to an unknown group.
	ErrGroupNotFound = errors.New("group not found")
)

// groupTable maps group names to their member sets. Membership is fixed at
// creation. Owned by the router actor goroutine; not safe for concurrent use.
type groupTable struct {
	groups map[string][]string
}

func newGroupTable() *groupTable {
	return &groupTable{groups: make(map[string][]string)}
}

// create registers a new group with the given membership snapshot.
func (g *groupTable) create(name string, members []string) error {
	if _, exists := g.groups[name]; exists {
		return ErrGroupExists
	}
	g.groups[name] = append([]string(nil), members...)
	return nil
}

// membersOf returns the membership of name, or ErrGroupNotFound.
func (g *groupTable) membersOf(name string) ([]string, error) {
	members, exists := g.groups[name]
	if !exists {
		return nil, ErrGroupNotFound
	}
	return members, nil
}
