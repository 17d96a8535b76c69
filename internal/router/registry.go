package router

// registry maps authenticated usernames to their single live session.
// Owned by the router actor goroutine; not safe for concurrent use.
type registry struct {
	sessions map[string]*Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*Session)}
}

// bind stores sess as the session for username and returns the superseded
// session, if any. The caller is responsible for closing the old channel.
func (r *registry) bind(username string, sess *Session) *Session {
	old := r.sessions[username]
	if old == sess {
		return nil
	}
	r.sessions[username] = sess
	return old
}

// lookup returns the session for username, or nil.
func (r *registry) lookup(username string) *Session {
	return r.sessions[username]
}

// remove drops username only if it still maps to sess, so a late teardown of
// a superseded connection never evicts its successor. Returns true if removed.
// Removing an absent username is a no-op.
func (r *registry) remove(username string, sess *Session) bool {
	if r.sessions[username] != sess {
		return false
	}
	delete(r.sessions, username)
	return true
}

// snapshot returns the current sessions as a fixed slice. Fan-out iterates
// the snapshot, so entries added or removed mid-delivery are not visible.
func (r *registry) snapshot() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *registry) size() int {
	return len(r.sessions)
}
