package server

import "sync/atomic"

// connectionLimiter caps total concurrent connections per instance.
// Uses atomic operations for lock-free counting.
type connectionLimiter struct {
	current atomic.Int64
	max     int64
}

func newConnectionLimiter(max int64) *connectionLimiter {
	return &connectionLimiter{max: max}
}

// Acquire attempts to acquire a connection slot.
// Returns true if successful, false if at capacity.
func (l *connectionLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release releases a connection slot.
func (l *connectionLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the current number of connections.
func (l *connectionLimiter) Current() int64 {
	return l.current.Load()
}
