package client

import "time"

const (
	backoffMin = 1 * time.Second
	backoffMax = 30 * time.Second
)

// Backoff is the reconnect delay schedule: doubling from one second up to
// thirty, reset to the minimum after a successful session.
type Backoff struct {
	cur time.Duration
}

func NewBackoff() Backoff {
	return Backoff{cur: backoffMin}
}

// Next returns the delay before the next attempt and doubles the stored
// delay, capped at the maximum.
func (b *Backoff) Next() time.Duration {
	d := b.cur
	b.cur *= 2
	if b.cur > backoffMax {
		b.cur = backoffMax
	}
	return d
}

// Reset returns the schedule to the minimum delay.
func (b *Backoff) Reset() {
	b.cur = backoffMin
}
