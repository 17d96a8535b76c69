// Package presence tracks when users were last seen online.
//
// The in-memory implementation is used for single-binary runs; the Redis
// implementation survives server restarts. Presence is advisory only and
// never participates in routing decisions.
package presence
