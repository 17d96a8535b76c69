// Package router implements the session registry, group table, and the
// message-routing engine.
//
// A single actor goroutine owns the registry and group table; callers reach
// it through a command channel (no mutexes around the maps). Identity-store
// and presence I/O happens in the calling session's goroutine so the actor
// never blocks on the network. Each connection has its own write goroutine
// with a bounded queue; a dead or slow target is removed mid-fan-out without
// aborting delivery to the remaining targets.
package router
