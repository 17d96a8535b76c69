// Package server exposes the WebSocket chat endpoint and the observability
// routes over an Echo HTTP server.
//
// The /ws handler owns the per-connection session loop: it authenticates
// frames through the router, enforces the inbound rate limit, and guarantees
// exactly one teardown per connection.
package server
