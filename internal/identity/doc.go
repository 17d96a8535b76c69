// Package identity stores user credentials and the symmetric friend graph.
//
// The router only depends on the Store interface; the memory implementation
// backs tests and single-binary runs, the postgres implementation backs
// production deployments.
package identity
