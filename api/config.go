// Package api provides an HTTP API server for storing, querying, and syncing
// the local memory replica.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:7761")
	ListenAddr string
}
