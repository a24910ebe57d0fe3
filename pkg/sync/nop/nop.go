// Package nop provides a gateway that accepts pushes and returns empty
// pulls. It backs explicit discard mode and tests that need a reachable but
// inert remote.
package nop

import (
	"context"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
)

// Gateway discards pushes and pulls nothing.
type Gateway struct{}

// NewGateway creates a no-op gateway.
func NewGateway() *Gateway {
	return &Gateway{}
}

// Push accepts and discards the documents.
func (g *Gateway) Push(_ context.Context, _ []*memory.Document) error {
	return nil
}

// Pull returns no documents.
func (g *Gateway) Pull(_ context.Context, _ string, _ int) ([]*memory.Document, error) {
	return nil, nil
}
