// Package sync reconciles a local replica with a remote gateway. A background
// loop pushes pending documents and a pull path merges remote snapshots into
// local storage. Push and pull are independent: either side can run alone and
// the CRDT merge makes both safe to repeat.
package sync

import (
	"context"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
)

// Gateway is the remote peer a replica reconciles against. Documents cross as
// full snapshots; the remote side merges them, so a duplicate push is a no-op.
type Gateway interface {
	// Push delivers local document snapshots to the remote replica.
	Push(ctx context.Context, docs []*memory.Document) error

	// Pull fetches remote document snapshots matching the query. An empty
	// query asks for whatever the gateway considers relevant, up to k.
	Pull(ctx context.Context, query string, k int) ([]*memory.Document, error)
}

// TransportError wraps a gateway transport failure. The sync cycle that hit
// it is abandoned and retried on the next tick.
type TransportError struct {
	Op  string
	Err error
}

func (e TransportError) Error() string {
	return "sync transport: " + e.Op + ": " + e.Err.Error()
}

func (e TransportError) Unwrap() error {
	return e.Err
}
