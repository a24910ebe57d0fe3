// Package ws provides the websocket gateway client. Requests and responses
// are JSON frames over one connection to the hub; the connection is dialed
// lazily and re-dialed after a transport failure.
package ws

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/sync"
)

// Frame is a single websocket message. Type is "push" or "pull" on the way
// out; "ack", "documents" or "error" on the way back.
type Frame struct {
	Type      string             `json:"type"`
	Instance  string             `json:"instance,omitempty"`
	Query     string             `json:"query,omitempty"`
	K         int                `json:"k,omitempty"`
	Documents []*memory.Document `json:"documents,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Config holds configuration for the websocket gateway.
type Config struct {
	// URL is the gateway endpoint, e.g. "ws://hub.example.com:7654/sync".
	URL string

	// InstanceID identifies this replica to the hub.
	InstanceID string

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Gateway implements sync.Gateway over a websocket connection.
type Gateway struct {
	config *Config
	logger *zap.Logger

	// mu serializes frame exchanges; the hub answers frames in order
	mu   gosync.Mutex
	conn *websocket.Conn
}

// NewGateway creates a websocket gateway. The connection is not dialed until
// the first push or pull.
func NewGateway(c *Config) (*Gateway, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("gateway URL is required")
	}

	return &Gateway{
		config: c,
		logger: c.Logger,
	}, nil
}

// Push delivers document snapshots to the hub and waits for the ack.
func (g *Gateway) Push(ctx context.Context, docs []*memory.Document) error {
	if len(docs) == 0 {
		return nil
	}

	resp, err := g.roundTrip(ctx, Frame{
		Type:      "push",
		Instance:  g.config.InstanceID,
		Documents: docs,
	})
	if err != nil {
		return sync.TransportError{Op: "push", Err: err}
	}
	if resp.Type == "error" {
		return sync.TransportError{Op: "push", Err: fmt.Errorf("gateway rejected push: %s", resp.Error)}
	}

	g.logger.Debug("pushed documents",
		zap.Int("count", len(docs)),
	)
	return nil
}

// Pull fetches remote document snapshots matching the query.
func (g *Gateway) Pull(ctx context.Context, query string, k int) ([]*memory.Document, error) {
	resp, err := g.roundTrip(ctx, Frame{
		Type:     "pull",
		Instance: g.config.InstanceID,
		Query:    query,
		K:        k,
	})
	if err != nil {
		return nil, sync.TransportError{Op: "pull", Err: err}
	}
	if resp.Type == "error" {
		return nil, sync.TransportError{Op: "pull", Err: fmt.Errorf("gateway rejected pull: %s", resp.Error)}
	}

	g.logger.Debug("pulled documents",
		zap.Int("count", len(resp.Documents)),
	)
	return resp.Documents, nil
}

// Close tears down the connection if one is open.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}

// roundTrip sends one frame and reads one response. Any failure drops the
// connection so the next call re-dials.
func (g *Gateway) roundTrip(ctx context.Context, out Frame) (*Frame, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.dial(ctx); err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = g.conn.SetWriteDeadline(deadline)
		_ = g.conn.SetReadDeadline(deadline)
	}

	if err := g.conn.WriteJSON(out); err != nil {
		g.drop()
		return nil, fmt.Errorf("writing %s frame: %w", out.Type, err)
	}

	var in Frame
	if err := g.conn.ReadJSON(&in); err != nil {
		g.drop()
		return nil, fmt.Errorf("reading response to %s: %w", out.Type, err)
	}
	return &in, nil
}

// dial connects lazily. Callers must hold mu.
func (g *Gateway) dial(ctx context.Context) error {
	if g.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", g.config.URL, err)
	}

	g.conn = conn
	g.logger.Info("connected to sync gateway",
		zap.String("url", g.config.URL),
	)
	return nil
}

// drop discards a connection after a transport error. Callers must hold mu.
func (g *Gateway) drop() {
	if g.conn != nil {
		_ = g.conn.Close()
		g.conn = nil
	}
}
