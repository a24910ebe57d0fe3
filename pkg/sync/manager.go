package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/storage"
)

const defaultBatchSize = 100

// Config is the configuration options for the sync manager.
type Config struct {
	// Storage is the local replica's store.
	Storage storage.Driver

	// Gateway is the remote peer to reconcile against.
	Gateway Gateway

	// InstanceID identifies this replica in logs.
	InstanceID string

	// BatchSize caps how many pending documents one cycle pushes
	// (defaults to 100).
	BatchSize int

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Manager runs the reconciliation loop for one replica.
type Manager struct {
	config *Config
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a sync manager. Storage and Gateway are required.
func NewManager(c *Config) (*Manager, error) {
	if c.Storage == nil {
		return nil, fmt.Errorf("storage driver is required")
	}
	if c.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}

	return &Manager{
		config: c,
		logger: c.Logger,
	}, nil
}

// Start spawns the background loop, running one push cycle every interval.
// Calling Start on a running manager is a no-op.
func (m *Manager) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(ctx, interval)

	m.logger.Info("sync manager started",
		zap.String("instance", m.config.InstanceID),
		zap.Duration("interval", interval),
	)
}

// Stop cancels the background loop and waits for the in-flight cycle to
// finish. Safe to call on a stopped manager.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		return
	}

	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil

	m.logger.Info("sync manager stopped",
		zap.String("instance", m.config.InstanceID),
	)
}

func (m *Manager) loop(ctx context.Context, interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A failed cycle leaves documents pending; the next tick is
			// the retry.
			if _, err := m.Sync(ctx); err != nil {
				m.logger.Warn("sync cycle failed",
					zap.String("instance", m.config.InstanceID),
					zap.Error(err),
				)
			}
		}
	}
}

// Sync runs one push cycle: load pending documents, push them to the gateway,
// then mark them synced. Returns how many documents were confirmed pushed.
// Documents are marked only after the push succeeds, so a crash or
// cancellation in between re-pushes them later; the remote merge absorbs the
// duplicate.
func (m *Manager) Sync(ctx context.Context) (int, error) {
	pending, err := m.config.Storage.PendingSync(ctx, m.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("loading pending documents: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if err := m.config.Gateway.Push(ctx, pending); err != nil {
		return 0, fmt.Errorf("pushing %d documents: %w", len(pending), err)
	}

	// MarkSynced matches on the pushed snapshot's updated_at, so a local
	// write that lands while the push is in flight keeps its document
	// pending and drains on the next cycle.
	refs := make([]storage.PushedRef, len(pending))
	for i, doc := range pending {
		refs[i] = storage.PushedRef{ID: doc.ID, UpdatedAt: doc.UpdatedAt}
	}

	flipped, err := m.config.Storage.MarkSynced(ctx, refs)
	if err != nil {
		return 0, fmt.Errorf("marking %d documents synced: %w", len(refs), err)
	}

	m.logger.Debug("sync cycle pushed documents",
		zap.String("instance", m.config.InstanceID),
		zap.Int("pushed", len(pending)),
		zap.Int("marked", flipped),
	)

	return len(pending), nil
}

// Pull fetches remote snapshots and merges each into local storage. New
// documents are inserted; known ones are CRDT-merged, so pulling the same
// snapshot twice converges to the same state. Returns how many documents
// were applied.
func (m *Manager) Pull(ctx context.Context, query string, k int) (int, error) {
	docs, err := m.config.Gateway.Pull(ctx, query, k)
	if err != nil {
		return 0, fmt.Errorf("pulling documents: %w", err)
	}

	applied := 0
	for _, doc := range docs {
		if doc == nil {
			continue
		}

		// Remote state is by definition already at the gateway. Marking it
		// synced before the merge keeps a pure pull from feeding the next
		// push cycle; only local divergence leaves the result pending.
		incoming := doc.Clone()
		incoming.SyncStatus = memory.StatusSynced

		if _, err := m.config.Storage.Put(ctx, incoming); err != nil {
			return applied, fmt.Errorf("merging pulled document %s: %w", doc.ID, err)
		}
		applied++
	}

	m.logger.Debug("pull applied documents",
		zap.String("instance", m.config.InstanceID),
		zap.Int("applied", applied),
	)

	return applied, nil
}
