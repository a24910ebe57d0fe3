// Package agent provides the high-level memory API an agent instance uses:
// learn new memories, recall relevant ones, update and access them, and keep
// the replica reconciled with its gateway in the background.
//
// The facade composes the storage driver with optional collaborators: an
// embedder and vector index for semantic recall, an event publisher for
// persistence telemetry, and the sync manager. Only storage is required;
// everything else degrades gracefully when absent.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/embeddings"
	"github.com/chrysalislabs/chrysalis/pkg/eventstream"
	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/storage"
	"github.com/chrysalislabs/chrysalis/pkg/sync"
	"github.com/chrysalislabs/chrysalis/pkg/vector"
)

const defaultSyncInterval = 30 * time.Second

// Config is the configuration options for the agent memory facade.
type Config struct {
	// Storage is the local replica's store (required).
	Storage storage.Driver

	// InstanceID is this replica's identity; it stamps every CRDT write
	// (required).
	InstanceID string

	// Sync is the optional reconciliation manager. Nil means local-only.
	Sync *sync.Manager

	// SyncInterval is the background cycle period (defaults to 30s).
	SyncInterval time.Duration

	// Embedder generates optional text embeddings for semantic recall.
	Embedder embeddings.Embedder

	// Vector is the optional KNN index over memory embeddings.
	// A configured Vector requires a configured Embedder.
	Vector vector.Driver

	// Publisher receives a memory.persisted event after each successful
	// store. Nil disables telemetry.
	Publisher eventstream.Publisher

	// PromotionThreshold is the access count at which a working memory is
	// eligible for promotion. Carried for policy layers above this one.
	PromotionThreshold uint64

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// AgentMemory is one agent instance's view of the replicated memory store.
type AgentMemory struct {
	config *Config
	logger *zap.Logger
}

// NewAgentMemory creates the facade. Storage and InstanceID are required.
func NewAgentMemory(c *Config) (*AgentMemory, error) {
	if c.Storage == nil {
		return nil, fmt.Errorf("storage driver is required")
	}
	if c.InstanceID == "" {
		return nil, fmt.Errorf("instance id is required")
	}
	if c.Vector != nil && c.Embedder == nil {
		return nil, fmt.Errorf("a vector index requires an embedder")
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = defaultSyncInterval
	}

	return &AgentMemory{
		config: c,
		logger: c.Logger,
	}, nil
}

// Start launches the background sync loop if a sync manager is configured.
func (a *AgentMemory) Start() {
	if a.config.Sync != nil {
		a.config.Sync.Start(a.config.SyncInterval)
	}
}

// Stop halts the background sync loop. Drivers and collaborators are owned
// by the caller and stay open.
func (a *AgentMemory) Stop() {
	if a.config.Sync != nil {
		a.config.Sync.Stop()
	}
}

// Learn stores a new memory and returns the persisted document.
func (a *AgentMemory) Learn(ctx context.Context, content string, opts ...Option) (*memory.Document, error) {
	options := learnOptions{typ: memory.TypeEpisodic}
	for _, opt := range opts {
		opt(&options)
	}

	doc, err := memory.NewDocument(options.id, content, options.typ, a.config.InstanceID)
	if err != nil {
		return nil, err
	}

	if options.importance != nil {
		doc.SetImportance(*options.importance, a.config.InstanceID)
	}
	if options.confidence != nil {
		doc.SetConfidence(*options.confidence, a.config.InstanceID)
	}
	for _, tag := range options.tags {
		doc.AddTag(tag)
	}
	for _, id := range options.related {
		doc.AddRelated(id, a.config.InstanceID)
	}
	for _, ref := range options.evidence {
		doc.AddEvidence(ref, a.config.InstanceID)
	}

	a.embed(ctx, doc, content)

	stored, err := a.config.Storage.Put(ctx, doc)
	if err != nil {
		return nil, err
	}

	a.publish(ctx, stored)

	a.logger.Info("learned memory",
		zap.String("id", stored.ID),
		zap.String("type", string(stored.Type)),
	)

	return stored, nil
}

// Get retrieves a memory by id.
func (a *AgentMemory) Get(ctx context.Context, id string) (*memory.Document, error) {
	return a.config.Storage.Get(ctx, id)
}

// Update applies a partial update to an existing memory and persists it.
func (a *AgentMemory) Update(ctx context.Context, id string, req UpdateRequest) (*memory.Document, error) {
	doc, err := a.config.Storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Content != nil {
		doc.SetContent(*req.Content, a.config.InstanceID)
		a.embed(ctx, doc, *req.Content)
	}
	if req.Importance != nil {
		doc.SetImportance(*req.Importance, a.config.InstanceID)
	}
	if req.Confidence != nil {
		doc.SetConfidence(*req.Confidence, a.config.InstanceID)
	}
	for _, tag := range req.AddTags {
		doc.AddTag(tag)
	}
	for _, tag := range req.RemoveTags {
		doc.RemoveTag(tag, a.config.InstanceID)
	}
	for _, rid := range req.Related {
		doc.AddRelated(rid, a.config.InstanceID)
	}
	for _, ref := range req.Evidence {
		doc.AddEvidence(ref, a.config.InstanceID)
	}

	stored, err := a.config.Storage.Put(ctx, doc)
	if err != nil {
		return nil, err
	}

	a.publish(ctx, stored)
	return stored, nil
}

// RecordAccess bumps the access bookkeeping for a memory.
func (a *AgentMemory) RecordAccess(ctx context.Context, id string) (*memory.Document, error) {
	doc, err := a.config.Storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc.RecordAccess(a.config.InstanceID)

	stored, err := a.config.Storage.Put(ctx, doc)
	if err != nil {
		return nil, err
	}

	a.publish(ctx, stored)
	return stored, nil
}

// QueryByType returns memories of the given type, newest first.
func (a *AgentMemory) QueryByType(ctx context.Context, typ memory.Type) ([]*memory.Document, error) {
	return a.config.Storage.QueryByType(ctx, typ)
}

// QueryByTag returns memories carrying the given tag, newest first.
func (a *AgentMemory) QueryByTag(ctx context.Context, tag string) ([]*memory.Document, error) {
	return a.config.Storage.QueryByTag(ctx, tag)
}

// QueryByImportance returns memories at or above the importance floor.
func (a *AgentMemory) QueryByImportance(ctx context.Context, min float64) ([]*memory.Document, error) {
	return a.config.Storage.QueryByImportance(ctx, min)
}

// Recent returns up to limit memories, newest first.
func (a *AgentMemory) Recent(ctx context.Context, limit int) ([]*memory.Document, error) {
	return a.config.Storage.Recent(ctx, limit)
}

// Count returns the number of stored memories.
func (a *AgentMemory) Count(ctx context.Context) (int, error) {
	return a.config.Storage.Count(ctx)
}

// Stats summarizes the replica's stored memories.
type Stats struct {
	Total    int                       `json:"total_memories"`
	ByType   map[memory.Type]int       `json:"by_type"`
	ByStatus map[memory.SyncStatus]int `json:"by_status"`
}

// Stats counts stored memories by type and by sync status.
func (a *AgentMemory) Stats(ctx context.Context) (*Stats, error) {
	docs, err := a.config.Storage.All(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Total:    len(docs),
		ByType:   make(map[memory.Type]int),
		ByStatus: make(map[memory.SyncStatus]int),
	}
	for _, doc := range docs {
		stats.ByType[doc.Type]++
		stats.ByStatus[doc.SyncStatus]++
	}
	return stats, nil
}

// SyncEnabled reports whether a sync manager is configured.
func (a *AgentMemory) SyncEnabled() bool {
	return a.config.Sync != nil
}

// SyncNow runs one push cycle immediately. Returns how many documents were
// pushed.
func (a *AgentMemory) SyncNow(ctx context.Context) (int, error) {
	if a.config.Sync == nil {
		return 0, fmt.Errorf("sync is not configured")
	}
	return a.config.Sync.Sync(ctx)
}

// Pull fetches remote memories matching the query and merges them locally.
func (a *AgentMemory) Pull(ctx context.Context, query string, k int) (int, error) {
	if a.config.Sync == nil {
		return 0, fmt.Errorf("sync is not configured")
	}
	return a.config.Sync.Pull(ctx, query, k)
}

// embed computes and records the document's embedding. Failures are logged
// and swallowed: a memory without a vector is still a memory.
func (a *AgentMemory) embed(ctx context.Context, doc *memory.Document, content string) {
	if a.config.Embedder == nil {
		return
	}

	vec, err := a.config.Embedder.Embed(ctx, content)
	if err != nil {
		a.logger.Warn("embedding failed, storing memory without vector",
			zap.String("id", doc.ID),
			zap.Error(err),
		)
		return
	}

	emb := memory.NewEmbeddingDocument(content, vec, "")
	if err := a.config.Storage.PutEmbedding(ctx, emb); err != nil {
		a.logger.Warn("storing embedding failed",
			zap.String("id", doc.ID),
			zap.Error(err),
		)
		return
	}
	doc.SetEmbeddingRef(emb.TextHash, a.config.InstanceID)

	if a.config.Vector != nil {
		entry := vector.Entry{
			MemoryID:  doc.ID,
			TextHash:  emb.TextHash,
			Embedding: vec,
		}
		if err := a.config.Vector.Add(ctx, []vector.Entry{entry}); err != nil {
			a.logger.Warn("indexing embedding failed",
				zap.String("id", doc.ID),
				zap.Error(err),
			)
		}
	}
}

// publish emits a memory.persisted event. Failures are logged, never fatal.
func (a *AgentMemory) publish(ctx context.Context, doc *memory.Document) {
	if a.config.Publisher == nil {
		return
	}

	event := eventstream.NewMemoryPersistedEvent(a.config.InstanceID, doc)
	if err := a.config.Publisher.PublishMemory(ctx, event); err != nil {
		a.logger.Warn("publishing memory event failed",
			zap.String("id", doc.ID),
			zap.Error(err),
		)
	}
}
