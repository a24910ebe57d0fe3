// Package storage defines the durable keyed store for memory documents.
//
// Every write is a read-merge-write: Put loads any existing document with the
// same id, CRDT-merges the incoming state into it, and persists the result.
// The merge itself never fails; only IO can, and IO failures surface as
// retryable StorageError values.
package storage

import (
	"context"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
)

// PushedRef identifies one pushed document snapshot: the id plus the
// UpdatedAt it carried when it left for the gateway. MarkSynced uses the pair
// to skip documents that were mutated again after the snapshot was taken.
type PushedRef struct {
	ID        string
	UpdatedAt int64
}

// Driver persists memory documents and embeddings for one replica.
//
// Implementations must make Put atomic per document id (transaction or lock)
// so two concurrent local writers never lose an update, and must keep
// MarkSynced idempotent so a retried sync cycle cannot double-count.
type Driver interface {
	// Put merges the document into any existing same-id state and persists
	// the result, updating secondary indices. Returns the stored document.
	Put(ctx context.Context, doc *memory.Document) (*memory.Document, error)

	// Get retrieves a document by id. Returns NotFoundError when absent.
	Get(ctx context.Context, id string) (*memory.Document, error)

	// All returns every document, newest first.
	All(ctx context.Context) ([]*memory.Document, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// QueryByType returns documents of the given type, newest first.
	QueryByType(ctx context.Context, typ memory.Type) ([]*memory.Document, error)

	// QueryByTag returns documents currently carrying the tag, newest first.
	QueryByTag(ctx context.Context, tag string) ([]*memory.Document, error)

	// QueryByImportance returns documents with importance >= min, most
	// important first.
	QueryByImportance(ctx context.Context, min float64) ([]*memory.Document, error)

	// Recent returns up to limit documents, newest first.
	Recent(ctx context.Context, limit int) ([]*memory.Document, error)

	// PutEmbedding stores a content-addressed embedding record. Storing the
	// same text hash twice keeps a single record.
	PutEmbedding(ctx context.Context, emb *memory.EmbeddingDocument) error

	// GetEmbeddingByHash retrieves an embedding by its text hash.
	GetEmbeddingByHash(ctx context.Context, textHash string) (*memory.EmbeddingDocument, error)

	// PendingSync returns up to batch documents still owed to the gateway,
	// oldest update first so no document starves.
	PendingSync(ctx context.Context, batch int) ([]*memory.Document, error)

	// MarkSynced flips the referenced documents to synced. Refs that are
	// already synced, unknown, or whose document has been updated since the
	// snapshot was pushed are skipped, so a write landing mid-push stays
	// pending for the next cycle. Returns the count of flipped documents.
	MarkSynced(ctx context.Context, refs []PushedRef) (int, error)

	// Close releases the driver's resources.
	Close() error
}
