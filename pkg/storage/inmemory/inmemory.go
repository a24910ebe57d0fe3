package inmemory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
	"github.com/chrysalislabs/chrysalis/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps. Used by tests and as
// the ephemeral backend when no database path is configured.
type Driver struct {
	// mu serializes writes so the read-merge-write in Put is atomic per call
	mu sync.RWMutex

	// docs maps document id to the merged CRDT state
	docs map[string]*memory.Document

	// embeddings maps text hash to the content-addressed embedding record
	embeddings map[string]*memory.EmbeddingDocument
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		docs:       make(map[string]*memory.Document),
		embeddings: make(map[string]*memory.EmbeddingDocument),
	}
}

// Put merges the incoming document into any existing state under the same id
// and stores the result.
func (s *Driver) Put(_ context.Context, doc *memory.Document) (*memory.Document, error) {
	if doc == nil {
		return nil, errors.New("cannot store nil document")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := doc
	if existing, ok := s.docs[doc.ID]; ok {
		stored = existing.Merge(doc)
	} else {
		stored = doc.Clone()
	}

	s.docs[doc.ID] = stored
	return stored.Clone(), nil
}

// Get retrieves a document by its id.
func (s *Driver) Get(_ context.Context, id string) (*memory.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return doc.Clone(), nil
}

// All returns every document, newest first.
func (s *Driver) All(_ context.Context) ([]*memory.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot(func(*memory.Document) bool { return true }), nil
}

// Count returns the number of stored documents.
func (s *Driver) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// QueryByType returns documents of the given type, newest first.
func (s *Driver) QueryByType(_ context.Context, typ memory.Type) ([]*memory.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot(func(d *memory.Document) bool { return d.Type == typ }), nil
}

// QueryByTag returns documents currently carrying the tag, newest first.
func (s *Driver) QueryByTag(_ context.Context, tag string) ([]*memory.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot(func(d *memory.Document) bool { return d.Tags.Contains(tag) }), nil
}

// QueryByImportance returns documents with importance >= min, most important
// first.
func (s *Driver) QueryByImportance(_ context.Context, min float64) ([]*memory.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.snapshot(func(d *memory.Document) bool { return d.Importance.Value >= min })
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Importance.Value > docs[j].Importance.Value
	})
	return docs, nil
}

// Recent returns up to limit documents, newest first.
func (s *Driver) Recent(_ context.Context, limit int) ([]*memory.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.snapshot(func(*memory.Document) bool { return true })
	if limit >= 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs, nil
}

// PutEmbedding stores an embedding record keyed by text hash. A second record
// with the same hash is a no-op.
func (s *Driver) PutEmbedding(_ context.Context, emb *memory.EmbeddingDocument) error {
	if emb == nil {
		return errors.New("cannot store nil embedding")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.embeddings[emb.TextHash]; ok {
		return nil
	}

	s.embeddings[emb.TextHash] = emb
	return nil
}

// GetEmbeddingByHash retrieves an embedding by its text hash.
func (s *Driver) GetEmbeddingByHash(_ context.Context, textHash string) (*memory.EmbeddingDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emb, ok := s.embeddings[textHash]
	if !ok {
		return nil, storage.NotFoundError{ID: textHash}
	}

	return emb, nil
}

// PendingSync returns up to batch documents still pending sync, oldest update
// first.
func (s *Driver) PendingSync(_ context.Context, batch int) ([]*memory.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.snapshot(func(d *memory.Document) bool { return d.SyncStatus == memory.StatusPending })

	// snapshot sorts newest first; pending delivery wants the starved end
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	if batch >= 0 && batch < len(docs) {
		docs = docs[:batch]
	}
	return docs, nil
}

// MarkSynced flips the referenced documents to synced and returns how many
// actually changed. A document updated since its snapshot was pushed keeps
// its pending status.
func (s *Driver) MarkSynced(_ context.Context, refs []storage.PushedRef) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flipped := 0
	for _, ref := range refs {
		doc, ok := s.docs[ref.ID]
		if !ok || doc.SyncStatus == memory.StatusSynced || doc.UpdatedAt != ref.UpdatedAt {
			continue
		}
		doc.SyncStatus = memory.StatusSynced
		flipped++
	}
	return flipped, nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}

// snapshot clones every document passing the filter, sorted newest first with
// id as the tiebreaker for a stable order. Callers must hold at least mu.RLock.
func (s *Driver) snapshot(keep func(*memory.Document) bool) []*memory.Document {
	docs := make([]*memory.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if keep(doc) {
			docs = append(docs, doc.Clone())
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UpdatedAt != docs[j].UpdatedAt {
			return docs[i].UpdatedAt > docs[j].UpdatedAt
		}
		return strings.Compare(docs[i].ID, docs[j].ID) < 0
	})
	return docs
}
