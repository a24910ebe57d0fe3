// Package vector provides the KNN index used to rank recall candidates.
// Entries point back at memory documents; the index holds only ids, content
// hashes and vectors, never the documents themselves.
package vector

import "context"

// Entry is one indexed memory embedding.
type Entry struct {
	// MemoryID is the id of the memory document this vector belongs to.
	MemoryID string

	// TextHash is the content hash of the text that was embedded.
	TextHash string

	// Embedding is the vector representation of the memory content.
	Embedding []float32
}

// QueryResult is a search hit with its similarity score.
type QueryResult struct {
	Entry

	// Score is the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and KNN retrieval of memory embeddings.
type Driver interface {
	// Add indexes entries. An entry with a known MemoryID replaces the
	// existing vector (the memory's content changed).
	Add(ctx context.Context, entries []Entry) error

	// Query finds the topK entries most similar to the given embedding.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves entries by their memory ids.
	Get(ctx context.Context, memoryIDs []string) ([]Entry, error)

	// Delete removes entries by their memory ids.
	Delete(ctx context.Context, memoryIDs []string) error

	// Close releases any resources held by the driver.
	Close() error
}
