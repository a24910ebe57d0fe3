package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"

	"github.com/google/uuid"
)

// HashContent returns the hex-encoded SHA-256 of the content. Embeddings are
// addressed by this hash: identical content always maps to the same record.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// EmbeddingDocument is an immutable, content-addressed embedding record.
// Identical content and model always produce an identical record, so there is
// no merge logic; replicas exchanging embeddings simply keep one copy per
// text hash.
type EmbeddingDocument struct {
	ID         string    `json:"id"`
	TextHash   string    `json:"text_hash"`
	Vector     []float32 `json:"vector"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	CreatedAt  int64     `json:"created_at"`
}

// NewEmbeddingDocument builds an embedding record for the given content.
func NewEmbeddingDocument(content string, vector []float32, model string) *EmbeddingDocument {
	return &EmbeddingDocument{
		ID:         uuid.NewString(),
		TextHash:   HashContent(content),
		Vector:     vector,
		Dimensions: len(vector),
		Model:      model,
		CreatedAt:  time.Now().UnixNano(),
	}
}

// CosineSimilarity returns the cosine similarity between the stored vector
// and other, or 0 when the dimensions differ or either vector is zero.
func (e *EmbeddingDocument) CosineSimilarity(other []float32) float64 {
	if len(e.Vector) != len(other) || len(other) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i, a := range e.Vector {
		b := other[i]
		dot += float64(a) * float64(b)
		normA += float64(a) * float64(a)
		normB += float64(b) * float64(b)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
