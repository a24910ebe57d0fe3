package eventstream

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chrysalislabs/chrysalis/pkg/memory"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryPersisted is emitted after a memory document is stored.
	EventTypeMemoryPersisted = "chrysalis.memory.persisted"
)

// MemoryPersistedEvent is a transport-neutral event payload describing one
// persisted (created or merged) memory document.
type MemoryPersistedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Memory        MemoryMeta  `json:"memory"`
}

// EventSource identifies the replica that persisted the memory.
type EventSource struct {
	Instance string `json:"instance"`
}

// MemoryMeta captures the queryable surface of the stored document. The full
// CRDT state stays in storage; consumers that need it fetch by id.
type MemoryMeta struct {
	ID          string   `json:"id"`
	Type        string   `json:"memory_type"`
	ContentHash string   `json:"content_hash"`
	Importance  float64  `json:"importance"`
	Tags        []string `json:"tags,omitempty"`
	Version     uint64   `json:"version"`
	UpdatedAt   int64    `json:"updated_at"`
}

// NewMemoryPersistedEvent builds the event for a stored document. Event ids
// are ULIDs so consumers can order events lexicographically.
func NewMemoryPersistedEvent(instance string, doc *memory.Document) *MemoryPersistedEvent {
	return &MemoryPersistedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMemoryPersisted,
		EventID:       ulid.Make().String(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			Instance: instance,
		},
		Memory: MemoryMeta{
			ID:          doc.ID,
			Type:        string(doc.Type),
			ContentHash: doc.ContentHash,
			Importance:  doc.Importance.Value,
			Tags:        doc.Tags.Elements(),
			Version:     doc.Version,
			UpdatedAt:   doc.UpdatedAt,
		},
	}
}
