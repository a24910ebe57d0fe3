// Package memory defines the replicated memory document: a composite of CRDT
// fields that any two replicas can merge deterministically, plus the immutable
// embedding record that accompanies it.
//
// A document is created by exactly one replica and mutated locally by any
// replica holding a copy. Mutators stamp the calling replica and the current
// wall clock into the matching CRDT field; Merge combines every field
// independently, so documents that have observed the same set of updates are
// identical everywhere regardless of delivery order.
package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/chrysalislabs/chrysalis/pkg/crdt"
)

const defaultScore = 0.5

// Document is a single replicated memory entry.
type Document struct {
	// ID and Type are fixed at creation and identical on every replica.
	ID   string `json:"id"`
	Type Type   `json:"memory_type"`

	Content     crdt.LWWRegister[string] `json:"content"`
	ContentHash string                   `json:"content_hash"`

	Tags     crdt.ORSet[string] `json:"tags"`
	Related  crdt.GSet[string]  `json:"related"`
	Evidence crdt.GSet[string]  `json:"evidence"`

	Importance crdt.LWWNumericRegister `json:"importance"`
	Confidence crdt.LWWNumericRegister `json:"confidence"`

	AccessCount  crdt.GCounter           `json:"access_count"`
	LastAccessed crdt.LWWRegister[int64] `json:"last_accessed"`

	// EmbeddingRef points at a content-addressed embedding record by text
	// hash. Empty when no embedding has been computed.
	EmbeddingRef crdt.LWWRegister[string] `json:"embedding_ref"`

	Clock crdt.VectorClock `json:"vector_clock"`

	SourceInstance string `json:"source_instance"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`

	// Version counts local mutations only. It is advisory and never consulted
	// for conflict resolution, which is what the per-field registers are for.
	Version uint64 `json:"version"`

	// SyncStatus is replica-local and excluded from convergence.
	SyncStatus SyncStatus `json:"sync_status"`
}

// NewDocument creates a document owned by the given replica. An empty id is
// replaced with a fresh UUID; an empty instance id is a validation error
// because tags and registers need a writer identity.
func NewDocument(id, content string, typ Type, instance string) (*Document, error) {
	if instance == "" {
		return nil, ValidationError{Field: "source_instance", Reason: "must not be empty"}
	}
	if _, err := ParseType(string(typ)); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UnixNano()
	doc := &Document{
		ID:             id,
		Type:           typ,
		Content:        crdt.NewLWWRegister(content, now, instance),
		ContentHash:    HashContent(content),
		Tags:           crdt.NewORSet[string](instance),
		Related:        crdt.NewGSet[string](),
		Evidence:       crdt.NewGSet[string](),
		Importance:     crdt.NewLWWNumericRegister(defaultScore, now, instance),
		Confidence:     crdt.NewLWWNumericRegister(defaultScore, now, instance),
		AccessCount:    crdt.NewGCounter(),
		LastAccessed:   crdt.NewLWWRegister[int64](0, 0, ""),
		EmbeddingRef:   crdt.NewLWWRegister("", now, instance),
		Clock:          crdt.NewVectorClock(),
		SourceInstance: instance,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
		SyncStatus:     StatusPending,
	}
	doc.Clock.Tick(instance)
	return doc, nil
}

// SetContent writes new content stamped with the current time and the calling
// replica, and refreshes the content hash when the write wins.
func (d *Document) SetContent(content, writer string) {
	now := time.Now().UnixNano()
	if d.Content.Set(content, now, writer) {
		d.ContentHash = HashContent(content)
	}
	d.touch(writer, now)
}

// SetImportance writes the importance score.
func (d *Document) SetImportance(value float64, writer string) {
	now := time.Now().UnixNano()
	d.Importance.Set(value, now, writer)
	d.touch(writer, now)
}

// SetConfidence writes the confidence score.
func (d *Document) SetConfidence(value float64, writer string) {
	now := time.Now().UnixNano()
	d.Confidence.Set(value, now, writer)
	d.touch(writer, now)
}

// SetEmbeddingRef records the text hash of the document's embedding.
func (d *Document) SetEmbeddingRef(textHash, writer string) {
	now := time.Now().UnixNano()
	d.EmbeddingRef.Set(textHash, now, writer)
	d.touch(writer, now)
}

// AddTag adds a tag and returns the minted add-tag so the caller can target
// this specific add with RemoveTag semantics later.
func (d *Document) AddTag(tag string) crdt.Tag {
	t := d.Tags.Add(tag)
	d.touch(t.Replica, time.Now().UnixNano())
	return t
}

// RemoveTag removes every currently observed add of the tag. Adds this
// replica has not observed survive a later merge.
func (d *Document) RemoveTag(tag, writer string) {
	d.Tags.RemoveAll(tag)
	d.touch(writer, time.Now().UnixNano())
}

// AddRelated links another memory id. Links only accumulate.
func (d *Document) AddRelated(id, writer string) {
	d.Related.Add(id)
	d.touch(writer, time.Now().UnixNano())
}

// AddEvidence attaches an evidence reference. Evidence only accumulates.
func (d *Document) AddEvidence(ref, writer string) {
	d.Evidence.Add(ref)
	d.touch(writer, time.Now().UnixNano())
}

// RecordAccess bumps the access counter for the calling replica and stamps
// the last-accessed register. Downstream promotion heuristics consume both;
// this package only keeps them convergent.
func (d *Document) RecordAccess(writer string) {
	now := time.Now().UnixNano()
	d.AccessCount.Increment(writer, 1)
	d.LastAccessed.Set(now, now, writer)
	d.touch(writer, now)
}

// touch records a local mutation: tick the vector clock, bump the advisory
// version, advance updated_at, and mark the document pending for sync.
func (d *Document) touch(writer string, now int64) {
	d.Clock.Tick(writer)
	d.Version++
	if now > d.UpdatedAt {
		d.UpdatedAt = now
	}
	d.SyncStatus = StatusPending
}

// Merge combines two replicas' states of the same document field by field and
// returns the result. It never fails: every field merge is commutative,
// associative, and idempotent, so any interleaving of merges converges.
func (d *Document) Merge(other *Document) *Document {
	if other == nil {
		return d.Clone()
	}

	merged := &Document{
		ID:             d.ID,
		Type:           d.Type,
		Content:        d.Content.Merge(other.Content),
		Tags:           d.Tags.Merge(other.Tags),
		Related:        d.Related.Merge(other.Related),
		Evidence:       d.Evidence.Merge(other.Evidence),
		Importance:     d.Importance.Merge(other.Importance),
		Confidence:     d.Confidence.Merge(other.Confidence),
		AccessCount:    d.AccessCount.Merge(other.AccessCount),
		LastAccessed:   d.LastAccessed.Merge(other.LastAccessed),
		EmbeddingRef:   d.EmbeddingRef.Merge(other.EmbeddingRef),
		Clock:          d.Clock.Merge(other.Clock),
		SourceInstance: d.SourceInstance,
		CreatedAt:      min(d.CreatedAt, other.CreatedAt),
		Version:        max(d.Version, other.Version),
		SyncStatus:     StatusSynced,
	}
	if merged.SourceInstance == "" {
		merged.SourceInstance = other.SourceInstance
	}
	merged.ContentHash = HashContent(merged.Content.Value)

	// updated_at is derived: the max timestamp across constituent registers
	// and both sides' previous values.
	merged.UpdatedAt = maxInt64(
		d.UpdatedAt,
		other.UpdatedAt,
		merged.Content.Timestamp,
		merged.Importance.Timestamp,
		merged.Confidence.Timestamp,
		merged.LastAccessed.Timestamp,
		merged.EmbeddingRef.Timestamp,
	)

	// A merge that changed nothing on a synced replica stays synced; any
	// pending side leaves the result pending.
	if d.SyncStatus == StatusPending || other.SyncStatus == StatusPending {
		merged.SyncStatus = StatusPending
	}
	return merged
}

// Clone returns a deep copy. CRDT map fields are copied via their Merge with
// an empty value, which allocates fresh state.
func (d *Document) Clone() *Document {
	cloned := *d
	cloned.Tags = d.Tags.Merge(crdt.ORSet[string]{})
	cloned.Related = d.Related.Merge(crdt.GSet[string]{})
	cloned.Evidence = d.Evidence.Merge(crdt.GSet[string]{})
	cloned.AccessCount = d.AccessCount.Clone()
	cloned.Clock = d.Clock.Clone()
	return &cloned
}

func maxInt64(vals ...int64) int64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
