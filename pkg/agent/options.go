package agent

import "github.com/chrysalislabs/chrysalis/pkg/memory"

// learnOptions collects the optional attributes of a new memory.
type learnOptions struct {
	id         string
	typ        memory.Type
	importance *float64
	confidence *float64
	tags       []string
	related    []string
	evidence   []string
}

// Option customizes a Learn call.
type Option func(*learnOptions)

// WithID fixes the document id instead of minting a UUID. Used when the
// caller coordinates ids across replicas.
func WithID(id string) Option {
	return func(o *learnOptions) { o.id = id }
}

// WithType sets the memory type (defaults to episodic).
func WithType(typ memory.Type) Option {
	return func(o *learnOptions) { o.typ = typ }
}

// WithImportance sets the initial importance score.
func WithImportance(v float64) Option {
	return func(o *learnOptions) { o.importance = &v }
}

// WithConfidence sets the initial confidence score.
func WithConfidence(v float64) Option {
	return func(o *learnOptions) { o.confidence = &v }
}

// WithTags adds tags to the new memory.
func WithTags(tags ...string) Option {
	return func(o *learnOptions) { o.tags = append(o.tags, tags...) }
}

// WithRelated links related memory ids.
func WithRelated(ids ...string) Option {
	return func(o *learnOptions) { o.related = append(o.related, ids...) }
}

// WithEvidence attaches evidence references.
func WithEvidence(refs ...string) Option {
	return func(o *learnOptions) { o.evidence = append(o.evidence, refs...) }
}

// UpdateRequest describes a partial update to an existing memory. Nil fields
// are left untouched; slices apply their respective mutators.
type UpdateRequest struct {
	Content    *string
	Importance *float64
	Confidence *float64
	AddTags    []string
	RemoveTags []string
	Related    []string
	Evidence   []string
}

// RecallFilters narrows the candidate set before ranking. Zero values mean
// no filtering on that axis.
type RecallFilters struct {
	Type          memory.Type
	Tag           string
	MinImportance float64
}

// RecallResult is one ranked recall hit.
type RecallResult struct {
	Document *memory.Document
	Score    float64
}
