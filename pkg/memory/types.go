package memory

import "fmt"

// Type classifies a memory document. It is fixed at creation and never
// merged.
type Type string

const (
	TypeEpisodic   Type = "episodic"
	TypeSemantic   Type = "semantic"
	TypeProcedural Type = "procedural"
	TypeWorking    Type = "working"
)

// ParseType validates a memory type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeEpisodic, TypeSemantic, TypeProcedural, TypeWorking:
		return Type(s), nil
	default:
		return "", ValidationError{Field: "memory_type", Reason: fmt.Sprintf("unknown type %q", s)}
	}
}

// SyncStatus tracks whether the local replica still owes this document to the
// gateway. It is replica-local bookkeeping, not a CRDT field: it never travels
// on the wire and never participates in convergence.
type SyncStatus string

const (
	// StatusPending marks a document with local changes not yet pushed.
	StatusPending SyncStatus = "pending"

	// StatusSynced marks a document whose current state has been pushed.
	StatusSynced SyncStatus = "synced"
)

// ValidationError reports malformed input to a constructor or an API surface.
// It is raised synchronously; CRDT operations themselves never fail.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
