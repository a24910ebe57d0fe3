package crdt

// LWWRegister is a last-writer-wins register. The stored triple is replaced
// only by a write whose (timestamp, writer) pair dominates it; ties on the
// timestamp are broken by the lexicographically greater writer id, so two
// replicas merging in opposite directions pick the same winner.
type LWWRegister[T any] struct {
	Value     T      `json:"value"`
	Timestamp int64  `json:"timestamp"`
	Writer    string `json:"writer"`
}

// NewLWWRegister returns a register holding an initial value stamped with the
// given timestamp and writer.
func NewLWWRegister[T any](value T, ts int64, writer string) LWWRegister[T] {
	return LWWRegister[T]{Value: value, Timestamp: ts, Writer: writer}
}

// Set replaces the stored triple iff the incoming (ts, writer) dominates it.
// It reports whether the write was applied. A losing Set is a no-op, never an
// error.
func (r *LWWRegister[T]) Set(value T, ts int64, writer string) bool {
	if !dominates(ts, writer, r.Timestamp, r.Writer) {
		return false
	}
	r.Value = value
	r.Timestamp = ts
	r.Writer = writer
	return true
}

// Merge returns the dominating register. The choice is independent of the
// merge direction.
func (r LWWRegister[T]) Merge(other LWWRegister[T]) LWWRegister[T] {
	if dominates(other.Timestamp, other.Writer, r.Timestamp, r.Writer) {
		return other
	}
	return r
}

// dominates reports whether (ts, writer) strictly exceeds (thanTs, thanWriter).
func dominates(ts int64, writer string, thanTs int64, thanWriter string) bool {
	if ts != thanTs {
		return ts > thanTs
	}
	return writer > thanWriter
}

// LWWNumericRegister is an LWWRegister specialized for the numeric document
// fields (importance, confidence).
type LWWNumericRegister = LWWRegister[float64]

// NewLWWNumericRegister returns a numeric register holding an initial value.
func NewLWWNumericRegister(value float64, ts int64, writer string) LWWNumericRegister {
	return NewLWWRegister(value, ts, writer)
}
