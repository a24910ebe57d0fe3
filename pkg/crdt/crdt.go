// Package crdt implements the conflict-free replicated data types the memory
// store is built from: grow-only sets, observed-remove sets, last-writer-wins
// registers, grow-only counters, and vector clocks.
//
// Every type forms a join-semilattice: Merge is commutative, associative, and
// idempotent, so replicas that exchange state in any order, with duplicates or
// partial delivery, converge to the same value. All operations are total:
// nothing here returns an error or panics on unexpected input, which is what
// makes convergence hold under unreliable delivery.
package crdt

// Mergeable is the capability every primitive implements. Merge returns the
// least upper bound of the receiver and other; it never mutates either input.
type Mergeable[T any] interface {
	Merge(other T) T
}

// Every primitive satisfies Mergeable over itself.
var (
	_ Mergeable[VectorClock]         = VectorClock{}
	_ Mergeable[GSet[string]]        = GSet[string]{}
	_ Mergeable[ORSet[string]]       = ORSet[string]{}
	_ Mergeable[LWWRegister[string]] = LWWRegister[string]{}
	_ Mergeable[LWWNumericRegister]  = LWWNumericRegister{}
	_ Mergeable[GCounter]            = GCounter{}
)

// Ordering is the causal relationship between two vector clocks.
type Ordering int

const (
	// OrderingEqual means both clocks have identical entries.
	OrderingEqual Ordering = iota

	// OrderingBefore means the receiver causally precedes the other clock.
	OrderingBefore

	// OrderingAfter means the receiver causally follows the other clock.
	OrderingAfter

	// OrderingConcurrent means neither clock dominates the other.
	OrderingConcurrent
)

func (o Ordering) String() string {
	switch o {
	case OrderingEqual:
		return "equal"
	case OrderingBefore:
		return "before"
	case OrderingAfter:
		return "after"
	case OrderingConcurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}
