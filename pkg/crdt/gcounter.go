package crdt

// GCounter is a grow-only counter: each replica increments its own entry and
// the counter's value is the sum across replicas. Merge takes the pointwise
// maximum per replica, so replaying a merge never double-counts. The zero
// value (nil) is a usable empty counter.
type GCounter map[string]uint64

// NewGCounter returns an empty counter.
func NewGCounter() GCounter {
	return GCounter{}
}

// Increment adds n to the replica's entry.
func (c *GCounter) Increment(replica string, n uint64) {
	if *c == nil {
		*c = GCounter{}
	}
	(*c)[replica] += n
}

// Value returns the sum across all replicas.
func (c GCounter) Value() uint64 {
	var total uint64
	for _, n := range c {
		total += n
	}
	return total
}

// Count returns the entry for a single replica.
func (c GCounter) Count(replica string) uint64 {
	return c[replica]
}

// Merge returns the pointwise maximum of both counters.
func (c GCounter) Merge(other GCounter) GCounter {
	merged := make(GCounter, len(c)+len(other))
	for replica, n := range c {
		merged[replica] = n
	}
	for replica, n := range other {
		if n > merged[replica] {
			merged[replica] = n
		}
	}
	return merged
}

// Clone returns an independent copy of the counter.
func (c GCounter) Clone() GCounter {
	cloned := make(GCounter, len(c))
	for replica, n := range c {
		cloned[replica] = n
	}
	return cloned
}
