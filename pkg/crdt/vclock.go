package crdt

// VectorClock tracks causality as a map from replica id to a monotonically
// increasing counter. The zero value (nil) is a usable empty clock.
type VectorClock map[string]uint64

// NewVectorClock returns an empty clock.
func NewVectorClock() VectorClock {
	return VectorClock{}
}

// Tick increments the replica's entry and returns the new value. The ticked
// clock strictly dominates the clock before the tick.
func (vc *VectorClock) Tick(replica string) uint64 {
	if *vc == nil {
		*vc = VectorClock{}
	}
	(*vc)[replica]++
	return (*vc)[replica]
}

// Get returns the counter for a replica, zero if the replica has no entry.
func (vc VectorClock) Get(replica string) uint64 {
	return vc[replica]
}

// Merge returns the pointwise maximum of both clocks. The result dominates
// (or equals) both inputs.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	merged := make(VectorClock, len(vc)+len(other))
	for replica, n := range vc {
		merged[replica] = n
	}
	for replica, n := range other {
		if n > merged[replica] {
			merged[replica] = n
		}
	}
	return merged
}

// Compare reports the causal relationship between two clocks.
func (vc VectorClock) Compare(other VectorClock) Ordering {
	var less, greater bool

	for replica, n := range vc {
		o := other[replica]
		if n < o {
			less = true
		}
		if n > o {
			greater = true
		}
	}
	for replica, o := range other {
		if _, ok := vc[replica]; !ok && o > 0 {
			less = true
		}
	}

	switch {
	case less && greater:
		return OrderingConcurrent
	case less:
		return OrderingBefore
	case greater:
		return OrderingAfter
	default:
		return OrderingEqual
	}
}

// Clone returns an independent copy of the clock.
func (vc VectorClock) Clone() VectorClock {
	cloned := make(VectorClock, len(vc))
	for replica, n := range vc {
		cloned[replica] = n
	}
	return cloned
}
