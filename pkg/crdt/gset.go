package crdt

import (
	"cmp"
	"encoding/json"
	"slices"
)

// GSet is a grow-only set. Elements can be added but never removed; merge is
// set union. The zero value is a usable empty set.
type GSet[T cmp.Ordered] struct {
	elements map[T]struct{}
}

// NewGSet returns an empty grow-only set.
func NewGSet[T cmp.Ordered]() GSet[T] {
	return GSet[T]{elements: make(map[T]struct{})}
}

// Add inserts an element. Adding an existing element is a no-op.
func (s *GSet[T]) Add(e T) {
	if s.elements == nil {
		s.elements = make(map[T]struct{})
	}
	s.elements[e] = struct{}{}
}

// Contains reports whether the element is in the set.
func (s GSet[T]) Contains(e T) bool {
	_, ok := s.elements[e]
	return ok
}

// Elements returns the elements in sorted order. The slice is a copy.
func (s GSet[T]) Elements() []T {
	out := make([]T, 0, len(s.elements))
	for e := range s.elements {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of elements.
func (s GSet[T]) Len() int {
	return len(s.elements)
}

// Merge returns the union of both sets. Neither input is mutated.
func (s GSet[T]) Merge(other GSet[T]) GSet[T] {
	merged := make(map[T]struct{}, len(s.elements)+len(other.elements))
	for e := range s.elements {
		merged[e] = struct{}{}
	}
	for e := range other.elements {
		merged[e] = struct{}{}
	}
	return GSet[T]{elements: merged}
}

// MarshalJSON encodes the set as a sorted array so serialized snapshots are
// deterministic.
func (s GSet[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Elements())
}

// UnmarshalJSON decodes an element array.
func (s *GSet[T]) UnmarshalJSON(data []byte) error {
	var elements []T
	if err := json.Unmarshal(data, &elements); err != nil {
		return err
	}
	s.elements = make(map[T]struct{}, len(elements))
	for _, e := range elements {
		s.elements[e] = struct{}{}
	}
	return nil
}
