package crdt

import (
	"cmp"
	"encoding/json"
	"slices"
)

// Tag uniquely identifies a single add operation on an ORSet. Two replicas can
// never mint the same tag because the counter is scoped to the replica id.
type Tag struct {
	Replica string `json:"replica"`
	Counter uint64 `json:"counter"`
}

func compareTags(a, b Tag) int {
	if c := cmp.Compare(a.Replica, b.Replica); c != 0 {
		return c
	}
	return cmp.Compare(a.Counter, b.Counter)
}

// ORSet is an observed-remove (add-wins) set. Every add mints a unique tag;
// a remove deletes only the tags the remover has observed, so an add that is
// concurrent with a remove always survives the merge.
type ORSet[T cmp.Ordered] struct {
	replica string
	counter uint64
	entries map[T]map[Tag]struct{}
}

// NewORSet returns an empty set that mints tags under the given replica id.
func NewORSet[T cmp.Ordered](replica string) ORSet[T] {
	return ORSet[T]{
		replica: replica,
		entries: make(map[T]map[Tag]struct{}),
	}
}

// Add inserts the element under a freshly minted tag and returns the tag so
// the caller can later target this specific add with Remove.
func (s *ORSet[T]) Add(e T) Tag {
	s.counter++
	tag := Tag{Replica: s.replica, Counter: s.counter}
	s.addTag(e, tag)
	return tag
}

func (s *ORSet[T]) addTag(e T, tag Tag) {
	if s.entries == nil {
		s.entries = make(map[T]map[Tag]struct{})
	}
	tags, ok := s.entries[e]
	if !ok {
		tags = make(map[Tag]struct{})
		s.entries[e] = tags
	}
	tags[tag] = struct{}{}
}

// Remove deletes only the observed tags for the element. Tags that were never
// observed (including tags minted concurrently elsewhere) are ignored, so
// Remove is idempotent and never errors.
func (s *ORSet[T]) Remove(e T, observed []Tag) {
	tags, ok := s.entries[e]
	if !ok {
		return
	}
	for _, tag := range observed {
		delete(tags, tag)
	}
	if len(tags) == 0 {
		delete(s.entries, e)
	}
}

// RemoveAll deletes every currently observed tag for the element and returns
// the tags that were removed.
func (s *ORSet[T]) RemoveAll(e T) []Tag {
	observed := s.Tags(e)
	s.Remove(e, observed)
	return observed
}

// Contains reports whether the element has at least one surviving tag.
func (s ORSet[T]) Contains(e T) bool {
	return len(s.entries[e]) > 0
}

// Elements returns the present elements in sorted order.
func (s ORSet[T]) Elements() []T {
	out := make([]T, 0, len(s.entries))
	for e := range s.entries {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// Tags returns the surviving tags for an element, sorted for determinism.
func (s ORSet[T]) Tags(e T) []Tag {
	tags := make([]Tag, 0, len(s.entries[e]))
	for tag := range s.entries[e] {
		tags = append(tags, tag)
	}
	slices.SortFunc(tags, compareTags)
	return tags
}

// Len returns the number of present elements.
func (s ORSet[T]) Len() int {
	return len(s.entries)
}

// Merge unions the tag sets per element. Presence is recomputed from the
// result, which is what makes concurrent adds win over concurrent removes.
// The local replica id is kept; the tag counter advances to the max of both
// sides so future tags stay unique.
func (s ORSet[T]) Merge(other ORSet[T]) ORSet[T] {
	merged := ORSet[T]{
		replica: s.replica,
		counter: max(s.counter, other.counter),
		entries: make(map[T]map[Tag]struct{}, len(s.entries)+len(other.entries)),
	}
	for e, tags := range s.entries {
		for tag := range tags {
			merged.addTag(e, tag)
		}
	}
	for e, tags := range other.entries {
		for tag := range tags {
			merged.addTag(e, tag)
		}
	}
	return merged
}

type orsetEntryJSON[T cmp.Ordered] struct {
	Element T     `json:"element"`
	Tags    []Tag `json:"tags"`
}

type orsetJSON[T cmp.Ordered] struct {
	Replica string              `json:"replica"`
	Counter uint64              `json:"counter"`
	Entries []orsetEntryJSON[T] `json:"entries"`
}

// MarshalJSON encodes entries sorted by element so snapshots are
// deterministic.
func (s ORSet[T]) MarshalJSON() ([]byte, error) {
	entries := make([]orsetEntryJSON[T], 0, len(s.entries))
	for _, e := range s.Elements() {
		entries = append(entries, orsetEntryJSON[T]{Element: e, Tags: s.Tags(e)})
	}
	return json.Marshal(orsetJSON[T]{
		Replica: s.replica,
		Counter: s.counter,
		Entries: entries,
	})
}

// UnmarshalJSON decodes the entry list form produced by MarshalJSON.
func (s *ORSet[T]) UnmarshalJSON(data []byte) error {
	var raw orsetJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.replica = raw.Replica
	s.counter = raw.Counter
	s.entries = make(map[T]map[Tag]struct{}, len(raw.Entries))
	for _, entry := range raw.Entries {
		for _, tag := range entry.Tags {
			s.addTag(entry.Element, tag)
		}
	}
	return nil
}
