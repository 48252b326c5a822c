package dpo

import (
	"iter"
	"maps"
	"slices"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
	"github.com/banshee-data/swarm.forage/internal/perception/density"
)

// Store maps entity ids to records.
type Store[T Object[T]] struct {
	params  density.Params
	recs    map[entity.ID]*Record[T]
	release func(*Record[T])
}

// NewStore returns an empty store whose fresh records use p.
func NewStore[T Object[T]](p density.Params) *Store[T] {
	return &Store[T]{params: p, recs: make(map[entity.ID]*Record[T])}
}

// OnRelease installs a hook run for every record leaving the store, whether
// removed or superseded.
func (s *Store[T]) OnRelease(fn func(*Record[T])) { s.release = fn }

// Params returns the density parameters of the store.
func (s *Store[T]) Params() density.Params { return s.params }

// Find returns the record for id.
func (s *Store[T]) Find(id entity.ID) (*Record[T], bool) {
	r, ok := s.recs[id]
	return r, ok
}

// Contains reports whether id is tracked.
func (s *Store[T]) Contains(id entity.ID) bool {
	_, ok := s.recs[id]
	return ok
}

// Len returns the number of records.
func (s *Store[T]) Len() int { return len(s.recs) }

// AddOrReplace erases any record stored under rec's id, running the release
// hook for it, and only then inserts rec.
func (s *Store[T]) AddOrReplace(rec *Record[T]) {
	id := rec.ID()
	s.Remove(id)
	if _, dup := s.recs[id]; dup {
		monitoring.Invariantf("dpo", "record %d reinserted by release hook", id)
	}
	s.recs[id] = rec
}

// Observe records a fresh sighting of ent: the clone replaces any existing
// record and its relevance is refreshed from the prior value. The stored
// record is returned.
func (s *Store[T]) Observe(ent T) *Record[T] {
	d := density.New(s.params)
	if old, ok := s.recs[ent.EntityID()]; ok {
		d = old.density
	}
	d.Refresh()
	rec := NewRecord(ent.Clone(), d)
	s.AddOrReplace(rec)
	return rec
}

// Remove deletes id and reports whether it was present.
func (s *Store[T]) Remove(id entity.ID) bool {
	r, ok := s.recs[id]
	if !ok {
		return false
	}
	delete(s.recs, id)
	if s.release != nil {
		s.release(r)
	}
	return true
}

// DecayAll applies one decay step to every record.
func (s *Store[T]) DecayAll() {
	for _, r := range s.recs {
		r.density.Decay()
	}
}

// Keys yields ids in ascending order.
func (s *Store[T]) Keys() iter.Seq[entity.ID] {
	return func(yield func(entity.ID) bool) {
		for _, id := range slices.Sorted(maps.Keys(s.recs)) {
			if !yield(id) {
				return
			}
		}
	}
}

// Values yields records in ascending id order. Mutating the store while
// iterating is not supported.
func (s *Store[T]) Values() iter.Seq[*Record[T]] {
	return func(yield func(*Record[T]) bool) {
		for id := range s.Keys() {
			if !yield(s.recs[id]) {
				return
			}
		}
	}
}

// Clear drops every record, running the release hook for each.
func (s *Store[T]) Clear() {
	for _, id := range slices.Collect(s.Keys()) {
		s.Remove(id)
	}
}
