package dpo

import (
	"fmt"

	"github.com/banshee-data/swarm.forage/internal/entity"
	"github.com/banshee-data/swarm.forage/internal/perception/density"
)

// Object is an entity a store can track: it has a stable id and can be deep
// copied.
type Object[T any] interface {
	EntityID() entity.ID
	Clone() T
}

// Record pairs a tracked entity with its relevance.
type Record[T Object[T]] struct {
	ent     T
	density density.Density
}

// NewRecord wraps ent, which the record takes ownership of.
func NewRecord[T Object[T]](ent T, d density.Density) *Record[T] {
	return &Record[T]{ent: ent, density: d}
}

func (r *Record[T]) Ent() T                       { return r.ent }
func (r *Record[T]) ID() entity.ID                { return r.ent.EntityID() }
func (r *Record[T]) Density() density.Density     { return r.density }
func (r *Record[T]) Relevance() float64           { return r.density.Value() }
func (r *Record[T]) SetDensity(d density.Density) { r.density = d }

// Equal compares records by entity id only; relevance is ignored.
func (r *Record[T]) Equal(o *Record[T]) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.ID() == o.ID()
}

func (r *Record[T]) String() string {
	return fmt.Sprintf("%v (%s)", r.ent, r.density)
}
