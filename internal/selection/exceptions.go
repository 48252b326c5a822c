// Package selection picks the block or cache a robot should go for next,
// and keeps the short-lived exception lists that stop a robot from
// re-selecting an object it has just interacted with.
package selection

import (
	"fmt"
	"slices"

	"github.com/banshee-data/swarm.forage/internal/entity"
)

// Interaction is what the robot did to the excepted object.
type Interaction int

const (
	Pickup Interaction = iota
	Drop
)

func (i Interaction) String() string {
	switch i {
	case Pickup:
		return "pickup"
	case Drop:
		return "drop"
	}
	return fmt.Sprintf("interaction(%d)", int(i))
}

// Entry is one excepted object. Task is the index of the task during which
// the exception was raised.
type Entry struct {
	ID   entity.ID
	Kind Interaction
	Task int
}

// Exceptions is a per-robot exception list.
//
// Entries are stamped with the current task index. When task k finishes,
// every entry stamped before k is dropped, so an object touched during task
// k stays excluded for the rest of k and all of task k+1, and becomes
// eligible again once k+1 finishes.
type Exceptions struct {
	kindAware bool
	task      int
	entries   []Entry
}

// NewBlockExceptions returns a list for free blocks. Lookups ignore the
// interaction kind.
func NewBlockExceptions() *Exceptions { return &Exceptions{} }

// NewCacheExceptions returns a list for caches. A pickup exception does not
// exclude the same cache as a drop target, and vice versa.
func NewCacheExceptions() *Exceptions { return &Exceptions{kindAware: true} }

// Add excludes id for interaction kind. Duplicates are harmless.
func (e *Exceptions) Add(id entity.ID, kind Interaction) {
	e.entries = append(e.entries, Entry{ID: id, Kind: kind, Task: e.task})
}

// Contains reports whether id is excluded for kind.
func (e *Exceptions) Contains(id entity.ID, kind Interaction) bool {
	return slices.ContainsFunc(e.entries, func(en Entry) bool {
		return en.ID == id && (!e.kindAware || en.Kind == kind)
	})
}

// Clear empties the list.
func (e *Exceptions) Clear() { e.entries = e.entries[:0] }

// Len is the number of live entries.
func (e *Exceptions) Len() int { return len(e.entries) }

// Entries returns a copy of the live entries.
func (e *Exceptions) Entries() []Entry { return slices.Clone(e.entries) }

// TaskFinished drops entries stamped before the finished task and advances
// the stamp for entries added from now on. Wire it to task.Tracker.OnFinished.
func (e *Exceptions) TaskFinished(finished int) {
	e.entries = slices.DeleteFunc(e.entries, func(en Entry) bool { return en.Task < finished })
	e.task = finished + 1
}
