package robot

import (
	"fmt"

	"github.com/banshee-data/swarm.forage/internal/events"
	"github.com/banshee-data/swarm.forage/internal/monitoring"
	"github.com/banshee-data/swarm.forage/internal/perception/density"
	"github.com/banshee-data/swarm.forage/internal/perception/dpo"
	"github.com/banshee-data/swarm.forage/internal/perception/los"
)

// PerceptionKind selects the perception module.
type PerceptionKind int

const (
	// PerceptionStore is a plain decaying store fed by line of sight.
	PerceptionStore PerceptionKind = iota
	// PerceptionMap is a semantic map fed by line of sight.
	PerceptionMap
	// PerceptionOracle is a plain store fed with the whole arena every
	// timestep.
	PerceptionOracle
)

func (k PerceptionKind) String() string {
	switch k {
	case PerceptionStore:
		return "store"
	case PerceptionMap:
		return "map"
	case PerceptionOracle:
		return "oracle"
	}
	return fmt.Sprintf("perception(%d)", int(k))
}

// ParsePerceptionKind maps a tuning string to a PerceptionKind.
func ParsePerceptionKind(s string) (PerceptionKind, error) {
	switch s {
	case "store":
		return PerceptionStore, nil
	case "map":
		return PerceptionMap, nil
	case "oracle":
		return PerceptionOracle, nil
	}
	return 0, fmt.Errorf("unknown perception %q", s)
}

// Perception is the model a robot keeps of the arena.
type Perception interface {
	los.Model
	DecayAll()
}

var (
	_ Perception = (*dpo.DPOStore)(nil)
	_ Perception = (*dpo.SemanticMap)(nil)
)

func newPerception(k PerceptionKind, xdim, ydim int, p density.Params) Perception {
	if k == PerceptionMap {
		return dpo.NewSemanticMap(xdim, ydim, p)
	}
	return dpo.NewDPOStore(p)
}

// Sense captures this timestep's view of the arena and replays it into the
// perception module, then decays it. Oracle-fed robots see the whole arena
// and only then apply the outcomes of their previous interactions.
func (r *Robot) Sense(a Arena, ts uint64) int {
	var snap los.Snapshot
	if r.oracle {
		snap = a.Oracle(ts)
	} else {
		snap = a.LOS(r.pos, r.params.LOSRadius, ts)
	}
	n := los.Process(r.perception, snap)
	for _, ev := range r.pending {
		r.reconcile(ev)
	}
	r.pending = r.pending[:0]
	r.perception.DecayAll()
	return n
}

// reconcile applies an interaction outcome to the perception module. Only
// oracle-fed robots may legitimately have lost the record first.
func (r *Robot) reconcile(ev events.Event) {
	if events.Reconcile(r.perception, ev) {
		return
	}
	if r.oracle {
		r.logf("%s: record already gone after oracle refresh; ignored", ev)
		return
	}
	monitoring.Invariantf("robot", "robot %d task %d (%s): %s for a record it does not hold",
		r.ID, r.tracker.Index(), r.tracker.Kind(), ev)
}
