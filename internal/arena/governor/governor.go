// Package governor decides whether blocks delivered to the nest are put
// back into the arena.
package governor

import (
	"errors"
	"fmt"

	"github.com/banshee-data/swarm.forage/internal/monitoring"
)

var (
	// ErrUnknownTrigger is returned for an unrecognised trigger name.
	ErrUnknownTrigger = errors.New("unknown redistribution trigger")
	// ErrUnknownRecurrence is returned for an unrecognised recurrence name.
	ErrUnknownRecurrence = errors.New("unknown redistribution recurrence")
)

// Trigger selects what halts redistribution.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerTimestep
	TriggerBlockCount
	TriggerConvergence
)

var triggerNames = map[string]Trigger{
	"none":        TriggerNone,
	"timestep":    TriggerTimestep,
	"block_count": TriggerBlockCount,
	"convergence": TriggerConvergence,
}

func (t Trigger) String() string {
	for name, v := range triggerNames {
		if v == t {
			return name
		}
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// ParseTrigger maps a tuning string to a Trigger.
func ParseTrigger(s string) (Trigger, error) {
	t, ok := triggerNames[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTrigger, s)
	}
	return t, nil
}

// Recurrence selects whether a convergence halt is permanent.
type Recurrence int

const (
	Single Recurrence = iota
	Multi
)

func (r Recurrence) String() string {
	if r == Multi {
		return "multi"
	}
	return "single"
}

// ParseRecurrence maps a tuning string to a Recurrence.
func ParseRecurrence(s string) (Recurrence, error) {
	switch s {
	case "single":
		return Single, nil
	case "multi":
		return Multi, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRecurrence, s)
}

// Config is the governor's tuning.
type Config struct {
	Trigger    string
	Recurrence string
	Timestep   uint64 // TriggerTimestep threshold
	BlockCount uint64 // TriggerBlockCount threshold
}

// Governor is the DISTRIBUTING/HALTED state machine. It starts
// distributing.
type Governor struct {
	trigger    Trigger
	recurrence Recurrence
	timestep   uint64
	blockCount uint64
	enabled    bool
	logf       func(format string, v ...interface{})
}

// New parses cfg. Unknown names are configuration errors.
func New(cfg Config) (*Governor, error) {
	t, err := ParseTrigger(cfg.Trigger)
	if err != nil {
		return nil, err
	}
	r := Single
	if cfg.Recurrence != "" {
		if r, err = ParseRecurrence(cfg.Recurrence); err != nil {
			return nil, err
		}
	}
	return &Governor{
		trigger:    t,
		recurrence: r,
		timestep:   cfg.Timestep,
		blockCount: cfg.BlockCount,
		enabled:    true,
		logf:       monitoring.Component("governor"),
	}, nil
}

// Update advances the state machine once per timestep.
func (g *Governor) Update(timestep, collected uint64, converged bool) {
	was := g.enabled
	switch g.trigger {
	case TriggerNone:
		return
	case TriggerTimestep:
		if timestep >= g.timestep {
			g.enabled = false
		}
	case TriggerBlockCount:
		if collected >= g.blockCount {
			g.enabled = false
		}
	case TriggerConvergence:
		if g.recurrence == Multi {
			g.enabled = !converged
		} else if converged {
			g.enabled = false
		}
	}
	if was == g.enabled {
		return
	}
	state := "halted"
	if g.enabled {
		state = "resumed"
	}
	g.logf("t=%d: redistribution %s (trigger %s, collected %d)", timestep, state, g.trigger, collected)
}

// Enabled reports whether blocks are currently being redistributed.
func (g *Governor) Enabled() bool { return g.enabled }

func (g *Governor) Trigger() Trigger       { return g.trigger }
func (g *Governor) Recurrence() Recurrence { return g.recurrence }
