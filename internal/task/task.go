// Package task tracks what a robot is doing and where task boundaries fall.
package task

import (
	"fmt"
	"math/rand/v2"
)

// Kind is the foraging role a robot is executing.
type Kind int

const (
	// Generalist fetches a free block and delivers it to the nest.
	Generalist Kind = iota
	// Harvester fetches a free block and drops it in or at a cache.
	Harvester
	// Collector fetches a block from a cache and delivers it to the nest.
	Collector
)

func (k Kind) String() string {
	switch k {
	case Generalist:
		return "generalist"
	case Harvester:
		return "harvester"
	case Collector:
		return "collector"
	}
	return fmt.Sprintf("task(%d)", int(k))
}

// ParseKind maps a tuning string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "generalist":
		return Generalist, nil
	case "harvester":
		return Harvester, nil
	case "collector":
		return Collector, nil
	}
	return 0, fmt.Errorf("unknown task kind %q", s)
}

// Status is reported by the robot alongside every task transition.
type Status int

const (
	Running Status = iota
	AbortPending
	Done
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case AbortPending:
		return "abort-pending"
	case Done:
		return "done"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Allocator picks the next task for a robot.
type Allocator interface {
	Next(prev Kind, prevAborted bool) Kind
}

// Fixed always allocates the same kind.
type Fixed Kind

func (f Fixed) Next(Kind, bool) Kind { return Kind(f) }

// Partitioned allocates Harvester or Collector at random, switching away
// from a task that was aborted with probability SwitchOnAbort.
type Partitioned struct {
	Rand          *rand.Rand
	HarvesterProb float64
	SwitchOnAbort float64
}

func (p *Partitioned) Next(prev Kind, prevAborted bool) Kind {
	if prevAborted && prev != Generalist && p.Rand.Float64() < p.SwitchOnAbort {
		if prev == Harvester {
			return Collector
		}
		return Harvester
	}
	if p.Rand.Float64() < p.HarvesterProb {
		return Harvester
	}
	return Collector
}
