package sim

import "gonum.org/v1/gonum/floats"

// convergence decides whether the swarm's task allocation has settled: the
// harvester share among caching robots has stayed within tol over the last
// window timesteps.
type convergence struct {
	tol   float64
	fracs []float64
	next  int
	full  bool
}

func newConvergence(window int, tol float64) *convergence {
	return &convergence{tol: tol, fracs: make([]float64, window)}
}

// Update records one timestep's allocation and reports convergence.
func (c *convergence) Update(harvesters, collectors int) bool {
	var frac float64
	if n := harvesters + collectors; n > 0 {
		frac = float64(harvesters) / float64(n)
	}
	c.fracs[c.next] = frac
	c.next++
	if c.next == len(c.fracs) {
		c.next = 0
		c.full = true
	}
	if !c.full {
		return false
	}
	return floats.Max(c.fracs)-floats.Min(c.fracs) <= c.tol
}
