package caches

import "math"

// RespawnProbability maps the current harvester and collector counts to the
// chance that a depleted cache is recreated this timestep.
type RespawnProbability struct {
	ScaleFactor float64
}

// Calc is zero without harvesters and otherwise 1 - exp(-s*h/max(c,1)),
// which rises with h and stays inside [0, 1].
func (r RespawnProbability) Calc(nHarvesters, nCollectors int) float64 {
	if nHarvesters <= 0 || r.ScaleFactor <= 0 {
		return 0
	}
	ratio := float64(nHarvesters) / float64(max(nCollectors, 1))
	return 1 - math.Exp(-r.ScaleFactor*ratio)
}
