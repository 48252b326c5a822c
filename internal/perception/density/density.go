// Package density models the decaying relevance ("pheromone") scalar that a
// robot attaches to everything it remembers.
package density

import (
	"fmt"
	"math"
)

// DecayKind selects the per-timestep decay step.
type DecayKind int

const (
	// DecayLinear subtracts DecayRate each step.
	DecayLinear DecayKind = iota
	// DecayExponential multiplies by (1 - DecayRate) each step.
	DecayExponential
)

func (k DecayKind) String() string {
	switch k {
	case DecayLinear:
		return "linear"
	case DecayExponential:
		return "exponential"
	}
	return fmt.Sprintf("DecayKind(%d)", int(k))
}

// ParseDecayKind maps a tuning string to a DecayKind.
func ParseDecayKind(s string) (DecayKind, error) {
	switch s {
	case "linear":
		return DecayLinear, nil
	case "exponential":
		return DecayExponential, nil
	}
	return 0, fmt.Errorf("unknown density decay kind %q", s)
}

// Params configures relevance bound, decay and refresh.
type Params struct {
	Max       float64   // upper bound of the relevance scalar
	DecayRate float64   // per-timestep decay amount (linear) or fraction (exponential)
	Decay     DecayKind // decay step function
	// RepeatDeposit selects the refresh rule on re-observation: true adds
	// DepositUnit (saturating at Max), false snaps straight to Max.
	RepeatDeposit bool
	DepositUnit   float64
}

// DefaultParams returns reset-mode linear decay over [0, 1].
func DefaultParams() Params {
	return Params{
		Max:         1.0,
		DecayRate:   0.01,
		Decay:       DecayLinear,
		DepositUnit: 1.0,
	}
}

// Validate checks the params describe a well-defined, non-negative model.
func (p Params) Validate() error {
	if p.Max <= 0 || math.IsInf(p.Max, 0) || math.IsNaN(p.Max) {
		return fmt.Errorf("density max must be positive and finite, got %v", p.Max)
	}
	if p.DecayRate < 0 {
		return fmt.Errorf("density decay rate must be non-negative, got %v", p.DecayRate)
	}
	if p.Decay == DecayExponential && p.DecayRate > 1 {
		return fmt.Errorf("exponential decay rate must be in [0,1], got %v", p.DecayRate)
	}
	if p.RepeatDeposit && p.DepositUnit <= 0 {
		return fmt.Errorf("deposit unit must be positive in repeat-deposit mode, got %v", p.DepositUnit)
	}
	return nil
}

// Density is a bounded relevance value in [0, Params.Max].
type Density struct {
	v float64
	p Params
}

// New returns a zero-relevance density governed by p.
func New(p Params) Density {
	return Density{p: p}
}

// Value returns the current relevance.
func (d Density) Value() float64 { return d.v }

// Params returns the governing parameters.
func (d Density) Params() Params { return d.p }

// Set clamps v into [0, Max] and stores it.
func (d *Density) Set(v float64) {
	d.v = min(max(v, 0), d.p.Max)
}

// Decay applies one decay step. The result is never above the previous value
// and never negative.
func (d *Density) Decay() {
	switch d.p.Decay {
	case DecayExponential:
		d.Set(d.v * (1 - d.p.DecayRate))
	default:
		d.Set(d.v - d.p.DecayRate)
	}
}

// Refresh applies the configured re-observation rule.
func (d *Density) Refresh() {
	if d.p.RepeatDeposit {
		d.Set(d.v + d.p.DepositUnit)
		return
	}
	d.Set(d.p.Max)
}

// Expired reports whether the relevance has decayed to zero.
func (d Density) Expired() bool { return d.v <= 0 }

func (d Density) String() string { return fmt.Sprintf("%.3f/%.3f", d.v, d.p.Max) }
