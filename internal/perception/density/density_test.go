package density

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecay_Linear(t *testing.T) {
	t.Parallel()

	d := New(Params{Max: 1, DecayRate: 0.1, Decay: DecayLinear})
	d.Set(0.4)
	d.Decay()
	assert.InDelta(t, 0.3, d.Value(), 1e-9)

	d.Set(0.05)
	d.Decay()
	assert.Zero(t, d.Value(), "linear decay clamps at zero")
	assert.True(t, d.Expired())
}

func TestDecay_Monotone(t *testing.T) {
	t.Parallel()

	for _, p := range []Params{
		{Max: 1, DecayRate: 0.07, Decay: DecayLinear},
		{Max: 5, DecayRate: 0.2, Decay: DecayExponential},
		{Max: 2, DecayRate: 0, Decay: DecayLinear},
	} {
		d := New(p)
		d.Set(p.Max)
		prev := d.Value()
		for i := 0; i < 100; i++ {
			d.Decay()
			require.LessOrEqual(t, d.Value(), prev, "decay kind %s step %d", p.Decay, i)
			require.GreaterOrEqual(t, d.Value(), 0.0)
			prev = d.Value()
		}
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	t.Run("reset snaps to max", func(t *testing.T) {
		t.Parallel()
		d := New(Params{Max: 2, DecayRate: 0.5})
		d.Set(0.25)
		d.Refresh()
		assert.Equal(t, 2.0, d.Value())
	})

	t.Run("repeat deposit adds and saturates", func(t *testing.T) {
		t.Parallel()
		d := New(Params{Max: 2, DecayRate: 0.5, RepeatDeposit: true, DepositUnit: 0.75})
		d.Refresh()
		assert.Equal(t, 0.75, d.Value())
		d.Refresh()
		assert.Equal(t, 1.5, d.Value())
		d.Refresh()
		assert.Equal(t, 2.0, d.Value())
	})
}

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name string
		p    Params
	}{
		{"zero max", Params{Max: 0}},
		{"negative rate", Params{Max: 1, DecayRate: -0.1}},
		{"exponential above one", Params{Max: 1, DecayRate: 1.5, Decay: DecayExponential}},
		{"deposit without unit", Params{Max: 1, RepeatDeposit: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.p.Validate())
		})
	}
}

func TestParseDecayKind(t *testing.T) {
	t.Parallel()

	k, err := ParseDecayKind("exponential")
	require.NoError(t, err)
	assert.Equal(t, DecayExponential, k)

	_, err = ParseDecayKind("quadratic")
	assert.Error(t, err)
}
