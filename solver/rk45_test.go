package solver

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrateExponentialDecay(t *testing.T) {
	s := NewRK45(1, 1e-6, 1e-6)
	y := []float64{1}

	f := func(_ float64, y, dy []float64) { dy[0] = -y[0] }

	require.NoError(t, s.Integrate(f, 0, 2, y))
	assert.InDelta(t, math.Exp(-2), y[0], 1e-5)
}

func TestIntegrateHarmonicOscillator(t *testing.T) {
	s := NewRK45(2, 1e-6, 1e-6)
	y := []float64{1, 0}

	f := func(_ float64, y, dy []float64) {
		dy[0] = y[1]
		dy[1] = -y[0]
	}

	// Integrate over many short windows, as the runtime does, and check
	// both the solution and energy conservation after a full period.
	const window = 0.01
	for t0 := 0.0; t0 < 2*math.Pi-window/2; t0 += window {
		require.NoError(t, s.Integrate(f, t0, t0+window, y))
	}

	assert.InDelta(t, 1, y[0], 1e-4)
	assert.InDelta(t, 0, y[1], 1e-4)
	assert.InDelta(t, 1, y[0]*y[0]+y[1]*y[1], 1e-4)
}

func TestIntegrateStiffStepShrinks(t *testing.T) {
	s := NewRK45(1, 1e-6, 1e-6)
	y := []float64{1}

	// A fast linear decay forces the controller well below the window
	// length; the solution must still come out accurate.
	f := func(_ float64, y, dy []float64) { dy[0] = -2000 * y[0] }

	require.NoError(t, s.Integrate(f, 0, 0.01, y))
	assert.InDelta(t, math.Exp(-20), y[0], 1e-6)
}

func TestIntegrateUnstableLeavesStateUntouched(t *testing.T) {
	s := NewRK45(1, 1e-6, 1e-6)
	y := []float64{1}

	f := func(_ float64, y, dy []float64) { dy[0] = math.NaN() }

	err := s.Integrate(f, 0, 1, y)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnstable)

	var ie *IntegrationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 0.0, ie.Time)

	assert.Equal(t, 1.0, y[0], "failed window must not modify the state")
}

func TestIntegrateStepTooSmall(t *testing.T) {
	s := NewRK45(1, 1e-6, 1e-6)
	s.MinStep = 1e-3
	y := []float64{1}

	// Discontinuous derivative the controller can never resolve at the
	// configured minimum step.
	f := func(t float64, _, dy []float64) {
		if math.Mod(t*1e6, 2) < 1 {
			dy[0] = 1e9
		} else {
			dy[0] = -1e9
		}
	}

	err := s.Integrate(f, 0, 1, y)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStepTooSmall)
	assert.Equal(t, 1.0, y[0])
}

func TestIntegrateEmptyWindow(t *testing.T) {
	s := NewRK45(1, 1e-6, 1e-6)
	y := []float64{5}

	calls := 0
	f := func(_ float64, _, dy []float64) { calls++; dy[0] = 1 }

	require.NoError(t, s.Integrate(f, 1, 1, y))
	assert.Zero(t, calls)
	assert.Equal(t, 5.0, y[0])
}

func TestStepSizeCarriesAcrossWindows(t *testing.T) {
	s := NewRK45(1, 1e-6, 1e-6)
	y := []float64{1}
	f := func(_ float64, y, dy []float64) { dy[0] = -y[0] }

	require.NoError(t, s.Integrate(f, 0, 0.01, y))
	carried := s.h
	assert.Positive(t, carried)

	s.Reset()
	assert.Zero(t, s.h)
}
