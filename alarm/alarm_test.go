package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestNormalVitalsNoTransitions(t *testing.T) {
	e := NewEvaluator(DefaultAdultConfig())

	out := e.Evaluate(map[string]float64{
		"HR": 70, "SAP": 118, "DAP": 76, "MAP": 92,
		"SpO2": 98, "RR": 14, "EtCO2": 38, "Temp": 36.8,
	}, t0)

	assert.Empty(t, out)
	assert.False(t, e.HasActive())
}

func TestLowSpO2TriggersAndClearsWithHysteresis(t *testing.T) {
	e := NewEvaluator(DefaultAdultConfig())

	out := e.Evaluate(map[string]float64{"SpO2": 93}, t0)
	require.Len(t, out, 1)
	assert.Equal(t, KindLow, out[0].Kind)
	assert.True(t, out[0].Active)
	assert.Equal(t, "Low Oxygen Saturation", out[0].Message)
	assert.Equal(t, PriorityHigh, out[0].Priority)

	// Back above the limit but inside the hysteresis band: still active.
	out = e.Evaluate(map[string]float64{"SpO2": 96}, t0)
	assert.Empty(t, out)
	assert.True(t, e.HasActive())

	// Past limit + hysteresis: resolved.
	out = e.Evaluate(map[string]float64{"SpO2": 97}, t0)
	require.Len(t, out, 1)
	assert.False(t, out[0].Active)
	assert.False(t, e.HasActive())
}

func TestCriticalSuppressesOrdinaryLimit(t *testing.T) {
	e := NewEvaluator(DefaultAdultConfig())

	// HR 35 is below both the ordinary (60) and critical (40) lower
	// limits; only the critical alarm fires.
	out := e.Evaluate(map[string]float64{"HR": 35}, t0)
	require.Len(t, out, 1)
	assert.Equal(t, KindCriticalLow, out[0].Kind)
	assert.Equal(t, PriorityCritical, out[0].Priority)
	assert.Equal(t, "CRITICAL Bradycardia", out[0].Message)

	// Recovering past critical_low + hysteresis resolves the critical
	// alarm; 50 is still below the ordinary limit, which now fires.
	out = e.Evaluate(map[string]float64{"HR": 50}, t0)
	require.Len(t, out, 2)
	assert.Equal(t, KindCriticalLow, out[0].Kind)
	assert.False(t, out[0].Active)
	assert.Equal(t, KindLow, out[1].Kind)
	assert.True(t, out[1].Active)
}

func TestHighSideThresholds(t *testing.T) {
	e := NewEvaluator(DefaultAdultConfig())

	out := e.Evaluate(map[string]float64{"HR": 110}, t0)
	require.Len(t, out, 1)
	assert.Equal(t, KindHigh, out[0].Kind)
	assert.Equal(t, "Tachycardia", out[0].Message)

	out = e.Evaluate(map[string]float64{"HR": 125}, t0)
	require.Len(t, out, 1)
	assert.Equal(t, KindCriticalHigh, out[0].Kind)
	assert.True(t, out[0].Active)
}

func TestBoundaryValuesDoNotTrigger(t *testing.T) {
	e := NewEvaluator(DefaultAdultConfig())

	// Trigger comparisons are strict.
	out := e.Evaluate(map[string]float64{"HR": 60}, t0)
	assert.Empty(t, out)
	out = e.Evaluate(map[string]float64{"HR": 100}, t0)
	assert.Empty(t, out)
}

func TestDisabledParameterIgnored(t *testing.T) {
	cfg := DefaultAdultConfig()
	limits := cfg["RR"]
	limits.Enabled = false
	cfg["RR"] = limits

	e := NewEvaluator(cfg)
	out := e.Evaluate(map[string]float64{"RR": 2}, t0)
	assert.Empty(t, out)
}

func TestUnknownSnapshotKeysIgnored(t *testing.T) {
	e := NewEvaluator(DefaultAdultConfig())
	out := e.Evaluate(map[string]float64{"XYZ": -1}, t0)
	assert.Empty(t, out)
}

func TestDeterministicOrder(t *testing.T) {
	e := NewEvaluator(DefaultAdultConfig())

	out := e.Evaluate(map[string]float64{"SpO2": 80, "HR": 30}, t0)
	require.Len(t, out, 2)
	assert.Equal(t, "HR", out[0].Parameter)
	assert.Equal(t, "SpO2", out[1].Parameter)
	assert.Equal(t, 2, e.ActiveCount())
}
