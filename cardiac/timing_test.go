package cardiac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lex-mmm/sasicu-example/params"
)

func testTable(t *testing.T) ElastanceTable {
	t.Helper()

	store, err := params.DefaultAdult()
	require.NoError(t, err)

	table, err := NewElastanceTable(store)
	require.NoError(t, err)

	return table
}

func TestElastanceBoundedForPhysiologicalRates(t *testing.T) {
	table := testTable(t)

	for _, hr := range []float64{30, 60, 75, 120, 180} {
		m := NewTimingModel(table, hr)

		for i := 0; i < 4000; i++ {
			tm := float64(i) * 0.001 * 60 / hr
			m.Advance(tm)
			e := m.ElastanceAt(tm)

			chambers := []struct {
				idx int
				val float64
			}{
				{LeftAtrium, e.La},
				{LeftVentricle, e.Lv},
				{RightAtrium, e.Ra},
				{RightVentricle, e.Rv},
			}
			for _, c := range chambers {
				assert.GreaterOrEqual(t, c.val, table.Min[c.idx],
					"hr=%v t=%v chamber=%d", hr, tm, c.idx)
				assert.LessOrEqual(t, c.val, table.Max[c.idx],
					"hr=%v t=%v chamber=%d", hr, tm, c.idx)
			}
		}
	}
}

func TestElastanceContinuity(t *testing.T) {
	table := testTable(t)
	m := NewTimingModel(table, 75)

	const dt = 1e-4
	prev := m.ElastanceAt(0)
	for i := 1; i < 30000; i++ {
		tm := float64(i) * dt
		m.Advance(tm)
		cur := m.ElastanceAt(tm)

		// A half-sine activation changes by O(dt) between samples.
		assert.InDelta(t, prev.Lv, cur.Lv, 0.05, "t=%v", tm)
		assert.InDelta(t, prev.Ra, cur.Ra, 0.05, "t=%v", tm)
		prev = cur
	}
}

func TestHeartRateAdoptedAtCycleBoundary(t *testing.T) {
	table := testTable(t)
	m := NewTimingModel(table, 60) // HP = 1 s

	// Mid-cycle change must not take effect immediately.
	m.Advance(0.5)
	m.SetHeartRate(120)
	m.Advance(0.6)
	assert.Equal(t, 60.0, m.HeartRate())

	// Crossing the boundary adopts the pending rate.
	m.Advance(1.05)
	assert.Equal(t, 120.0, m.HeartRate())
	assert.InDelta(t, 0.5, m.HeartPeriod(), 1e-12)
}

func TestPhaseDurationsTrackHeartPeriod(t *testing.T) {
	table := testTable(t)
	m := NewTimingModel(table, 75)

	hp := 60.0 / 75.0
	assert.InDelta(t, hp, m.HeartPeriod(), 1e-12)
	assert.InDelta(t, 0.03+0.09*hp, m.tas, 1e-12)
	assert.InDelta(t, 0.01, m.tav, 1e-12)
	assert.InDelta(t, 0.16+0.2*hp, m.tvs, 1e-12)
}

func TestVentricularActivationGatedByAVDelay(t *testing.T) {
	table := testTable(t)
	m := NewTimingModel(table, 75)

	// Inside atrial systole, before the AV delay has elapsed, the
	// ventricles remain at their diastolic elastance.
	e := m.ElastanceAt(m.tas / 2)
	assert.Equal(t, table.Min[LeftVentricle], e.Lv)
	assert.Equal(t, table.Min[RightVentricle], e.Rv)
	assert.Greater(t, e.La, table.Min[LeftAtrium])

	// Mid ventricular systole the activation peaks.
	mid := m.tas + m.tav + m.tvs/2
	e = m.ElastanceAt(mid)
	assert.InDelta(t, table.Max[LeftVentricle], e.Lv, 1e-6)
}
