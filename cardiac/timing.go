// Package cardiac converts heart rate into cardiac-cycle phase timing and
// time-varying chamber elastances.
package cardiac

import (
	"math"

	"github.com/Lex-mmm/sasicu-example/params"
)

// Compartment indices of the four heart chambers within the 10-compartment
// circulatory loop.
const (
	RightAtrium    = 4
	RightVentricle = 5
	LeftAtrium     = 8
	LeftVentricle  = 9
)

// ElastanceTable holds the (minimum, maximum) elastance of each circulatory
// compartment. Non-chamber compartments carry a zero maximum and use the
// minimum row as their constant elastance.
type ElastanceTable struct {
	Min [10]float64
	Max [10]float64
}

// NewElastanceTable builds the table from the parameter store.
func NewElastanceTable(store *params.Store) (ElastanceTable, error) {
	var t ElastanceTable

	minRow, err := store.Vector("cardio_parameters.elastance_min")
	if err != nil {
		return t, err
	}
	maxRow, err := store.Vector("cardio_parameters.elastance_max")
	if err != nil {
		return t, err
	}

	copy(t.Min[:], minRow)
	copy(t.Max[:], maxRow)

	return t, nil
}

// ChamberElastances are the four heart chamber elastances at one instant.
type ChamberElastances struct {
	La float64 // left atrium
	Lv float64 // left ventricle
	Ra float64 // right atrium
	Rv float64 // right ventricle
}

// TimingModel tracks the cardiac cycle. A cycle-start timestamp is retained
// and advanced only when the elapsed time exceeds the current heart period,
// so a changed heart rate takes effect at the next cycle boundary rather
// than mid-cycle.
type TimingModel struct {
	table ElastanceTable

	hr         float64
	pendingHR  float64
	cycleStart float64

	// Phase durations of the current cycle.
	hp  float64
	tas float64
	tav float64
	tvs float64
}

// NewTimingModel creates a timing model starting a cycle at t = 0 with the
// given heart rate.
func NewTimingModel(table ElastanceTable, hr float64) *TimingModel {
	m := &TimingModel{table: table}
	m.adopt(hr)
	m.pendingHR = hr
	return m
}

// adopt recomputes the cycle phase durations from the heart rate.
func (m *TimingModel) adopt(hr float64) {
	if hr < 1 {
		hr = 1
	}
	m.hr = hr
	m.hp = 60 / hr
	m.tas = 0.03 + 0.09*m.hp
	m.tav = 0.01
	m.tvs = 0.16 + 0.2*m.hp
}

// SetHeartRate records the heart rate to adopt at the next cycle boundary.
func (m *TimingModel) SetHeartRate(hr float64) {
	m.pendingHR = hr
}

// HeartRate returns the rate governing the current cycle.
func (m *TimingModel) HeartRate() float64 { return m.hr }

// HeartPeriod returns the current cycle length in seconds.
func (m *TimingModel) HeartPeriod() float64 { return m.hp }

// Advance moves the cycle boundary forward past t, adopting the pending
// heart rate at each boundary crossed.
func (m *TimingModel) Advance(t float64) {
	for t-m.cycleStart >= m.hp {
		m.cycleStart += m.hp
		m.adopt(m.pendingHR)
	}
}

// ElastanceAt returns the four chamber elastances at simulation time t.
// Atrial elastance interpolates between its extremes with a half-sine
// activation over the atrial-systole phase; ventricular activation uses the
// same shape gated to start after the atrioventricular delay.
func (m *TimingModel) ElastanceAt(t float64) ChamberElastances {
	phase := t - m.cycleStart
	if phase < 0 {
		phase = 0
	}

	aaf := 0.0
	if phase <= m.tas {
		aaf = math.Sin(math.Pi * phase / m.tas)
	}

	vaf := 0.0
	if phase > m.tas+m.tav && phase <= m.tas+m.tav+m.tvs {
		vaf = math.Sin(math.Pi * (phase - m.tas - m.tav) / m.tvs)
	}

	return ChamberElastances{
		La: m.interp(LeftAtrium, aaf),
		Ra: m.interp(RightAtrium, aaf),
		Lv: m.interp(LeftVentricle, vaf),
		Rv: m.interp(RightVentricle, vaf),
	}
}

func (m *TimingModel) interp(chamber int, activation float64) float64 {
	lo := m.table.Min[chamber]
	hi := m.table.Max[chamber]
	return lo + (hi-lo)*activation
}

// Table returns the elastance table the model was built with.
func (m *TimingModel) Table() ElastanceTable { return m.table }

// SetTable replaces the elastance table, keeping the cycle phase.
func (m *TimingModel) SetTable(t ElastanceTable) { m.table = t }
