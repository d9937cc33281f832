// Package twin assembles the physiological subsystems into one simulation
// runtime: a 35-element state vector, a combined right-hand-side function,
// an adaptive integration loop, pathology-event application and averaged
// vitals reporting.
package twin

import (
	"github.com/Lex-mmm/sasicu-example/circulation"
	"github.com/Lex-mmm/sasicu-example/params"
	"github.com/Lex-mmm/sasicu-example/respiration"
)

// Fixed state-vector layout. Indices 0..9 are the circulatory compartment
// volumes; the remaining blocks are referenced by the constants below.
const (
	StateVolumes = 0 // ..9, compartment volumes in mL

	StateMech = 10 // ..14, lung mechanical states

	StateFDO2  = 15 // dead-space O2 fraction
	StateFDCO2 = 16 // dead-space CO2 fraction
	StatePaCO2 = 17 // arterial CO2 tension, mmHg
	StatePaO2  = 18 // arterial O2 tension, mmHg

	StateCStisCO2 = 19
	StateCScapCO2 = 20
	StateCStisO2  = 21
	StateCScapO2  = 22

	StateLegacyRROffset   = 23 // superseded chemoreceptor slots
	StateLegacyPmusOffset = 24

	StatePmus = 25 // respiratory muscle pressure

	StateHROffset = 26 // applied baroreflex offsets
	StateROffset  = 27
	StateUVOffset = 28

	StateFilteredP = 29 // baroreflex internals
	StateHRSymp    = 30
	StateHRVagal   = 31
	StateRChannel  = 32

	StateRROffset   = 33 // active chemoreceptor offsets
	StatePmusOffset = 34

	StateCount = 35
)

// Dead-space gas fractions of room air at body conditions.
const (
	initialFDO2  = 157.0 / 731.0
	initialFDCO2 = 7.0 / 731.0
)

const initialPmus = -2.0

// initialState builds the starting state vector: total blood volume
// distributed across compartments in proportion to their unstressed
// volumes, with extra volume loaded into the systemic arterial side, plus
// the configured initial gas tensions and concentrations.
func initialState(store *params.Store) ([]float64, error) {
	s := make([]float64, StateCount)

	uv, err := store.Vector("cardio_parameters.uvolume")
	if err != nil {
		return nil, err
	}
	tbv := store.GetDefault("misc_constants.TBV", 5000)

	total := 0.0
	for _, v := range uv {
		total += v
	}
	for i := 0; i < circulation.Compartments && i < len(uv); i++ {
		s[StateVolumes+i] = tbv * uv[i] / total
	}
	s[StateVolumes+0] += 200
	s[StateVolumes+1] += 100
	s[StateVolumes+2] += 100

	s[StateFDO2] = initialFDO2
	s[StateFDCO2] = initialFDCO2
	s[StatePaCO2] = store.GetDefault("initial_conditions.p_a_CO2", 40)
	s[StatePaO2] = store.GetDefault("initial_conditions.p_a_O2", 95)
	s[StateCStisCO2] = store.GetDefault("initial_conditions.c_Stis_CO2", 0.5)
	s[StateCScapCO2] = store.GetDefault("initial_conditions.c_Scap_CO2", 0.5)
	s[StateCStisO2] = store.GetDefault("initial_conditions.c_Stis_O2", 0.2)
	s[StateCScapO2] = store.GetDefault("initial_conditions.c_Scap_O2", 0.2)

	s[StateLegacyRROffset] = store.GetDefault(
		"respiratory_control_params.Delta_RR_c", 0)
	s[StateLegacyPmusOffset] = store.GetDefault(
		"respiratory_control_params.Delta_Pmus_c", 0)

	s[StatePmus] = initialPmus

	// The filtered-pressure state starts at the setpoint so the
	// baroreflex does not see a spurious startup transient.
	s[StateFilteredP] = store.GetDefault("cardio_control_params.ABP_n", 90)

	return s, nil
}

func gasStateView(y []float64) respiration.GasState {
	return respiration.GasState{
		FDO2:     y[StateFDO2],
		FDCO2:    y[StateFDCO2],
		PaCO2:    y[StatePaCO2],
		PaO2:     y[StatePaO2],
		CStisCO2: y[StateCStisCO2],
		CScapCO2: y[StateCScapCO2],
		CStisO2:  y[StateCStisO2],
		CScapO2:  y[StateCScapO2],
	}
}
