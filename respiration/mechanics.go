// Package respiration implements the linear lung-mechanics subsystem and the
// alveolar/tissue gas-exchange ODEs.
package respiration

import (
	"math"

	"github.com/Lex-mmm/sasicu-example/params"
)

// MechStates is the number of mechanical states: larynx, tracheobronchial,
// bronchiolar and alveolar pressures plus the pleural pressure.
const MechStates = 5

// chestWallCompliance in L/cmH2O.
const chestWallCompliance = 0.2445

// cmH2OToMmHg converts ventilator pressures into the model's pressure unit.
const cmH2OToMmHg = 0.735

// Mechanics holds the cached linear system dx/dt = A x + B u with
// u = (airway pressure, pleural drive, muscle-pressure drive).
type Mechanics struct {
	A [MechStates][MechStates]float64
	B [MechStates][3]float64

	RML float64 // mouth-larynx resistance
	RLT float64 // larynx-trachea resistance
	RBA float64 // bronchiolar-alveolar resistance
	CCW float64 // chest wall compliance
}

// NewMechanics builds the mechanical system matrices from the respiratory
// resistance and compliance parameters. The matrices are fixed until a
// parameter mutation forces a recache.
func NewMechanics(store *params.Store) (*Mechanics, error) {
	need := map[string]*float64{}
	var cl, ctr, cb, ca, rml, rlt, rtb, rba float64
	need["cardio_constants.C_l"] = &cl
	need["cardio_constants.C_tr"] = &ctr
	need["cardio_constants.C_b"] = &cb
	need["cardio_constants.C_A"] = &ca
	need["cardio_constants.R_ml"] = &rml
	need["cardio_constants.R_lt"] = &rlt
	need["cardio_constants.R_tb"] = &rtb
	need["cardio_constants.R_bA"] = &rba
	for key, dst := range need {
		v, err := store.Get(key)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	m := &Mechanics{RML: rml, RLT: rlt, RBA: rba, CCW: chestWallCompliance}

	m.A = [MechStates][MechStates]float64{
		{-1/(cl*rml) - 1/(rlt*cl), 1 / (rlt * cl), 0, 0, 0},
		{1 / (rlt * ctr), -1/(ctr*rlt) - 1/(rtb*ctr), 1 / (rtb * ctr), 0, 0},
		{0, 1 / (rtb * cb), -1/(cb*rtb) - 1/(rba*cb), 1 / (rba * cb), 0},
		{0, 0, 1 / (rba * ca), -1 / (ca * rba), 0},
		{1 / (rlt * m.CCW), -1 / (m.CCW * rlt), 0, 0, 0},
	}
	m.B = [MechStates][3]float64{
		{1 / (rml * cl), 0, 0},
		{0, 1, 0},
		{0, 1, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	return m, nil
}

// PleuralDrive computes the pleural-pressure derivative input from the
// current mechanical states and the muscle-pressure derivative.
func (m *Mechanics) PleuralDrive(x *[MechStates]float64, dPmus float64) float64 {
	return x[0]/(m.RLT*m.CCW) - x[1]/(m.CCW*m.RLT) + dPmus
}

// Derivatives evaluates dx/dt = A x + B u.
func (m *Mechanics) Derivatives(
	x *[MechStates]float64,
	pao, dPpl, dPmus float64,
) [MechStates]float64 {
	u := [3]float64{pao, dPpl, dPmus}

	var dx [MechStates]float64
	for i := 0; i < MechStates; i++ {
		v := 0.0
		for j := 0; j < MechStates; j++ {
			v += m.A[i][j] * x[j]
		}
		for j := 0; j < 3; j++ {
			v += m.B[i][j] * u[j]
		}
		dx[i] = v
	}

	return dx
}

// AirwayFlow returns the flow into the airway opening in L/s.
func (m *Mechanics) AirwayFlow(pao float64, x *[MechStates]float64) float64 {
	return (pao - x[0]) / m.RML
}

// AlveolarFlow returns the flow into the alveolar compartment in L/s.
func (m *Mechanics) AlveolarFlow(x *[MechStates]float64) float64 {
	return (x[2] - x[3]) / m.RBA
}

// MusclePressureDerivative is the spontaneous-breathing drive: a fast
// inspiratory ramp over the inspiratory time followed by an exponential
// expiratory decay with a time constant of one fifth of the expiratory time.
// RR is in breaths per minute and pmusMin is the (negative) peak muscle
// pressure.
func MusclePressureDerivative(t, rr, pmusMin, ieRatio float64) float64 {
	if rr < 1 {
		rr = 1
	}
	period := 60 / rr
	ti := period * ieRatio / (1 + ieRatio)
	te := period - ti
	tau := te / 5

	cycle := math.Mod(t, period)
	if cycle <= ti {
		return 2*(-pmusMin/(ti*te))*cycle + pmusMin*period/(ti*te)
	}
	return -pmusMin / (tau * (1 - math.Exp(-te/tau))) *
		math.Exp(-(cycle-ti)/tau)
}

// Ventilator produces the two-level airway-pressure square wave of a
// pressure-mode ventilator, converted from cmH2O to mmHg.
type Ventilator struct {
	PEEP    float64 // cmH2O
	PInsp   float64 // cmH2O above PEEP
	IERatio float64
}

// NewVentilator reads the ventilator settings from the store.
func NewVentilator(store *params.Store) Ventilator {
	return Ventilator{
		PEEP:    store.GetDefault("ventilator_params.PEEP", 5),
		PInsp:   store.GetDefault("ventilator_params.P_insp", 15),
		IERatio: store.GetDefault("ventilator_params.IE_ratio", 1),
	}
}

// PressureAt returns the airway pressure in mmHg at time t for the given
// respiratory rate.
func (v Ventilator) PressureAt(t, rr float64) float64 {
	if rr < 1 {
		rr = 1
	}
	period := 60 / rr
	ti := period * v.IERatio / (1 + v.IERatio)

	if math.Mod(t, period) <= ti {
		return (v.PEEP + v.PInsp) * cmH2OToMmHg
	}
	return v.PEEP * cmH2OToMmHg
}
