package respiration

import (
	"math"

	"github.com/Lex-mmm/sasicu-example/params"
)

// Gas-exchange constants. The partial-pressure factor converts a dry gas
// fraction to a partial pressure at body conditions; the solubility factor
// converts a blood concentration difference into a partial-pressure flux.
const (
	partialPressureFactor = 713
	solubilityFactor      = 863

	// pO2Clamp bounds arterial pO2 before any content calculation. The
	// saturating-exponential content curve is flat above it; without the
	// clamp extreme inputs overflow the exponential.
	pO2Clamp = 700

	// systemicFraction of cardiac output perfuses the systemic tissue
	// compartment.
	systemicFraction = 0.8

	// ventilatorInspThreshold marks the inspiratory phase of the
	// ventilator square wave (6 cmH2O in mmHg).
	ventilatorInspThreshold = 6 * cmH2OToMmHg
)

// GasExchange holds the cached gas-exchange coefficients, recomputed after
// any mutation of the gas or metabolic parameters.
type GasExchange struct {
	FIO2  float64 // inspired O2 fraction
	FICO2 float64 // inspired CO2 fraction
	VD    float64 // dead-space volume, L
	VA    float64 // alveolar volume, L

	KCO2  float64 // CO2 content slope
	KCO2b float64 // CO2 content intercept
	KO2   float64 // O2 capacity
	KO2e  float64 // O2 content exponent

	CO    float64 // cardiac output, L/s
	Shunt float64

	MSCO2 float64 // tissue CO2 production, L/s
	MSO2  float64 // tissue O2 production (negative), L/s
	DSCO2 float64 // tissue-capillary CO2 diffusion constant
	DSO2  float64

	VStisCO2 float64 // tissue and capillary gas store volumes, L
	VScapCO2 float64
	VStisO2  float64
	VScapO2  float64
}

// NewGasExchange caches the gas-exchange coefficients from the store. It
// requires ComputeDerived to have run.
func NewGasExchange(store *params.Store) (*GasExchange, error) {
	g := &GasExchange{}

	for key, dst := range map[string]*float64{
		"gas_exchange_params.FI_O2":  &g.FIO2,
		"gas_exchange_params.FI_CO2": &g.FICO2,
		"gas_exchange_params.V_D":    &g.VD,
		"gas_exchange_params.V_A":    &g.VA,
		"params.K_CO2":               &g.KCO2,
		"params.k_CO2":               &g.KCO2b,
		"params.K_O2":                &g.KO2,
		"params.k_O2":                &g.KO2e,
		"bloodflows.CO":              &g.CO,
		"bloodflows.sh":              &g.Shunt,
		"params.M_S_CO2":             &g.MSCO2,
		"params.M_S_O2":              &g.MSO2,
		"gas_exchange_params.D_S_CO2": &g.DSCO2,
		"gas_exchange_params.D_S_O2":  &g.DSO2,
		"params.V_Stis_CO2":          &g.VStisCO2,
		"params.V_Scap_CO2":          &g.VScapCO2,
		"params.V_Stis_O2":           &g.VStisO2,
		"params.V_Scap_O2":           &g.VScapO2,
	} {
		v, err := store.Get(key)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	return g, nil
}

// GasState is the gas-exchange slice of the state vector.
type GasState struct {
	FDO2  float64 // dead-space O2 fraction
	FDCO2 float64 // dead-space CO2 fraction
	PaCO2 float64 // arterial CO2 partial pressure, mmHg
	PaO2  float64 // arterial O2 partial pressure, mmHg

	CStisCO2 float64 // tissue and capillary concentrations
	CScapCO2 float64
	CStisO2  float64
	CScapO2  float64
}

// GasDerivatives mirrors GasState.
type GasDerivatives struct {
	FDO2, FDCO2, PaCO2, PaO2           float64
	CStisCO2, CScapCO2, CStisO2, CScapO2 float64
}

// Inspiring reports whether the model is in its inspiratory gas-transport
// phase: positive ventilator drive above the inspiratory threshold under
// mechanical ventilation, or a negative proximal airway state during
// spontaneous breathing.
func Inspiring(mechanicalVentilation bool, pao, proximalState float64) bool {
	if mechanicalVentilation {
		return pao > ventilatorInspThreshold
	}
	return proximalState < 0
}

// ClampPaO2 bounds arterial pO2 to [0, pO2Clamp]. The clamp is applied
// before any use of the value, so every downstream formula sees the same
// bounded pressure.
func ClampPaO2(p float64) float64 {
	return math.Max(0, math.Min(p, pO2Clamp))
}

// ArterialCO2Content converts arterial CO2 partial pressure to content via
// the linear dissociation relation.
func (g *GasExchange) ArterialCO2Content(paCO2 float64) float64 {
	return g.KCO2*paCO2 + g.KCO2b
}

// ArterialO2Content converts arterial O2 partial pressure to content via a
// saturating exponential curve.
func (g *GasExchange) ArterialO2Content(paO2 float64) float64 {
	paO2 = ClampPaO2(paO2)
	s := 1 - math.Exp(-g.KO2e*paO2)
	return g.KO2 * s * s
}

// SpO2 returns the oxygen saturation in percent for an arterial pO2. The
// curve is monotonically non-decreasing up to the clamp and flat beyond it.
func (g *GasExchange) SpO2(paO2 float64) float64 {
	paO2 = ClampPaO2(paO2)
	s := 1 - math.Exp(-g.KO2e*paO2)
	return 100 * s * s
}

// Derivatives integrates the dead-space, alveolar and tissue gas dynamics.
// vdotL and vdotA are the airway and alveolar flows in L/s; inspiring
// selects convective transport from the inspired mixture versus exchange
// with the alveolar fraction alone.
func (g *GasExchange) Derivatives(
	s *GasState,
	vdotL, vdotA float64,
	inspiring bool,
) GasDerivatives {
	var d GasDerivatives

	paO2 := ClampPaO2(s.PaO2)

	pDCO2 := s.FDCO2 * partialPressureFactor
	pDO2 := s.FDO2 * partialPressureFactor
	fACO2 := s.PaCO2 / partialPressureFactor
	fAO2 := paO2 / partialPressureFactor

	cACO2 := g.ArterialCO2Content(s.PaCO2)
	cAO2 := g.ArterialO2Content(paO2)

	// Venous blood entering the lungs carries the capillary
	// concentrations.
	cVCO2 := s.CScapCO2
	cVO2 := s.CScapO2

	qp := g.CO
	perfusion := solubilityFactor * qp * (1 - g.Shunt)

	if inspiring {
		d.FDO2 = vdotL * 1000 * (g.FIO2 - s.FDO2) / (g.VD * 1000)
		d.FDCO2 = vdotL * 1000 * (g.FICO2 - s.FDCO2) / (g.VD * 1000)
		d.PaCO2 = (perfusion*(cVCO2-cACO2) + vdotA*1000*(pDCO2-s.PaCO2)) /
			(g.VA * 1000)
		d.PaO2 = (perfusion*(cVO2-cAO2) + vdotA*1000*(pDO2-paO2)) /
			(g.VA * 1000)
	} else {
		d.FDO2 = vdotA * 1000 * (s.FDO2 - fAO2) / (g.VD * 1000)
		d.FDCO2 = vdotA * 1000 * (s.FDCO2 - fACO2) / (g.VD * 1000)
		d.PaCO2 = perfusion * (cVCO2 - cACO2) / (g.VA * 1000)
		d.PaO2 = perfusion * (cVO2 - cAO2) / (g.VA * 1000)
	}

	qs := systemicFraction * g.CO

	d.CStisCO2 = (g.MSCO2 - g.DSCO2*(s.CStisCO2-s.CScapCO2)) / g.VStisCO2
	d.CScapCO2 = (qs*(cACO2-s.CScapCO2) + g.DSCO2*(s.CStisCO2-s.CScapCO2)) /
		g.VScapCO2
	d.CStisO2 = (g.MSO2 - g.DSO2*(s.CStisO2-s.CScapO2)) / g.VStisO2
	d.CScapO2 = (qs*(cAO2-s.CScapO2) + g.DSO2*(s.CStisO2-s.CScapO2)) /
		g.VScapO2

	return d
}
