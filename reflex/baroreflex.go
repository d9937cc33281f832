package reflex

import (
	"math"

	"github.com/Lex-mmm/sasicu-example/params"
)

// BaroCoefficients are the cached baroreflex constants, recomputed from the
// parameter store after any mutation of cardio_control_params.
type BaroCoefficients struct {
	Setpoint  float64 // arterial pressure setpoint, mmHg
	TauFilter float64 // afferent pressure filter time constant

	// Afferent sigmoid.
	FMin, FMax, KA float64

	// Sympathetic efferent exponential.
	FEsInf, FEs0, KEs float64

	// Vagal efferent sigmoid.
	FEv0, FEvInf, KEv, FAb0 float64

	// Operating-point firing rates (derived by the parameter store).
	FEsN, FEvN float64

	// Channel gains and time constants.
	GHrS, TauHrS float64
	GHrV, TauHrV float64
	GR, TauR     float64
	GUv, TauUv   float64
	TauApply     float64

	// Efferent delays in seconds.
	DelayS, DelayV float64
}

// RecacheBaro rebuilds the baroreflex coefficients from the store.
func RecacheBaro(store *params.Store) (BaroCoefficients, error) {
	var c BaroCoefficients
	for key, dst := range map[string]*float64{
		"cardio_control_params.ABP_n":      &c.Setpoint,
		"cardio_control_params.tau_filter": &c.TauFilter,
		"cardio_control_params.f_min":      &c.FMin,
		"cardio_control_params.f_max":      &c.FMax,
		"cardio_control_params.k_a":        &c.KA,
		"cardio_control_params.f_es_inf":   &c.FEsInf,
		"cardio_control_params.f_es_0":     &c.FEs0,
		"cardio_control_params.k_es":       &c.KEs,
		"cardio_control_params.f_ev_0":     &c.FEv0,
		"cardio_control_params.f_ev_inf":   &c.FEvInf,
		"cardio_control_params.k_ev":       &c.KEv,
		"cardio_control_params.f_ab_0":     &c.FAb0,
		"cardio_control_params.f_es_n":     &c.FEsN,
		"cardio_control_params.f_ev_n":     &c.FEvN,
		"cardio_control_params.G_hr_s":     &c.GHrS,
		"cardio_control_params.tau_hr_s":   &c.TauHrS,
		"cardio_control_params.G_hr_v":     &c.GHrV,
		"cardio_control_params.tau_hr_v":   &c.TauHrV,
		"cardio_control_params.G_r":        &c.GR,
		"cardio_control_params.tau_r":      &c.TauR,
		"cardio_control_params.G_uv":       &c.GUv,
		"cardio_control_params.tau_uv":     &c.TauUv,
		"cardio_control_params.tau_apply":  &c.TauApply,
		"cardio_control_params.delay_s":    &c.DelayS,
		"cardio_control_params.delay_v":    &c.DelayV,
	} {
		v, err := store.Get(key)
		if err != nil {
			return c, err
		}
		*dst = v
	}
	return c, nil
}

// AfferentRate maps the filtered arterial pressure to the baroreceptor
// firing rate through a logistic curve centered on the setpoint.
func (c *BaroCoefficients) AfferentRate(filteredPressure float64) float64 {
	e := math.Exp((filteredPressure - c.Setpoint) / c.KA)
	return (c.FMin + c.FMax*e) / (1 + e)
}

// SympatheticRate maps the afferent rate to the sympathetic efferent firing
// rate. High pressure suppresses sympathetic outflow.
func (c *BaroCoefficients) SympatheticRate(afferent float64) float64 {
	return c.FEsInf + (c.FEs0-c.FEsInf)*math.Exp(-c.KEs*afferent)
}

// VagalRate maps the afferent rate to the vagal efferent firing rate. High
// pressure raises vagal outflow.
func (c *BaroCoefficients) VagalRate(afferent float64) float64 {
	e := math.Exp((afferent - c.FAb0) / c.KEv)
	return (c.FEv0 + c.FEvInf*e) / (1 + e)
}

// BaroState is the baroreflex slice of the state vector.
type BaroState struct {
	HROffset float64 // applied heart-rate offset (state 26)
	ROffset  float64 // applied resistance offset (state 27)
	UVOffset float64 // applied unstressed-volume offset (state 28)

	FilteredP float64 // first-order filtered arterial pressure (state 29)
	HRSymp    float64 // sympathetic heart-rate channel (state 30)
	HRVagal   float64 // vagal heart-rate channel (state 31)
	RChannel  float64 // resistance channel (state 32)
}

// BaroDerivatives mirrors BaroState.
type BaroDerivatives struct {
	HROffset, ROffset, UVOffset          float64
	FilteredP, HRSymp, HRVagal, RChannel float64
}

// Baroreflex owns the efferent delay lines. The runtime pushes the current
// efferent rates once per integration window; the derivative evaluation
// reads only the delayed heads, so the delayed signal is constant within a
// window.
type Baroreflex struct {
	Coef BaroCoefficients

	sympDelay  *DelayBuffer
	vagalDelay *DelayBuffer
}

// NewBaroreflex creates the reflex with delay lines sized for the
// integration step dt.
func NewBaroreflex(store *params.Store, dt float64) (*Baroreflex, error) {
	coef, err := RecacheBaro(store)
	if err != nil {
		return nil, err
	}

	b := &Baroreflex{Coef: coef}
	b.sympDelay = NewDelayBuffer(delaySteps(coef.DelayS, dt), coef.FEsN)
	b.vagalDelay = NewDelayBuffer(delaySteps(coef.DelayV, dt), coef.FEvN)

	return b, nil
}

func delaySteps(delay, dt float64) int {
	if dt <= 0 {
		return 1
	}
	return int(math.Round(delay / dt))
}

// Recache refreshes the coefficient set. The delay lines keep their history
// since their length derives from the unchanged integration step.
func (b *Baroreflex) Recache(store *params.Store) error {
	coef, err := RecacheBaro(store)
	if err != nil {
		return err
	}
	b.Coef = coef
	return nil
}

// PushEfferents evaluates the afferent chain at the current filtered
// pressure and records both efferent rates into their delay lines. Called
// once per integration window.
func (b *Baroreflex) PushEfferents(filteredPressure float64) {
	afferent := b.Coef.AfferentRate(filteredPressure)
	b.sympDelay.Push(b.Coef.SympatheticRate(afferent))
	b.vagalDelay.Push(b.Coef.VagalRate(afferent))
}

// Derivatives evaluates the reflex dynamics. arterialPressure is the
// instantaneous pressure of the systemic arterial compartment. When the
// reflex is disabled every channel relaxes toward zero.
func (b *Baroreflex) Derivatives(
	s *BaroState,
	arterialPressure float64,
	enabled bool,
) BaroDerivatives {
	c := &b.Coef
	var d BaroDerivatives

	d.FilteredP = (arterialPressure - s.FilteredP) / c.TauFilter

	sympDrive := 0.0
	vagalDrive := 0.0
	rDrive := 0.0
	uvDrive := 0.0
	if enabled {
		dSymp := b.sympDelay.Delayed() - c.FEsN
		dVagal := b.vagalDelay.Delayed() - c.FEvN
		sympDrive = c.GHrS * dSymp
		vagalDrive = c.GHrV * dVagal
		rDrive = c.GR * dSymp
		uvDrive = c.GUv * dSymp
	}

	d.HRSymp = (sympDrive - s.HRSymp) / c.TauHrS
	d.HRVagal = (vagalDrive - s.HRVagal) / c.TauHrV
	d.RChannel = (rDrive - s.RChannel) / c.TauR

	d.HROffset = (s.HRSymp + s.HRVagal - s.HROffset) / c.TauApply
	d.ROffset = (s.RChannel - s.ROffset) / c.TauApply
	d.UVOffset = (uvDrive - s.UVOffset) / c.TauUv

	return d
}
