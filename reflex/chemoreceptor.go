package reflex

import "github.com/Lex-mmm/sasicu-example/params"

// ChemoCoefficients are the cached chemoreceptor constants, recomputed from
// the parameter store after any mutation of respiratory_control_params.
//
// The CO2 and O2 gains are deliberately scaled down by the damping factors:
// undamped loop gains drive the coupled respiratory system into sustained
// oscillation.
type ChemoCoefficients struct {
	CO2Setpoint float64 // PaCO2_n, mmHg
	O2Threshold float64 // hypoxic drive activates below this pO2

	GainRR   float64 // respiratory-rate gain per mmHg CO2
	TauRR    float64
	GainPmus float64 // muscle-pressure gain per mmHg CO2
	TauPmus  float64

	DampRR   float64
	DampPmus float64

	GainRRO2   float64 // hypoxic gains, applied negated
	GainPmusO2 float64

	DelayCO2 float64 // afferent delays in seconds
	DelayO2  float64

	// Legacy undelayed channel (superseded by the delayed one; retained
	// for the legacy state slots).
	LegacyGainRR   float64
	LegacyTauRR    float64
	LegacyGainPmus float64
	LegacyTauPmus  float64
}

// RecacheChemo rebuilds the chemoreceptor coefficients from the store.
func RecacheChemo(store *params.Store) (ChemoCoefficients, error) {
	var c ChemoCoefficients
	for key, dst := range map[string]*float64{
		"respiratory_control_params.PaCO2_n":   &c.CO2Setpoint,
		"respiratory_control_params.p_O2_t":    &c.O2Threshold,
		"respiratory_control_params.Gc_f":      &c.GainRR,
		"respiratory_control_params.tau_p_f":   &c.TauRR,
		"respiratory_control_params.Gc_A":      &c.GainPmus,
		"respiratory_control_params.tau_c_A":   &c.TauPmus,
		"respiratory_control_params.damp_f":    &c.DampRR,
		"respiratory_control_params.damp_A":    &c.DampPmus,
		"respiratory_control_params.G_f_O2":    &c.GainRRO2,
		"respiratory_control_params.G_A_O2":    &c.GainPmusO2,
		"respiratory_control_params.delay_CO2": &c.DelayCO2,
		"respiratory_control_params.delay_O2":  &c.DelayO2,
	} {
		v, err := store.Get(key)
		if err != nil {
			return c, err
		}
		*dst = v
	}

	c.LegacyGainRR = c.GainRR
	c.LegacyTauRR = c.TauRR
	c.LegacyGainPmus = c.GainPmus
	c.LegacyTauPmus = c.TauPmus

	return c, nil
}

// ChemoState is the chemoreceptor slice of the state vector.
type ChemoState struct {
	LegacyRROffset   float64 // state 23, superseded
	LegacyPmusOffset float64 // state 24, superseded

	RROffset   float64 // state 33, consumed by the breathing drive
	PmusOffset float64 // state 34, consumed by the breathing drive
}

// ChemoDerivatives mirrors ChemoState.
type ChemoDerivatives struct {
	LegacyRROffset, LegacyPmusOffset float64
	RROffset, PmusOffset             float64
}

// Chemoreceptor owns the afferent gas delay lines.
type Chemoreceptor struct {
	Coef ChemoCoefficients

	co2Delay *DelayBuffer
	o2Delay  *DelayBuffer
}

// NewChemoreceptor creates the reflex with delay lines sized for the
// integration step dt, primed with the initial arterial gas tensions.
func NewChemoreceptor(store *params.Store, dt float64) (*Chemoreceptor, error) {
	coef, err := RecacheChemo(store)
	if err != nil {
		return nil, err
	}

	c := &Chemoreceptor{Coef: coef}
	paCO2 := store.GetDefault("initial_conditions.p_a_CO2", coef.CO2Setpoint)
	paO2 := store.GetDefault("initial_conditions.p_a_O2", 95)
	c.co2Delay = NewDelayBuffer(delaySteps(coef.DelayCO2, dt), paCO2)
	c.o2Delay = NewDelayBuffer(delaySteps(coef.DelayO2, dt), paO2)

	return c, nil
}

// Recache refreshes the coefficient set, keeping the delay history.
func (c *Chemoreceptor) Recache(store *params.Store) error {
	coef, err := RecacheChemo(store)
	if err != nil {
		return err
	}
	c.Coef = coef
	return nil
}

// PushGases records the current arterial gas tensions into the delay
// lines. Called once per integration window.
func (c *Chemoreceptor) PushGases(paCO2, paO2 float64) {
	c.co2Delay.Push(paCO2)
	c.o2Delay.Push(paO2)
}

// Derivatives evaluates the chemoreceptor dynamics. paCO2 is the current
// (undelayed) arterial CO2 tension feeding the legacy channel. When the
// reflex is disabled the offsets relax toward zero.
func (c *Chemoreceptor) Derivatives(s *ChemoState, paCO2 float64, enabled bool) ChemoDerivatives {
	k := &c.Coef
	var d ChemoDerivatives

	rrDrive := 0.0
	pmusDrive := 0.0
	legacyU := 0.0
	if enabled {
		uCO2 := c.co2Delay.Delayed() - k.CO2Setpoint

		// The hypoxic drive only engages below the threshold tension;
		// its deviation is negative there, so the negated gain raises
		// ventilation.
		uO2 := 0.0
		if delayedO2 := c.o2Delay.Delayed(); delayedO2 < k.O2Threshold {
			uO2 = delayedO2 - k.O2Threshold
		}

		rrDrive = k.DampRR * (k.GainRR*uCO2 - k.GainRRO2*uO2)
		pmusDrive = k.DampPmus * (k.GainPmus*uCO2 - k.GainPmusO2*uO2)
		legacyU = paCO2 - k.CO2Setpoint
	}

	d.RROffset = (rrDrive - s.RROffset) / k.TauRR
	d.PmusOffset = (pmusDrive - s.PmusOffset) / k.TauPmus

	d.LegacyRROffset = (k.LegacyGainRR*legacyU - s.LegacyRROffset) / k.LegacyTauRR
	d.LegacyPmusOffset = (k.LegacyGainPmus*legacyU - s.LegacyPmusOffset) / k.LegacyTauPmus

	return d
}
