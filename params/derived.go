package params

import "math"

// ComputeDerived applies the fixed derivation formula set to the store. The
// formulas are load-bearing for the gas-exchange and reflex subsystems and
// are deliberately not configurable: the document supplies the primitive
// quantities (metabolic rates, volume fractions, time constants, reflex
// sigmoid parameters) and everything below is recomputed from them.
//
// ComputeDerived may be called again after a parameter mutation; it
// overwrites all derived keys from the current primitives.
func (s *Store) ComputeDerived() error {
	if err := s.deriveMetabolic(); err != nil {
		return err
	}
	if err := s.deriveReflexOperatingPoint(); err != nil {
		return err
	}
	return nil
}

// deriveMetabolic splits whole-body metabolic rates into the systemic
// tissue compartment, sizes the tissue/capillary gas stores, converts
// diffusion time constants into diffusion constants, and back-derives the
// initial capillary concentrations so the tissue compartments start at
// equilibrium.
func (s *Store) deriveMetabolic() error {
	mrCO2, err := s.Get("gas_exchange_params.MR_CO2")
	if err != nil {
		return err
	}
	mrO2, err := s.Get("gas_exchange_params.MR_O2")
	if err != nil {
		return err
	}

	// CO2 is produced, O2 is consumed; the signs make both tissue ODEs use
	// the same production-minus-diffusion form.
	s.set("params.M_S_CO2", mrCO2)
	s.set("params.M_S_O2", -mrO2)

	vTissue, err := s.Get("misc_constants.V_tissue")
	if err != nil {
		return err
	}

	for _, gas := range []string{"CO2", "O2"} {
		fTis, err := s.Get("gas_exchange_params.f_V_tis_" + gas)
		if err != nil {
			return err
		}
		fCap, err := s.Get("gas_exchange_params.f_V_cap_" + gas)
		if err != nil {
			return err
		}
		tau, err := s.Get("gas_exchange_params.tau_S_" + gas)
		if err != nil {
			return err
		}
		if tau <= 0 {
			return &ConfigurationError{
				Reason: "gas_exchange_params.tau_S_" + gas + " must be positive",
			}
		}

		vTis := vTissue * fTis
		vCap := vTissue * fCap
		s.set("params.V_Stis_"+gas, vTis)
		s.set("params.V_Scap_"+gas, vCap)
		s.set("gas_exchange_params.D_S_"+gas, vTis/tau)
	}

	// Capillary initials chosen so that M = D * (c_tis - c_cap) at t = 0.
	for _, gas := range []string{"CO2", "O2"} {
		cTis, err := s.Get("initial_conditions.c_Stis_" + gas)
		if err != nil {
			return err
		}
		m := s.MustGet("params.M_S_" + gas)
		d := s.MustGet("gas_exchange_params.D_S_" + gas)
		if d == 0 {
			return &ConfigurationError{
				Reason: "gas_exchange_params.D_S_" + gas + " derived as zero",
			}
		}
		s.set("initial_conditions.c_Scap_"+gas, cTis-m/d)
	}

	return nil
}

// deriveReflexOperatingPoint evaluates the baroreflex afferent and efferent
// firing rates at the arterial pressure setpoint. The reflex channels
// operate on deviations from these rates, so at the setpoint all offsets
// vanish.
func (s *Store) deriveReflexOperatingPoint() error {
	need := []string{
		"cardio_control_params.ABP_n",
		"cardio_control_params.k_a",
		"cardio_control_params.f_min",
		"cardio_control_params.f_max",
		"cardio_control_params.f_es_inf",
		"cardio_control_params.f_es_0",
		"cardio_control_params.k_es",
		"cardio_control_params.f_ev_0",
		"cardio_control_params.f_ev_inf",
		"cardio_control_params.k_ev",
		"cardio_control_params.f_ab_0",
	}
	for _, k := range need {
		if !s.Has(k) {
			return &UnknownParameterError{Path: k}
		}
	}

	fMin := s.MustGet("cardio_control_params.f_min")
	fMax := s.MustGet("cardio_control_params.f_max")

	// Afferent sigmoid at the setpoint: exp(0) = 1.
	fAbN := (fMin + fMax) / 2
	s.set("cardio_control_params.f_ab_n", fAbN)

	fEsInf := s.MustGet("cardio_control_params.f_es_inf")
	fEs0 := s.MustGet("cardio_control_params.f_es_0")
	kEs := s.MustGet("cardio_control_params.k_es")
	s.set("cardio_control_params.f_es_n",
		fEsInf+(fEs0-fEsInf)*math.Exp(-kEs*fAbN))

	fEv0 := s.MustGet("cardio_control_params.f_ev_0")
	fEvInf := s.MustGet("cardio_control_params.f_ev_inf")
	kEv := s.MustGet("cardio_control_params.k_ev")
	fAb0 := s.MustGet("cardio_control_params.f_ab_0")
	e := math.Exp((fAbN - fAb0) / kEv)
	s.set("cardio_control_params.f_ev_n", (fEv0+fEvInf*e)/(1+e))

	return nil
}
