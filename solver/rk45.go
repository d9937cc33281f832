// Package solver provides the adaptive Dormand-Prince integrator that
// advances the physiological state vector across fixed reporting windows.
package solver

import "math"

// Func evaluates the time derivative of the state. dy has the same length
// as y and is overwritten.
type Func func(t float64, y, dy []float64)

// Dormand-Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}

	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}

	// Fifth-order solution weights.
	dpB5 = [7]float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192,
		-2187.0 / 6784, 11.0 / 84, 0}

	// Difference between the fifth- and embedded fourth-order weights,
	// used directly as the error estimate.
	dpE = [7]float64{71.0 / 57600, 0, -71.0 / 16695, 71.0 / 1920,
		-17253.0 / 339200, 22.0 / 525, -1.0 / 40}
)

const (
	stepSafety = 0.9
	stepShrink = 0.2
	stepGrow   = 5.0
	stepOrder  = 5.0
)

// RK45 is an adaptive Dormand-Prince 5(4) integrator. The zero value is not
// usable; construct with NewRK45.
type RK45 struct {
	RTol    float64
	ATol    float64
	MinStep float64
	MaxStep float64

	k    [7][]float64
	ynew []float64
	yerr []float64

	// Step size carried across windows so each window does not restart
	// the step-size search from scratch.
	h float64
}

// NewRK45 creates an integrator for state vectors of length n with the
// given relative and absolute tolerances.
func NewRK45(n int, rtol, atol float64) *RK45 {
	s := &RK45{
		RTol:    rtol,
		ATol:    atol,
		MinStep: 1e-10,
		MaxStep: math.Inf(1),
	}
	for i := range s.k {
		s.k[i] = make([]float64, n)
	}
	s.ynew = make([]float64, n)
	s.yerr = make([]float64, n)
	return s
}

// Integrate advances y in place from t0 to t1, taking as many adaptive
// steps as the tolerances require. On failure y is left unchanged and the
// returned error wraps ErrStepTooSmall or ErrUnstable in an
// *IntegrationError carrying the failure time and step size.
func (s *RK45) Integrate(f Func, t0, t1 float64, y []float64) error {
	if t1 <= t0 {
		return nil
	}

	backup := append([]float64(nil), y...)

	t := t0
	h := s.h
	if h <= 0 || h > t1-t0 {
		h = t1 - t0
	}
	if h > s.MaxStep {
		h = s.MaxStep
	}

	f(t, y, s.k[0])
	if !finite(s.k[0]) {
		copy(y, backup)
		return &IntegrationError{Time: t, Step: h, Wrapped: ErrUnstable}
	}

	for t < t1 {
		if h < s.MinStep {
			copy(y, backup)
			return &IntegrationError{Time: t, Step: h, Wrapped: ErrStepTooSmall}
		}
		if t+h > t1 {
			h = t1 - t
		}

		// Stages 2..7. Stage 7 evaluates at the fifth-order solution,
		// so its derivative is reused as the first stage of the next
		// step when the step is accepted.
		for i := 1; i < 7; i++ {
			for j := range s.ynew {
				acc := 0.0
				for l := 0; l < i; l++ {
					acc += dpA[i][l] * s.k[l][j]
				}
				s.ynew[j] = y[j] + h*acc
			}
			f(t+dpC[i]*h, s.ynew, s.k[i])
		}

		for j := range s.yerr {
			acc := 0.0
			for i := range dpE {
				acc += dpE[i] * s.k[i][j]
			}
			s.yerr[j] = h * acc
		}

		if !finite(s.ynew) || !finite(s.yerr) {
			copy(y, backup)
			return &IntegrationError{Time: t, Step: h, Wrapped: ErrUnstable}
		}

		norm := s.errorNorm(y, s.ynew, s.yerr)

		if norm <= 1 {
			t += h
			copy(y, s.ynew)
			copy(s.k[0], s.k[6])
		}

		factor := stepGrow
		if norm > 0 {
			factor = stepSafety * math.Pow(norm, -1/stepOrder)
		}
		if factor < stepShrink {
			factor = stepShrink
		} else if factor > stepGrow {
			factor = stepGrow
		}
		h *= factor
		if h > s.MaxStep {
			h = s.MaxStep
		}
	}

	s.h = h
	return nil
}

// Reset discards the carried step size, forcing the next window to start
// from a full-window trial step.
func (s *RK45) Reset() { s.h = 0 }

func (s *RK45) errorNorm(y, ynew, yerr []float64) float64 {
	sum := 0.0
	for j := range yerr {
		scale := s.ATol + s.RTol*math.Max(math.Abs(y[j]), math.Abs(ynew[j]))
		r := yerr[j] / scale
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(yerr)))
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
