package solver

import (
	"errors"
	"fmt"
)

// Failure modes of the adaptive integrator.
var (
	// ErrStepTooSmall indicates the adaptive step shrank below the minimum
	// without meeting the tolerance.
	ErrStepTooSmall = errors.New("solver: adaptive step below minimum")

	// ErrUnstable indicates NaN or Inf appeared in the state or its
	// derivative.
	ErrUnstable = errors.New("solver: state diverged (NaN or Inf)")
)

// IntegrationError wraps an integrator failure with the time and step size
// at which it occurred.
type IntegrationError struct {
	Time    float64
	Step    float64
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration failed at t=%.6f, h=%.3e: %v",
		e.Time, e.Step, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}
