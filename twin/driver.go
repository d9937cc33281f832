package twin

import (
	"context"
	"time"
)

// Driver runs a Runtime's step loop, optionally pacing simulation time to
// wall-clock time for live monitoring. The core stepping stays free of
// wall-clock dependencies; only the driver sleeps.
type Driver struct {
	Runtime *Runtime

	// RealTime paces the loop so one simulated second takes one wall
	// second. When false the loop runs at full speed.
	RealTime bool
}

// Run steps the runtime for the given simulated duration in seconds, or
// until the context is cancelled. Cancellation is checked between steps;
// no step blocks indefinitely.
func (d *Driver) Run(ctx context.Context, duration float64) error {
	r := d.Runtime
	end := r.Now() + duration
	start := time.Now()
	simStart := r.Now()

	for r.Now() < end {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.Step()

		if d.RealTime {
			target := start.Add(
				time.Duration((r.Now() - simStart) * float64(time.Second)))
			if lag := time.Until(target); lag > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(lag):
				}
			}
		}
	}

	return nil
}
