// Package reflex implements the two autonomic feedback loops: the
// baroreflex (arterial pressure to heart rate, vascular resistance and
// unstressed volume) and the chemoreceptor reflex (blood gases to
// respiratory rate and muscle-pressure drive).
package reflex

// DelayBuffer is a fixed-capacity ring of historical scalar values. Pushing
// a value evicts the oldest one; Delayed returns the value pushed capacity
// steps ago. The buffer starts filled with a given value so the delayed
// signal is defined from the first step.
type DelayBuffer struct {
	values []float64
	cursor int
}

// NewDelayBuffer creates a buffer holding n historical values, all
// initialized to fill. n is clamped to at least 1.
func NewDelayBuffer(n int, fill float64) *DelayBuffer {
	if n < 1 {
		n = 1
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = fill
	}
	return &DelayBuffer{values: values}
}

// Push appends v and evicts the oldest value.
func (b *DelayBuffer) Push(v float64) {
	b.values[b.cursor] = v
	b.cursor = (b.cursor + 1) % len(b.values)
}

// Delayed returns the oldest value in the buffer.
func (b *DelayBuffer) Delayed() float64 {
	return b.values[b.cursor]
}

// Len returns the buffer capacity.
func (b *DelayBuffer) Len() int { return len(b.values) }

// Reset refills the buffer with v.
func (b *DelayBuffer) Reset(v float64) {
	for i := range b.values {
		b.values[i] = v
	}
	b.cursor = 0
}
