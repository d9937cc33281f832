package vitals

// AveragingBuffer is a fixed-capacity rolling mean over the most recent
// samples of one vital.
type AveragingBuffer struct {
	values []float64
	cursor int
	filled int
}

// NewAveragingBuffer creates a buffer averaging the last n samples. n is
// clamped to at least 1.
func NewAveragingBuffer(n int) *AveragingBuffer {
	if n < 1 {
		n = 1
	}
	return &AveragingBuffer{values: make([]float64, n)}
}

// Add records a sample, evicting the oldest once full.
func (b *AveragingBuffer) Add(v float64) {
	b.values[b.cursor] = v
	b.cursor = (b.cursor + 1) % len(b.values)
	if b.filled < len(b.values) {
		b.filled++
	}
}

// Mean returns the average of the recorded samples, or 0 before the first
// sample.
func (b *AveragingBuffer) Mean() float64 {
	if b.filled == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < b.filled; i++ {
		sum += b.values[i]
	}
	return sum / float64(b.filled)
}

// Reset discards all samples.
func (b *AveragingBuffer) Reset() {
	b.cursor = 0
	b.filled = 0
}

// PressureWindow keeps the most recent arterial pressure samples of one
// reporting period and extracts systolic and diastolic extrema from them.
type PressureWindow struct {
	samples []float64
}

// NewPressureWindow creates a window with the given sample capacity.
func NewPressureWindow(capacity int) *PressureWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &PressureWindow{samples: make([]float64, 0, capacity)}
}

// Add records a pressure sample, evicting the oldest when full.
func (w *PressureWindow) Add(p float64) {
	if len(w.samples) == cap(w.samples) {
		copy(w.samples, w.samples[1:])
		w.samples[len(w.samples)-1] = p
		return
	}
	w.samples = append(w.samples, p)
}

// Extrema returns the maximum and minimum pressure over the window. Both
// are 0 before the first sample.
func (w *PressureWindow) Extrema() (sap, dap float64) {
	if len(w.samples) == 0 {
		return 0, 0
	}
	sap, dap = w.samples[0], w.samples[0]
	for _, p := range w.samples[1:] {
		if p > sap {
			sap = p
		}
		if p < dap {
			dap = p
		}
	}
	return sap, dap
}

// MAPFilter estimates the mean arterial pressure from a fixed-length
// rolling buffer of raw pressure samples. While the buffer fills the
// estimate is the arithmetic mean; once full it is a zero-phase low-pass:
// a first-order exponential filter run forward and then backward over the
// buffer, which cancels the phase lag of a single pass.
type MAPFilter struct {
	samples []float64
	cursor  int
	filled  int
	alpha   float64

	forward  []float64
	backward []float64
}

// NewMAPFilter creates a filter over n samples with smoothing factor
// alpha in (0, 1]. Smaller alpha smooths harder.
func NewMAPFilter(n int, alpha float64) *MAPFilter {
	if n < 1 {
		n = 1
	}
	if alpha <= 0 || alpha > 1 {
		alpha = 0.1
	}
	return &MAPFilter{
		samples:  make([]float64, n),
		alpha:    alpha,
		forward:  make([]float64, n),
		backward: make([]float64, n),
	}
}

// Add records a raw pressure sample.
func (f *MAPFilter) Add(p float64) {
	f.samples[f.cursor] = p
	f.cursor = (f.cursor + 1) % len(f.samples)
	if f.filled < len(f.samples) {
		f.filled++
	}
}

// Full reports whether the buffer holds its full sample count.
func (f *MAPFilter) Full() bool { return f.filled == len(f.samples) }

// Estimate returns the current mean-pressure estimate.
func (f *MAPFilter) Estimate() float64 {
	if f.filled == 0 {
		return 0
	}
	if !f.Full() {
		sum := 0.0
		for i := 0; i < f.filled; i++ {
			sum += f.samples[i]
		}
		return sum / float64(f.filled)
	}

	n := len(f.samples)
	for i := 0; i < n; i++ {
		chron := f.samples[(f.cursor+i)%n]
		if i == 0 {
			f.forward[i] = chron
			continue
		}
		f.forward[i] = f.forward[i-1] + f.alpha*(chron-f.forward[i-1])
	}
	for i := n - 1; i >= 0; i-- {
		if i == n-1 {
			f.backward[i] = f.forward[i]
			continue
		}
		f.backward[i] = f.backward[i+1] + f.alpha*(f.forward[i]-f.backward[i+1])
	}

	sum := 0.0
	for _, v := range f.backward {
		sum += v
	}
	return sum / float64(n)
}
