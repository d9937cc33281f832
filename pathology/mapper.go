// Package pathology holds the event queue that injects parameter changes
// into a running simulation, and the percent/spline mappers that translate
// relative changes into absolute parameter values.
package pathology

import (
	"fmt"

	"github.com/Lex-mmm/sasicu-example/params"
)

// Mapper translates between absolute parameter values and a percent scale.
// Both directions must be monotonic. Implementations are supplied by the
// scenario layer; BoundsMapper is the built-in default.
type Mapper interface {
	// PercentOf maps an absolute value of the named parameter to percent.
	PercentOf(value float64, name string) (float64, error)

	// Spline returns the inverse mapping for the named parameter, from
	// percent back to an absolute value.
	Spline(name string) (func(percent float64) float64, error)
}

type segment struct {
	lo, mid, hi float64
}

// BoundsMapper maps each bounded parameter onto a two-segment piecewise
// linear percent scale: the configured default value sits at 50%, the lower
// bound at 0% and the upper bound at 100%.
type BoundsMapper struct {
	segments map[string]segment
}

// NewBoundsMapper builds a mapper from every bounded entry in the store,
// anchored at the entry values current at construction time.
func NewBoundsMapper(store *params.Store) *BoundsMapper {
	m := &BoundsMapper{segments: make(map[string]segment)}
	for _, key := range store.Keys() {
		e, err := store.Entry(key)
		if err != nil || !e.HasMin || !e.HasMax || e.Max <= e.Min {
			continue
		}
		mid := e.Value
		if mid <= e.Min || mid >= e.Max {
			mid = (e.Min + e.Max) / 2
		}
		m.segments[key] = segment{lo: e.Min, mid: mid, hi: e.Max}
	}
	return m
}

func (m *BoundsMapper) segmentFor(name string) (segment, error) {
	s, ok := m.segments[name]
	if !ok {
		return s, fmt.Errorf("pathology: no percent mapping for %q", name)
	}
	return s, nil
}

// PercentOf maps value onto the percent scale of name, clamped to [0, 100].
func (m *BoundsMapper) PercentOf(value float64, name string) (float64, error) {
	s, err := m.segmentFor(name)
	if err != nil {
		return 0, err
	}
	var p float64
	switch {
	case value <= s.lo:
		p = 0
	case value >= s.hi:
		p = 100
	case value <= s.mid:
		p = 50 * (value - s.lo) / (s.mid - s.lo)
	default:
		p = 50 + 50*(value-s.mid)/(s.hi-s.mid)
	}
	return p, nil
}

// Spline returns the percent-to-value mapping for name. The returned
// function clamps its argument to [0, 100].
func (m *BoundsMapper) Spline(name string) (func(float64) float64, error) {
	s, err := m.segmentFor(name)
	if err != nil {
		return nil, err
	}
	return func(percent float64) float64 {
		switch {
		case percent <= 0:
			return s.lo
		case percent >= 100:
			return s.hi
		case percent <= 50:
			return s.lo + (s.mid-s.lo)*percent/50
		default:
			return s.mid + (s.hi-s.mid)*(percent-50)/50
		}
	}, nil
}
