// Package alarm evaluates averaged-vitals snapshots against configurable
// thresholds with hysteresis and reports alarm transitions.
package alarm

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// Alarm kinds, ordered by severity.
const (
	KindLow          = "LOW"
	KindHigh         = "HIGH"
	KindCriticalLow  = "CRITICAL_LOW"
	KindCriticalHigh = "CRITICAL_HIGH"
)

// Priorities.
const (
	PriorityMedium   = "MEDIUM"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// Limits configures the thresholds of one monitored parameter. Pointer
// fields are optional; a nil limit is never checked.
type Limits struct {
	Enabled      bool     `json:"enabled"`
	LowerLimit   *float64 `json:"lower_limit"`
	UpperLimit   *float64 `json:"upper_limit"`
	CriticalLow  *float64 `json:"critical_low"`
	CriticalHigh *float64 `json:"critical_high"`
	Hysteresis   float64  `json:"hysteresis"`
	MessageLow   string   `json:"message_low"`
	MessageHigh  string   `json:"message_high"`
	PriorityLow  string   `json:"priority_low"`
	PriorityHigh string   `json:"priority_high"`
}

// Config maps parameter codes to their limits.
type Config map[string]Limits

// Transition is one alarm state change: triggered when Active is true,
// resolved when false.
type Transition struct {
	Parameter string    `json:"parameter"`
	Kind      string    `json:"kind"`
	Active    bool      `json:"active"`
	Value     float64   `json:"value"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}

func f(v float64) *float64 { return &v }

// DefaultAdultConfig returns the built-in adult threshold set.
func DefaultAdultConfig() Config {
	return Config{
		"SpO2": {
			Enabled: true, LowerLimit: f(95), UpperLimit: f(100),
			CriticalLow: f(85), Hysteresis: 2,
			MessageLow: "Low Oxygen Saturation", MessageHigh: "High Oxygen Saturation",
			PriorityLow: PriorityHigh, PriorityHigh: PriorityMedium,
		},
		"HR": {
			Enabled: true, LowerLimit: f(60), UpperLimit: f(100),
			CriticalLow: f(40), CriticalHigh: f(120), Hysteresis: 5,
			MessageLow: "Bradycardia", MessageHigh: "Tachycardia",
			PriorityLow: PriorityHigh, PriorityHigh: PriorityHigh,
		},
		"SAP": {
			Enabled: true, LowerLimit: f(90), UpperLimit: f(140),
			CriticalLow: f(70), CriticalHigh: f(180), Hysteresis: 10,
			MessageLow: "Hypotension", MessageHigh: "Hypertension",
			PriorityLow: PriorityHigh, PriorityHigh: PriorityMedium,
		},
		"DAP": {
			Enabled: true, LowerLimit: f(60), UpperLimit: f(90),
			CriticalLow: f(40), CriticalHigh: f(110), Hysteresis: 5,
			MessageLow: "Low Diastolic Pressure", MessageHigh: "High Diastolic Pressure",
			PriorityLow: PriorityMedium, PriorityHigh: PriorityMedium,
		},
		"MAP": {
			Enabled: true, LowerLimit: f(70), UpperLimit: f(105),
			CriticalLow: f(50), CriticalHigh: f(130), Hysteresis: 5,
			MessageLow: "Low Mean Arterial Pressure", MessageHigh: "High Mean Arterial Pressure",
			PriorityLow: PriorityHigh, PriorityHigh: PriorityMedium,
		},
		"Temp": {
			Enabled: true, LowerLimit: f(36), UpperLimit: f(37.8),
			CriticalLow: f(35), CriticalHigh: f(40), Hysteresis: 0.3,
			MessageLow: "Hypothermia", MessageHigh: "Hyperthermia",
			PriorityLow: PriorityMedium, PriorityHigh: PriorityMedium,
		},
		"RR": {
			Enabled: true, LowerLimit: f(12), UpperLimit: f(20),
			CriticalLow: f(8), CriticalHigh: f(30), Hysteresis: 2,
			MessageLow: "Bradypnea", MessageHigh: "Tachypnea",
			PriorityLow: PriorityMedium, PriorityHigh: PriorityMedium,
		},
		"EtCO2": {
			Enabled: true, LowerLimit: f(30), UpperLimit: f(45),
			CriticalLow: f(25), CriticalHigh: f(50), Hysteresis: 2,
			MessageLow: "Hypocapnia", MessageHigh: "Hypercapnia",
			PriorityLow: PriorityMedium, PriorityHigh: PriorityMedium,
		},
	}
}

// LoadConfig reads a threshold configuration from a JSON file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("alarm: reading config: %w", err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("alarm: parsing config: %w", err)
	}
	return c, nil
}

type paramState struct {
	low, high                 bool
	criticalLow, criticalHigh bool
}

// Evaluator tracks per-parameter alarm state across snapshots. It is not
// safe for concurrent use; the reporting loop owns it.
type Evaluator struct {
	config Config
	states map[string]*paramState
}

// NewEvaluator creates an evaluator over the given threshold set.
func NewEvaluator(config Config) *Evaluator {
	e := &Evaluator{config: config, states: make(map[string]*paramState)}
	for name := range config {
		e.states[name] = &paramState{}
	}
	return e
}

// Evaluate checks a vitals snapshot and returns the alarm transitions it
// causes, in deterministic parameter order. Critical limits are checked
// first; ordinary limits are suppressed while a critical alarm is active.
func (e *Evaluator) Evaluate(snapshot map[string]float64, now time.Time) []Transition {
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		if _, ok := e.config[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var out []Transition
	for _, name := range names {
		cfg := e.config[name]
		if !cfg.Enabled {
			continue
		}
		out = append(out, e.check(name, snapshot[name], now)...)
	}
	return out
}

func (e *Evaluator) check(name string, value float64, now time.Time) []Transition {
	cfg := e.config[name]
	st := e.states[name]
	var out []Transition

	emit := func(kind string, active bool) {
		out = append(out, e.transition(name, kind, active, value, now))
	}

	// Triggered strictly past a limit, cleared once back inside the limit
	// widened by the hysteresis band.
	if cfg.CriticalLow != nil {
		switch {
		case value < *cfg.CriticalLow && !st.criticalLow:
			st.criticalLow = true
			emit(KindCriticalLow, true)
		case value >= *cfg.CriticalLow+cfg.Hysteresis && st.criticalLow:
			st.criticalLow = false
			emit(KindCriticalLow, false)
		}
	}
	if cfg.CriticalHigh != nil {
		switch {
		case value > *cfg.CriticalHigh && !st.criticalHigh:
			st.criticalHigh = true
			emit(KindCriticalHigh, true)
		case value <= *cfg.CriticalHigh-cfg.Hysteresis && st.criticalHigh:
			st.criticalHigh = false
			emit(KindCriticalHigh, false)
		}
	}

	if st.criticalLow || st.criticalHigh {
		return out
	}

	if cfg.LowerLimit != nil {
		switch {
		case value < *cfg.LowerLimit && !st.low:
			st.low = true
			emit(KindLow, true)
		case value >= *cfg.LowerLimit+cfg.Hysteresis && st.low:
			st.low = false
			emit(KindLow, false)
		}
	}
	if cfg.UpperLimit != nil {
		switch {
		case value > *cfg.UpperLimit && !st.high:
			st.high = true
			emit(KindHigh, true)
		case value <= *cfg.UpperLimit-cfg.Hysteresis && st.high:
			st.high = false
			emit(KindHigh, false)
		}
	}

	return out
}

func (e *Evaluator) transition(
	name, kind string,
	active bool,
	value float64,
	now time.Time,
) Transition {
	cfg := e.config[name]

	var message, priority string
	switch kind {
	case KindLow:
		message, priority = cfg.MessageLow, cfg.PriorityLow
	case KindHigh:
		message, priority = cfg.MessageHigh, cfg.PriorityHigh
	case KindCriticalLow:
		message, priority = "CRITICAL "+cfg.MessageLow, PriorityCritical
	case KindCriticalHigh:
		message, priority = "CRITICAL "+cfg.MessageHigh, PriorityCritical
	}

	return Transition{
		Parameter: name,
		Kind:      kind,
		Active:    active,
		Value:     value,
		Message:   message,
		Priority:  priority,
		Timestamp: now,
	}
}

// ActiveCount returns how many parameters currently hold any active alarm.
func (e *Evaluator) ActiveCount() int {
	count := 0
	for _, st := range e.states {
		if st.low || st.high || st.criticalLow || st.criticalHigh {
			count++
		}
	}
	return count
}

// HasActive reports whether any alarm is active.
func (e *Evaluator) HasActive() bool { return e.ActiveCount() > 0 }
