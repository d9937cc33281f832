// Package vitals defines the averaged-vitals record emitted by the
// simulation runtime, the rolling buffers that produce it, and a SQLite
// recorder for offline analysis.
package vitals

import "time"

// Record is one averaged-vitals snapshot. Consumers always receive a copy,
// never a reference into the runtime's buffers.
type Record struct {
	HR    float64 // beats per minute
	SAP   float64 // systolic arterial pressure, mmHg
	DAP   float64 // diastolic arterial pressure, mmHg
	MAP   float64 // mean arterial pressure, mmHg
	SpO2  float64 // percent
	RR    float64 // breaths per minute
	EtCO2 float64 // mmHg
	Temp  float64 // degrees Celsius

	Timestamp time.Time
}

// Snapshot returns the record as a parameter-code map, the shape alarm
// evaluators and protocol layers consume.
func (r Record) Snapshot() map[string]float64 {
	return map[string]float64{
		"HR":    r.HR,
		"SAP":   r.SAP,
		"DAP":   r.DAP,
		"MAP":   r.MAP,
		"SpO2":  r.SpO2,
		"RR":    r.RR,
		"EtCO2": r.EtCO2,
		"Temp":  r.Temp,
	}
}
