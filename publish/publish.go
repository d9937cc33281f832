// Package publish streams simulation output over NATS. Averaged vitals go
// out as JSON messages; the raw arterial waveform goes out as batched
// little-endian float32 samples.
package publish

import (
	"encoding/binary"
	"encoding/json"
	"log"
	"math"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Lex-mmm/sasicu-example/vitals"
)

// DefaultVitalsSubject carries JSON vitals messages.
const DefaultVitalsSubject = "patient.vitals"

// DefaultWaveformSubject carries binary arterial pressure batches.
const DefaultWaveformSubject = "patient.wave.abp"

// defaultBatch is the number of waveform samples per message, 100 ms of
// signal at the default integration step.
const defaultBatch = 10

// Connect dials the NATS server with the reconnect policy used by all
// publishers and subscribers of the simulation.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("sasicu"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}

// Conn is the slice of the NATS connection the publishers need.
type Conn interface {
	Publish(subject string, data []byte) error
}

// VitalsMsg is the wire form of one averaged vitals record.
type VitalsMsg struct {
	Subject string  `json:"subject"`
	Ts      int64   `json:"ts"`
	HR      float64 `json:"hr"`
	SAP     float64 `json:"sap"`
	DAP     float64 `json:"dap"`
	MAP     float64 `json:"map"`
	SpO2    float64 `json:"spo2"`
	RR      float64 `json:"rr"`
	EtCO2   float64 `json:"etco2"`
	Temp    float64 `json:"temp"`
}

// VitalsPublisher forwards each vitals record as one JSON message.
type VitalsPublisher struct {
	conn    Conn
	subject string
	logger  *log.Logger
}

// NewVitalsPublisher creates a VitalsPublisher on the given subject. An
// empty subject selects DefaultVitalsSubject.
func NewVitalsPublisher(conn Conn, subject string) *VitalsPublisher {
	if subject == "" {
		subject = DefaultVitalsSubject
	}

	return &VitalsPublisher{
		conn:    conn,
		subject: subject,
		logger:  log.Default(),
	}
}

// PublishVitals encodes and sends one record. Send failures are logged and
// do not stall the simulation.
func (p *VitalsPublisher) PublishVitals(rec vitals.Record) {
	msg := VitalsMsg{
		Subject: p.subject,
		Ts:      rec.Timestamp.UnixMilli(),
		HR:      rec.HR,
		SAP:     rec.SAP,
		DAP:     rec.DAP,
		MAP:     rec.MAP,
		SpO2:    rec.SpO2,
		RR:      rec.RR,
		EtCO2:   rec.EtCO2,
		Temp:    rec.Temp,
	}

	b, err := json.Marshal(msg)
	if err != nil {
		p.logger.Printf("publish: encoding vitals: %v", err)
		return
	}

	if err := p.conn.Publish(p.subject, b); err != nil {
		p.logger.Printf("publish: sending vitals: %v", err)
	}
}

// WaveformPublisher batches raw pressure samples and sends each full batch
// as little-endian float32 values.
type WaveformPublisher struct {
	conn    Conn
	subject string
	batch   int
	buffer  []float32
	logger  *log.Logger
}

// NewWaveformPublisher creates a WaveformPublisher on the given subject. An
// empty subject selects DefaultWaveformSubject; a non-positive batch size
// selects the default.
func NewWaveformPublisher(conn Conn, subject string, batch int) *WaveformPublisher {
	if subject == "" {
		subject = DefaultWaveformSubject
	}
	if batch <= 0 {
		batch = defaultBatch
	}

	return &WaveformPublisher{
		conn:    conn,
		subject: subject,
		batch:   batch,
		buffer:  make([]float32, 0, batch),
		logger:  log.Default(),
	}
}

// PublishPressure appends one sample, flushing when the batch is full.
func (p *WaveformPublisher) PublishPressure(_, pressure float64) {
	p.buffer = append(p.buffer, float32(pressure))

	if len(p.buffer) >= p.batch {
		p.Flush()
	}
}

// Flush sends the buffered samples, if any.
func (p *WaveformPublisher) Flush() {
	if len(p.buffer) == 0 {
		return
	}

	out := make([]byte, 4*len(p.buffer))
	for i, v := range p.buffer {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}

	if err := p.conn.Publish(p.subject, out); err != nil {
		p.logger.Printf("publish: sending waveform: %v", err)
	}

	p.buffer = p.buffer[:0]
}

// DecodeWaveform unpacks a binary waveform message back into samples.
func DecodeWaveform(data []byte) []float32 {
	samples := make([]float32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		bits := binary.LittleEndian.Uint32(data[i:])
		samples = append(samples, math.Float32frombits(bits))
	}

	return samples
}
