// Package monitoring turns a running simulation into a web server and allows
// external observation and control of the patient model.
package monitoring

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"

	"github.com/Lex-mmm/sasicu-example/alarm"
	"github.com/Lex-mmm/sasicu-example/twin"
	"github.com/Lex-mmm/sasicu-example/vitals"
)

// waveformCapacity is the number of retained arterial pressure samples, 10
// seconds of signal at the default integration step.
const waveformCapacity = 1000

// alarmHistoryCapacity bounds the retained alarm transitions.
const alarmHistoryCapacity = 100

type waveformSample struct {
	T float64 `json:"t"`
	P float64 `json:"p"`
}

// Monitor can turn a simulation into a server and allows external monitoring
// and controlling of the patient model.
type Monitor struct {
	runtime    *twin.Runtime
	evaluator  *alarm.Evaluator
	portNumber int

	lock       sync.Mutex
	lastRecord vitals.Record
	hasRecord  bool
	waveform   []waveformSample
	alarms     []alarm.Transition

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterRuntime registers the patient runtime that is being simulated. The
// monitor attaches itself as a vitals and waveform sink.
func (m *Monitor) RegisterRuntime(r *twin.Runtime) {
	m.runtime = r

	r.AddVitalSink(m)
	r.AddWaveformSink(m)
}

// RegisterAlarmEvaluator sets the threshold evaluator that is fed from each
// published vitals record.
func (m *Monitor) RegisterAlarmEvaluator(e *alarm.Evaluator) {
	m.evaluator = e
}

// PublishVitals stores the most recent vitals record and runs it through the
// alarm evaluator, if one is registered.
func (m *Monitor) PublishVitals(rec vitals.Record) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.lastRecord = rec
	m.hasRecord = true

	if m.evaluator != nil {
		transitions := m.evaluator.Evaluate(rec.Snapshot(), rec.Timestamp)
		m.alarms = append(m.alarms, transitions...)
		if len(m.alarms) > alarmHistoryCapacity {
			m.alarms = m.alarms[len(m.alarms)-alarmHistoryCapacity:]
		}
	}
}

// PublishPressure appends one arterial pressure sample to the retained
// waveform window.
func (m *Monitor) PublishPressure(t, pressure float64) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.waveform = append(m.waveform, waveformSample{T: t, P: pressure})
	if len(m.waveform) > waveformCapacity {
		m.waveform = m.waveform[len(m.waveform)-waveformCapacity:]
	}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total float64) *ProgressBar {
	bar := NewProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars)-1)
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router builds the HTTP router serving the monitoring API.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/vitals", m.listVitals)
	r.HandleFunc("/api/waveform", m.listWaveform)
	r.HandleFunc("/api/alarms", m.listAlarms)
	r.HandleFunc("/api/status", m.listStatus)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/parameter/{path}/{value}", m.applyParameter).
		Methods(http.MethodPost)

	return r
}

// StartServer starts the monitor as a web server with a custom port if
// wanted. It returns the address the server listens on.
func (m *Monitor) StartServer() string {
	r := m.Router()

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	addr := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", addr)

	go func() {
		err = http.Serve(listener, r)
		dieOnErr(err)
	}()

	return addr
}

// StartServerWithBrowser starts the server and opens the local browser on
// the monitoring page.
func (m *Monitor) StartServerWithBrowser() string {
	addr := m.StartServer()

	if err := browser.OpenURL(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
	}

	return addr
}

func (m *Monitor) listVitals(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	rec, ok := m.lastRecord, m.hasRecord
	m.lock.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, rec)
}

func (m *Monitor) listWaveform(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	samples := append([]waveformSample(nil), m.waveform...)
	m.lock.Unlock()

	writeJSON(w, samples)
}

type alarmsRsp struct {
	Active      int                `json:"active"`
	Transitions []alarm.Transition `json:"transitions"`
}

func (m *Monitor) listAlarms(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	transitions := append([]alarm.Transition(nil), m.alarms...)
	m.lock.Unlock()

	active := 0
	if m.evaluator != nil {
		active = m.evaluator.ActiveCount()
	}

	writeJSON(w, alarmsRsp{Active: active, Transitions: transitions})
}

type statusRsp struct {
	SimTime       float64 `json:"sim_time"`
	StepSize      float64 `json:"step_size"`
	PendingEvents int     `json:"pending_events"`
}

func (m *Monitor) listStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, statusRsp{
		SimTime:       m.runtime.Now(),
		StepSize:      m.runtime.StepSize(),
		PendingEvents: m.runtime.Injector().Pending(),
	})
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) applyParameter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	value, err := strconv.ParseFloat(vars["value"], 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	if err := m.runtime.ApplyParameter(vars["path"], value); err != nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	bytes, err := json.Marshal(v)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
