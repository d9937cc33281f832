package twin

import (
	"log"
	"math"
	"strings"
	"time"

	"github.com/Lex-mmm/sasicu-example/cardiac"
	"github.com/Lex-mmm/sasicu-example/circulation"
	"github.com/Lex-mmm/sasicu-example/params"
	"github.com/Lex-mmm/sasicu-example/pathology"
	"github.com/Lex-mmm/sasicu-example/reflex"
	"github.com/Lex-mmm/sasicu-example/respiration"
	"github.com/Lex-mmm/sasicu-example/solver"
	"github.com/Lex-mmm/sasicu-example/vitals"
)

// Integration tolerances.
const (
	rtol = 1e-6
	atol = 1e-6
)

// sapDapWindow is the sample count over which systolic and diastolic
// pressures are extracted.
const sapDapWindow = 50

// VitalSink receives averaged-vitals records. Records are passed by value;
// sinks never see the runtime's internal buffers.
type VitalSink interface {
	PublishVitals(rec vitals.Record)
}

// WaveformSink receives raw high-rate arterial pressure samples for
// waveform display.
type WaveformSink interface {
	PublishPressure(t, pressure float64)
}

// specialStates maps event parameter names without a store entry to state
// vector locations. Extensibility point for scenario authors.
var specialStates = map[string]int{
	"p_a_CO2": StatePaCO2,
	"p_a_O2":  StatePaO2,
	"Pmus":    StatePmus,
}

// controlCoef caches the control-loop operating points read every step.
type controlCoef struct {
	HRNominal float64
	RNominal  float64
	UVNominal float64
	RR0       float64
	Pmus0     float64
	IERatio   float64
}

func recacheControl(store *params.Store) controlCoef {
	return controlCoef{
		HRNominal: store.GetDefault("cardio_control_params.HR_n", 70),
		RNominal:  store.GetDefault("cardio_control_params.R_n", 1),
		UVNominal: store.GetDefault("cardio_control_params.UV_n", 1),
		RR0:       store.GetDefault("respiratory_control_params.RR_0", 12),
		Pmus0:     store.GetDefault("respiratory_control_params.Pmus_0", -5),
		IERatio:   store.GetDefault("respiratory_control_params.IE_ratio", 1),
	}
}

// Runtime owns the state vector and the simulation clock. It is not safe
// for concurrent use: one goroutine drives Step while event injection may
// come from others through the injector's queue.
type Runtime struct {
	*HookableBase

	store  *params.Store
	logger *log.Logger

	timing   *cardiac.TimingModel
	network  *circulation.Network
	mech     *respiration.Mechanics
	gas      *respiration.GasExchange
	vent     respiration.Ventilator
	baro     *reflex.Baroreflex
	chemo    *reflex.Chemoreceptor
	stepper  *solver.RK45
	injector *pathology.Injector

	ctrl controlCoef

	mv       bool
	reflexes bool

	dt          float64
	reportEvery float64

	t          float64
	nextReport float64
	state      []float64

	hrBuf    *vitals.AveragingBuffer
	sapBuf   *vitals.AveragingBuffer
	dapBuf   *vitals.AveragingBuffer
	mapBuf   *vitals.AveragingBuffer
	spo2Buf  *vitals.AveragingBuffer
	rrBuf    *vitals.AveragingBuffer
	etco2Buf *vitals.AveragingBuffer
	tempBuf  *vitals.AveragingBuffer

	mapFilter *vitals.MAPFilter
	pressWin  *vitals.PressureWindow

	vitalSinks []VitalSink
	waveSinks  []WaveformSink

	lastRecord vitals.Record
}

// Builder constructs a Runtime.
type Builder struct {
	store    *params.Store
	logger   *log.Logger
	mapper   pathology.Mapper
	mv       bool
	reflexes bool
}

// NewBuilder creates a builder with reflexes enabled and spontaneous
// breathing.
func NewBuilder() Builder {
	return Builder{reflexes: true}
}

// WithStore sets the parameter store. The store must be resolved and
// derived.
func (b Builder) WithStore(store *params.Store) Builder {
	b.store = store
	return b
}

// WithLogger sets the runtime logger.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithMapper sets the pathology percent/spline mapper.
func (b Builder) WithMapper(m pathology.Mapper) Builder {
	b.mapper = m
	return b
}

// WithMechanicalVentilation selects the ventilator drive instead of
// spontaneous breathing.
func (b Builder) WithMechanicalVentilation(on bool) Builder {
	b.mv = on
	return b
}

// WithReflexes enables or disables the autonomic feedback loops.
func (b Builder) WithReflexes(on bool) Builder {
	b.reflexes = on
	return b
}

// Build assembles the runtime. Configuration faults are fatal here, never
// during stepping.
func (b Builder) Build() (*Runtime, error) {
	store := b.store
	if store == nil {
		var err error
		store, err = params.DefaultAdult()
		if err != nil {
			return nil, err
		}
	}
	logger := b.logger
	if logger == nil {
		logger = log.Default()
	}
	mapper := b.mapper
	if mapper == nil {
		mapper = pathology.NewBoundsMapper(store)
	}

	dt := store.GetDefault("misc_constants.T", 0.01)
	mv := b.mv
	if store.GetDefault("misc_constants.MV", 0) > 0 {
		mv = true
	}

	r := &Runtime{
		HookableBase: NewHookableBase(),
		store:        store,
		logger:       logger,
		mv:           mv,
		reflexes:     b.reflexes,
		dt:           dt,
		reportEvery:  store.GetDefault("misc_constants.report_interval", 1),
		injector:     pathology.NewInjector(mapper, logger),
		stepper:      solver.NewRK45(StateCount, rtol, atol),
		ctrl:         recacheControl(store),
	}
	r.nextReport = r.reportEvery

	table, err := cardiac.NewElastanceTable(store)
	if err != nil {
		return nil, err
	}
	r.timing = cardiac.NewTimingModel(table, r.ctrl.HRNominal)

	if r.network, err = circulation.New(store); err != nil {
		return nil, err
	}
	if r.mech, err = respiration.NewMechanics(store); err != nil {
		return nil, err
	}
	if r.gas, err = respiration.NewGasExchange(store); err != nil {
		return nil, err
	}
	r.vent = respiration.NewVentilator(store)
	if r.baro, err = reflex.NewBaroreflex(store, dt); err != nil {
		return nil, err
	}
	if r.chemo, err = reflex.NewChemoreceptor(store, dt); err != nil {
		return nil, err
	}
	if r.state, err = initialState(store); err != nil {
		return nil, err
	}

	avgSamples := int(store.GetDefault("misc_constants.avg_window", 5) / dt)
	r.hrBuf = vitals.NewAveragingBuffer(avgSamples)
	r.sapBuf = vitals.NewAveragingBuffer(avgSamples)
	r.dapBuf = vitals.NewAveragingBuffer(avgSamples)
	r.mapBuf = vitals.NewAveragingBuffer(avgSamples)
	r.spo2Buf = vitals.NewAveragingBuffer(avgSamples)
	r.rrBuf = vitals.NewAveragingBuffer(avgSamples)
	r.etco2Buf = vitals.NewAveragingBuffer(avgSamples)
	r.tempBuf = vitals.NewAveragingBuffer(avgSamples)

	mapSamples := int(store.GetDefault("misc_constants.MAP_window", 20) / dt)
	r.mapFilter = vitals.NewMAPFilter(mapSamples, 0.05)
	r.pressWin = vitals.NewPressureWindow(sapDapWindow)

	return r, nil
}

// AddVitalSink registers a consumer of averaged-vitals records.
func (r *Runtime) AddVitalSink(s VitalSink) { r.vitalSinks = append(r.vitalSinks, s) }

// AddWaveformSink registers a consumer of raw arterial pressure samples.
func (r *Runtime) AddWaveformSink(s WaveformSink) { r.waveSinks = append(r.waveSinks, s) }

// Injector returns the pathology event queue. Safe to use from other
// goroutines.
func (r *Runtime) Injector() *pathology.Injector { return r.injector }

// Now returns the simulation clock in seconds.
func (r *Runtime) Now() float64 { return r.t }

// StepSize returns the integration window length in seconds.
func (r *Runtime) StepSize() float64 { return r.dt }

// LastRecord returns a copy of the most recently emitted vitals record.
func (r *Runtime) LastRecord() vitals.Record { return r.lastRecord }

// State returns a copy of the state vector, for inspection.
func (r *Runtime) State() []float64 {
	return append([]float64(nil), r.state...)
}

// ApplyParameter applies a runtime parameter update with the same
// re-caching rule as event-driven changes. Unknown paths fall back to the
// special-cased state locations.
func (r *Runtime) ApplyParameter(path string, value float64) error {
	if err := r.store.ApplyByPath(path, value); err != nil {
		if idx, ok := specialStates[path]; ok {
			r.state[idx] = value
			return nil
		}
		return err
	}
	r.recacheTouched([]string{path})
	return nil
}

// Step advances the simulation by one integration window: drains due
// pathology events, gates the heart period at cycle boundaries, pushes the
// reflex delay lines, integrates the coupled ODEs and updates the rolling
// vitals buffers. Integration failures are logged and the window is skipped
// with the state unchanged.
func (r *Runtime) Step() {
	r.InvokeHook(HookCtx{Domain: r, Pos: HookPosBeforeStep, Item: r.t})

	touched := r.injector.ApplyDue(r.t, runtimeApplier{r})
	r.recacheTouched(touched)

	r.timing.SetHeartRate(r.ctrl.HRNominal + r.state[StateHROffset])
	r.timing.Advance(r.t)

	r.baro.PushEfferents(r.state[StateFilteredP])
	r.chemo.PushGases(
		r.state[StatePaCO2],
		respiration.ClampPaO2(r.state[StatePaO2]),
	)

	if err := r.stepper.Integrate(r.rhs, r.t, r.t+r.dt, r.state); err != nil {
		r.logger.Printf("twin: step at t=%.3f skipped: %v", r.t, err)
		r.stepper.Reset()
	}
	r.t += r.dt

	r.observe()

	r.InvokeHook(HookCtx{Domain: r, Pos: HookPosAfterStep, Item: r.t})

	if r.t+r.dt/2 >= r.nextReport {
		r.nextReport += r.reportEvery
		r.report()
	}
}

// rhs is the combined right-hand side in the fixed state layout. It reads y
// and the cached coefficients only; the delayed reflex signals are constant
// within a window.
func (r *Runtime) rhs(t float64, y, dy []float64) {
	ch := r.timing.ElastanceAt(t)

	pao := 0.0
	dPmus := 0.0
	if r.mv {
		// The ventilator cycles at the set rate; chemoreceptor drive only
		// modulates spontaneous breathing.
		pao = r.vent.PressureAt(t, r.ctrl.RR0)
	} else {
		rr := r.ctrl.RR0 + y[StateRROffset]
		if rr < 1 {
			rr = 1
		}
		pmusMin := r.ctrl.Pmus0 + y[StatePmusOffset]
		dPmus = respiration.MusclePressureDerivative(t, rr, pmusMin, r.ctrl.IERatio)
	}

	var mech [respiration.MechStates]float64
	copy(mech[:], y[StateMech:StateMech+respiration.MechStates])
	dPpl := r.mech.PleuralDrive(&mech, dPmus)
	dmech := r.mech.Derivatives(&mech, pao, dPpl, dPmus)

	var vols [circulation.Compartments]float64
	copy(vols[:], y[StateVolumes:StateVolumes+circulation.Compartments])
	in := circulation.Inputs{
		Chambers: ch,
		Pleural:  y[StateMech+4],
		RFactor:  r.ctrl.RNominal - y[StateROffset],
		UVFactor: r.ctrl.UVNominal + y[StateUVOffset],
	}
	p := r.network.Pressures(&vols, in)
	f := r.network.Flows(&p, in)
	dv := r.network.VolumeDerivatives(&f)

	gs := gasStateView(y)
	vdotL := r.mech.AirwayFlow(pao, &mech)
	vdotA := r.mech.AlveolarFlow(&mech)
	insp := respiration.Inspiring(r.mv, pao, mech[0])
	gd := r.gas.Derivatives(&gs, vdotL, vdotA, insp)

	bs := reflex.BaroState{
		HROffset:  y[StateHROffset],
		ROffset:   y[StateROffset],
		UVOffset:  y[StateUVOffset],
		FilteredP: y[StateFilteredP],
		HRSymp:    y[StateHRSymp],
		HRVagal:   y[StateHRVagal],
		RChannel:  y[StateRChannel],
	}
	bd := r.baro.Derivatives(&bs, p[0], r.reflexes)

	cs := reflex.ChemoState{
		LegacyRROffset:   y[StateLegacyRROffset],
		LegacyPmusOffset: y[StateLegacyPmusOffset],
		RROffset:         y[StateRROffset],
		PmusOffset:       y[StatePmusOffset],
	}
	cd := r.chemo.Derivatives(&cs, y[StatePaCO2], r.reflexes)

	for i := 0; i < circulation.Compartments; i++ {
		dy[StateVolumes+i] = dv[i]
	}
	for i := 0; i < respiration.MechStates; i++ {
		dy[StateMech+i] = dmech[i]
	}

	dy[StateFDO2] = gd.FDO2
	dy[StateFDCO2] = gd.FDCO2
	dy[StatePaCO2] = gd.PaCO2
	dy[StatePaO2] = gd.PaO2
	dy[StateCStisCO2] = gd.CStisCO2
	dy[StateCScapCO2] = gd.CScapCO2
	dy[StateCStisO2] = gd.CStisO2
	dy[StateCScapO2] = gd.CScapO2

	dy[StateLegacyRROffset] = cd.LegacyRROffset
	dy[StateLegacyPmusOffset] = cd.LegacyPmusOffset

	dy[StatePmus] = dPmus

	dy[StateHROffset] = bd.HROffset
	dy[StateROffset] = bd.ROffset
	dy[StateUVOffset] = bd.UVOffset
	dy[StateFilteredP] = bd.FilteredP
	dy[StateHRSymp] = bd.HRSymp
	dy[StateHRVagal] = bd.HRVagal
	dy[StateRChannel] = bd.RChannel

	dy[StateRROffset] = cd.RROffset
	dy[StatePmusOffset] = cd.PmusOffset
}

// observe recomputes the observable vitals from the new state and feeds the
// rolling buffers.
func (r *Runtime) observe() {
	ch := r.timing.ElastanceAt(r.t)

	var vols [circulation.Compartments]float64
	copy(vols[:], r.state[StateVolumes:StateVolumes+circulation.Compartments])
	in := circulation.Inputs{
		Chambers: ch,
		Pleural:  r.state[StateMech+4],
		RFactor:  r.ctrl.RNominal - r.state[StateROffset],
		UVFactor: r.ctrl.UVNominal + r.state[StateUVOffset],
	}
	p := r.network.Pressures(&vols, in)
	arterial := p[0]

	r.pressWin.Add(arterial)
	r.mapFilter.Add(arterial)
	for _, s := range r.waveSinks {
		s.PublishPressure(r.t, arterial)
	}

	sap, dap := r.pressWin.Extrema()
	mapEst := r.mapFilter.Estimate()

	hr := r.timing.HeartRate()
	spo2 := r.gas.SpO2(r.state[StatePaO2])
	rr := r.ctrl.RR0 + r.state[StateRROffset]
	if rr < 1 {
		rr = 1
	}
	etco2 := r.state[StatePaCO2]
	temp := bodyTemperature(r.t)

	r.hrBuf.Add(hr)
	r.sapBuf.Add(sap)
	r.dapBuf.Add(dap)
	r.mapBuf.Add(mapEst)
	r.spo2Buf.Add(spo2)
	r.rrBuf.Add(rr)
	r.etco2Buf.Add(etco2)
	r.tempBuf.Add(temp)
}

// bodyTemperature synthesizes a core temperature with a slow drift around
// the normothermic baseline.
func bodyTemperature(t float64) float64 {
	return 36.8 + 0.1*math.Sin(2*math.Pi*t/3600)
}

func (r *Runtime) report() {
	rec := vitals.Record{
		HR:        r.hrBuf.Mean(),
		SAP:       r.sapBuf.Mean(),
		DAP:       r.dapBuf.Mean(),
		MAP:       r.mapBuf.Mean(),
		SpO2:      r.spo2Buf.Mean(),
		RR:        r.rrBuf.Mean(),
		EtCO2:     r.etco2Buf.Mean(),
		Temp:      r.tempBuf.Mean(),
		Timestamp: time.Now(),
	}
	r.lastRecord = rec

	for _, s := range r.vitalSinks {
		s.PublishVitals(rec)
	}

	r.InvokeHook(HookCtx{Domain: r, Pos: HookPosAfterReport, Item: rec})
}

// runtimeApplier adapts the runtime to the pathology.Applier interface:
// dotted paths address the parameter store, bare special names address
// state-vector locations.
type runtimeApplier struct {
	r *Runtime
}

func (a runtimeApplier) Current(name string) (float64, bool) {
	if v, err := a.r.store.Get(name); err == nil {
		return v, true
	}
	if idx, ok := specialStates[name]; ok {
		return a.r.state[idx], true
	}
	return 0, false
}

func (a runtimeApplier) Set(name string, value float64) bool {
	if err := a.r.store.ApplyByPath(name, value); err == nil {
		return true
	}
	if idx, ok := specialStates[name]; ok {
		a.r.state[idx] = value
		return true
	}
	return false
}

// recacheTouched re-derives the cached coefficients of every subsystem
// whose source category was mutated.
func (r *Runtime) recacheTouched(names []string) {
	if len(names) == 0 {
		return
	}

	cats := make(map[string]bool)
	for _, n := range names {
		if i := strings.IndexByte(n, '.'); i > 0 {
			cats[n[:i]] = true
		}
	}
	if len(cats) == 0 {
		return
	}

	// Derived quantities (metabolic splits, diffusion constants, reflex
	// operating points) depend on these categories.
	if cats["gas_exchange_params"] || cats["initial_conditions"] ||
		cats["misc_constants"] || cats["cardio_control_params"] {
		if err := r.store.ComputeDerived(); err != nil {
			r.logger.Printf("twin: derived recompute failed: %v", err)
		}
	}

	if cats["cardio_parameters"] {
		if coef, err := circulation.Recache(r.store); err == nil {
			r.network.Coef = coef
		} else {
			r.logger.Printf("twin: circulation recache failed: %v", err)
		}
		if table, err := cardiac.NewElastanceTable(r.store); err == nil {
			r.timing.SetTable(table)
		} else {
			r.logger.Printf("twin: elastance recache failed: %v", err)
		}
	}

	if cats["cardio_constants"] {
		if mech, err := respiration.NewMechanics(r.store); err == nil {
			r.mech = mech
		} else {
			r.logger.Printf("twin: mechanics recache failed: %v", err)
		}
	}

	if cats["gas_exchange_params"] || cats["params"] ||
		cats["bloodflows"] || cats["initial_conditions"] ||
		cats["misc_constants"] {
		if gas, err := respiration.NewGasExchange(r.store); err == nil {
			r.gas = gas
		} else {
			r.logger.Printf("twin: gas-exchange recache failed: %v", err)
		}
	}

	if cats["cardio_control_params"] {
		if err := r.baro.Recache(r.store); err != nil {
			r.logger.Printf("twin: baroreflex recache failed: %v", err)
		}
	}
	if cats["respiratory_control_params"] {
		if err := r.chemo.Recache(r.store); err != nil {
			r.logger.Printf("twin: chemoreceptor recache failed: %v", err)
		}
	}
	if cats["ventilator_params"] {
		r.vent = respiration.NewVentilator(r.store)
	}

	r.ctrl = recacheControl(r.store)
}
