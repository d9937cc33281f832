package twin

import (
	"context"
	"errors"
	"log"
	"math"

	gomock "go.uber.org/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Lex-mmm/sasicu-example/params"
	"github.com/Lex-mmm/sasicu-example/pathology"
	"github.com/Lex-mmm/sasicu-example/respiration"
	"github.com/Lex-mmm/sasicu-example/vitals"
)

// countingHook records the hook positions it saw.
type countingHook struct {
	before, after, reports int
	lastRecord             vitals.Record
}

func (h *countingHook) Func(ctx HookCtx) {
	switch ctx.Pos {
	case HookPosBeforeStep:
		h.before++
	case HookPosAfterStep:
		h.after++
	case HookPosAfterReport:
		h.reports++
		h.lastRecord = ctx.Item.(vitals.Record)
	}
}

func runSeconds(r *Runtime, seconds float64) {
	d := &Driver{Runtime: r}
	Expect(d.Run(context.Background(), seconds)).To(Succeed())
}

var _ = Describe("Runtime", func() {
	var (
		mockCtrl *gomock.Controller
		rt       *Runtime
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())

		var err error
		rt, err = NewBuilder().
			WithLogger(log.New(GinkgoWriter, "", 0)).
			Build()
		Expect(err).ToNot(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should build with the default adult parameter set", func() {
		Expect(rt.StepSize()).To(BeNumerically("==", 0.01))
		Expect(rt.State()).To(HaveLen(StateCount))
		Expect(rt.Now()).To(BeZero())
	})

	It("should distribute total blood volume across the compartments", func() {
		total := 0.0
		for _, v := range rt.State()[:10] {
			total += v
		}
		// TBV plus the arterial/venous loading offsets.
		Expect(total).To(BeNumerically("~", 5400, 1))
	})

	It("should advance the clock by one window per step", func() {
		rt.Step()
		rt.Step()
		Expect(rt.Now()).To(BeNumerically("~", 0.02, 1e-9))
	})

	It("should conserve total blood volume over a cardiac cycle", func() {
		runSeconds(rt, 2)

		total := 0.0
		for _, v := range rt.State()[:10] {
			total += v
		}
		Expect(total).To(BeNumerically("~", 5400, 1))
	})

	It("should invoke hooks around steps and reports", func() {
		hook := &countingHook{}
		rt.AcceptHook(hook)

		for i := 0; i < 100; i++ {
			rt.Step()
		}

		Expect(hook.before).To(Equal(100))
		Expect(hook.after).To(Equal(100))
		Expect(hook.reports).To(Equal(1))
		Expect(hook.lastRecord.HR).To(BeNumerically(">", 0))
	})

	It("should publish averaged vitals once per reporting interval", func() {
		sink := NewMockVitalSink(mockCtrl)
		sink.EXPECT().PublishVitals(gomock.Any()).Times(3)
		rt.AddVitalSink(sink)

		for i := 0; i < 300; i++ {
			rt.Step()
		}
	})

	It("should publish a raw pressure sample every step", func() {
		wave := NewMockWaveformSink(mockCtrl)
		wave.EXPECT().PublishPressure(gomock.Any(), gomock.Any()).Times(10)
		rt.AddWaveformSink(wave)

		for i := 0; i < 10; i++ {
			rt.Step()
		}
	})

	It("should settle near the nominal operating point over 60 seconds", func() {
		runSeconds(rt, 60)

		rec := rt.LastRecord()
		Expect(rec.HR).To(BeNumerically("~", 70, 2))
		Expect(rec.SpO2).To(BeNumerically(">=", 96))
		Expect(rec.SpO2).To(BeNumerically("<=", 100))
		Expect(rec.SAP).To(BeNumerically(">", rec.DAP))
	})

	It("should apply runtime parameter updates with re-caching", func() {
		Expect(rt.ApplyParameter("cardio_control_params.HR_n", 90)).To(Succeed())
		Expect(rt.ctrl.HRNominal).To(BeNumerically("==", 90))

		// The new rate is adopted at the next cycle boundary.
		runSeconds(rt, 2)
		Expect(rt.timing.HeartRate()).To(BeNumerically("~", 90, 2))
	})

	It("should reject unknown parameter paths", func() {
		err := rt.ApplyParameter("no.such.path", 1)
		var unknown *params.UnknownParameterError
		Expect(errors.As(err, &unknown)).To(BeTrue())
	})

	It("should route special names to state-vector locations", func() {
		Expect(rt.ApplyParameter("p_a_O2", 55)).To(Succeed())
		Expect(rt.State()[StatePaO2]).To(BeNumerically("==", 55))
	})

	It("should survive a poisoned state without panicking", func() {
		Expect(rt.ApplyParameter("p_a_O2", math.NaN())).To(Succeed())

		before := rt.Now()
		rt.Step()
		Expect(rt.Now()).To(BeNumerically(">", before))
	})

	Describe("pathology events", func() {
		It("should raise the reported heart rate for a limited event and return toward baseline", func() {
			runSeconds(rt, 10)
			baseline := rt.LastRecord().HR
			Expect(baseline).To(BeNumerically("~", 70, 2))

			rt.Injector().Enqueue(&pathology.Event{
				Type:         "common",
				TimeCategory: pathology.CategoryLimited,
				Interval:     10,
				Count:        1,
				Changes: []pathology.Change{{
					Parameter:  "cardio_control_params.HR_n",
					ChangeType: pathology.ChangeRelative,
					Action:     pathology.ActionDecay,
					Value:      50,
				}},
			})

			// A measurable rise within the next two reporting cycles.
			runSeconds(rt, 2)
			Expect(rt.LastRecord().HR).To(BeNumerically(">", baseline+5))

			// Past the event window the nominal rate is restored and the
			// averages drift back toward baseline.
			runSeconds(rt, 25)
			Expect(rt.LastRecord().HR).To(BeNumerically("~", baseline, 5))
			Expect(rt.Injector().Pending()).To(BeZero())
		})

		It("should drop events naming unknown parameters and keep running", func() {
			rt.Injector().Enqueue(&pathology.Event{
				TimeCategory: pathology.CategoryOnce,
				Changes: []pathology.Change{{
					Parameter:  "definitely.not.real",
					ChangeType: pathology.ChangeAbsolute,
					Action:     pathology.ActionSet,
					Value:      1,
				}},
			})

			runSeconds(rt, 1)
			Expect(rt.Injector().Pending()).To(BeZero())
			Expect(rt.LastRecord().HR).To(BeNumerically(">", 0))
		})

		It("should apply absolute ventilator changes with re-caching", func() {
			rt.Injector().Enqueue(&pathology.Event{
				TimeCategory: pathology.CategoryOnce,
				Changes: []pathology.Change{{
					Parameter:  "ventilator_params.PEEP",
					ChangeType: pathology.ChangeAbsolute,
					Action:     pathology.ActionSet,
					Value:      10,
				}},
			})

			rt.Step()
			Expect(rt.vent.PEEP).To(BeNumerically("==", 10))
		})
	})

	Describe("mechanical ventilation", func() {
		It("should drive the lungs from the ventilator waveform", func() {
			mv, err := NewBuilder().
				WithLogger(log.New(GinkgoWriter, "", 0)).
				WithMechanicalVentilation(true).
				Build()
			Expect(err).ToNot(HaveOccurred())

			runSeconds(mv, 5)

			// Positive-pressure ventilation holds the muscle pressure at
			// its initial value.
			Expect(mv.State()[StatePmus]).To(BeNumerically("==", initialPmus))
			Expect(mv.LastRecord().SpO2).To(BeNumerically(">", 90))
		})

		It("should cycle the ventilator at the set rate regardless of chemoreceptor drive", func() {
			mv, err := NewBuilder().
				WithLogger(log.New(GinkgoWriter, "", 0)).
				WithMechanicalVentilation(true).
				Build()
			Expect(err).ToNot(HaveOccurred())

			base := mv.State()
			modulated := mv.State()
			modulated[StateRROffset] = 20

			dBase := make([]float64, StateCount)
			dMod := make([]float64, StateCount)

			// At the set rate (12/min, period 5 s) t=4 s falls in the
			// expiratory phase; at the modulated rate it would be
			// inspiratory. The lung derivatives must not see the offset.
			mv.rhs(4.0, base, dBase)
			mv.rhs(4.0, modulated, dMod)

			for i := 0; i < respiration.MechStates; i++ {
				Expect(dMod[StateMech+i]).To(Equal(dBase[StateMech+i]))
			}
		})
	})
})
