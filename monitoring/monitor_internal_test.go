package monitoring

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Lex-mmm/sasicu-example/alarm"
	"github.com/Lex-mmm/sasicu-example/twin"
	"github.com/Lex-mmm/sasicu-example/vitals"
)

func sampleRecord() vitals.Record {
	return vitals.Record{
		Timestamp: time.Now(),
		HR:        70,
		SAP:       120,
		DAP:       80,
		MAP:       93,
		SpO2:      98,
		RR:        12,
		EtCO2:     38,
		Temp:      36.8,
	}
}

var _ = Describe("Monitor", func() {
	var (
		m  *Monitor
		rt *twin.Runtime
	)

	BeforeEach(func() {
		var err error
		rt, err = twin.NewBuilder().
			WithLogger(log.New(GinkgoWriter, "", 0)).
			Build()
		Expect(err).ToNot(HaveOccurred())

		m = NewMonitor()
		m.RegisterRuntime(rt)
	})

	It("should serve no content before the first report", func() {
		rec := httptest.NewRecorder()
		m.listVitals(rec, nil)

		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})

	It("should serve the most recent vitals record", func() {
		m.PublishVitals(sampleRecord())

		rec := httptest.NewRecorder()
		m.listVitals(rec, nil)

		Expect(rec.Code).To(Equal(http.StatusOK))

		var got vitals.Record
		Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
		Expect(got.HR).To(BeNumerically("==", 70))
		Expect(got.SpO2).To(BeNumerically("==", 98))
	})

	It("should cap the retained waveform window", func() {
		for i := 0; i < waveformCapacity+50; i++ {
			m.PublishPressure(float64(i)*0.01, 90)
		}

		rec := httptest.NewRecorder()
		m.listWaveform(rec, nil)

		var samples []waveformSample
		Expect(json.Unmarshal(rec.Body.Bytes(), &samples)).To(Succeed())
		Expect(samples).To(HaveLen(waveformCapacity))
		Expect(samples[0].T).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("should run published records through the alarm evaluator", func() {
		m.RegisterAlarmEvaluator(alarm.NewEvaluator(alarm.DefaultAdultConfig()))

		low := sampleRecord()
		low.SpO2 = 80
		m.PublishVitals(low)

		rec := httptest.NewRecorder()
		m.listAlarms(rec, nil)

		var rsp alarmsRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.Active).To(BeNumerically(">", 0))
		Expect(rsp.Transitions).ToNot(BeEmpty())
	})

	It("should report the simulation status", func() {
		rt.Step()

		rec := httptest.NewRecorder()
		m.listStatus(rec, nil)

		var rsp statusRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.SimTime).To(BeNumerically("~", 0.01, 1e-9))
		Expect(rsp.StepSize).To(BeNumerically("==", 0.01))
		Expect(rsp.PendingEvents).To(BeZero())
	})

	It("should apply parameter updates through the router", func() {
		server := httptest.NewServer(m.Router())
		defer server.Close()

		rsp, err := http.Post(
			server.URL+"/api/parameter/cardio_control_params.HR_n/90",
			"text/plain", nil)
		Expect(err).ToNot(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusOK))
	})

	It("should reject updates for unknown parameters", func() {
		server := httptest.NewServer(m.Router())
		defer server.Close()

		rsp, err := http.Post(
			server.URL+"/api/parameter/no.such.path/1",
			"text/plain", nil)
		Expect(err).ToNot(HaveOccurred())
		defer rsp.Body.Close()

		Expect(rsp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("should list and complete progress bars", func() {
		bar := m.CreateProgressBar("run", 60)
		bar.IncrementFinished(30)
		bar.IncrementFinished(45)

		Expect(bar.Finished).To(BeNumerically("==", 60))

		rec := httptest.NewRecorder()
		m.listProgressBars(rec, nil)

		var bars []*ProgressBar
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("run"))

		m.CompleteProgressBar(bar)

		rec = httptest.NewRecorder()
		m.listProgressBars(rec, nil)
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(BeEmpty())
	})
})
