package twin

import (
	"context"
	"log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Driver", func() {
	var rt *Runtime

	BeforeEach(func() {
		var err error
		rt, err = NewBuilder().
			WithLogger(log.New(GinkgoWriter, "", 0)).
			Build()
		Expect(err).ToNot(HaveOccurred())
	})

	It("should run the requested simulated duration at full speed", func() {
		d := &Driver{Runtime: rt}
		Expect(d.Run(context.Background(), 0.5)).To(Succeed())
		Expect(rt.Now()).To(BeNumerically("~", 0.5, rt.StepSize()))
	})

	It("should stop between steps when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		d := &Driver{Runtime: rt}
		Expect(d.Run(ctx, 10)).To(MatchError(context.Canceled))
		Expect(rt.Now()).To(BeZero())
	})
})
