package twin

import (
	"log"
	"testing"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

//go:generate mockgen -destination "mock_twin_test.go" -self_package=github.com/Lex-mmm/sasicu-example/twin -package twin -write_package_comment=false github.com/Lex-mmm/sasicu-example/twin VitalSink,WaveformSink

func TestTwin(t *testing.T) {
	log.SetOutput(ginkgo.GinkgoWriter)
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Twin")
}
