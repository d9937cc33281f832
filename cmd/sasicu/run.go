package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/Lex-mmm/sasicu-example/alarm"
	"github.com/Lex-mmm/sasicu-example/monitoring"
	"github.com/Lex-mmm/sasicu-example/params"
	"github.com/Lex-mmm/sasicu-example/publish"
	"github.com/Lex-mmm/sasicu-example/twin"
	"github.com/Lex-mmm/sasicu-example/vitals"
)

var runFlags struct {
	duration   float64
	realTime   bool
	paramsFile string
	alarmsFile string
	mv         bool
	port       int
	browser    bool
	natsURL    string
	recordPath string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the patient simulation.",
	Long: `run steps the patient model for a fixed simulated duration, ` +
		`serving the live monitor while the simulation is in progress.`,
	Run: func(_ *cobra.Command, _ []string) {
		runSimulation()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Float64Var(&runFlags.duration, "duration", 300,
		"simulated duration in seconds")
	runCmd.Flags().BoolVar(&runFlags.realTime, "real-time", true,
		"pace the simulation to wall-clock time")
	runCmd.Flags().StringVar(&runFlags.paramsFile, "params", "",
		"patient parameter file (JSON); empty selects the default adult")
	runCmd.Flags().StringVar(&runFlags.alarmsFile, "alarms", "",
		"alarm limits file (JSON); empty selects the default adult limits")
	runCmd.Flags().BoolVar(&runFlags.mv, "mv", false,
		"enable mechanical ventilation")
	runCmd.Flags().IntVar(&runFlags.port, "port", 0,
		"monitoring server port; 0 picks a random port")
	runCmd.Flags().BoolVar(&runFlags.browser, "browser", false,
		"open the local browser on the monitoring page")
	runCmd.Flags().StringVar(&runFlags.natsURL, "nats",
		os.Getenv("SASICU_NATS_URL"),
		"NATS server URL; empty disables publishing")
	runCmd.Flags().StringVar(&runFlags.recordPath, "record", "",
		"SQLite file name prefix for vitals recording; empty disables recording")
}

// recorderSink bridges the batching recorder into the runtime's sink fan-out.
type recorderSink struct {
	recorder vitals.Recorder
}

func (s recorderSink) PublishVitals(rec vitals.Record) {
	s.recorder.Record(rec)
}

// progressHook advances the monitor's progress bar one step at a time.
type progressHook struct {
	bar *monitoring.ProgressBar
	dt  float64
}

func (h progressHook) Func(ctx twin.HookCtx) {
	if ctx.Pos == twin.HookPosAfterStep {
		h.bar.IncrementFinished(h.dt)
	}
}

func runSimulation() {
	logger := log.New(os.Stderr, "sasicu ", log.LstdFlags)

	rt, err := buildRuntime(logger)
	if err != nil {
		logger.Printf("building runtime: %v", err)
		atexit.Exit(1)
	}

	monitor := monitoring.NewMonitor()
	if runFlags.port != 0 {
		monitor.WithPortNumber(runFlags.port)
	}
	monitor.RegisterRuntime(rt)

	evaluator, err := buildEvaluator()
	if err != nil {
		logger.Printf("loading alarm limits: %v", err)
		atexit.Exit(1)
	}
	monitor.RegisterAlarmEvaluator(evaluator)

	wave := attachPublishers(rt, logger)

	if runFlags.recordPath != "" {
		rt.AddVitalSink(recorderSink{
			recorder: vitals.NewSQLiteRecorder(runFlags.recordPath),
		})
	}

	bar := monitor.CreateProgressBar("simulation", runFlags.duration)
	rt.AcceptHook(progressHook{bar: bar, dt: rt.StepSize()})

	if runFlags.browser {
		monitor.StartServerWithBrowser()
	} else {
		monitor.StartServer()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver := &twin.Driver{Runtime: rt, RealTime: runFlags.realTime}
	if err := driver.Run(ctx, runFlags.duration); err != nil {
		logger.Printf("simulation interrupted: %v", err)
	}

	if wave != nil {
		wave.Flush()
	}

	monitor.CompleteProgressBar(bar)
	logger.Printf("simulated %.1f s", rt.Now())
	atexit.Exit(0)
}

func buildRuntime(logger *log.Logger) (*twin.Runtime, error) {
	builder := twin.NewBuilder().
		WithLogger(logger).
		WithMechanicalVentilation(runFlags.mv)

	if runFlags.paramsFile != "" {
		store, err := params.LoadFile(runFlags.paramsFile)
		if err != nil {
			return nil, err
		}
		if err := store.ResolveExpressions(); err != nil {
			return nil, err
		}
		if err := store.ComputeDerived(); err != nil {
			return nil, err
		}

		builder = builder.WithStore(store)
	}

	return builder.Build()
}

func buildEvaluator() (*alarm.Evaluator, error) {
	if runFlags.alarmsFile == "" {
		return alarm.NewEvaluator(alarm.DefaultAdultConfig()), nil
	}

	config, err := alarm.LoadConfig(runFlags.alarmsFile)
	if err != nil {
		return nil, err
	}

	return alarm.NewEvaluator(config), nil
}

func attachPublishers(
	rt *twin.Runtime,
	logger *log.Logger,
) *publish.WaveformPublisher {
	if runFlags.natsURL == "" {
		return nil
	}

	nc, err := publish.Connect(runFlags.natsURL)
	if err != nil {
		logger.Printf("connecting to NATS: %v", err)
		atexit.Exit(1)
	}
	atexit.Register(func() { nc.Drain() })

	rt.AddVitalSink(publish.NewVitalsPublisher(nc, ""))

	wave := publish.NewWaveformPublisher(nc, "", 0)
	rt.AddWaveformSink(wave)

	return wave
}
