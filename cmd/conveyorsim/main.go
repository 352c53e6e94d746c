// Command conveyorsim runs the mini-fulfillment conveyor co-simulation:
// a soft-PLC control engine scanning a tag table shared with a physics
// engine that moves boxes along a belt.
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"

	"github.com/joeycumines/go-conveyorsim/control"
	"github.com/joeycumines/go-conveyorsim/internal/config"
	"github.com/joeycumines/go-conveyorsim/metrics"
	"github.com/joeycumines/go-conveyorsim/physics"
	"github.com/joeycumines/go-conveyorsim/sim"
	"github.com/joeycumines/go-conveyorsim/sink"
	"github.com/joeycumines/go-conveyorsim/tag"
)

// Args is the recognized CLI flag set (spec §6 CLI).
type Args struct {
	Config      string  `arg:"--config" default:"config.yaml" help:"path to configuration YAML file"`
	NoViz       bool    `arg:"--no-viz" help:"no-op: this build has no renderer, every run is headless"`
	OutputDir   string  `arg:"--output-dir" help:"override output directory for logged data"`
	Duration    float64 `arg:"--duration" help:"override simulation duration in seconds"`
	TimeScale   float64 `arg:"--time-scale" help:"override time scale (e.g. 10.0 for 10x speed)"`
	JamTimeout  float64 `arg:"--jam-timeout" help:"override jam detection timeout in seconds"`
	Seed        int64   `arg:"--seed" help:"random seed for reproducible runs"`
	Verbose     bool    `arg:"-v,--verbose" help:"enable verbose logging"`
	MetricsAddr string  `arg:"--metrics-addr" help:"address to serve Prometheus metrics on, empty disables"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "conveyorsim:", err)
		os.Exit(1)
	}
}

func run() error {
	var args Args
	arg.MustParse(&args)

	logger := newLogger(args.Verbose)

	cfg, err := config.Load(args.Config)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	applyOverrides(cfg, args)

	seed := args.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	logger.Info().Int64("seed", seed).Str("config", args.Config).Msg("conveyorsim: starting")

	tags := tag.NewTable()
	tags.MustWrite(tag.RJamTimeoutSec, tag.Real(4.0))
	tags.MustWrite(tag.RConveyorSpeed, tag.Real(1.0))
	if args.JamTimeout > 0 {
		tags.MustWrite(tag.RJamTimeoutSec, tag.Real(args.JamTimeout))
		logger.Info().Float64("jam_timeout_sec", args.JamTimeout).Msg("conveyorsim: jam timeout overridden")
	}

	ctrl := control.NewEngine(&logger)

	conveyor := physics.Conveyor{
		TotalLengthMM: cfg.Conveyor.TotalLengthMM,
		InfeedPEPos:   0,
		DiverterPEPos: cfg.Conveyor.InfeedToDiverterMM,
		OutfeedBPos:   cfg.Conveyor.InfeedToDiverterMM + cfg.Conveyor.DiverterToOutfeedMM,
		OutfeedCPos:   cfg.Conveyor.InfeedToDiverterMM + cfg.Conveyor.DiverterToOutfeedMM,
		BeltSpeedMMS:  cfg.Conveyor.BeltSpeedMMS,
		BoxLengthMM:   cfg.Conveyor.BoxLengthMM,
	}

	var logSink sink.Sink = sink.NoopSink{}
	if cfg.Logging.OutputDir != "" {
		logSink = sink.NewCSVSink(cfg.Logging.OutputDir, cfg.Logging.LogIntervalSec, cfg.Logging.LogEvents, &logger)
	}

	phys := physics.NewEngine(physics.Config{
		Conveyor:             conveyor,
		ArrivalRatePerHour:   cfg.Boxes.ArrivalRatePerHour,
		ArrivalJitterPct:     cfg.Boxes.ArrivalJitterPct,
		JamsEnabled:          cfg.Jams.Enabled,
		JamProbabilityPerBox: cfg.Jams.ProbabilityPerBox,
		JamLocation:          cfg.Jams.JamLocation,
	}, tags, ctrl, logSink, rng, &logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	promObserver := metrics.NewPrometheusObserver()
	observer := sim.Observer(promObserver)
	if args.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promObserver.Handler())
		srv := &http.Server{Addr: args.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("conveyorsim: metrics server stopped")
			}
		}()
		logger.Info().Str("addr", args.MetricsAddr).Msg("conveyorsim: serving /metrics")
	}

	driver := sim.NewDriver(sim.Config{
		DurationSec:      cfg.Simulation.DurationSec,
		TimeScale:        cfg.Simulation.TimeScale,
		UpdateIntervalMs: cfg.Simulation.UpdateIntervalMs,
	}, tags, ctrl, phys, logSink, observer, &logger)

	go func() {
		if _, ok := <-sigCh; ok {
			logger.Info().Msg("conveyorsim: interrupt received, stopping")
			driver.RequestStop()
		}
	}()
	defer signal.Stop(sigCh)

	return driver.Run()
}

func applyOverrides(cfg *config.Config, args Args) {
	if args.OutputDir != "" {
		cfg.Logging.OutputDir = args.OutputDir
	}
	if args.Duration > 0 {
		cfg.Simulation.DurationSec = args.Duration
	}
	if args.TimeScale > 0 {
		cfg.Simulation.TimeScale = args.TimeScale
	}
}

func newLogger(verbose bool) zerolog.Logger {
	if !verbose {
		return zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	}
	writer := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
