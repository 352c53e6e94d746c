package physics

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/joeycumines/go-conveyorsim/control"
	"github.com/joeycumines/go-conveyorsim/sink"
	"github.com/joeycumines/go-conveyorsim/tag"
)

// maxPhysicsDT is the largest sub-step, in seconds, the engine will ever
// advance in one call to the control scan. At the nominal max belt speed
// (500 mm/s) this is a 25mm advance per slice, well under half the nominal
// box length, so no box can skip over a photoeye within one slice.
const maxPhysicsDT = 0.05

const jamSiteRandom = "random"

// Config is the physics engine's configuration: conveyor geometry plus
// arrival and jam injection parameters (§6 Configuration).
type Config struct {
	Conveyor Conveyor

	ArrivalRatePerHour float64
	ArrivalJitterPct   float64

	JamsEnabled          bool
	JamProbabilityPerBox float64
	// JamLocation is "random" or one of "infeed", "diverter", "outfeed_b",
	// "outfeed_c".
	JamLocation string
}

// Engine owns the box population and drives the physics/control coupling
// described in spec §4.3.
type Engine struct {
	cfg    Config
	tags   *tag.Table
	ctrl   *control.Engine
	sink   sink.Sink
	rng    *rand.Rand
	logger *zerolog.Logger

	active    []*Box
	completed []*Box
	allBoxes  []*Box

	nextBoxID       int64
	simTime         float64
	nextArrivalTime float64

	recovery recovery
}

// NewEngine constructs an Engine. tags, ctrl, sink, and rng must be
// non-nil; a nil dependency is a programmer error and panics, matching the
// teacher's constructor-time-misuse-only panic convention.
func NewEngine(cfg Config, tags *tag.Table, ctrl *control.Engine, sk sink.Sink, rng *rand.Rand, logger *zerolog.Logger) *Engine {
	if tags == nil {
		panic("physics: NewEngine: nil tag table")
	}
	if ctrl == nil {
		panic("physics: NewEngine: nil control engine")
	}
	if rng == nil {
		panic("physics: NewEngine: nil rand source")
	}
	if sk == nil {
		sk = sink.NoopSink{}
	}
	if err := cfg.Conveyor.Validate(); err != nil {
		panic(fmt.Sprintf("physics: NewEngine: %v", err))
	}

	e := &Engine{
		cfg:       cfg,
		tags:      tags,
		ctrl:      ctrl,
		sink:      sk,
		rng:       rng,
		logger:    logger,
		nextBoxID: 1,
	}
	e.scheduleNextArrival()
	return e
}

// SimTime returns the engine's accumulated simulation time.
func (e *Engine) SimTime() float64 { return e.simTime }

// ActiveBoxes returns a snapshot copy of the currently active boxes.
func (e *Engine) ActiveBoxes() []Box {
	out := make([]Box, len(e.active))
	for i, b := range e.active {
		out[i] = *b
	}
	return out
}

// CompletedBoxes returns a snapshot copy of every box that has exited.
func (e *Engine) CompletedBoxes() []Box {
	out := make([]Box, len(e.completed))
	for i, b := range e.completed {
		out[i] = *b
	}
	return out
}

// Summary is the final-report fallback calculation, grounded on
// ProcessSimulator._finalize: prefer the control engine's own metrics, but
// fall back to deriving them from the completed-box list when the control
// engine never accumulated any (e.g. a run that never reached RUNNING).
type Summary struct {
	BoxCount     int64
	AvgCycleTime float64
	Throughput   float64
	JamCount     int64
	Accepted     int64
	Rejected     int64
	DurationSec  float64
}

// Summary computes the final report.
func (e *Engine) Summary() Summary {
	m := e.ctrl.Metrics()

	boxCount := m.BoxCount
	if boxCount == 0 {
		boxCount = int64(len(e.completed))
	}
	avg := m.AvgCycleTime
	if avg == 0 {
		avg = e.fallbackAvgCycleTime()
	}
	throughput := m.Throughput
	if throughput == 0 {
		throughput = e.fallbackThroughput()
	}
	jamCount := m.JamCount
	if jamCount == 0 {
		for _, b := range e.allBoxes {
			if b.IsJammed {
				jamCount++
			}
		}
	}

	var accepted, rejected int64
	for _, b := range e.completed {
		if b.IsReject {
			rejected++
		} else {
			accepted++
		}
	}

	return Summary{
		BoxCount:     boxCount,
		AvgCycleTime: avg,
		Throughput:   throughput,
		JamCount:     jamCount,
		Accepted:     accepted,
		Rejected:     rejected,
		DurationSec:  e.simTime,
	}
}

func (e *Engine) fallbackAvgCycleTime() float64 {
	if len(e.completed) == 0 {
		return 0
	}
	var total float64
	for _, b := range e.completed {
		total += b.ExitTime - b.ArrivalTime
	}
	return total / float64(len(e.completed))
}

func (e *Engine) fallbackThroughput() float64 {
	if e.simTime <= 0 {
		return 0
	}
	return float64(len(e.completed)) / (e.simTime / 3600.0)
}

// Update advances the simulation by dtOuter seconds of simulation time,
// splitting it into slices of at most maxPhysicsDT.
func (e *Engine) Update(dtOuter float64) {
	remaining := dtOuter
	for remaining > 0 {
		step := remaining
		if step > maxPhysicsDT {
			step = maxPhysicsDT
		}
		remaining -= step
		e.simTime += step

		e.updatePhotoeyes()
		e.ctrl.Scan(e.tags, step)
		e.recovery.step(e, step)

		motorOn := e.tags.ReadBool(tag.BConveyorMotor)
		diverterExtended := e.tags.ReadBool(tag.BDiverterActuator)
		speedSetpoint := e.tags.ReadReal(tag.RConveyorSpeed)
		if speedSetpoint == 0 {
			speedSetpoint = 1.0
		}

		if e.simTime >= e.nextArrivalTime {
			if e.ctrl.State() == control.Running {
				e.generateBox()
			}
			e.scheduleNextArrival()
		}

		if motorOn {
			e.moveBoxes(step, e.cfg.Conveyor.BeltSpeedMMS*speedSetpoint, diverterExtended)
		}
	}
}

func (e *Engine) updatePhotoeyes() {
	var infeed, diverter, outfeedB, outfeedC bool
	half := e.cfg.Conveyor.BoxLengthMM / 2

	for _, b := range e.active {
		front := b.PositionMM + half
		back := b.PositionMM - half

		if back <= e.cfg.Conveyor.InfeedPEPos && e.cfg.Conveyor.InfeedPEPos <= front {
			infeed = true
		}
		if back <= e.cfg.Conveyor.DiverterPEPos && e.cfg.Conveyor.DiverterPEPos <= front {
			diverter = true
		}
		if !b.IsReject && back <= e.cfg.Conveyor.OutfeedBPos && e.cfg.Conveyor.OutfeedBPos <= front {
			outfeedB = true
		}
		if b.IsReject && back <= e.cfg.Conveyor.OutfeedCPos && e.cfg.Conveyor.OutfeedCPos <= front {
			outfeedC = true
		}
	}

	e.tags.MustWrite(tag.BInfeedPE, tag.Bool(infeed))
	e.tags.MustWrite(tag.BDiverterPE, tag.Bool(diverter))
	e.tags.MustWrite(tag.BOutfeedBPE, tag.Bool(outfeedB))
	e.tags.MustWrite(tag.BOutfeedCPE, tag.Bool(outfeedC))
}

func (e *Engine) scheduleNextArrival() {
	if e.cfg.ArrivalRatePerHour <= 0 {
		e.nextArrivalTime = math.Inf(1)
		return
	}
	interval := 3600.0 / e.cfg.ArrivalRatePerHour
	jitter := interval * (e.cfg.ArrivalJitterPct / 100.0)
	actual := interval + (e.rng.Float64()*2-1)*jitter
	if actual < 1.0 {
		actual = 1.0
	}
	e.nextArrivalTime = e.simTime + actual
}

func (e *Engine) shouldInjectJam() bool {
	if !e.cfg.JamsEnabled {
		return false
	}
	return e.rng.Float64() < e.cfg.JamProbabilityPerBox
}

func (e *Engine) rollJamLocation() control.JamSite {
	if e.cfg.JamLocation != "" && e.cfg.JamLocation != jamSiteRandom {
		if site, ok := parseJamSite(e.cfg.JamLocation); ok {
			return site
		}
	}
	return control.JamSite(e.rng.Intn(int(control.SiteOutfeedC) + 1))
}

func parseJamSite(s string) (control.JamSite, bool) {
	switch s {
	case "infeed":
		return control.SiteInfeed, true
	case "diverter":
		return control.SiteDiverter, true
	case "outfeed_b":
		return control.SiteOutfeedB, true
	case "outfeed_c":
		return control.SiteOutfeedC, true
	default:
		return 0, false
	}
}

func (e *Engine) generateBox() {
	b := &Box{
		ID:          e.nextBoxID,
		State:       AtInfeed,
		ArrivalTime: e.simTime,
		IsJammed:    e.shouldInjectJam(),
	}
	if b.IsJammed {
		b.JamLocation = e.rollJamLocation()
	}
	e.nextBoxID++
	e.active = append(e.active, b)
	e.allBoxes = append(e.allBoxes, b)

	desc := fmt.Sprintf("box %d arrived at infeed", b.ID)
	if b.IsJammed {
		desc += " [WILL JAM]"
	}
	e.sink.LogEvent(e.simTime, sink.EventBoxArrival, b.ID, desc)
}

func (e *Engine) moveBoxes(dt float64, speedMMS float64, diverterExtended bool) {
	distance := speedMMS * dt

	kept := e.active[:0]
	for _, b := range e.active {
		if b.State == Jammed {
			kept = append(kept, b)
			continue
		}

		if b.IsJammed {
			jamPos := e.cfg.Conveyor.jamPosition(b.JamLocation)
			if b.PositionMM >= jamPos {
				b.State = Jammed
				e.sink.LogEvent(e.simTime, sink.EventJam, b.ID, fmt.Sprintf("box %d jammed at %s", b.ID, b.JamLocation))
				if e.logger != nil {
					e.logger.Info().Int64("box_id", b.ID).Str("site", b.JamLocation.String()).Msg("physics: box jammed")
				}
				kept = append(kept, b)
				continue
			}
		}

		b.PositionMM += distance

		switch {
		case b.PositionMM >= e.cfg.Conveyor.OutfeedBPos && !b.IsReject:
			b.State = AtOutfeedB
			if b.PositionMM >= e.cfg.Conveyor.OutfeedBPos+e.cfg.Conveyor.BoxLengthMM {
				b.State = Completed
				b.ExitTime = e.simTime
				e.completed = append(e.completed, b)
				e.sink.LogEvent(e.simTime, sink.EventBoxExitB, b.ID,
					fmt.Sprintf("box %d exited at station B (accept), cycle=%.1fs", b.ID, b.ExitTime-b.ArrivalTime))
				continue
			}
		case b.PositionMM >= e.cfg.Conveyor.OutfeedCPos && b.IsReject:
			b.State = AtOutfeedC
			if b.PositionMM >= e.cfg.Conveyor.OutfeedCPos+e.cfg.Conveyor.BoxLengthMM {
				b.State = Completed
				b.ExitTime = e.simTime
				e.completed = append(e.completed, b)
				e.sink.LogEvent(e.simTime, sink.EventBoxExitC, b.ID,
					fmt.Sprintf("box %d exited at station C (reject), cycle=%.1fs", b.ID, b.ExitTime-b.ArrivalTime))
				continue
			}
		case b.PositionMM >= e.cfg.Conveyor.DiverterPEPos:
			b.State = AtDiverter
			if !b.Routed {
				b.IsReject = diverterExtended
				b.Routed = true
			}
		case b.PositionMM >= e.cfg.Conveyor.InfeedPEPos:
			b.State = AtInfeed
		}

		kept = append(kept, b)
	}
	e.active = kept
}
