// Package control implements the PLC scan cycle: safety latching, jam
// detection with time-accumulating per-site timers, a four-state machine,
// diverter latching on photoeye edges, and metrics accumulation. One Scan
// call is one cyclic scan, invoked once per physics sub-step by the physics
// engine (see package physics).
package control

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/joeycumines/go-conveyorsim/tag"
)

const (
	startDelaySeconds = 1.0
	blinkPeriodSeconds = 0.5
	diverterModulus    = 3
)

// Metrics is a read-only snapshot of the engine's accumulators, exposed for
// observers and sinks that want more precision than the rounded HMI tags
// carry.
type Metrics struct {
	BoxCount      int64
	JamCount      int64
	LastCycleTime float64
	AvgCycleTime  float64
	RunningTime   float64
	FaultTime     float64
	Throughput    float64
}

// Engine executes the PLC scan cycle against a tag.Table. Its internal
// state (the four-state machine, latches, timers, metrics accumulators) is
// owned exclusively by the Engine -- it is never stored in the Table (see
// spec §3 "Control state").
type Engine struct {
	logger *zerolog.Logger

	state     State
	faultCode FaultCode

	estopLatched bool
	jamLatched   bool
	jamLocation  JamSite
	jamTimers    [numSites]float64

	prevStart      bool
	prevStop       bool
	prevFaultClear bool
	prevInfeedPE   bool
	prevDiverterPE bool
	prevOutfeedB   bool
	prevOutfeedC   bool
	prevJamLatched bool

	startTimer float64

	blinkTimer float64
	blinkOn    bool

	boxCounter     int64
	rejectNext     bool
	diverterLocked bool

	boxCount      int64
	jamCount      int64
	cycleActive   bool
	cycleTimer    float64
	cycleSum      float64
	lastCycleTime float64
	runningTime   float64
	faultTime     float64
}

// NewEngine constructs an Engine in the STOPPED state. logger may be nil.
func NewEngine(logger *zerolog.Logger) *Engine {
	return &Engine{
		logger:   logger,
		state:    Stopped,
		prevStop: true, // NC: healthy/un-pressed is true
	}
}

// State returns the engine's current state.
func (e *Engine) State() State { return e.state }

// FaultCode returns the engine's current fault code.
func (e *Engine) FaultCode() FaultCode { return e.faultCode }

// JamLocation returns the currently latched jam site and whether a jam is
// latched at all.
func (e *Engine) JamLocation() (JamSite, bool) { return e.jamLocation, e.jamLatched }

// Metrics returns a snapshot of the engine's metrics accumulators.
func (e *Engine) Metrics() Metrics {
	return Metrics{
		BoxCount:      e.boxCount,
		JamCount:      e.jamCount,
		LastCycleTime: e.lastCycleTime,
		AvgCycleTime:  e.avgCycleTime(),
		RunningTime:   e.runningTime,
		FaultTime:     e.faultTime,
		Throughput:    e.throughput(),
	}
}

func (e *Engine) avgCycleTime() float64 {
	if e.boxCount == 0 {
		return 0
	}
	return e.cycleSum / float64(e.boxCount)
}

func (e *Engine) throughput() float64 {
	if e.runningTime <= 1.0 {
		return 0
	}
	return float64(e.boxCount) / (e.runningTime / 3600.0)
}

func round(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}

// Scan executes one PLC scan cycle against t, advancing internal state by
// dt seconds. All decisions within a single Scan observe the same input
// snapshot, taken at the top of the call.
func (e *Engine) Scan(t *tag.Table, dt float64) {
	// ---- read inputs ----
	estop := t.ReadBool(tag.BEStop)
	stopPB := t.ReadBool(tag.BStopPB)
	startPB := t.ReadBool(tag.BStartPB) || t.ReadBool(tag.BHMIStart)
	faultClear := t.ReadBool(tag.BHMIFaultClear)
	modeManual := t.ReadBool(tag.BModeSelector)
	jogFwd := t.ReadBool(tag.BHMIJogFwd)

	infeedPE := t.ReadBool(tag.BInfeedPE)
	diverterPE := t.ReadBool(tag.BDiverterPE)
	outfeedBPE := t.ReadBool(tag.BOutfeedBPE)
	outfeedCPE := t.ReadBool(tag.BOutfeedCPE)

	jamTimeout := t.ReadReal(tag.RJamTimeoutSec)
	if jamTimeout == 0 {
		jamTimeout = 4.0
	}

	// ---- edge detection ----
	startRising := startPB && !e.prevStart
	stopFalling := e.prevStop && !stopPB // NC
	clearRising := faultClear && !e.prevFaultClear

	// ---- blink timer ----
	e.blinkTimer += dt
	if e.blinkTimer >= blinkPeriodSeconds {
		e.blinkTimer = 0
		e.blinkOn = !e.blinkOn
	}

	// ==================================================================
	// 1. SAFETY
	// ==================================================================
	if !estop {
		e.estopLatched = true
		e.faultCode = FaultEStop
	}
	if e.estopLatched && clearRising && estop {
		e.estopLatched = false
		if !e.jamLatched {
			e.faultCode = FaultNone
		}
	}

	faultActive := e.estopLatched || e.jamLatched
	safeToRun := estop && !e.estopLatched && !e.jamLatched && stopPB
	startCmd := startRising && safeToRun

	// ==================================================================
	// 2. JAM DETECTION
	// ==================================================================
	if e.state == Running || e.jamLatched {
		sites := [numSites]bool{SiteInfeed: infeedPE, SiteDiverter: diverterPE, SiteOutfeedB: outfeedBPE, SiteOutfeedC: outfeedCPE}
		for site := JamSite(0); site < numSites; site++ {
			if sites[site] && e.state == Running {
				e.jamTimers[site] += dt
			} else {
				e.jamTimers[site] = 0
			}

			if e.jamTimers[site] >= jamTimeout && !e.jamLatched {
				e.jamLatched = true
				e.jamLocation = site
				e.faultCode = site.faultCode()
				if e.logger != nil {
					e.logger.Info().Str("site", site.String()).Msg("plc: jam latched")
				}
			}
		}
	} else {
		for site := JamSite(0); site < numSites; site++ {
			e.jamTimers[site] = 0
		}
	}

	// jam clear
	if e.jamLatched && clearRising {
		cleared := map[JamSite]bool{
			SiteInfeed:   !infeedPE,
			SiteDiverter: !diverterPE,
			SiteOutfeedB: !outfeedBPE,
			SiteOutfeedC: !outfeedCPE,
		}
		if cleared[e.jamLocation] {
			e.jamLatched = false
			if !e.estopLatched {
				e.faultCode = FaultNone
			}
			if e.logger != nil {
				e.logger.Info().Str("site", e.jamLocation.String()).Msg("plc: jam cleared")
			}
		}
	}

	faultActive = e.estopLatched || e.jamLatched

	// ==================================================================
	// 3. STATE MACHINE
	// ==================================================================
	var motorCmd, diverterOut, alarm, green, red bool
	prevState := e.state

	switch e.state {
	case Stopped:
		if startCmd {
			e.state = Starting
			e.startTimer = 0
			if e.logger != nil {
				e.logger.Info().Msg("plc: STOPPED -> STARTING")
			}
		}

	case Starting:
		green = e.blinkOn
		e.startTimer += dt
		if faultActive {
			e.state = Fault
			if e.logger != nil {
				e.logger.Info().Msg("plc: STARTING -> FAULT")
			}
		} else if e.startTimer >= startDelaySeconds && safeToRun {
			e.state = Running
			// RUNNING outputs apply from the scan that enters RUNNING.
			green = true
			motorCmd = !modeManual || jogFwd
			if e.logger != nil {
				e.logger.Info().Msg("plc: STARTING -> RUNNING")
			}
		}

	case Running:
		green = true
		if !modeManual {
			motorCmd = true
		} else {
			motorCmd = jogFwd && safeToRun
		}

		if faultActive {
			e.state = Fault
			motorCmd = false
			if e.logger != nil {
				e.logger.Info().Msg("plc: RUNNING -> FAULT")
			}
		} else if stopFalling || t.ReadBool(tag.BHMIStop) {
			e.state = Stopped
			motorCmd = false
			green = false
			if e.logger != nil {
				e.logger.Info().Msg("plc: RUNNING -> STOPPED")
			}
		}

	case Fault:
		red = e.blinkOn
		alarm = true
		if !faultActive {
			e.state = Stopped
			red, alarm = false, false
			if e.logger != nil {
				e.logger.Info().Msg("plc: FAULT -> STOPPED")
			}
		}
	}

	// Leaving RUNNING must not leave the diverter latch stuck (see spec §9
	// "Open question -- diverter latch under manual mode").
	if prevState == Running && e.state != Running {
		e.diverterLocked = false
		e.rejectNext = false
	}

	// ==================================================================
	// 4. DIVERTER (auto mode, RUNNING only)
	// ==================================================================
	infeedRising := infeedPE && !e.prevInfeedPE
	diverterRising := diverterPE && !e.prevDiverterPE
	diverterFalling := !diverterPE && e.prevDiverterPE

	if e.state == Running && !modeManual {
		if infeedRising {
			e.boxCounter++
			e.rejectNext = e.boxCounter%diverterModulus == 0
		}
		if diverterRising {
			e.diverterLocked = true
			diverterOut = e.rejectNext
		}
		if e.diverterLocked {
			diverterOut = e.rejectNext
		}
		if diverterFalling && e.diverterLocked {
			e.diverterLocked = false
			e.rejectNext = false
			diverterOut = false
		}
	}

	// ==================================================================
	// 5. METRICS
	// ==================================================================
	outfeedBRising := outfeedBPE && !e.prevOutfeedB
	outfeedCRising := outfeedCPE && !e.prevOutfeedC
	jamRising := e.jamLatched && !e.prevJamLatched

	if infeedRising && !e.cycleActive {
		e.cycleActive = true
		e.cycleTimer = 0
	}
	if e.cycleActive {
		e.cycleTimer += dt
	}
	if e.cycleActive && (outfeedBRising || outfeedCRising) {
		e.lastCycleTime = e.cycleTimer
		e.boxCount++
		e.cycleSum += e.cycleTimer
		e.cycleActive = false
		e.cycleTimer = 0
	}
	if jamRising {
		e.jamCount++
	}

	if e.state == Running {
		e.runningTime += dt
	}
	if e.state == Fault {
		e.faultTime += dt
	}

	// ==================================================================
	// 6. SAFETY-GATED MOTOR OUTPUT
	// ==================================================================
	motorOutput := motorCmd && estop && !e.estopLatched && stopPB

	// ==================================================================
	// 7. WRITE OUTPUTS
	// ==================================================================
	t.MustWrite(tag.BConveyorMotor, tag.Bool(motorOutput))
	t.MustWrite(tag.BDiverterActuator, tag.Bool(diverterOut))
	t.MustWrite(tag.BAlarmBuzzer, tag.Bool(alarm))
	t.MustWrite(tag.BStatusGreen, tag.Bool(green))
	t.MustWrite(tag.BStatusRed, tag.Bool(red))

	t.MustWrite(tag.IHMIState, tag.Int(int64(e.state)))
	t.MustWrite(tag.SHMIFaultMsg, tag.String(e.faultCode.Message()))
	t.MustWrite(tag.RHMIBoxCount, tag.Int(e.boxCount))
	t.MustWrite(tag.RHMIAvgCycleTime, tag.Real(round(e.avgCycleTime(), 2)))
	t.MustWrite(tag.RHMIJamCount, tag.Int(e.jamCount))
	t.MustWrite(tag.RHMIThroughput, tag.Real(round(e.throughput(), 1)))

	// ---- save previous states ----
	e.prevStart = startPB
	e.prevStop = stopPB
	e.prevFaultClear = faultClear
	e.prevInfeedPE = infeedPE
	e.prevDiverterPE = diverterPE
	e.prevOutfeedB = outfeedBPE
	e.prevOutfeedC = outfeedCPE
	e.prevJamLatched = e.jamLatched

	// ---- consume one-shot HMI commands ----
	t.ConsumeOneShots()
}
