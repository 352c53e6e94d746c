package sim

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeycumines/go-conveyorsim/control"
	"github.com/joeycumines/go-conveyorsim/physics"
	"github.com/joeycumines/go-conveyorsim/sink"
	"github.com/joeycumines/go-conveyorsim/tag"
)

// Config holds the driver loop's pacing parameters (§6 Configuration,
// simulation.*).
type Config struct {
	DurationSec      float64
	TimeScale        float64
	UpdateIntervalMs int
}

// Driver maps wall-clock time to simulation time and drives one physics
// engine to completion, pumping a Sink and an Observer once per outer tick.
type Driver struct {
	cfg    Config
	tags   *tag.Table
	ctrl   *control.Engine
	phys   *physics.Engine
	sink   sink.Sink
	obs    Observer
	logger *zerolog.Logger

	stopRequested atomic.Bool
}

// NewDriver constructs a Driver. tags, ctrl, and phys must be non-nil.
func NewDriver(cfg Config, tags *tag.Table, ctrl *control.Engine, phys *physics.Engine, sk sink.Sink, obs Observer, logger *zerolog.Logger) *Driver {
	if tags == nil {
		panic("sim: NewDriver: nil tag table")
	}
	if ctrl == nil {
		panic("sim: NewDriver: nil control engine")
	}
	if phys == nil {
		panic("sim: NewDriver: nil physics engine")
	}
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1.0
	}
	if cfg.UpdateIntervalMs <= 0 {
		cfg.UpdateIntervalMs = 50
	}
	if sk == nil {
		sk = sink.NoopSink{}
	}
	if obs == nil {
		obs = NoopObserver{}
	}
	return &Driver{cfg: cfg, tags: tags, ctrl: ctrl, phys: phys, sink: sk, obs: obs, logger: logger}
}

// RequestStop asks the driver to finish the current sub-step and exit. Safe
// to call from another goroutine (e.g. a signal handler).
func (d *Driver) RequestStop() { d.stopRequested.Store(true) }

func (d *Driver) writeSafeDefaults() {
	d.tags.MustWrite(tag.BEStop, tag.Bool(true))
	d.tags.MustWrite(tag.BStopPB, tag.Bool(true))
	d.tags.MustWrite(tag.BStartPB, tag.Bool(false))
	d.tags.MustWrite(tag.BModeSelector, tag.Bool(false))
	d.tags.MustWrite(tag.BInfeedPE, tag.Bool(false))
	d.tags.MustWrite(tag.BDiverterPE, tag.Bool(false))
	d.tags.MustWrite(tag.BOutfeedBPE, tag.Bool(false))
	d.tags.MustWrite(tag.BOutfeedCPE, tag.Bool(false))
}

// Run executes the driver loop until sim_time reaches the configured
// duration, the observer requests shutdown, or RequestStop is called.
func (d *Driver) Run() error {
	d.writeSafeDefaults()
	d.tags.MustWrite(tag.BHMIStart, tag.Bool(true))
	if d.logger != nil {
		d.logger.Info().Float64("duration_sec", d.cfg.DurationSec).Float64("time_scale", d.cfg.TimeScale).Msg("sim: starting")
	}

	updateInterval := time.Duration(d.cfg.UpdateIntervalMs) * time.Millisecond
	lastUpdate := time.Now()

	for d.phys.SimTime() < d.cfg.DurationSec && !d.stopRequested.Load() {
		tickStart := time.Now()
		realDT := tickStart.Sub(lastUpdate).Seconds()
		lastUpdate = tickStart

		d.phys.Update(realDT * d.cfg.TimeScale)
		d.emitTick()

		if !d.obs.ProcessEvents() {
			if d.logger != nil {
				d.logger.Info().Msg("sim: observer requested shutdown")
			}
			break
		}

		if sleep := updateInterval - time.Since(tickStart); sleep > 0 {
			time.Sleep(sleep)
		}
	}

	return d.finalize()
}

func (d *Driver) emitTick() {
	simTime := d.phys.SimTime()

	snap := sink.MetricsSnapshot{
		SystemState:       d.ctrl.State().String(),
		BoxCount:          d.tags.ReadInt(tag.RHMIBoxCount),
		AvgCycleTimeSec:   d.tags.ReadReal(tag.RHMIAvgCycleTime),
		JamCount:          d.tags.ReadInt(tag.RHMIJamCount),
		ThroughputPerHour: d.tags.ReadReal(tag.RHMIThroughput),
		FaultMessage:      d.tags.ReadString(tag.SHMIFaultMsg),
	}
	d.sink.LogMetrics(simTime, snap)

	plc := PLCState{
		MotorOn:          d.tags.ReadBool(tag.BConveyorMotor),
		DiverterExtended: d.tags.ReadBool(tag.BDiverterActuator),
		Alarm:            d.tags.ReadBool(tag.BAlarmBuzzer),
		GreenLight:       d.tags.ReadBool(tag.BStatusGreen),
		RedLight:         d.tags.ReadBool(tag.BStatusRed),
		State:            int(d.tags.ReadInt(tag.IHMIState)),
		FaultMessage:     snap.FaultMessage,
	}
	pe := Photoeyes{
		Infeed:   d.tags.ReadBool(tag.BInfeedPE),
		Diverter: d.tags.ReadBool(tag.BDiverterPE),
		OutfeedB: d.tags.ReadBool(tag.BOutfeedBPE),
		OutfeedC: d.tags.ReadBool(tag.BOutfeedCPE),
	}
	m := Metrics{
		BoxCount:     snap.BoxCount,
		AvgCycleTime: snap.AvgCycleTimeSec,
		JamCount:     snap.JamCount,
		Throughput:   snap.ThroughputPerHour,
	}
	d.obs.Update(d.phys.ActiveBoxes(), plc, pe, simTime, m)
}

func (d *Driver) finalize() error {
	d.tags.MustWrite(tag.BHMIStop, tag.Bool(true))
	d.ctrl.Scan(d.tags, 0)

	s := d.phys.Summary()
	if err := d.sink.Finalize(d.phys.SimTime(), s.BoxCount, s.Accepted, s.Rejected); err != nil && d.logger != nil {
		d.logger.Error().Err(err).Msg("sim: sink finalize failed")
	}
	if err := d.sink.Close(); err != nil && d.logger != nil {
		d.logger.Error().Err(err).Msg("sim: sink close failed")
	}
	if err := d.obs.Close(); err != nil && d.logger != nil {
		d.logger.Error().Err(err).Msg("sim: observer close failed")
	}

	if d.logger != nil {
		d.logger.Info().
			Float64("duration_sec", d.phys.SimTime()).
			Int64("box_count", s.BoxCount).
			Float64("avg_cycle_time_sec", s.AvgCycleTime).
			Float64("throughput_per_hour", s.Throughput).
			Int64("jam_count", s.JamCount).
			Int64("accepted", s.Accepted).
			Int64("rejected", s.Rejected).
			Msg("sim: finished")
	}
	return nil
}
