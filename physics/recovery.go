package physics

import (
	"fmt"

	"github.com/joeycumines/go-conveyorsim/control"
	"github.com/joeycumines/go-conveyorsim/sink"
	"github.com/joeycumines/go-conveyorsim/tag"
)

// jamRecoveryDelaySeconds is the simulated operator response time, measured
// from the scan that first reports a jam FAULT.
const jamRecoveryDelaySeconds = 3.0

// recovery is the operator auto-recovery collaborator: it injects HMI
// commands through the tag table to self-heal a jam, rather than being
// control logic. Keeping it separate from control.Engine is deliberate --
// a real operator, not the PLC, decides when to clear a fault.
type recovery struct {
	active bool
	timer  float64
}

// step runs one sub-step of the recovery watchdog against e. It must run
// after the control scan for this slice, since it reacts to the state the
// scan just produced.
func (r *recovery) step(e *Engine, dt float64) {
	_, jamLatched := e.ctrl.JamLocation()
	if e.ctrl.State() == control.Fault && jamLatched && !r.active {
		r.active = true
		r.timer = 0
		return
	}
	if !r.active {
		return
	}

	r.timer += dt
	if r.timer < jamRecoveryDelaySeconds {
		return
	}

	var removed []*Box
	kept := e.active[:0]
	for _, b := range e.active {
		if b.State == Jammed {
			removed = append(removed, b)
		} else {
			kept = append(kept, b)
		}
	}
	e.active = kept

	for _, b := range removed {
		e.sink.LogEvent(e.simTime, sink.EventJamCleared, b.ID, fmt.Sprintf("box %d removed by operator", b.ID))
		if e.logger != nil {
			e.logger.Info().Int64("box_id", b.ID).Msg("physics: operator cleared jammed box")
		}
	}

	e.updatePhotoeyes()
	e.ctrl.Scan(e.tags, dt)

	e.tags.MustWrite(tag.BHMIFaultClear, tag.Bool(true))
	e.ctrl.Scan(e.tags, dt)

	r.active = false
	r.timer = 0

	if e.ctrl.State() == control.Stopped {
		e.tags.MustWrite(tag.BHMIStart, tag.Bool(true))
	}
}
