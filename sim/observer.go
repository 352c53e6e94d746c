// Package sim implements the driver loop: it maps wall-clock time to
// simulation time via a time_scale, invokes the physics engine once per
// outer tick, and pumps the sink and observer. See package physics for the
// sub-stepped core this wraps.
package sim

import "github.com/joeycumines/go-conveyorsim/physics"

// PLCState is the read-only snapshot of control-facing tag values an
// Observer receives once per outer tick, mirroring what a real HMI would
// poll.
type PLCState struct {
	MotorOn          bool
	DiverterExtended bool
	Alarm            bool
	GreenLight       bool
	RedLight         bool
	State            int
	FaultMessage     string
}

// Photoeyes is the snapshot of the four photoeye tags.
type Photoeyes struct {
	Infeed   bool
	Diverter bool
	OutfeedB bool
	OutfeedC bool
}

// Metrics is the snapshot of the HMI-facing metrics tags.
type Metrics struct {
	BoxCount     int64
	AvgCycleTime float64
	JamCount     int64
	Throughput   float64
}

// Observer receives a read-only snapshot once per outer tick. It must be
// side-effect-free with respect to the tag table -- rendering, exporting,
// or recording are the only permitted actions.
type Observer interface {
	// Update is called once per outer tick with the current state.
	Update(boxes []physics.Box, plc PLCState, pe Photoeyes, simTime float64, metrics Metrics)

	// ProcessEvents is polled once per outer tick; returning false requests
	// that the driver stop.
	ProcessEvents() bool

	// Close releases any resources the observer holds.
	Close() error
}

// NoopObserver does nothing and never requests shutdown. It is the default
// when no renderer or external collaborator is configured, standing in for
// the real-time GUI/GIF-capture observer spec.md scopes out.
type NoopObserver struct{}

func (NoopObserver) Update([]physics.Box, PLCState, Photoeyes, float64, Metrics) {}
func (NoopObserver) ProcessEvents() bool                                        { return true }
func (NoopObserver) Close() error                                               { return nil }

var _ Observer = NoopObserver{}
