// Package physics implements the physical process model: box generation,
// belt motion, photoeye occupancy, jam injection, and routing commit. It
// owns the tick-synchronous invocation of the control engine (see package
// control) and the operator auto-recovery collaborator.
package physics

import "github.com/joeycumines/go-conveyorsim/control"

// State is a box's lifecycle state.
type State int

const (
	// Queued is unused by Engine directly (boxes are created already
	// AtInfeed) but retained as the documented pre-creation state.
	Queued State = iota
	AtInfeed
	AtDiverter
	AtOutfeedB
	AtOutfeedC
	Completed
	Jammed
)

func (s State) String() string {
	switch s {
	case Queued:
		return "QUEUED"
	case AtInfeed:
		return "AT_INFEED"
	case AtDiverter:
		return "AT_DIVERTER"
	case AtOutfeedB:
		return "AT_OUTFEED_B"
	case AtOutfeedC:
		return "AT_OUTFEED_C"
	case Completed:
		return "COMPLETED"
	case Jammed:
		return "JAMMED"
	default:
		return "UNKNOWN"
	}
}

// Box is a single unit moving along the conveyor.
type Box struct {
	ID          int64
	PositionMM  float64
	State       State
	ArrivalTime float64
	ExitTime    float64
	IsReject    bool
	IsJammed    bool
	Routed      bool
	JamLocation control.JamSite
}
