package physics

import (
	"fmt"

	"github.com/joeycumines/go-conveyorsim/control"
)

// Conveyor is the belt's immutable geometry for a run.
type Conveyor struct {
	TotalLengthMM float64
	InfeedPEPos   float64
	DiverterPEPos float64
	OutfeedBPos   float64
	OutfeedCPos   float64
	BeltSpeedMMS  float64
	BoxLengthMM   float64
}

// Validate checks the invariants from the data model: PE positions are
// ordered infeed ≤ diverter ≤ outfeed, and a box is shorter than the
// infeed-to-diverter run (so it cannot straddle both at once).
func (c Conveyor) Validate() error {
	if c.InfeedPEPos != 0 {
		return fmt.Errorf("physics: infeed_pe_pos must be 0, got %g", c.InfeedPEPos)
	}
	if !(c.InfeedPEPos <= c.DiverterPEPos && c.DiverterPEPos <= c.OutfeedBPos) {
		return fmt.Errorf("physics: PE positions must satisfy infeed <= diverter <= outfeed, got %g/%g/%g",
			c.InfeedPEPos, c.DiverterPEPos, c.OutfeedBPos)
	}
	if c.OutfeedBPos != c.OutfeedCPos {
		return fmt.Errorf("physics: outfeed_b_pos and outfeed_c_pos must be equal, got %g/%g", c.OutfeedBPos, c.OutfeedCPos)
	}
	if c.BoxLengthMM >= c.DiverterPEPos {
		return fmt.Errorf("physics: box_length_mm must be less than diverter_pe_pos, got %g >= %g", c.BoxLengthMM, c.DiverterPEPos)
	}
	if c.BeltSpeedMMS <= 0 {
		return fmt.Errorf("physics: belt_speed_mms must be positive, got %g", c.BeltSpeedMMS)
	}
	return nil
}

// jamPosition returns the conveyor position of site, used to pre-assign a
// jammed box's trigger point.
func (c Conveyor) jamPosition(site control.JamSite) float64 {
	switch site {
	case control.SiteInfeed:
		return c.InfeedPEPos
	case control.SiteDiverter:
		return c.DiverterPEPos
	case control.SiteOutfeedB:
		return c.OutfeedBPos
	case control.SiteOutfeedC:
		return c.OutfeedCPos
	default:
		return c.InfeedPEPos
	}
}
