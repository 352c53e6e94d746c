package physics

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-conveyorsim/control"
	"github.com/joeycumines/go-conveyorsim/sink"
	"github.com/joeycumines/go-conveyorsim/tag"
)

func testConveyor() Conveyor {
	return Conveyor{
		TotalLengthMM: 3000,
		InfeedPEPos:   0,
		DiverterPEPos: 1500,
		OutfeedBPos:   2500,
		OutfeedCPos:   2500,
		BeltSpeedMMS:  500,
		BoxLengthMM:   200,
	}
}

func newTestEngine(t *testing.T, cfg Config, seed int64) (*Engine, *tag.Table, *control.Engine) {
	t.Helper()
	tb := tag.NewTable()
	require.NoError(t, tb.WriteBool(tag.BEStop, true))
	require.NoError(t, tb.WriteBool(tag.BStopPB, true))
	require.NoError(t, tb.WriteReal(tag.RJamTimeoutSec, 4.0))
	ctrl := control.NewEngine(nil)
	e := NewEngine(cfg, tb, ctrl, sink.NoopSink{}, rand.New(rand.NewSource(seed)), nil)
	return e, tb, ctrl
}

func TestConveyorValidateRejectsBadGeometry(t *testing.T) {
	c := testConveyor()
	c.BoxLengthMM = 1600
	assert.Error(t, c.Validate())
}

func TestNoArrivalsWithZeroRate(t *testing.T) {
	cfg := Config{Conveyor: testConveyor(), ArrivalRatePerHour: 0}
	e, tb, ctrl := newTestEngine(t, cfg, 1)
	require.NoError(t, tb.WriteBool(tag.BHMIStart, true))

	for i := 0; i < 2000; i++ {
		e.Update(0.05)
	}

	assert.Equal(t, control.Running, ctrl.State())
	assert.Empty(t, e.ActiveBoxes())
	assert.Empty(t, e.CompletedBoxes())
}

func TestBoxTraversesAndCompletes(t *testing.T) {
	cfg := Config{
		Conveyor:           testConveyor(),
		ArrivalRatePerHour: 600,
		ArrivalJitterPct:   0,
	}
	e, tb, ctrl := newTestEngine(t, cfg, 2)
	require.NoError(t, tb.WriteBool(tag.BHMIStart, true))

	for i := 0; i < int(30/0.02); i++ {
		e.Update(0.02)
	}

	assert.Equal(t, control.Running, ctrl.State())
	completed := e.CompletedBoxes()
	require.NotEmpty(t, completed)
	for _, b := range completed {
		assert.True(t, b.Routed)
		assert.GreaterOrEqual(t, b.ExitTime, b.ArrivalTime)
	}
}

func TestPositionMonotonicWhileNotJammed(t *testing.T) {
	cfg := Config{Conveyor: testConveyor(), ArrivalRatePerHour: 600}
	e, tb, _ := newTestEngine(t, cfg, 3)
	require.NoError(t, tb.WriteBool(tag.BHMIStart, true))

	lastPos := map[int64]float64{}
	for i := 0; i < 500; i++ {
		e.Update(0.05)
		for _, b := range e.ActiveBoxes() {
			if b.State == Jammed {
				continue
			}
			if prev, ok := lastPos[b.ID]; ok {
				assert.GreaterOrEqual(t, b.PositionMM, prev)
			}
			lastPos[b.ID] = b.PositionMM
		}
	}
}

func TestJamTriggersFaultAndOperatorRecoveryRestarts(t *testing.T) {
	cfg := Config{
		Conveyor:             testConveyor(),
		ArrivalRatePerHour:   600,
		ArrivalJitterPct:     0,
		JamsEnabled:          true,
		JamProbabilityPerBox: 1.0,
		JamLocation:          "diverter",
	}
	e, tb, ctrl := newTestEngine(t, cfg, 42)
	require.NoError(t, tb.WriteBool(tag.BHMIStart, true))

	sawFault := false
	for i := 0; i < int(60/0.02); i++ {
		e.Update(0.02)
		if ctrl.State() == control.Fault {
			sawFault = true
		}
	}

	require.True(t, sawFault, "expected the run to enter FAULT from the forced diverter jam")
	assert.Equal(t, control.Running, ctrl.State(), "operator recovery should have restarted the system")
	assert.GreaterOrEqual(t, ctrl.Metrics().JamCount, int64(1))
}

func TestEveryThirdBoxRejectedEndToEnd(t *testing.T) {
	cfg := Config{
		Conveyor:           testConveyor(),
		ArrivalRatePerHour: 600,
		ArrivalJitterPct:   0,
	}
	e, tb, ctrl := newTestEngine(t, cfg, 7)
	require.NoError(t, tb.WriteBool(tag.BHMIStart, true))

	for i := 0; i < int(60/0.02); i++ {
		e.Update(0.02)
	}
	require.Equal(t, control.Running, ctrl.State())

	completed := e.CompletedBoxes()
	require.GreaterOrEqual(t, len(completed), 3)

	var accept, reject int
	for _, b := range completed {
		if b.IsReject {
			reject++
		} else {
			accept++
		}
	}
	assert.InDelta(t, float64(accept), float64(reject)*2, 2, "roughly 1 reject per 2 accepts")
}
