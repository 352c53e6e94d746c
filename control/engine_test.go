package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-conveyorsim/tag"
)

const scanDT = 0.05

func newRunningEngine(t *testing.T) (*Engine, *tag.Table) {
	t.Helper()
	e := NewEngine(nil)
	tb := tag.NewTable()
	require.NoError(t, tb.WriteBool(tag.BEStop, true))
	require.NoError(t, tb.WriteBool(tag.BStopPB, true))
	require.NoError(t, tb.WriteReal(tag.RJamTimeoutSec, 4.0))

	require.NoError(t, tb.WriteBool(tag.BHMIStart, true))
	e.Scan(tb, scanDT)
	require.Equal(t, Starting, e.State())

	// run out the 1s start delay.
	for i := 0; i < 21; i++ {
		e.Scan(tb, scanDT)
	}
	require.Equal(t, Running, e.State())
	return e, tb
}

func TestStartupSequence(t *testing.T) {
	e := NewEngine(nil)
	tb := tag.NewTable()
	require.NoError(t, tb.WriteBool(tag.BEStop, true))
	require.NoError(t, tb.WriteBool(tag.BStopPB, true))

	e.Scan(tb, scanDT)
	assert.Equal(t, Stopped, e.State(), "no start command yet")

	require.NoError(t, tb.WriteBool(tag.BHMIStart, true))
	e.Scan(tb, scanDT)
	assert.Equal(t, Starting, e.State())
	assert.False(t, tb.ReadBool(tag.BHMIStart), "one-shot start must be consumed")

	for i := 0; i < 19; i++ {
		e.Scan(tb, scanDT)
		assert.Equal(t, Starting, e.State(), "must hold STARTING through the 1s delay")
	}
	e.Scan(tb, scanDT)
	assert.Equal(t, Running, e.State())
	assert.True(t, tb.ReadBool(tag.BConveyorMotor))
}

func TestEStopTripAndLatch(t *testing.T) {
	e, tb := newRunningEngine(t)

	require.NoError(t, tb.WriteBool(tag.BEStop, false))
	e.Scan(tb, scanDT)
	assert.Equal(t, Fault, e.State())
	assert.Equal(t, FaultEStop, e.FaultCode())
	assert.False(t, tb.ReadBool(tag.BConveyorMotor))

	// releasing the e-stop alone must not clear the latch.
	require.NoError(t, tb.WriteBool(tag.BEStop, true))
	e.Scan(tb, scanDT)
	assert.Equal(t, Fault, e.State())

	require.NoError(t, tb.WriteBool(tag.BHMIFaultClear, true))
	e.Scan(tb, scanDT)
	assert.Equal(t, Stopped, e.State())
	assert.Equal(t, FaultNone, e.FaultCode())
}

func TestJamLatchesAfterTimeoutAndClearsOnlyWhenPEClear(t *testing.T) {
	e, tb := newRunningEngine(t)
	require.NoError(t, tb.WriteBool(tag.BInfeedPE, true))

	steps := int(4.0/scanDT) + 1
	for i := 0; i < steps; i++ {
		e.Scan(tb, scanDT)
	}
	assert.Equal(t, Fault, e.State())
	assert.Equal(t, FaultJamInfeed, e.FaultCode())
	site, latched := e.JamLocation()
	assert.True(t, latched)
	assert.Equal(t, SiteInfeed, site)

	// fault-clear while the box is still physically present must not clear.
	require.NoError(t, tb.WriteBool(tag.BHMIFaultClear, true))
	e.Scan(tb, scanDT)
	assert.Equal(t, Fault, e.State())

	// the consumed command reads false for one scan, so the next press is a
	// new rising edge.
	e.Scan(tb, scanDT)

	// clearing the photoeye then pulsing fault-clear does clear it.
	require.NoError(t, tb.WriteBool(tag.BInfeedPE, false))
	require.NoError(t, tb.WriteBool(tag.BHMIFaultClear, true))
	e.Scan(tb, scanDT)
	assert.Equal(t, Stopped, e.State())
	assert.Equal(t, FaultNone, e.FaultCode())
}

func TestDiverterRejectsEveryThirdBox(t *testing.T) {
	e, tb := newRunningEngine(t)

	pulseInfeed := func() {
		require.NoError(t, tb.WriteBool(tag.BInfeedPE, true))
		e.Scan(tb, scanDT)
		require.NoError(t, tb.WriteBool(tag.BInfeedPE, false))
		e.Scan(tb, scanDT)
	}
	pulseDiverter := func() bool {
		require.NoError(t, tb.WriteBool(tag.BDiverterPE, true))
		e.Scan(tb, scanDT)
		out := tb.ReadBool(tag.BDiverterActuator)
		require.NoError(t, tb.WriteBool(tag.BDiverterPE, false))
		e.Scan(tb, scanDT)
		return out
	}

	var rejects []bool
	for i := 0; i < 6; i++ {
		pulseInfeed()
		rejects = append(rejects, pulseDiverter())
	}

	assert.Equal(t, []bool{false, false, true, false, false, true}, rejects)
}

func TestMetricsAccumulateOnCompletion(t *testing.T) {
	e, tb := newRunningEngine(t)

	require.NoError(t, tb.WriteBool(tag.BInfeedPE, true))
	e.Scan(tb, scanDT)
	require.NoError(t, tb.WriteBool(tag.BInfeedPE, false))
	e.Scan(tb, scanDT)

	for i := 0; i < 20; i++ {
		e.Scan(tb, scanDT)
	}

	require.NoError(t, tb.WriteBool(tag.BOutfeedBPE, true))
	e.Scan(tb, scanDT)

	m := e.Metrics()
	assert.Equal(t, int64(1), m.BoxCount)
	assert.Greater(t, m.LastCycleTime, 0.0)
	assert.Equal(t, m.LastCycleTime, m.AvgCycleTime)
}

func TestMotorOutputGatedByStopPBEvenWhenCommanded(t *testing.T) {
	e, tb := newRunningEngine(t)
	require.True(t, tb.ReadBool(tag.BConveyorMotor))

	require.NoError(t, tb.WriteBool(tag.BStopPB, false))
	e.Scan(tb, scanDT)
	assert.False(t, tb.ReadBool(tag.BConveyorMotor))
}

func TestManualModeRequiresJogForMotion(t *testing.T) {
	e, tb := newRunningEngine(t)
	require.NoError(t, tb.WriteBool(tag.BModeSelector, true))
	e.Scan(tb, scanDT)
	assert.False(t, tb.ReadBool(tag.BConveyorMotor), "manual mode without jog must not run the motor")

	require.NoError(t, tb.WriteBool(tag.BHMIJogFwd, true))
	e.Scan(tb, scanDT)
	assert.True(t, tb.ReadBool(tag.BConveyorMotor))
}
