package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-conveyorsim/control"
	"github.com/joeycumines/go-conveyorsim/physics"
	"github.com/joeycumines/go-conveyorsim/sink"
	"github.com/joeycumines/go-conveyorsim/tag"
)

// recordingObserver captures every Update call so tests can assert on the
// final snapshot without needing a real renderer.
type recordingObserver struct {
	updates int
	last    Metrics
}

func (r *recordingObserver) Update(_ []physics.Box, _ PLCState, _ Photoeyes, _ float64, m Metrics) {
	r.updates++
	r.last = m
}
func (r *recordingObserver) ProcessEvents() bool { return true }
func (r *recordingObserver) Close() error        { return nil }

func TestDriverWritesSafeDefaultsAndPulsesStart(t *testing.T) {
	tb := tag.NewTable()
	require.NoError(t, tb.WriteReal(tag.RJamTimeoutSec, 4.0))
	ctrl := control.NewEngine(nil)
	phys := physics.NewEngine(physics.Config{
		Conveyor: physics.Conveyor{
			TotalLengthMM: 3000, InfeedPEPos: 0, DiverterPEPos: 1500,
			OutfeedBPos: 2500, OutfeedCPos: 2500, BeltSpeedMMS: 500, BoxLengthMM: 200,
		},
		ArrivalRatePerHour: 0,
	}, tb, ctrl, sink.NoopSink{}, rand.New(rand.NewSource(1)), nil)

	obs := &recordingObserver{}
	d := NewDriver(Config{DurationSec: 0, TimeScale: 1, UpdateIntervalMs: 1}, tb, ctrl, phys, sink.NoopSink{}, obs, nil)

	require.NoError(t, d.Run())

	assert.True(t, tb.ReadBool(tag.BEStop))
	assert.True(t, tb.ReadBool(tag.BStopPB))
}

func TestDriverRequestStopEndsRunEarly(t *testing.T) {
	tb := tag.NewTable()
	ctrl := control.NewEngine(nil)
	phys := physics.NewEngine(physics.Config{
		Conveyor: physics.Conveyor{
			TotalLengthMM: 3000, InfeedPEPos: 0, DiverterPEPos: 1500,
			OutfeedBPos: 2500, OutfeedCPos: 2500, BeltSpeedMMS: 500, BoxLengthMM: 200,
		},
	}, tb, ctrl, sink.NoopSink{}, rand.New(rand.NewSource(1)), nil)

	d := NewDriver(Config{DurationSec: 9999, TimeScale: 1, UpdateIntervalMs: 1}, tb, ctrl, phys, sink.NoopSink{}, NoopObserver{}, nil)
	d.RequestStop()

	require.NoError(t, d.Run())
	assert.Less(t, phys.SimTime(), 1.0)
}
