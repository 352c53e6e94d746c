package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSinkWritesAndFlushesOnClose(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir, 0, true, nil)

	s.LogMetrics(0.0, MetricsSnapshot{SystemState: "RUNNING", BoxCount: 1, AvgCycleTimeSec: 12.3, JamCount: 0, ThroughputPerHour: 72.0})
	s.LogEvent(0.0, EventBoxArrival, 1, "box 1 arrived at infeed")
	require.NoError(t, s.Finalize(10.0, 1, 1, 0))
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var metricsContent, eventsContent string
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		if strings.HasPrefix(e.Name(), "metrics_") {
			metricsContent = string(b)
		} else {
			eventsContent = string(b)
		}
	}

	assert.Contains(t, metricsContent, "sim_time_sec,system_state,box_count,avg_cycle_time_sec,jam_count,throughput_per_hour,fault_message")
	assert.Contains(t, metricsContent, "RUNNING")
	assert.Contains(t, eventsContent, "BOX_ARRIVAL")
	assert.Contains(t, eventsContent, "SUMMARY")
}

func TestCSVSinkThrottlesMetrics(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir, 10.0, true, nil)

	s.LogMetrics(0.0, MetricsSnapshot{SystemState: "STOPPED"})
	s.LogMetrics(1.0, MetricsSnapshot{SystemState: "RUNNING"}) // throttled, within 10s window
	require.NoError(t, s.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var metricsContent string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "metrics_") {
			b, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			metricsContent = string(b)
		}
	}

	assert.Equal(t, 1, strings.Count(metricsContent, "STOPPED"))
	assert.NotContains(t, metricsContent, "RUNNING")
}
