package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-conveyorsim/sim"
)

func TestPrometheusObserverExportsMetrics(t *testing.T) {
	o := NewPrometheusObserver()

	o.Update(nil, sim.PLCState{State: 2}, sim.Photoeyes{}, 10.0, sim.Metrics{BoxCount: 1, AvgCycleTime: 12.0, JamCount: 0, Throughput: 72.0})
	o.Update(nil, sim.PLCState{State: 2}, sim.Photoeyes{}, 20.0, sim.Metrics{BoxCount: 3, AvgCycleTime: 10.0, JamCount: 1, Throughput: 90.0})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	o.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "conveyorsim_box_count 3")
	assert.Contains(t, body, "conveyorsim_jam_count 1")
	assert.Contains(t, body, "conveyorsim_system_state 2")
	assert.Contains(t, body, "conveyorsim_cycle_time_seconds")
}

func TestPrometheusObserverNeverRequestsShutdown(t *testing.T) {
	o := NewPrometheusObserver()
	assert.True(t, o.ProcessEvents())
	assert.NoError(t, o.Close())
}
