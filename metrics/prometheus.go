// Package metrics implements a Prometheus-backed sim.Observer: the
// headless, always-on alternative to the real-time GUI renderer and GIF
// capture spec.md scopes out (see REDESIGN FLAGS in SPEC_FULL.md).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeycumines/go-conveyorsim/physics"
	"github.com/joeycumines/go-conveyorsim/sim"
)

const namespace = "conveyorsim"

// PrometheusObserver mirrors the outer-tick snapshot into Prometheus
// gauges/counters and a cycle-time histogram, served via promhttp.HandlerFor
// on the observer's own registry.
type PrometheusObserver struct {
	registry *prometheus.Registry

	boxCount   prometheus.Gauge
	jamCount   prometheus.Gauge
	throughput prometheus.Gauge
	state      prometheus.Gauge
	cycleTime  prometheus.Histogram

	lastBoxCount int64
	lastCycleSum float64
}

// NewPrometheusObserver constructs an observer with its own registry, so
// multiple simulation runs in one process never collide on metric names.
func NewPrometheusObserver() *PrometheusObserver {
	reg := prometheus.NewRegistry()

	o := &PrometheusObserver{
		registry: reg,
		boxCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "box_count", Help: "Total boxes completed (accepted + rejected).",
		}),
		jamCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "jam_count", Help: "Total jam-latch events.",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "throughput_per_hour", Help: "Completed boxes per hour of RUNNING time.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "system_state", Help: "Control engine state (0=STOPPED,1=STARTING,2=RUNNING,3=FAULT).",
		}),
		cycleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_time_seconds", Help: "Per-box cycle time, infeed-PE-rising to outfeed-PE-rising.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(o.boxCount, o.jamCount, o.throughput, o.state, o.cycleTime)
	return o
}

// Handler returns the HTTP handler serving this observer's registry.
func (o *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// Update implements sim.Observer.
func (o *PrometheusObserver) Update(_ []physics.Box, plc sim.PLCState, _ sim.Photoeyes, _ float64, m sim.Metrics) {
	o.boxCount.Set(float64(m.BoxCount))
	o.jamCount.Set(float64(m.JamCount))
	o.throughput.Set(m.Throughput)
	o.state.Set(float64(plc.State))

	// The tag table only exposes cumulative avg_cycle_time and box_count, not
	// individual cycle times, so back out the cumulative sum and observe the
	// delta attributed evenly across any newly completed boxes this tick.
	cycleSum := m.AvgCycleTime * float64(m.BoxCount)
	if delta := m.BoxCount - o.lastBoxCount; delta > 0 {
		perBox := (cycleSum - o.lastCycleSum) / float64(delta)
		for i := int64(0); i < delta; i++ {
			o.cycleTime.Observe(perBox)
		}
	}
	o.lastBoxCount = m.BoxCount
	o.lastCycleSum = cycleSum
}

// ProcessEvents implements sim.Observer; a metrics exporter never requests
// shutdown on its own.
func (o *PrometheusObserver) ProcessEvents() bool { return true }

// Close implements sim.Observer. There is nothing to release: the HTTP
// server, if any, is owned by the caller.
func (o *PrometheusObserver) Close() error { return nil }

var _ sim.Observer = (*PrometheusObserver)(nil)
