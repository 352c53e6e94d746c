// Package sink implements the external logging collaborators that receive
// metrics snapshots and lifecycle events from the physics engine. A Sink is
// never part of the deterministic core: it observes, it never feeds
// decisions back into the tag table.
package sink

// Event kinds emitted via Sink.LogEvent.
const (
	EventBoxArrival = "BOX_ARRIVAL"
	EventBoxExitB   = "BOX_EXIT_B"
	EventBoxExitC   = "BOX_EXIT_C"
	EventJam        = "JAM"
	EventJamCleared = "JAM_CLEARED"
	EventSummary    = "SUMMARY"
)

// MetricsSnapshot is the per-outer-tick metrics row passed to LogMetrics.
type MetricsSnapshot struct {
	SystemState       string
	BoxCount          int64
	AvgCycleTimeSec   float64
	JamCount          int64
	ThroughputPerHour float64
	FaultMessage      string
}

// Sink receives metrics snapshots and lifecycle events from a running
// simulation. Implementations must not block the calling sub-step for long;
// CSVSink defers actual I/O to a background goroutine.
type Sink interface {
	// LogMetrics records a snapshot for simTime. Callers invoke this once per
	// outer tick; an implementation that wants to rate-limit output (e.g. to
	// log_interval_sec) does so internally.
	LogMetrics(simTime float64, snapshot MetricsSnapshot)

	// LogEvent records a single lifecycle event.
	LogEvent(simTime float64, kind string, boxID int64, description string)

	// Finalize emits a SUMMARY event with the final totals. Buffered output
	// is flushed by Close, not by Finalize.
	Finalize(simTime float64, total, accepted, rejected int64) error

	// Close releases any resources held by the sink. It is safe to call
	// after Finalize.
	Close() error
}

// NoopSink discards everything. Useful as a default when no logging
// directory is configured.
type NoopSink struct{}

func (NoopSink) LogMetrics(float64, MetricsSnapshot)         {}
func (NoopSink) LogEvent(float64, string, int64, string)     {}
func (NoopSink) Finalize(float64, int64, int64, int64) error { return nil }
func (NoopSink) Close() error                                { return nil }

var _ Sink = NoopSink{}
