package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// row is a single CSV line queued for the background writer.
type row struct {
	file   *rowFile
	fields []string
}

// rowFile pairs a csv.Writer with the os.File backing it, so both the
// metrics and events files can share one flush queue and one goroutine.
type rowFile struct {
	f *os.File
	w *csv.Writer
}

// CSVSink writes metrics_<ts>.csv and events_<ts>.csv. Metrics rows are
// gated by a Throttle (log_interval_sec); event rows are unthrottled but,
// like metrics rows, are handed off to a background goroutine that does the
// file writes. The handoff is a single unbuffered channel, so a caller waits
// while that goroutine is busy writing or flushing. The goroutine flushes
// on a row count or an interval; the design is adapted from the
// teacher's microbatch package -- simplified to one job type and one
// concurrent writer, since CSV row order must be preserved.
type CSVSink struct {
	logger    *zerolog.Logger
	throttle  *Throttle
	logEvents bool
	metrics   *rowFile
	events    *rowFile
	rowCh     chan row
	flushSize int
	flushEach time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

// NewCSVSink creates metrics_<ts>.csv and events_<ts>.csv under dir and
// starts the background flush goroutine. logger may be nil. If logEvents is
// false, LogEvent becomes a no-op (the SUMMARY row from Finalize is still
// written). Panics if dir cannot be created or the files cannot be opened --
// a misconfigured output directory is a startup-time programmer/operator
// error, not a recoverable one (see cmd/conveyorsim, which calls this only
// after config validation).
func NewCSVSink(dir string, logInterval float64, logEvents bool, logger *zerolog.Logger) *CSVSink {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		panic(fmt.Sprintf("sink: create output dir: %v", err))
	}

	ts := strconv.FormatInt(time.Now().UnixNano(), 10)

	metricsFile, err := os.Create(filepath.Join(dir, "metrics_"+ts+".csv"))
	if err != nil {
		panic(fmt.Sprintf("sink: create metrics csv: %v", err))
	}
	eventsFile, err := os.Create(filepath.Join(dir, "events_"+ts+".csv"))
	if err != nil {
		panic(fmt.Sprintf("sink: create events csv: %v", err))
	}

	metrics := &rowFile{f: metricsFile, w: csv.NewWriter(metricsFile)}
	events := &rowFile{f: eventsFile, w: csv.NewWriter(eventsFile)}

	_ = metrics.w.Write([]string{"sim_time_sec", "system_state", "box_count", "avg_cycle_time_sec", "jam_count", "throughput_per_hour", "fault_message"})
	_ = events.w.Write([]string{"sim_time_sec", "event_type", "box_id", "description"})
	metrics.w.Flush()
	events.w.Flush()

	s := &CSVSink{
		logger:    logger,
		throttle:  NewThrottle(logInterval),
		logEvents: logEvents,
		metrics:   metrics,
		events:    events,
		rowCh:     make(chan row),
		flushSize: 16,
		flushEach: 250 * time.Millisecond,
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *CSVSink) run() {
	defer close(s.done)

	timer := time.NewTimer(s.flushEach)
	defer timer.Stop()

	pending := 0
	for {
		select {
		case r, ok := <-s.rowCh:
			if !ok {
				s.metrics.w.Flush()
				s.events.w.Flush()
				return
			}
			if err := r.file.w.Write(r.fields); err != nil && s.logger != nil {
				s.logger.Error().Err(err).Msg("sink: csv write failed")
			}
			pending++
			if pending >= s.flushSize {
				s.metrics.w.Flush()
				s.events.w.Flush()
				pending = 0
			}
		case <-timer.C:
			if pending > 0 {
				s.metrics.w.Flush()
				s.events.w.Flush()
				pending = 0
			}
			timer.Reset(s.flushEach)
		}
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// LogMetrics implements Sink.
func (s *CSVSink) LogMetrics(simTime float64, snap MetricsSnapshot) {
	if !s.throttle.Allow(simTime) {
		return
	}
	s.rowCh <- row{file: s.metrics, fields: []string{
		formatFloat(simTime),
		snap.SystemState,
		strconv.FormatInt(snap.BoxCount, 10),
		formatFloat(snap.AvgCycleTimeSec),
		strconv.FormatInt(snap.JamCount, 10),
		formatFloat(snap.ThroughputPerHour),
		snap.FaultMessage,
	}}
}

// LogEvent implements Sink. It is a no-op if logEvents was false at
// construction.
func (s *CSVSink) LogEvent(simTime float64, kind string, boxID int64, description string) {
	if !s.logEvents {
		return
	}
	s.writeEvent(simTime, kind, boxID, description)
}

func (s *CSVSink) writeEvent(simTime float64, kind string, boxID int64, description string) {
	s.rowCh <- row{file: s.events, fields: []string{
		formatFloat(simTime),
		kind,
		strconv.FormatInt(boxID, 10),
		description,
	}}
}

// Finalize implements Sink, emitting a SUMMARY event regardless of
// logEvents -- the closing report is always written.
func (s *CSVSink) Finalize(simTime float64, total, accepted, rejected int64) error {
	s.writeEvent(simTime, EventSummary, 0, fmt.Sprintf("total=%d accepted=%d rejected=%d", total, accepted, rejected))
	return nil
}

// Close drains the flush queue and closes both files.
func (s *CSVSink) Close() error {
	var firstErr error
	s.closeOnce.Do(func() {
		close(s.rowCh)
		<-s.done
		if err := s.metrics.f.Close(); err != nil {
			firstErr = err
		}
		if err := s.events.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

var _ Sink = (*CSVSink)(nil)
