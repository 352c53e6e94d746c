package sink

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// window is a trailing, append-only, evict-from-front buffer. It is adapted
// from catrate's ringBuffer: events here only ever arrive in non-decreasing
// sim-time order, so the general sorted-insert/wraparound machinery ring.go
// needs is unnecessary -- a plain slice with a binary-searched eviction
// boundary covers the single-producer case.
type window[E constraints.Ordered] struct {
	buf []E
}

func (w *window[E]) push(v E) { w.buf = append(w.buf, v) }

// evictBefore drops every entry less than or equal to threshold.
func (w *window[E]) evictBefore(threshold E) {
	i := sort.Search(len(w.buf), func(i int) bool { return w.buf[i] > threshold })
	w.buf = w.buf[i:]
}

func (w *window[E]) len() int { return len(w.buf) }

// Throttle allows at most one event per trailing interval of simulation
// time. It is keyed on the simTime values passed to Allow, not wall clock,
// so it behaves identically under any time_scale.
type Throttle struct {
	interval float64
	w        window[float64]
}

// NewThrottle returns a Throttle gating events to one per interval seconds
// of sim time. interval <= 0 disables throttling.
func NewThrottle(interval float64) *Throttle {
	return &Throttle{interval: interval}
}

// Allow reports whether an event at simTime may proceed, recording it if so.
func (t *Throttle) Allow(simTime float64) bool {
	if t.interval <= 0 {
		return true
	}
	t.w.evictBefore(simTime - t.interval)
	if t.w.len() > 0 {
		return false
	}
	t.w.push(simTime)
	return true
}
