// Package metrics implements the sliding-time-window primitives that back the
// real-time analytics engine: a bounded-duration window of timestamped points
// and a named metric that fans each recorded value out to several windows.
package metrics

import "time"

// Point is one recorded observation. Each window keeps its own copy of the
// struct; the metadata map is shared and must be treated as read-only after
// recording.
type Point struct {
	Timestamp time.Time
	Value     float64
	Metadata  map[string]string
}

// Window retains the points recorded within a fixed duration of "now".
// Insertion is assumed chronological (callers record in real time), so
// eviction only ever removes a contiguous prefix and stays O(1) amortized.
// An out-of-order insert falls back to a full re-filter rather than
// corrupting the prefix invariant.
//
// Window is not safe for concurrent use; Sliding serializes access.
type Window struct {
	duration time.Duration
	points   []Point
	start    int // index of the oldest retained point
	sum      float64
}

// NewWindow creates an empty window covering the given duration.
func NewWindow(duration time.Duration) *Window {
	return &Window{duration: duration}
}

// Duration returns the fixed span of the window.
func (w *Window) Duration() time.Duration { return w.duration }

// Add appends a point and evicts everything that has aged out relative to
// the new point's timestamp.
func (w *Window) Add(p Point) {
	if n := len(w.points); n > w.start && p.Timestamp.Before(w.points[n-1].Timestamp) {
		// Monotonicity violated (clock skew or replay). Take the slow path:
		// insert, then re-filter against the newest timestamp seen so far.
		w.points = append(w.points, p)
		w.sum += p.Value
		w.refilter(w.points[n-1].Timestamp)
		return
	}
	w.points = append(w.points, p)
	w.sum += p.Value
	w.evictBefore(p.Timestamp.Add(-w.duration))
}

// Prune evicts points older than now-duration. Queries call this so that
// statistics reflect the window's span even when nothing new is recorded.
func (w *Window) Prune(now time.Time) {
	w.evictBefore(now.Add(-w.duration))
}

// Count returns the number of retained points.
func (w *Window) Count() int { return len(w.points) - w.start }

// Sum returns the sum of retained values. Maintained incrementally so that
// Sum/Average/RatePerMinute stay O(1).
func (w *Window) Sum() float64 {
	if w.Count() == 0 {
		return 0
	}
	return w.sum
}

// Average returns Sum/Count, or 0.0 when the window is empty.
func (w *Window) Average() float64 {
	n := w.Count()
	if n == 0 {
		return 0
	}
	return w.sum / float64(n)
}

// RatePerMinute returns the count normalized to events per minute over the
// window's span, or 0.0 when empty or the duration is zero.
func (w *Window) RatePerMinute() float64 {
	n := w.Count()
	if n == 0 || w.duration <= 0 {
		return 0
	}
	return float64(n) / (w.duration.Seconds() / 60)
}

// Values returns a copy of the retained values, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, 0, w.Count())
	for _, p := range w.points[w.start:] {
		out = append(out, p.Value)
	}
	return out
}

func (w *Window) evictBefore(cutoff time.Time) {
	for w.start < len(w.points) && w.points[w.start].Timestamp.Before(cutoff) {
		w.sum -= w.points[w.start].Value
		w.points[w.start] = Point{} // release metadata
		w.start++
	}
	if w.start == len(w.points) {
		// Empty: reset the backing array and clear float drift.
		w.points = w.points[:0]
		w.start = 0
		w.sum = 0
		return
	}
	// Compact once the evicted prefix dominates the backing array.
	if w.start > 64 && w.start*2 >= len(w.points) {
		n := copy(w.points, w.points[w.start:])
		for i := n; i < len(w.points); i++ {
			w.points[i] = Point{}
		}
		w.points = w.points[:n]
		w.start = 0
	}
}

// refilter rebuilds the window keeping only in-range points, restoring
// timestamp order. Slow path for out-of-order input only.
func (w *Window) refilter(now time.Time) {
	cutoff := now.Add(-w.duration)
	kept := make([]Point, 0, w.Count())
	for _, p := range w.points[w.start:] {
		if !p.Timestamp.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	for i := 1; i < len(kept); i++ {
		for j := i; j > 0 && kept[j].Timestamp.Before(kept[j-1].Timestamp); j-- {
			kept[j], kept[j-1] = kept[j-1], kept[j]
		}
	}
	var sum float64
	for _, p := range kept {
		sum += p.Value
	}
	w.points = kept
	w.start = 0
	w.sum = sum
}
