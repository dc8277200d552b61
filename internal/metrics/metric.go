package metrics

import (
	"sync"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

// Type classifies how a metric's recorded values are meant to be read.
type Type int

const (
	Counter Type = iota
	Gauge
	Histogram
	Rate
	Average
)

func (t Type) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	case Rate:
		return "rate"
	case Average:
		return "average"
	}
	return "unknown"
}

// windowSpec pairs a stable dashboard label with its span.
type windowSpec struct {
	Label    string
	Duration time.Duration
}

// windowSpecs are the five horizons every metric tracks simultaneously.
var windowSpecs = []windowSpec{
	{"1min", time.Minute},
	{"5min", 5 * time.Minute},
	{"15min", 15 * time.Minute},
	{"1hour", time.Hour},
	{"24hour", 24 * time.Hour},
}

// WindowLabels returns the window labels in ascending span order.
func WindowLabels() []string {
	labels := make([]string, len(windowSpecs))
	for i, spec := range windowSpecs {
		labels[i] = spec.Label
	}
	return labels
}

// Sliding is a named metric that fans each recorded value out to all five
// window horizons and answers a unified stats query. Lifetime totals are
// never evicted.
type Sliding struct {
	mu         sync.Mutex
	name       string
	typ        Type
	windows    map[string]*Window
	totalCount int64
	totalSum   float64
	createdAt  time.Time
}

// NewSliding creates a metric with one empty window per horizon.
func NewSliding(name string, typ Type) *Sliding {
	windows := make(map[string]*Window, len(windowSpecs))
	for _, spec := range windowSpecs {
		windows[spec.Label] = NewWindow(spec.Duration)
	}
	return &Sliding{
		name:      name,
		typ:       typ,
		windows:   windows,
		createdAt: time.Now(),
	}
}

// Name returns the metric's registry key.
func (m *Sliding) Name() string { return m.name }

// Type returns the metric's type.
func (m *Sliding) Type() Type { return m.typ }

// Add records one value at the current time.
func (m *Sliding) Add(value float64, metadata map[string]string) {
	m.AddAt(value, time.Now(), metadata)
}

// AddAt records one value at an explicit timestamp. The same point is fanned
// out to every window; lifetime totals grow monotonically.
func (m *Sliding) AddAt(value float64, ts time.Time, metadata map[string]string) {
	p := Point{Timestamp: ts, Value: value, Metadata: metadata}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.windows {
		w.Add(p)
	}
	m.totalCount++
	m.totalSum += value
}

// TotalCount returns the lifetime number of recorded values.
func (m *Sliding) TotalCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalCount
}

// TotalSum returns the lifetime sum of recorded values.
func (m *Sliding) TotalSum() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalSum
}

// CreatedAt returns the registration time.
func (m *Sliding) CreatedAt() time.Time { return m.createdAt }

// WindowRate returns the rate per minute of one window after pruning it to
// the current time. Unknown labels yield 0.
func (m *Sliding) WindowRate(label string, now time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[label]
	if !ok {
		return 0
	}
	w.Prune(now)
	return w.RatePerMinute()
}

// WindowCount returns the retained point count of one window after pruning.
func (m *Sliding) WindowCount(label string, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[label]
	if !ok {
		return 0
	}
	w.Prune(now)
	return w.Count()
}

// WindowAverage returns the average of one window after pruning.
func (m *Sliding) WindowAverage(label string, now time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[label]
	if !ok {
		return 0
	}
	w.Prune(now)
	return w.Average()
}

// Stats returns the per-window statistics keyed by window label, pruned to
// the current time. Histogram metrics additionally carry distribution stats
// computed from the retained raw values.
func (m *Sliding) Stats() map[string]model.WindowStats {
	return m.StatsAt(time.Now())
}

// StatsAt is Stats with an explicit "now", used by the engine to assemble a
// snapshot from one consistent read instant.
func (m *Sliding) StatsAt(now time.Time) map[string]model.WindowStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked(now)
}

func (m *Sliding) statsLocked(now time.Time) map[string]model.WindowStats {
	out := make(map[string]model.WindowStats, len(m.windows))
	for label, w := range m.windows {
		w.Prune(now)
		ws := model.WindowStats{
			Count:         w.Count(),
			Sum:           w.Sum(),
			Average:       w.Average(),
			RatePerMinute: w.RatePerMinute(),
		}
		if m.typ == Histogram {
			ws.HistogramStats = Distribution(w.Values())
		}
		out[label] = ws
	}
	return out
}

// Snapshot returns the metric's full dashboard representation. Window stats
// and lifetime totals are read under a single lock hold so a concurrent
// recorder can never land between them.
func (m *Sliding) Snapshot(now time.Time) model.MetricSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.MetricSnapshot{
		Type:       m.typ.String(),
		Windows:    m.statsLocked(now),
		TotalCount: m.totalCount,
		TotalSum:   m.totalSum,
	}
}
