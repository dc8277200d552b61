// Package analytics accumulates since-process-start email statistics:
// classification and urgency distributions, per-sender activity, an
// hour-of-day histogram, and a capped processing-time sample list. Unlike
// the sliding-window metrics there is no eviction; these are lifetime
// counters.
package analytics

import (
	"sort"
	"sync"
	"time"

	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
)

// maxProcessingSamples caps the processing-time sample list. When exceeded,
// the oldest half is dropped in one batch so inserts stay O(1) amortized.
const maxProcessingSamples = 1000

type senderRecord struct {
	count    int64
	lastSeen time.Time
}

// EmailAnalytics is a pure accumulator over processed email events.
// All methods are safe for concurrent use.
type EmailAnalytics struct {
	mu              sync.Mutex
	classifications map[string]int64
	urgencies       map[string]int64
	senders         map[string]*senderRecord
	senderOrder     []string // first-seen order, used for stable ranking ties
	hourly          [24]int64
	processing      []float64
}

// New creates an empty accumulator.
func New() *EmailAnalytics {
	return &EmailAnalytics{
		classifications: make(map[string]int64),
		urgencies:       make(map[string]int64),
		senders:         make(map[string]*senderRecord),
	}
}

// Process folds one event into the accumulators. Intelligence is optional
// and read defensively; malformed or missing fields never cause an error.
func (a *EmailAnalytics) Process(event model.EmailEvent, intel *model.Intelligence, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cat := intel.Category(); cat != "" {
		a.classifications[cat]++
	}
	if intel != nil && intel.Urgency != nil {
		a.urgencies[intel.Urgency.Key()]++
	}
	if ms, ok := intel.ProcessingTime(); ok {
		a.processing = append(a.processing, ms)
		if len(a.processing) > maxProcessingSamples {
			half := len(a.processing) / 2
			a.processing = append(a.processing[:0], a.processing[half:]...)
		}
	}

	if key := event.SenderKey(); key != "" {
		rec, ok := a.senders[key]
		if !ok {
			rec = &senderRecord{}
			a.senders[key] = rec
			a.senderOrder = append(a.senderOrder, key)
		}
		rec.count++
		rec.lastSeen = now
	}

	a.hourly[now.Hour()]++
}

// ClassificationDistribution returns the percentage breakdown of
// classification categories. Empty map when nothing has been classified.
func (a *EmailAnalytics) ClassificationDistribution() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return distribution(a.classifications)
}

// UrgencyDistribution returns the percentage breakdown of urgency labels.
func (a *EmailAnalytics) UrgencyDistribution() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return distribution(a.urgencies)
}

func distribution(counts map[string]int64) map[string]float64 {
	out := make(map[string]float64, len(counts))
	var total int64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return out
	}
	for k, c := range counts {
		out[k] = float64(c) / float64(total) * 100
	}
	return out
}

// TopSenders returns up to limit senders ranked by count descending, ties
// broken by first-seen order.
func (a *EmailAnalytics) TopSenders(limit int) []model.SenderStat {
	a.mu.Lock()
	defer a.mu.Unlock()

	ranked := make([]model.SenderStat, 0, len(a.senderOrder))
	for _, key := range a.senderOrder {
		rec := a.senders[key]
		ranked = append(ranked, model.SenderStat{Sender: key, Count: rec.count, LastSeen: rec.lastSeen})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// HourlyPatterns returns the lifetime hour-of-day histogram (0-23). This is
// intentionally not a rolling 24h window: buckets wrap daily and never reset.
func (a *EmailAnalytics) HourlyPatterns() map[int]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[int]int64, 24)
	for hour, count := range a.hourly {
		out[hour] = count
	}
	return out
}

// ProcessingStats summarizes the capped sample list. All zeros when empty.
func (a *EmailAnalytics) ProcessingStats() model.ProcessingStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.processing) == 0 {
		return model.ProcessingStats{}
	}

	sorted := append([]float64(nil), a.processing...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return model.ProcessingStats{
		Avg:    sum / float64(len(sorted)),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: metrics.NearestRank(sorted, 50),
	}
}

// Snapshot assembles the full analytics block for the dashboard.
func (a *EmailAnalytics) Snapshot(topSenders int) model.EmailAnalyticsData {
	return model.EmailAnalyticsData{
		ClassificationDistribution: a.ClassificationDistribution(),
		UrgencyDistribution:        a.UrgencyDistribution(),
		TopSenders:                 a.TopSenders(topSenders),
		HourlyPatterns:             a.HourlyPatterns(),
		ProcessingStats:            a.ProcessingStats(),
	}
}
