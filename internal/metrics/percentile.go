package metrics

import (
	"math"
	"sort"

	"github.com/tinytelemetry/pulse/internal/model"
)

// minPercentileSamples is the sample count below which p95/p99 degrade to the
// window max. With fewer samples no interpolated high percentile is
// meaningful, so the max is returned as a conservative approximation.
const minPercentileSamples = 20

// Distribution computes min/max/median/p95/p99 over a window's retained raw
// values using the nearest-rank method. An empty input yields all zeros,
// never an error.
func Distribution(values []float64) *model.HistogramStats {
	if len(values) == 0 {
		return &model.HistogramStats{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	stats := &model.HistogramStats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: NearestRank(sorted, 50),
	}
	if len(sorted) < minPercentileSamples {
		stats.P95 = stats.Max
		stats.P99 = stats.Max
	} else {
		stats.P95 = NearestRank(sorted, 95)
		stats.P99 = NearestRank(sorted, 99)
	}
	return stats
}

// NearestRank returns the pct-th percentile of an ascending-sorted slice
// using the nearest-rank method: the value at rank ceil(pct/100 * n).
func NearestRank(sorted []float64, pct float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil(pct / 100 * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}
