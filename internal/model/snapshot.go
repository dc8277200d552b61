package model

import "time"

// System health values reported in the dashboard overview.
const (
	HealthHealthy = "healthy"
	HealthWarning = "warning"
)

// WindowStats holds the derived statistics for one sliding window.
// Histogram metrics additionally carry the distribution fields; for all
// other metric types the embedded pointer is nil and the fields are
// omitted from the JSON encoding.
type WindowStats struct {
	Count         int     `json:"count"`
	Sum           float64 `json:"sum"`
	Average       float64 `json:"average"`
	RatePerMinute float64 `json:"rate_per_minute"`
	*HistogramStats
}

// HistogramStats holds percentile statistics over a window's retained raw values.
type HistogramStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

// MetricSnapshot is one metric's full state: per-window stats plus the
// lifetime totals that eviction never touches.
type MetricSnapshot struct {
	Type       string                 `json:"type"`
	Windows    map[string]WindowStats `json:"windows"`
	TotalCount int64                  `json:"total_count"`
	TotalSum   float64                `json:"total_sum"`
}

// Overview is the headline block of the dashboard snapshot.
type Overview struct {
	EmailsLastHour    int     `json:"emails_last_hour"`
	AvgProcessingTime float64 `json:"avg_processing_time"`
	UrgentEmailsToday int     `json:"urgent_emails_today"`
	CurrentRate       float64 `json:"current_rate"`
	SystemHealth      string  `json:"system_health"`
}

// SenderStat is one sender's lifetime activity.
type SenderStat struct {
	Sender   string    `json:"sender"`
	Count    int64     `json:"count"`
	LastSeen time.Time `json:"last_seen"`
}

// ProcessingStats summarizes the capped processing-time sample list.
type ProcessingStats struct {
	Avg    float64 `json:"avg_processing_time_ms"`
	Min    float64 `json:"min_processing_time_ms"`
	Max    float64 `json:"max_processing_time_ms"`
	Median float64 `json:"median_processing_time_ms"`
}

// EmailAnalyticsData is the since-process-start analytics block, distinct
// from the sliding-window metrics' recent statistics.
type EmailAnalyticsData struct {
	ClassificationDistribution map[string]float64 `json:"classification_distribution"`
	UrgencyDistribution        map[string]float64 `json:"urgency_distribution"`
	TopSenders                 []SenderStat       `json:"top_senders"`
	HourlyPatterns             map[int]int64      `json:"hourly_patterns"`
	ProcessingStats            ProcessingStats    `json:"processing_stats"`
}

// Alert is a transient threshold-crossing notification. Alerts are kept in a
// bounded ring, not an audit log; old entries are dropped silently.
type Alert struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Alert types emitted by the engine's rule evaluator.
const (
	AlertHighUrgency = "high_urgency"
	AlertVolumeSpike = "volume_spike"
)

// DashboardData is a single consistent read of all current statistics.
// It is the payload delivered to every registered sink each tick and
// returned by the dashboard API.
type DashboardData struct {
	Overview       Overview                  `json:"overview"`
	Metrics        map[string]MetricSnapshot `json:"metrics"`
	EmailAnalytics EmailAnalyticsData        `json:"email_analytics"`
	RecentAlerts   []Alert                   `json:"recent_alerts"`
	LastUpdated    time.Time                 `json:"last_updated"`
}
