package engine

import (
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

// Snapshot assembles the full dashboard payload from one consistent read
// pass: every metric's window stats and lifetime totals, the analytics
// block, the recent alerts, and the overview. It is a pure read with no
// I/O; repeated calls with no intervening writes yield identical output.
func (e *Engine) Snapshot() *model.DashboardData {
	now := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	metricSnaps := make(map[string]model.MetricSnapshot, len(e.metrics))
	for name, m := range e.metrics {
		metricSnaps[name] = m.Snapshot(now)
	}

	return &model.DashboardData{
		Overview:       e.overviewLocked(metricSnaps, now),
		Metrics:        metricSnaps,
		EmailAnalytics: e.analytics.Snapshot(e.cfg.TopSenders),
		RecentAlerts:   e.recentAlertsLocked(recentAlertCount),
		LastUpdated:    now,
	}
}

// MetricStats returns one metric's snapshot by name.
func (e *Engine) MetricStats(name string) (model.MetricSnapshot, bool) {
	e.mu.RLock()
	m, ok := e.metrics[name]
	e.mu.RUnlock()
	if !ok {
		return model.MetricSnapshot{}, false
	}
	return m.Snapshot(time.Now()), true
}

func (e *Engine) overviewLocked(snaps map[string]model.MetricSnapshot, now time.Time) model.Overview {
	received := snaps[MetricEmailsReceived]
	processing := snaps[MetricProcessingTimeMS]
	urgent := snaps[MetricUrgentEmails]

	return model.Overview{
		EmailsLastHour:    received.Windows["1hour"].Count,
		AvgProcessingTime: processing.Windows["1hour"].Average,
		UrgentEmailsToday: urgent.Windows["24hour"].Count,
		CurrentRate:       received.Windows["1min"].RatePerMinute,
		SystemHealth:      e.healthLocked(now),
	}
}

// healthLocked reports "warning" when any alert fired within the lookback
// span, "healthy" otherwise. Alert timestamps carry event receipt times, so
// a backfilled event can append an older-stamped alert after a recent one;
// the full ring (capped at alertHistorySize) is scanned rather than assuming
// monotonic order.
func (e *Engine) healthLocked(now time.Time) string {
	cutoff := now.Add(-healthLookback)
	for i := len(e.alerts) - 1; i >= 0; i-- {
		if !e.alerts[i].Timestamp.Before(cutoff) {
			return model.HealthWarning
		}
	}
	return model.HealthHealthy
}

// Uptime reports how long the engine has existed.
func (e *Engine) Uptime() time.Duration {
	return time.Since(e.startTime)
}
