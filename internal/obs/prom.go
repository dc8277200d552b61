// Package obs exposes Prometheus instrumentation for the engine's own
// operational health. These are process-level counters, separate from the
// sliding-window dashboard metrics.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_events_ingested_total",
		Help: "Total number of email events accepted by the engine",
	})

	EventErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_event_errors_total",
		Help: "Total number of internal errors recovered during event processing",
	})

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_parse_failures_total",
		Help: "Total number of event lines that failed to parse",
	})

	SourceLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_source_lines_total",
		Help: "Event lines accepted, by input source",
	}, []string{"source"})

	OversizedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_oversized_events_total",
		Help: "Event lines rejected for exceeding the per-source size limit",
	}, []string{"source"})

	AlertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_alerts_fired_total",
		Help: "Total number of alerts fired, by rule type",
	}, []string{"type"})

	SinkDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_sink_deliveries_total",
		Help: "Snapshot deliveries per sink and outcome",
	}, []string{"sink", "status"})

	CurrentRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_emails_per_minute",
		Help: "Current emails-per-minute rate over the 1-minute window",
	})
)
