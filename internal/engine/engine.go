// Package engine composes the metric registry, the email analytics
// accumulator, and the alert rule evaluator, and drives the periodic
// dashboard dispatch loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tinytelemetry/pulse/internal/analytics"
	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/obs"
)

const (
	// alertHistorySize caps the alert ring buffer; oldest entries are
	// dropped silently.
	alertHistorySize = 100

	// recentAlertCount is how many alerts the dashboard snapshot carries.
	recentAlertCount = 10

	// defaultTopSenders bounds the top-senders list in the snapshot.
	defaultTopSenders = 10

	// healthLookback is the span within which any alert flips the overview
	// health to "warning".
	healthLookback = 5 * time.Minute
)

// Metric names registered by the engine at construction.
const (
	MetricEmailsReceived   = "emails_received"
	MetricEmailsProcessed  = "emails_processed"
	MetricProcessingTimeMS = "processing_time_ms"
	MetricUrgentEmails     = "urgent_emails"
	MetricErrorRate        = "error_rate"
)

// Config holds engine tunables. The alert thresholds are deliberately
// parameters rather than literals; the defaults match the dashboard's
// historical behavior.
type Config struct {
	// UpdateInterval is the period of the dashboard dispatch loop.
	UpdateInterval time.Duration

	// VolumeSpikeRate is the emails-per-minute 1-minute-window rate above
	// which a volume_spike alert fires.
	VolumeSpikeRate float64

	// UrgencyAlertLevel is the minimum urgency (1-5) firing a high_urgency
	// alert.
	UrgencyAlertLevel int

	// TopSenders bounds the top-senders list in snapshots.
	TopSenders int
}

func (c *Config) applyDefaults() {
	if c.UpdateInterval == 0 {
		c.UpdateInterval = model.DefaultUpdateInterval
	}
	if c.VolumeSpikeRate == 0 {
		c.VolumeSpikeRate = model.DefaultVolumeSpikeRate
	}
	if c.UrgencyAlertLevel == 0 {
		c.UrgencyAlertLevel = model.DefaultUrgencyAlertLevel
	}
	if c.TopSenders == 0 {
		c.TopSenders = defaultTopSenders
	}
}

// Engine owns all analytics state exclusively: the metric registry, the
// lifetime accumulators, the alert ring, and the registered sinks. All
// interaction goes through its methods; mutation is serialized behind one
// coarse mutex since ingestion and snapshot assembly both run on real
// OS threads here.
type Engine struct {
	cfg Config

	mu          sync.RWMutex
	metrics     map[string]*metrics.Sliding
	analytics   *analytics.EmailAnalytics
	alerts      []model.Alert
	sinks       []model.Sink
	totalEvents int64
	startTime   time.Time

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an engine with the built-in email metrics registered.
// Construction is the only place configuration errors surface.
func New(cfg Config) (*Engine, error) {
	if cfg.UpdateInterval < 0 {
		return nil, fmt.Errorf("update interval must not be negative, got %v", cfg.UpdateInterval)
	}
	cfg.applyDefaults()

	e := &Engine{
		cfg:       cfg,
		metrics:   make(map[string]*metrics.Sliding),
		analytics: analytics.New(),
		startTime: time.Now(),
	}
	e.RegisterMetric(MetricEmailsReceived, metrics.Counter)
	e.RegisterMetric(MetricEmailsProcessed, metrics.Counter)
	e.RegisterMetric(MetricProcessingTimeMS, metrics.Histogram)
	e.RegisterMetric(MetricUrgentEmails, metrics.Counter)
	e.RegisterMetric(MetricErrorRate, metrics.Counter)
	return e, nil
}

// RegisterMetric registers a metric under name. Re-registering an existing
// name replaces the metric and discards its history.
func (e *Engine) RegisterMetric(name string, typ metrics.Type) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics[name] = metrics.NewSliding(name, typ)
}

// RecordMetric records a value into a registered metric. Recording into an
// unregistered name logs a warning and is a no-op; the hot event path must
// never fail on a bookkeeping mistake.
func (e *Engine) RecordMetric(name string, value float64, metadata map[string]string) {
	e.mu.RLock()
	m, ok := e.metrics[name]
	e.mu.RUnlock()
	if !ok {
		log.Printf("engine: record into unregistered metric %q dropped", name)
		return
	}
	m.Add(value, metadata)
}

// RegisterSink adds a snapshot consumer. Sinks receive each tick's snapshot
// in registration order.
func (e *Engine) RegisterSink(s model.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// RegisterSinkFunc is a convenience wrapper for plain-function consumers.
func (e *Engine) RegisterSinkFunc(name string, fn func(context.Context, *model.DashboardData) error) {
	e.RegisterSink(namedFuncSink{name: name, fn: fn})
}

type namedFuncSink struct {
	name string
	fn   func(context.Context, *model.DashboardData) error
}

func (s namedFuncSink) Name() string { return s.name }
func (s namedFuncSink) Deliver(ctx context.Context, snap *model.DashboardData) error {
	return s.fn(ctx, snap)
}

// ProcessEmailEvent is the single domain entry point. It is synchronous,
// performs no I/O, and never panics or returns an error: internal failures
// are recovered, logged, and counted into the error_rate metric.
func (e *Engine) ProcessEmailEvent(event model.EmailEvent, intel *model.Intelligence) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("engine: recovered during event processing: %v", r)
			e.RecordMetric(MetricErrorRate, 1, nil)
			obs.EventErrors.Inc()
		}
	}()

	now := time.Now()
	if !event.ReceivedAt.IsZero() {
		now = event.ReceivedAt
	}
	e.ingest(event, intel, now)
	obs.EventsIngested.Inc()
}

func (e *Engine) ingest(event model.EmailEvent, intel *model.Intelligence, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalEvents++
	e.recordLocked(MetricEmailsReceived, 1, now, nil)

	if intel != nil {
		e.recordLocked(MetricEmailsProcessed, 1, now, nil)
		if ms, ok := intel.ProcessingTime(); ok {
			e.recordLocked(MetricProcessingTimeMS, ms, now, nil)
		}
		if intel.UrgencyValue() >= e.cfg.UrgencyAlertLevel {
			e.recordLocked(MetricUrgentEmails, 1, now, nil)
		}
	}

	e.analytics.Process(event, intel, now)
	e.evaluateAlertsLocked(event, intel, now)
}

func (e *Engine) recordLocked(name string, value float64, now time.Time, metadata map[string]string) {
	m, ok := e.metrics[name]
	if !ok {
		log.Printf("engine: record into unregistered metric %q dropped", name)
		return
	}
	m.AddAt(value, now, metadata)
}

// evaluateAlertsLocked runs the alert rules for one event. Rules are
// independent and order-insensitive; both may fire for the same event.
func (e *Engine) evaluateAlertsLocked(event model.EmailEvent, intel *model.Intelligence, now time.Time) {
	if v := intel.UrgencyValue(); v >= e.cfg.UrgencyAlertLevel {
		e.appendAlertLocked(model.Alert{
			Type:      model.AlertHighUrgency,
			Message:   fmt.Sprintf("urgent email from %s (urgency %d)", event.SenderKey(), v),
			Timestamp: now,
			Data: map[string]any{
				"sender":  event.SenderKey(),
				"subject": event.Subject,
				"urgency": v,
			},
		})
	}

	if m, ok := e.metrics[MetricEmailsReceived]; ok {
		if rate := m.WindowRate("1min", now); rate > e.cfg.VolumeSpikeRate {
			e.appendAlertLocked(model.Alert{
				Type:      model.AlertVolumeSpike,
				Message:   fmt.Sprintf("email volume spike: %.1f/min over the last minute", rate),
				Timestamp: now,
				Data: map[string]any{
					"rate_per_minute": rate,
					"threshold":       e.cfg.VolumeSpikeRate,
				},
			})
		}
	}
}

func (e *Engine) appendAlertLocked(alert model.Alert) {
	e.alerts = append(e.alerts, alert)
	if len(e.alerts) > alertHistorySize {
		e.alerts = append(e.alerts[:0], e.alerts[len(e.alerts)-alertHistorySize:]...)
	}
	obs.AlertsFired.WithLabelValues(alert.Type).Inc()
}

// RecentAlerts returns up to n alerts, newest last.
func (e *Engine) RecentAlerts(n int) []model.Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.recentAlertsLocked(n)
}

func (e *Engine) recentAlertsLocked(n int) []model.Alert {
	if n > len(e.alerts) {
		n = len(e.alerts)
	}
	out := make([]model.Alert, n)
	copy(out, e.alerts[len(e.alerts)-n:])
	return out
}

// TotalEvents returns the lifetime number of processed events.
func (e *Engine) TotalEvents() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalEvents
}

// Start launches the periodic dispatch loop: each tick assembles one
// snapshot and delivers it to every registered sink, in registration order,
// before the next tick may begin. Returns an error when already running.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return errors.New("engine: dispatch loop already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	go e.dispatchLoop(loopCtx)
	return nil
}

// Stop cancels the dispatch loop and waits for the in-flight tick to finish.
// No new tick starts after the stop request is observed.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if !e.running {
		return
	}
	e.cancel()
	<-e.done
	e.running = false
}

func (e *Engine) dispatchLoop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Stop observed between ticks wins over a pending tick.
			select {
			case <-ctx.Done():
				return
			default:
			}
			e.dispatchTick(ctx)
		}
	}
}

// dispatchTick builds one snapshot and pushes it to every sink. A failing
// sink is logged and skipped; it never blocks delivery to the others.
func (e *Engine) dispatchTick(ctx context.Context) {
	snapshot := e.Snapshot()
	obs.CurrentRate.Set(snapshot.Overview.CurrentRate)

	e.mu.RLock()
	sinks := append([]model.Sink(nil), e.sinks...)
	e.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Deliver(ctx, snapshot); err != nil {
			log.Printf("engine: sink %q delivery failed: %v", s.Name(), err)
			obs.SinkDeliveries.WithLabelValues(s.Name(), "error").Inc()
			continue
		}
		obs.SinkDeliveries.WithLabelValues(s.Name(), "ok").Inc()
	}
}
