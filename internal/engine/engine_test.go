package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tinytelemetry/pulse/internal/metrics"
	"github.com/tinytelemetry/pulse/internal/model"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{UpdateInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func floatPtr(v float64) *float64 { return &v }

func TestNew_RejectsNegativeInterval(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{UpdateInterval: -time.Second}); err == nil {
		t.Fatal("New accepted a negative update interval")
	}
}

func TestEngine_EmptyStateSafety(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	snap := e.Snapshot()

	if snap.Overview.SystemHealth != model.HealthHealthy {
		t.Errorf("health = %q, want healthy", snap.Overview.SystemHealth)
	}
	if snap.Overview.EmailsLastHour != 0 || snap.Overview.CurrentRate != 0 {
		t.Errorf("overview not zero: %+v", snap.Overview)
	}
	if len(snap.RecentAlerts) != 0 {
		t.Errorf("recent alerts = %v, want none", snap.RecentAlerts)
	}
	for name, m := range snap.Metrics {
		if m.TotalCount != 0 || m.TotalSum != 0 {
			t.Errorf("metric %q totals not zero: %+v", name, m)
		}
	}
	if len(snap.EmailAnalytics.ClassificationDistribution) != 0 {
		t.Errorf("classification distribution = %v, want empty", snap.EmailAnalytics.ClassificationDistribution)
	}
}

func TestEngine_BuiltinMetricsRegistered(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	for _, name := range []string{
		MetricEmailsReceived, MetricEmailsProcessed,
		MetricProcessingTimeMS, MetricUrgentEmails, MetricErrorRate,
	} {
		if _, ok := e.MetricStats(name); !ok {
			t.Errorf("built-in metric %q not registered", name)
		}
	}
}

func TestEngine_RecordUnregisteredMetricIsNoOp(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.RecordMetric("nope", 1, nil) // must not panic

	if _, ok := e.MetricStats("nope"); ok {
		t.Error("unregistered metric appeared after record")
	}
}

func TestEngine_RegisterMetricReplaces(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.RegisterMetric("custom", metrics.Counter)
	e.RecordMetric("custom", 5, nil)
	e.RegisterMetric("custom", metrics.Gauge)

	snap, ok := e.MetricStats("custom")
	if !ok {
		t.Fatal("custom metric missing")
	}
	if snap.Type != "gauge" || snap.TotalCount != 0 {
		t.Errorf("re-registration did not replace: %+v", snap)
	}
}

func TestEngine_HighUrgencyEvent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.ProcessEmailEvent(
		model.EmailEvent{SenderEmail: "a@x.com"},
		&model.Intelligence{Urgency: &model.Urgency{Value: 5}},
	)

	alerts := e.RecentAlerts(10)
	if len(alerts) != 1 || alerts[0].Type != model.AlertHighUrgency {
		t.Fatalf("alerts = %v, want one high_urgency", alerts)
	}

	received, _ := e.MetricStats(MetricEmailsReceived)
	if received.TotalCount != 1 {
		t.Errorf("emails_received total = %d, want 1", received.TotalCount)
	}
	urgent, _ := e.MetricStats(MetricUrgentEmails)
	if urgent.TotalCount != 1 {
		t.Errorf("urgent_emails total = %d, want 1", urgent.TotalCount)
	}
}

func TestEngine_UrgencyBelowThresholdNoAlert(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.ProcessEmailEvent(
		model.EmailEvent{SenderEmail: "a@x.com"},
		&model.Intelligence{Urgency: &model.Urgency{Value: 3}},
	)

	if alerts := e.RecentAlerts(10); len(alerts) != 0 {
		t.Errorf("alerts = %v, want none", alerts)
	}
	urgent, _ := e.MetricStats(MetricUrgentEmails)
	if urgent.TotalCount != 0 {
		t.Errorf("urgent_emails total = %d, want 0", urgent.TotalCount)
	}
}

func TestEngine_VolumeSpikeAlert(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	base := time.Now()
	for i := 0; i < 12; i++ {
		e.ProcessEmailEvent(model.EmailEvent{
			SenderEmail: "burst@x.com",
			ReceivedAt:  base.Add(time.Duration(i) * time.Second),
		}, nil)
	}

	var spikes int
	for _, a := range e.RecentAlerts(100) {
		if a.Type == model.AlertVolumeSpike {
			spikes++
		}
	}
	if spikes == 0 {
		t.Fatal("no volume_spike alert after 12 events inside one minute")
	}
}

func TestEngine_BothRulesFireForOneEvent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	base := time.Now()
	for i := 0; i < 11; i++ {
		e.ProcessEmailEvent(model.EmailEvent{
			SenderEmail: "burst@x.com",
			ReceivedAt:  base.Add(time.Duration(i) * time.Second),
		}, nil)
	}
	e.ProcessEmailEvent(model.EmailEvent{
		SenderEmail: "boss@x.com",
		ReceivedAt:  base.Add(12 * time.Second),
	}, &model.Intelligence{Urgency: &model.Urgency{Value: 5}})

	alerts := e.RecentAlerts(2)
	types := map[string]bool{}
	for _, a := range alerts {
		types[a.Type] = true
	}
	if !types[model.AlertHighUrgency] || !types[model.AlertVolumeSpike] {
		t.Errorf("last two alerts = %v, want both rule types", alerts)
	}
}

func TestEngine_AlertRingBounded(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	for i := 0; i < alertHistorySize+50; i++ {
		e.ProcessEmailEvent(
			model.EmailEvent{SenderEmail: "a@x.com", ReceivedAt: time.Now().Add(time.Duration(i) * time.Hour)},
			&model.Intelligence{Urgency: &model.Urgency{Value: 5}},
		)
	}

	e.mu.RLock()
	n := len(e.alerts)
	e.mu.RUnlock()
	if n > alertHistorySize {
		t.Errorf("alert ring holds %d entries, cap is %d", n, alertHistorySize)
	}
}

func TestEngine_ProcessingTimeRecorded(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.ProcessEmailEvent(
		model.EmailEvent{SenderEmail: "a@x.com"},
		&model.Intelligence{ProcessingTimeMS: floatPtr(42.5)},
	)

	proc, _ := e.MetricStats(MetricProcessingTimeMS)
	if proc.TotalCount != 1 || proc.TotalSum != 42.5 {
		t.Errorf("processing_time_ms totals = %d/%v, want 1/42.5", proc.TotalCount, proc.TotalSum)
	}
	ws := proc.Windows["1min"]
	if ws.HistogramStats == nil || ws.Max != 42.5 {
		t.Errorf("histogram window stats = %+v, want max 42.5", ws)
	}
}

func TestEngine_SnapshotIdempotent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		e.ProcessEmailEvent(model.EmailEvent{
			SenderEmail: "a@x.com",
			ReceivedAt:  base.Add(time.Duration(i) * time.Second),
		}, nil)
	}

	first := e.Snapshot()
	second := e.Snapshot()

	if first.Overview.EmailsLastHour != second.Overview.EmailsLastHour {
		t.Errorf("emails_last_hour differs: %d vs %d", first.Overview.EmailsLastHour, second.Overview.EmailsLastHour)
	}
	a := first.Metrics[MetricEmailsReceived]
	b := second.Metrics[MetricEmailsReceived]
	if a.TotalCount != b.TotalCount || a.Windows["1hour"].Count != b.Windows["1hour"].Count {
		t.Errorf("repeated snapshots differ: %+v vs %+v", a, b)
	}
}

func TestEngine_HealthWarningAfterAlert(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.ProcessEmailEvent(
		model.EmailEvent{SenderEmail: "a@x.com"},
		&model.Intelligence{Urgency: &model.Urgency{Value: 5}},
	)

	if got := e.Snapshot().Overview.SystemHealth; got != model.HealthWarning {
		t.Errorf("health = %q, want warning", got)
	}
}

func TestEngine_DispatchDeliversToSinksInOrder(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context, *model.DashboardData) error {
		return func(context.Context, *model.DashboardData) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}
	e.RegisterSinkFunc("first", record("first"))
	e.RegisterSinkFunc("failing", func(context.Context, *model.DashboardData) error {
		mu.Lock()
		order = append(order, "failing")
		mu.Unlock()
		return errors.New("sink down")
	})
	e.RegisterSinkFunc("last", record("last"))

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	e.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(order) < 3 {
		t.Fatalf("sink deliveries = %v, want at least one full tick", order)
	}
	if order[0] != "first" || order[1] != "failing" || order[2] != "last" {
		t.Errorf("delivery order = %v, want first,failing,last", order[:3])
	}
}

func TestEngine_StartTwiceFails(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	if err := e.Start(context.Background()); err == nil {
		t.Error("second Start succeeded, want error")
	}
}

func TestEngine_StopIsPromptAndRestartable(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly")
	}

	// Stopped engines can be started again.
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	e.Stop()
}

func TestEngine_StopIdempotent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.Stop() // never started
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Stop()
	e.Stop()
}

func TestEngine_MetricStatsConsistentUnderConcurrentRecords(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.RegisterMetric("io_wait", metrics.Counter)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				e.RecordMetric("io_wait", 1, nil)
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	// Nothing ages out of the 24-hour window during this test, so the window
	// count and the lifetime total must come from the same read instant.
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap, ok := e.MetricStats("io_wait")
		if !ok {
			t.Fatal("io_wait metric missing")
		}
		if int64(snap.Windows["24hour"].Count) != snap.TotalCount {
			t.Fatalf("torn snapshot: window count=%d total_count=%d",
				snap.Windows["24hour"].Count, snap.TotalCount)
		}
	}
}

func TestEngine_HealthWarningSurvivesBackfilledAlert(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	urgent := &model.Intelligence{Urgency: &model.Urgency{Value: 5}}

	// A recent alert followed by a replayed event with an old receipt time:
	// the older-stamped alert sits at the newest ring position but must not
	// mask the recent one.
	e.ProcessEmailEvent(model.EmailEvent{SenderEmail: "a@x.com", ReceivedAt: time.Now()}, urgent)
	e.ProcessEmailEvent(model.EmailEvent{SenderEmail: "old@x.com", ReceivedAt: time.Now().Add(-2 * time.Hour)}, urgent)

	if got := e.Snapshot().Overview.SystemHealth; got != model.HealthWarning {
		t.Errorf("system health = %q, want %q while a recent alert is in the ring", got, model.HealthWarning)
	}
}
