package tests

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinytelemetry/pulse/internal/engine"
	"github.com/tinytelemetry/pulse/internal/eventsource"
	"github.com/tinytelemetry/pulse/internal/httpserver"
	"github.com/tinytelemetry/pulse/internal/ingest"
	"github.com/tinytelemetry/pulse/internal/model"
	"github.com/tinytelemetry/pulse/internal/sink"
	"github.com/tinytelemetry/pulse/internal/tcpserver"
)

type e2eConfig struct {
	UpdateInterval  time.Duration
	VolumeSpikeRate float64
}

type e2eStack struct {
	eng     *engine.Engine
	hub     *sink.Hub
	api     *httpserver.Server
	source  *eventsource.TCPSource
	tcp     *tcpserver.Server
	apiAddr string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startE2EStack(t *testing.T, cfg e2eConfig) *e2eStack {
	t.Helper()

	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 50 * time.Millisecond
	}

	eng, err := engine.New(engine.Config{
		UpdateInterval:  cfg.UpdateInterval,
		VolumeSpikeRate: cfg.VolumeSpikeRate,
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	hub := sink.NewHub()
	eng.RegisterSink(hub)

	api := httpserver.NewServer("127.0.0.1:0", eng, hub)
	if err := api.Start(); err != nil {
		t.Fatalf("http Start: %v", err)
	}

	tcp := tcpserver.NewServer("127.0.0.1:0")
	if err := tcp.Start(); err != nil {
		t.Fatalf("tcp Start: %v", err)
	}
	source := eventsource.NewTCPSource(tcp)

	processor := ingest.NewProcessor(eng)
	ctx, cancel := context.WithCancel(context.Background())

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("engine Start: %v", err)
	}

	stack := &e2eStack{
		eng:     eng,
		hub:     hub,
		api:     api,
		source:  source,
		tcp:     tcp,
		apiAddr: api.Addr(),
		cancel:  cancel,
	}

	stack.wg.Add(1)
	go func() {
		defer stack.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-source.Lines():
				if !ok {
					return
				}
				processor.ProcessEnvelope(env)
			}
		}
	}()

	waitEventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		url := "http://" + stack.apiAddr + "/api/health"
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, "api health endpoint did not become ready")

	t.Cleanup(func() {
		stack.cancel()
		stack.source.Stop()
		stack.wg.Wait()
		stack.eng.Stop()
		stack.hub.Close()
		_ = stack.api.Stop()
	})

	return stack
}

func waitEventually(t *testing.T, timeout, interval time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("eventually timeout: %s", msg)
		}
		time.Sleep(interval)
	}
}

func sendTCPLines(t *testing.T, addr string, lines []string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		t.Fatalf("dial tcp %s: %v", addr, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	w := bufio.NewWriterSize(conn, 256*1024)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			t.Fatalf("write line: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func emailEventLine(sender, email, subject string, urgency int, processingMS float64) string {
	return fmt.Sprintf(
		`{"sender":"%s","sender_email":"%s","subject":"%s","intelligence":{"classification":{"category":"work","confidence":0.9},"urgency":{"value":%d},"processing_time_ms":%v}}`,
		sender, email, subject, urgency, processingMS,
	)
}

func generateEventBurst(n int) []string {
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, emailEventLine(
			fmt.Sprintf("Load Sender %d", i%7),
			fmt.Sprintf("load%d@example.com", i%7),
			fmt.Sprintf("burst %d", i),
			2,
			12.5,
		))
	}
	return lines
}

func waitForEventCount(t *testing.T, eng *engine.Engine, expected int64, timeout time.Duration) {
	t.Helper()
	waitEventually(t, timeout, 20*time.Millisecond, func() bool {
		return eng.TotalEvents() == expected
	}, fmt.Sprintf("expected event count %d, have %d", expected, eng.TotalEvents()))
}

func getDashboard(t *testing.T, addr string) model.DashboardData {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/api/dashboard")
	if err != nil {
		t.Fatalf("get dashboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status=%d", resp.StatusCode)
	}

	var snap model.DashboardData
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	return snap
}

func TestE2E_Pipeline_TCPToDashboard(t *testing.T) {
	stack := startE2EStack(t, e2eConfig{})
	lines := []string{
		emailEventLine("Billing", "billing@corp.com", "invoice due", 2, 40),
		emailEventLine("Billing", "billing@corp.com", "invoice overdue", 3, 55),
		emailEventLine("Ops Pager", "pager@corp.com", "disk failure imminent", 5, 18),
	}

	sendTCPLines(t, stack.tcp.Addr(), lines)
	waitForEventCount(t, stack.eng, int64(len(lines)), 8*time.Second)

	snap := getDashboard(t, stack.apiAddr)

	if got := snap.Metrics[engine.MetricEmailsReceived].TotalCount; got != 3 {
		t.Fatalf("emails_received total=%d want=3", got)
	}
	if got := snap.Metrics[engine.MetricUrgentEmails].TotalCount; got != 1 {
		t.Fatalf("urgent_emails total=%d want=1", got)
	}
	if snap.Overview.EmailsLastHour != 3 {
		t.Fatalf("emails last hour=%d want=3", snap.Overview.EmailsLastHour)
	}

	var senders []string
	for _, s := range snap.EmailAnalytics.TopSenders {
		senders = append(senders, s.Sender)
	}
	joined := strings.Join(senders, ",")
	for _, required := range []string{"billing@corp.com", "pager@corp.com"} {
		if !strings.Contains(joined, required) {
			t.Fatalf("top senders missing %q in %v", required, senders)
		}
	}
	if snap.EmailAnalytics.TopSenders[0].Sender != "billing@corp.com" {
		t.Fatalf("top sender=%q want billing@corp.com", snap.EmailAnalytics.TopSenders[0].Sender)
	}

	foundHighUrgency := false
	for _, alert := range snap.RecentAlerts {
		if alert.Type == model.AlertHighUrgency {
			foundHighUrgency = true
		}
	}
	if !foundHighUrgency {
		t.Fatalf("expected high_urgency alert, got %+v", snap.RecentAlerts)
	}
}

func TestE2E_DashboardPushedOverWebSocket(t *testing.T) {
	stack := startE2EStack(t, e2eConfig{UpdateInterval: 30 * time.Millisecond})

	url := "ws://" + stack.apiAddr + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.Close()

	sendTCPLines(t, stack.tcp.Addr(), []string{
		emailEventLine("News", "news@example.com", "weekly digest", 1, 5),
	})
	waitForEventCount(t, stack.eng, 1, 8*time.Second)

	// Pushed snapshots arrive on the dispatch interval; read until one
	// reflects the ingested event.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ws read: %v", err)
		}
		var snap model.DashboardData
		if err := json.Unmarshal(payload, &snap); err != nil {
			t.Fatalf("decode pushed snapshot: %v", err)
		}
		if snap.Metrics[engine.MetricEmailsReceived].TotalCount == 1 {
			return
		}
	}
}

func TestE2E_BurstIngest_NoLoss(t *testing.T) {
	stack := startE2EStack(t, e2eConfig{
		// High spike threshold keeps the alert ring quiet during the burst.
		VolumeSpikeRate: 1e9,
	})

	const total = 12000
	lines := generateEventBurst(total)
	sendTCPLines(t, stack.tcp.Addr(), lines)

	waitForEventCount(t, stack.eng, total, 20*time.Second)

	snap := getDashboard(t, stack.apiAddr)
	if got := snap.Metrics[engine.MetricEmailsReceived].TotalCount; got != total {
		t.Fatalf("final count=%d want=%d", got, total)
	}
	if len(snap.EmailAnalytics.TopSenders) != 7 {
		t.Fatalf("top senders=%d want=7", len(snap.EmailAnalytics.TopSenders))
	}
}

func TestE2E_ConcurrentReadsDuringIngest(t *testing.T) {
	stack := startE2EStack(t, e2eConfig{VolumeSpikeRate: 1e9})

	const total = 6000
	lines := generateEventBurst(total)

	var wg sync.WaitGroup
	errCh := make(chan error, 128)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 5 * time.Second}
			for j := 0; j < 120; j++ {
				resp, err := client.Get("http://" + stack.apiAddr + "/api/dashboard")
				if err != nil {
					errCh <- fmt.Errorf("dashboard query: %w", err)
					return
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					errCh <- fmt.Errorf("dashboard status=%d", resp.StatusCode)
					return
				}
			}
		}()
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 5 * time.Second}
			for j := 0; j < 120; j++ {
				resp, err := client.Get("http://" + stack.apiAddr + "/api/metrics/" + engine.MetricEmailsReceived)
				if err != nil {
					errCh <- fmt.Errorf("metric query: %w", err)
					return
				}
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					errCh <- fmt.Errorf("metric status=%d", resp.StatusCode)
					return
				}
			}
		}()
	}

	sendTCPLines(t, stack.tcp.Addr(), lines)
	waitForEventCount(t, stack.eng, total, 20*time.Second)

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("concurrent read failure: %v", err)
		}
	}
}
