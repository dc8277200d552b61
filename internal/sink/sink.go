// Package sink provides snapshot sink implementations: a function adapter,
// a log sink for headless diagnostics, a WebSocket fan-out hub, and an
// optional Redis publisher.
package sink

import (
	"context"
	"log"

	"github.com/tinytelemetry/pulse/internal/model"
)

// Func adapts a plain function to the model.Sink interface. Synchronous
// consumers are wrapped here at registration time instead of branching on
// callable shape at dispatch time.
type Func struct {
	name string
	fn   func(context.Context, *model.DashboardData) error
}

// NewFunc wraps fn as a named sink.
func NewFunc(name string, fn func(context.Context, *model.DashboardData) error) *Func {
	return &Func{name: name, fn: fn}
}

func (f *Func) Name() string { return f.name }

func (f *Func) Deliver(ctx context.Context, snapshot *model.DashboardData) error {
	return f.fn(ctx, snapshot)
}

// Log writes a one-line snapshot summary to the process log. Useful when
// running headless without any dashboard consumer attached.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) Deliver(_ context.Context, snapshot *model.DashboardData) error {
	log.Printf("sink: snapshot emails_last_hour=%d rate=%.2f/min health=%s alerts=%d",
		snapshot.Overview.EmailsLastHour,
		snapshot.Overview.CurrentRate,
		snapshot.Overview.SystemHealth,
		len(snapshot.RecentAlerts))
	return nil
}
