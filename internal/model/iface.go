package model

import "context"

// Sink receives each periodic dashboard snapshot. Delivery is best-effort,
// at-least-once per tick: a returned error is logged and the sink is skipped
// for that tick, never retried within it.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, snapshot *DashboardData) error
}

// SnapshotSource is the narrow engine contract required by read surfaces
// (the HTTP API and tests). Implementations must never block on I/O.
type SnapshotSource interface {
	Snapshot() *DashboardData
	MetricStats(name string) (MetricSnapshot, bool)
	TotalEvents() int64
}
