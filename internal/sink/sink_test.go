package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/tinytelemetry/pulse/internal/model"
)

func TestFunc_Adapts(t *testing.T) {
	t.Parallel()

	var got *model.DashboardData
	s := NewFunc("capture", func(_ context.Context, snap *model.DashboardData) error {
		got = snap
		return nil
	})

	if s.Name() != "capture" {
		t.Errorf("Name = %q, want capture", s.Name())
	}
	snap := &model.DashboardData{Overview: model.Overview{SystemHealth: model.HealthHealthy}}
	if err := s.Deliver(context.Background(), snap); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got != snap {
		t.Error("snapshot not passed through")
	}
}

func TestFunc_PropagatesError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("consumer down")
	s := NewFunc("failing", func(context.Context, *model.DashboardData) error {
		return wantErr
	})
	if err := s.Deliver(context.Background(), &model.DashboardData{}); !errors.Is(err, wantErr) {
		t.Errorf("Deliver err = %v, want %v", err, wantErr)
	}
}

func TestLog_NeverFails(t *testing.T) {
	t.Parallel()

	if err := (Log{}).Deliver(context.Background(), &model.DashboardData{}); err != nil {
		t.Errorf("Deliver: %v", err)
	}
}
