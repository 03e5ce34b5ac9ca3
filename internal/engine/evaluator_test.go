package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miradorstack/mirador-engage/internal/alerts"
	"github.com/miradorstack/mirador-engage/internal/models"
)

type fakeSnapshots struct {
	snap  *models.HealthSnapshot
	err   error
	calls int
}

func (f *fakeSnapshots) Snapshot(context.Context) (*models.HealthSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

func TestEvaluateOnceRaisesLowHealth(t *testing.T) {
	source := &fakeSnapshots{snap: &models.HealthSnapshot{Count: 10, HealthScore: 25, Status: models.HealthPoor}}
	manager := alerts.NewManager(quietLogger(), nil, alerts.DefaultOptions())
	evaluator := NewEvaluator(quietLogger(), source, manager, time.Minute)

	snap, raised, err := evaluator.EvaluateOnce(context.Background())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if snap == nil || len(raised) != 1 || raised[0].Type != models.AlertPerformance {
		t.Fatalf("expected performance alert, got %+v", raised)
	}
	if manager.Len() != 1 {
		t.Fatalf("expected alert recorded, got %d", manager.Len())
	}
}

func TestEvaluateOnceNoData(t *testing.T) {
	evaluator := NewEvaluator(nil, &fakeSnapshots{}, nil, 0)
	snap, raised, err := evaluator.EvaluateOnce(context.Background())
	if err != nil || snap != nil || raised != nil {
		t.Fatalf("expected empty evaluation, got %+v %+v %v", snap, raised, err)
	}
	if evaluator.interval != time.Minute {
		t.Fatalf("expected default interval, got %s", evaluator.interval)
	}

	failing := NewEvaluator(quietLogger(), &fakeSnapshots{err: errors.New("boom")}, nil, time.Minute)
	if _, _, err := failing.EvaluateOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEvaluatorRunStopsOnCancel(t *testing.T) {
	source := &fakeSnapshots{snap: &models.HealthSnapshot{Count: 5, HealthScore: 90}}
	evaluator := NewEvaluator(quietLogger(), source, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		evaluator.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("evaluator did not stop")
	}
}
