package alerts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/miradorstack/mirador-engage/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckThresholds(t *testing.T) {
	var delivered []models.Alert
	sink := SinkFunc(func(_ context.Context, alerts []models.Alert) error {
		delivered = append(delivered, alerts...)
		return nil
	})
	m := NewManager(quietLogger(), sink, Options{})

	snap := &models.HealthSnapshot{HealthScore: 25}
	quality := &models.QualityReport{Issues: []string{"missing required field: platform"}}
	raised := m.CheckThresholds(context.Background(), snap, quality)

	if len(raised) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(raised))
	}
	if raised[0].Type != models.AlertPerformance || raised[0].Severity != models.SeverityHigh {
		t.Fatalf("unexpected performance alert %+v", raised[0])
	}
	if raised[1].Type != models.AlertDataQuality || raised[1].Severity != models.SeverityCritical {
		t.Fatalf("unexpected quality alert %+v", raised[1])
	}
	if !strings.Contains(raised[1].Message, "platform") {
		t.Fatalf("expected issue in message, got %q", raised[1].Message)
	}
	if raised[0].ID == "" || raised[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be set")
	}
	if len(delivered) != 2 {
		t.Fatalf("expected sink to receive 2 alerts, got %d", len(delivered))
	}
}

func TestCheckThresholdsQuiet(t *testing.T) {
	m := NewManager(quietLogger(), nil, Options{})
	if raised := m.CheckThresholds(context.Background(), &models.HealthSnapshot{HealthScore: 40}, &models.QualityReport{Valid: true}); len(raised) != 0 {
		t.Fatalf("expected no alerts, got %+v", raised)
	}
	if raised := m.CheckThresholds(context.Background(), nil, nil); len(raised) != 0 {
		t.Fatalf("expected no alerts for unknown health, got %+v", raised)
	}
}

func TestCheckPrediction(t *testing.T) {
	m := NewManager(quietLogger(), nil, Options{})
	ctx := context.Background()

	high := m.CheckPrediction(ctx, models.PredictionRecord{ID: "p1", Value: 0.95}, nil)
	if len(high) != 1 || high[0].Severity != models.SeverityInfo || high[0].PredictionID != "p1" {
		t.Fatalf("unexpected high engagement alerts %+v", high)
	}

	anomaly := &models.AnomalyResult{Value: 0.05, ZScore: -4.5, IsAnomaly: true, Severity: models.SeverityCritical}
	low := m.CheckPrediction(ctx, models.PredictionRecord{ID: "p2", Value: 0.05}, anomaly)
	if len(low) != 2 || low[0].Severity != models.SeverityWarning || low[1].Type != models.AlertAnomaly {
		t.Fatalf("unexpected low engagement alerts %+v", low)
	}

	if none := m.CheckPrediction(ctx, models.PredictionRecord{Value: 0.3}, &models.AnomalyResult{Severity: models.SeverityModerate}); len(none) != 0 {
		t.Fatalf("expected no alerts, got %+v", none)
	}
}

func TestRecentRingBuffer(t *testing.T) {
	m := NewManager(quietLogger(), nil, Options{Capacity: 3})
	for i := 0; i < 5; i++ {
		m.Raise(context.Background(), models.Alert{Type: models.AlertPrediction, Message: fmt.Sprintf("alert-%d", i)})
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 retained alerts, got %d", m.Len())
	}
	recent := m.Recent(10)
	if len(recent) != 3 || recent[0].Message != "alert-2" || recent[2].Message != "alert-4" {
		t.Fatalf("unexpected ring order %+v", recent)
	}
	last := m.Recent(1)
	if len(last) != 1 || last[0].Message != "alert-4" {
		t.Fatalf("expected newest alert, got %+v", last)
	}
}

func TestRaiseKeepsAlertsWhenDeliveryFails(t *testing.T) {
	sink := SinkFunc(func(context.Context, []models.Alert) error { return errors.New("queue down") })
	m := NewManager(quietLogger(), sink, Options{})
	m.Raise(context.Background(), models.Alert{Type: models.AlertPerformance})
	if m.Len() != 1 {
		t.Fatalf("expected alert to be recorded despite delivery failure")
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	calls := 0
	ok := SinkFunc(func(context.Context, []models.Alert) error { calls++; return nil })
	bad := SinkFunc(func(context.Context, []models.Alert) error { calls++; return errors.New("boom") })
	err := MultiSink{ok, nil, bad, LogSink{Logger: quietLogger()}}.Deliver(context.Background(), []models.Alert{{Severity: models.SeverityHigh}})
	if err == nil || calls != 2 {
		t.Fatalf("expected joined error after both sinks ran, got %v (calls=%d)", err, calls)
	}
}

func TestZeroLowThresholdDisablesLowAlerts(t *testing.T) {
	m := NewManager(quietLogger(), nil, Options{LowEngagement: Threshold(0)})
	if raised := m.CheckPrediction(context.Background(), models.PredictionRecord{Value: 0.01}, nil); len(raised) != 0 {
		t.Fatalf("expected low-engagement alerts to be off, got %+v", raised)
	}
	if raised := m.CheckPrediction(context.Background(), models.PredictionRecord{Value: 0.95}, nil); len(raised) != 1 {
		t.Fatalf("expected default high threshold to apply, got %+v", raised)
	}
}

type ctxKey struct{}

// ctxRecorder is a slog.Handler that remembers the context of each record.
type ctxRecorder struct {
	seen []any
}

func (h *ctxRecorder) Enabled(context.Context, slog.Level) bool { return true }
func (h *ctxRecorder) Handle(ctx context.Context, _ slog.Record) error {
	h.seen = append(h.seen, ctx.Value(ctxKey{}))
	return nil
}
func (h *ctxRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *ctxRecorder) WithGroup(string) slog.Handler      { return h }

func TestLogSinkPassesContext(t *testing.T) {
	rec := &ctxRecorder{}
	sink := LogSink{Logger: slog.New(rec)}
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-7")
	alerts := []models.Alert{{ID: "a1", Type: models.AlertPerformance, Severity: models.SeverityHigh, Message: "low health"}}
	if err := sink.Deliver(ctx, alerts); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(rec.seen) != 1 || rec.seen[0] != "req-7" {
		t.Fatalf("expected the caller's context to reach the handler, got %v", rec.seen)
	}
}
