package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-engage/internal/alerts"
	"github.com/miradorstack/mirador-engage/internal/metrics"
	"github.com/miradorstack/mirador-engage/internal/models"
)

// SnapshotSource yields the current health snapshot, or nil when there is
// nothing to report.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*models.HealthSnapshot, error)
}

// Evaluator periodically refreshes model health and raises threshold alerts.
type Evaluator struct {
	logger   *slog.Logger
	source   SnapshotSource
	alerts   *alerts.Manager
	interval time.Duration
}

// NewEvaluator constructs an Evaluator. A non-positive interval defaults to one minute.
func NewEvaluator(logger *slog.Logger, source SnapshotSource, alertManager *alerts.Manager, interval time.Duration) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Evaluator{logger: logger, source: source, alerts: alertManager, interval: interval}
}

// Run evaluates immediately and then on every tick until ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context) {
	e.logger.Info("health evaluator started", slog.Duration("interval", e.interval))
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.evaluate(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("health evaluator stopped")
			return
		case <-ticker.C:
			e.evaluate(ctx)
		}
	}
}

// EvaluateOnce computes one snapshot, updates the health gauge and raises
// alerts for it.
func (e *Evaluator) EvaluateOnce(ctx context.Context) (*models.HealthSnapshot, []models.Alert, error) {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	if snap == nil {
		metrics.SetHealthScore(0, false)
		return nil, nil, nil
	}
	metrics.SetHealthScore(snap.HealthScore, true)
	var raised []models.Alert
	if e.alerts != nil {
		raised = e.alerts.CheckThresholds(ctx, snap, nil)
	}
	return snap, raised, nil
}

func (e *Evaluator) evaluate(ctx context.Context) {
	snap, raised, err := e.EvaluateOnce(ctx)
	if err != nil {
		e.logger.Error("health evaluation failed", slog.Any("error", err))
		return
	}
	if snap == nil {
		e.logger.Debug("no predictions in window")
		return
	}
	e.logger.Info("health evaluated",
		slog.Float64("score", snap.HealthScore),
		slog.String("status", string(snap.Status)),
		slog.Int("predictions", snap.Count),
		slog.Int("alerts", len(raised)),
	)
}
