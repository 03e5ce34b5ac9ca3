package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/mirador-engage/internal/alerts"
	"github.com/miradorstack/mirador-engage/internal/metrics"
	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/monitor"
	"github.com/miradorstack/mirador-engage/internal/repo"
)

// Scorer defines the remote model behaviour used by the pipeline.
type Scorer interface {
	Predict(ctx context.Context, features models.PostFeatures) (repo.Score, error)
}

// PredictionStore persists scored predictions.
type PredictionStore interface {
	AppendPrediction(ctx context.Context, rec *models.PredictionRecord) error
}

// AnomalyChecker grades a value against recent history.
type AnomalyChecker interface {
	CheckPrediction(ctx context.Context, value float64) (*models.AnomalyResult, error)
	Invalidate(ctx context.Context)
}

// EventPublisher announces served predictions.
type EventPublisher interface {
	PredictionMade(ctx context.Context, rec models.PredictionRecord) error
}

// PredictRequest is one post to score.
type PredictRequest struct {
	PostID   string
	Features models.PostFeatures
}

// Pipeline orchestrates a single prediction: validate, score, grade,
// persist, alert, publish and explain.
type Pipeline struct {
	logger      *slog.Logger
	scorer      Scorer
	store       PredictionStore
	anomalies   AnomalyChecker
	alerts      *alerts.Manager
	events      EventPublisher
	rules       *RuleEngine
	performance *monitor.PerformanceMonitor

	now func() time.Time
}

// NewPipeline constructs a prediction pipeline. Only scorer is required;
// every other collaborator may be nil.
func NewPipeline(
	logger *slog.Logger,
	scorer Scorer,
	store PredictionStore,
	anomalies AnomalyChecker,
	alertManager *alerts.Manager,
	events EventPublisher,
	rules *RuleEngine,
	performance *monitor.PerformanceMonitor,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:      logger,
		scorer:      scorer,
		store:       store,
		anomalies:   anomalies,
		alerts:      alertManager,
		events:      events,
		rules:       rules,
		performance: performance,
		now:         time.Now,
	}
}

// Predict serves one prediction. Inputs failing the quality check are
// rejected with models.ErrInvalidFeatures and a data quality alert.
func (p *Pipeline) Predict(ctx context.Context, req PredictRequest) (models.PredictionOutcome, error) {
	if p.scorer == nil {
		return models.PredictionOutcome{}, fmt.Errorf("scorer not configured")
	}
	start := p.now()
	features := req.Features

	outcome := models.PredictionOutcome{Quality: monitor.CheckQuality(&features, start.UTC())}
	if !outcome.Quality.Valid {
		if p.alerts != nil {
			outcome.Alerts = p.alerts.CheckThresholds(ctx, nil, &outcome.Quality)
		}
		metrics.ObservePrediction(p.now().Sub(start), metrics.OutcomeRejected)
		return outcome, fmt.Errorf("%w: %s", models.ErrInvalidFeatures, strings.Join(outcome.Quality.Issues, "; "))
	}
	for _, w := range outcome.Quality.Warnings {
		p.logger.Warn("input quality warning", slog.String("post_id", req.PostID), slog.String("warning", w))
	}

	score, err := p.scorer.Predict(ctx, features)
	if err != nil {
		metrics.ObservePrediction(p.now().Sub(start), metrics.OutcomeError)
		return outcome, fmt.Errorf("score prediction: %w", err)
	}

	// Graded against history before the new record joins it.
	if p.anomalies != nil {
		anomaly, err := p.anomalies.CheckPrediction(ctx, score.Value)
		if err != nil {
			p.logger.Warn("anomaly check failed", slog.Any("error", err))
		} else if anomaly != nil {
			outcome.Anomaly = anomaly
			if anomaly.IsAnomaly {
				metrics.ObserveAnomaly(string(anomaly.Severity))
			}
		}
	}

	elapsed := p.now().Sub(start)
	rec := models.PredictionRecord{
		PostID:         req.PostID,
		Value:          score.Value,
		ModelVersion:   score.ModelVersion,
		ProcessingTime: elapsed,
		PredictedAt:    start.UTC(),
		Features:       &features,
	}
	if p.store != nil {
		if err := p.store.AppendPrediction(ctx, &rec); err != nil {
			p.logger.Warn("persist prediction failed", slog.String("post_id", req.PostID), slog.Any("error", err))
		} else if p.anomalies != nil {
			p.anomalies.Invalidate(ctx)
		}
	}
	outcome.Record = rec

	if p.alerts != nil {
		outcome.Alerts = p.alerts.CheckPrediction(ctx, rec, outcome.Anomaly)
	}
	if p.events != nil {
		if err := p.events.PredictionMade(ctx, rec); err != nil {
			p.logger.Warn("publish prediction event failed", slog.Any("error", err))
		}
	}
	if p.rules != nil {
		explanation := p.rules.Explain(rec.Value, &features)
		outcome.Explanation = &explanation
	}

	if p.performance != nil {
		p.performance.Observe(elapsed)
	}
	metrics.ObservePrediction(elapsed, metrics.OutcomeSuccess)
	p.logger.Debug("prediction served",
		slog.String("post_id", req.PostID),
		slog.Float64("value", rec.Value),
		slog.Duration("elapsed", elapsed),
	)
	return outcome, nil
}
