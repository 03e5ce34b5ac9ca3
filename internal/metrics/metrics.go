package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels operations that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels operations that failed (pipeline or dependency issues).
	OutcomeError = "error"
	// OutcomeFallback labels balancing runs that returned the original data.
	OutcomeFallback = "fallback"
	// OutcomeRejected labels predictions refused by the data quality check.
	OutcomeRejected = "rejected"
)

const namespace = "mirador_engage"

var (
	balancingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balancing_runs_total",
			Help:      "Balancing runs, partitioned by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	syntheticSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthetic_samples_total",
			Help:      "Synthetic rows generated by oversampling strategies.",
		},
		[]string{"strategy"},
	)

	healthScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_score",
			Help:      "Most recent prediction health score (0-100); -1 when unknown.",
		},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Anomaly checks, partitioned by severity.",
		},
		[]string{"severity"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised, partitioned by type and severity.",
		},
		[]string{"type", "severity"},
	)

	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_seconds",
			Help:      "End-to-end prediction latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

// Register attaches mirador-engage collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		balancingRunsTotal,
		syntheticSamplesTotal,
		healthScore,
		anomaliesTotal,
		alertsTotal,
		predictionsTotal,
		predictionDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveBalancing records a balancing run.
func ObserveBalancing(strategy, outcome string, synthetic int) {
	balancingRunsTotal.WithLabelValues(strategy, outcome).Inc()
	if synthetic > 0 {
		syntheticSamplesTotal.WithLabelValues(strategy).Add(float64(synthetic))
	}
}

// SetHealthScore publishes the latest score. Pass ok=false when health is unknown.
func SetHealthScore(score float64, ok bool) {
	if !ok {
		healthScore.Set(-1)
		return
	}
	healthScore.Set(score)
}

// ObserveAnomaly counts an anomaly check by severity.
func ObserveAnomaly(severity string) {
	anomaliesTotal.WithLabelValues(severity).Inc()
}

// ObserveAlert counts a raised alert.
func ObserveAlert(alertType, severity string) {
	alertsTotal.WithLabelValues(alertType, severity).Inc()
}

// ObservePrediction records a prediction duration and outcome label.
func ObservePrediction(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeError, OutcomeRejected:
	default:
		outcome = OutcomeSuccess
	}
	predictionsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.Observe(duration.Seconds())
}
