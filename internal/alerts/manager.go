package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-engage/internal/metrics"
	"github.com/miradorstack/mirador-engage/internal/models"
)

// DefaultCapacity bounds the in-memory alert history.
const DefaultCapacity = 1000

const (
	defaultHealthThreshold = 40
	defaultHighEngagement  = 0.9
	defaultLowEngagement   = 0.1
)

// Options tunes the alert thresholds. Nil engagement thresholds take the
// defaults; an explicit 0 low threshold turns low-engagement alerts off.
type Options struct {
	Capacity        int
	HealthThreshold float64
	HighEngagement  *float64
	LowEngagement   *float64
}

// Threshold returns a pointer to v for use in Options.
func Threshold(v float64) *float64 { return &v }

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		Capacity:        DefaultCapacity,
		HealthThreshold: defaultHealthThreshold,
		HighEngagement:  Threshold(defaultHighEngagement),
		LowEngagement:   Threshold(defaultLowEngagement),
	}
}

// Manager records alerts in a bounded ring and hands them to a Sink. Alerts
// are neither deduplicated nor resolved.
type Manager struct {
	logger *slog.Logger
	sink   Sink
	opts   Options
	high   float64
	low    float64

	mu   sync.Mutex
	ring []models.Alert
	next int
	full bool

	now   func() time.Time
	newID func() string
}

// NewManager constructs a Manager; sink may be nil.
func NewManager(logger *slog.Logger, sink Sink, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.HealthThreshold <= 0 {
		opts.HealthThreshold = defaultHealthThreshold
	}
	high, low := defaultHighEngagement, defaultLowEngagement
	if opts.HighEngagement != nil {
		high = *opts.HighEngagement
	}
	if opts.LowEngagement != nil {
		low = *opts.LowEngagement
	}
	return &Manager{
		logger: logger,
		sink:   sink,
		opts:   opts,
		high:   high,
		low:    low,
		ring:   make([]models.Alert, 0, opts.Capacity),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CheckThresholds raises a performance alert when the health score is below
// the threshold and a data quality alert when the report lists issues. Either
// argument may be nil.
func (m *Manager) CheckThresholds(ctx context.Context, snapshot *models.HealthSnapshot, quality *models.QualityReport) []models.Alert {
	raised := make([]models.Alert, 0, 2)
	if snapshot != nil && snapshot.HealthScore < m.opts.HealthThreshold {
		raised = append(raised, newAlert(models.AlertPerformance, models.SeverityHigh,
			fmt.Sprintf("model health score is low: %.1f", snapshot.HealthScore), snapshot.HealthScore, ""))
	}
	if quality != nil && len(quality.Issues) > 0 {
		raised = append(raised, newAlert(models.AlertDataQuality, models.SeverityCritical,
			"data quality issues detected: "+strings.Join(quality.Issues, ", "), 0, ""))
	}
	return m.Raise(ctx, raised...)
}

// CheckPrediction raises alerts for unusually high or low engagement and for
// anomalies graded high or critical.
func (m *Manager) CheckPrediction(ctx context.Context, rec models.PredictionRecord, anomaly *models.AnomalyResult) []models.Alert {
	raised := make([]models.Alert, 0, 2)
	switch {
	case rec.Value > m.high:
		raised = append(raised, newAlert(models.AlertPrediction, models.SeverityInfo,
			fmt.Sprintf("high engagement predicted: %.3f", rec.Value), rec.Value, rec.ID))
	case rec.Value < m.low:
		raised = append(raised, newAlert(models.AlertPrediction, models.SeverityWarning,
			fmt.Sprintf("low engagement predicted: %.3f", rec.Value), rec.Value, rec.ID))
	}
	if anomaly != nil && anomaly.IsAnomaly &&
		(anomaly.Severity == models.SeverityHigh || anomaly.Severity == models.SeverityCritical) {
		raised = append(raised, newAlert(models.AlertAnomaly, anomaly.Severity,
			fmt.Sprintf("anomalous prediction %.3f (z=%.2f)", anomaly.Value, anomaly.ZScore), anomaly.Value, rec.ID))
	}
	return m.Raise(ctx, raised...)
}

// Raise records alerts and delivers them to the sink. Delivery failures are
// logged; the alerts stay recorded.
func (m *Manager) Raise(ctx context.Context, alerts ...models.Alert) []models.Alert {
	if len(alerts) == 0 {
		return nil
	}

	m.mu.Lock()
	for i := range alerts {
		if alerts[i].ID == "" {
			alerts[i].ID = m.newID()
		}
		if alerts[i].CreatedAt.IsZero() {
			alerts[i].CreatedAt = m.now().UTC()
		}
		m.push(alerts[i])
	}
	m.mu.Unlock()

	for _, alert := range alerts {
		metrics.ObserveAlert(string(alert.Type), string(alert.Severity))
	}

	if m.sink != nil {
		if err := m.sink.Deliver(ctx, alerts); err != nil {
			m.logger.Warn("alert delivery failed", slog.Int("alerts", len(alerts)), slog.Any("error", err))
		}
	}
	return alerts
}

// Recent returns up to n of the newest alerts, oldest first.
func (m *Manager) Recent(n int) []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := m.ordered()
	if n <= 0 || n > len(ordered) {
		n = len(ordered)
	}
	return ordered[len(ordered)-n:]
}

// Len returns the number of retained alerts.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ring)
}

func newAlert(kind models.AlertType, severity models.Severity, message string, value float64, predictionID string) models.Alert {
	return models.Alert{
		Type:         kind,
		Severity:     severity,
		Message:      message,
		Value:        value,
		PredictionID: predictionID,
	}
}

// push must be called with mu held.
func (m *Manager) push(alert models.Alert) {
	if !m.full {
		m.ring = append(m.ring, alert)
		if len(m.ring) == m.opts.Capacity {
			m.full = true
		}
		return
	}
	m.ring[m.next] = alert
	m.next = (m.next + 1) % m.opts.Capacity
}

// ordered must be called with mu held.
func (m *Manager) ordered() []models.Alert {
	out := make([]models.Alert, 0, len(m.ring))
	if !m.full {
		return append(out, m.ring...)
	}
	out = append(out, m.ring[m.next:]...)
	return append(out, m.ring[:m.next]...)
}
