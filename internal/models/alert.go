package models

import "time"

// Severity captures impact levels for anomalies and alerts.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AlertType groups alerts by the check that raised them.
type AlertType string

const (
	AlertPerformance AlertType = "performance"
	AlertDataQuality AlertType = "data_quality"
	AlertPrediction  AlertType = "prediction"
	AlertAnomaly     AlertType = "anomaly"
)

// Alert is raised when a snapshot or input check crosses a threshold.
type Alert struct {
	ID           string    `json:"id"`
	Type         AlertType `json:"type"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Value        float64   `json:"value,omitempty"`
	PredictionID string    `json:"prediction_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
