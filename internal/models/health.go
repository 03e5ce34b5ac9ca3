package models

import "time"

// EngagementBand names one of the fixed prediction buckets.
type EngagementBand string

const (
	BandVeryLow  EngagementBand = "very_low"
	BandLow      EngagementBand = "low"
	BandMedium   EngagementBand = "medium"
	BandHigh     EngagementBand = "high"
	BandVeryHigh EngagementBand = "very_high"
)

// BandStat is the count and share of predictions in a band.
type BandStat struct {
	Band       EngagementBand
	Lower      float64
	Upper      float64
	Count      int
	Percentage float64
}

// HealthStatus is the label derived from a health score.
type HealthStatus string

const (
	HealthExcellent HealthStatus = "excellent"
	HealthGood      HealthStatus = "good"
	HealthFair      HealthStatus = "fair"
	HealthPoor      HealthStatus = "poor"
)

// HealthSnapshot is a point-in-time aggregate over recent predictions.
type HealthSnapshot struct {
	Window       time.Duration
	Count        int
	Mean         float64
	StdDev       float64
	Min          float64
	Max          float64
	Distribution []BandStat
	OutOfRange   int
	HealthScore  float64
	Status       HealthStatus
	ComputedAt   time.Time
}

// Band returns the stat for the named band.
func (s HealthSnapshot) Band(band EngagementBand) BandStat {
	for _, b := range s.Distribution {
		if b.Band == band {
			return b
		}
	}
	return BandStat{Band: band}
}

// AnomalyResult describes how far a single prediction sits from the window.
type AnomalyResult struct {
	Value     float64
	ZScore    float64
	Deviation float64
	IsAnomaly bool
	Severity  Severity
}

// QualityReport is the outcome of validating a model input.
type QualityReport struct {
	Valid     bool
	Issues    []string
	Warnings  []string
	CheckedAt time.Time
}

// PerformanceStats describes serving throughput since start-up.
type PerformanceStats struct {
	Uptime               time.Duration
	TotalPredictions     int64
	PredictionsPerSecond float64
	LatencyP50           time.Duration
	LatencyP95           time.Duration
	LatencyMean          time.Duration
	Status               string
}
