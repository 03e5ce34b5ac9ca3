package monitor

import (
	"math"

	"github.com/miradorstack/mirador-engage/internal/models"
)

const zEpsilon = 1e-8

// DetectAnomaly scores value against a window mean and standard deviation.
func DetectAnomaly(value, mean, stdDev float64, policy Policy) models.AnomalyResult {
	z := (value - mean) / (stdDev + zEpsilon)
	abs := math.Abs(z)
	return models.AnomalyResult{
		Value:     value,
		ZScore:    z,
		Deviation: value - mean,
		IsAnomaly: abs > policy.AnomalyZ,
		Severity:  policy.severity(abs),
	}
}

func (p Policy) severity(absZ float64) models.Severity {
	switch {
	case absZ > p.CriticalZ:
		return models.SeverityCritical
	case absZ > p.HighZ:
		return models.SeverityHigh
	case absZ > p.ModerateZ:
		return models.SeverityModerate
	default:
		return models.SeverityNormal
	}
}
