package monitor

import (
	"errors"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// ErrNoPredictions means the window held no predictions to aggregate.
var ErrNoPredictions = errors.New("no predictions in window")

type band struct {
	name         models.EngagementBand
	lower, upper float64
}

// Bands are half-open except the last, which includes 1.0.
var bands = []band{
	{models.BandVeryLow, 0, 0.05},
	{models.BandLow, 0.05, 0.10},
	{models.BandMedium, 0.10, 0.20},
	{models.BandHigh, 0.20, 0.50},
	{models.BandVeryHigh, 0.50, 1.0},
}

// Classify returns the band of v, or false when v is outside [0,1].
func Classify(v float64) (models.EngagementBand, bool) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return "", false
	}
	for _, b := range bands[:len(bands)-1] {
		if v < b.upper {
			return b.name, true
		}
	}
	return models.BandVeryHigh, true
}

// ComputeSnapshot aggregates the records predicted after now-window.
// Out-of-range values count toward the total but fall in no band.
func ComputeSnapshot(records []models.PredictionRecord, window time.Duration, now time.Time, policy Policy) (models.HealthSnapshot, error) {
	if window <= 0 {
		window = policy.Window
	}
	since := now.Add(-window)

	values := make([]float64, 0, len(records))
	for _, rec := range records {
		if rec.PredictedAt.After(since) {
			values = append(values, rec.Value)
		}
	}
	snap, err := SnapshotFromValues(values, policy)
	if err != nil {
		return snap, err
	}
	snap.Window = window
	snap.ComputedAt = now
	return snap, nil
}

// SnapshotFromValues computes statistics, bands and score for raw values.
func SnapshotFromValues(values []float64, policy Policy) (models.HealthSnapshot, error) {
	if len(values) == 0 {
		return models.HealthSnapshot{}, ErrNoPredictions
	}

	data := stats.Float64Data(values)
	mean, _ := stats.Mean(data)
	std, _ := stats.StandardDeviationPopulation(data)
	minV, _ := stats.Min(data)
	maxV, _ := stats.Max(data)

	counts := make(map[models.EngagementBand]int, len(bands))
	outOfRange := 0
	for _, v := range values {
		name, ok := Classify(v)
		if !ok {
			outOfRange++
			continue
		}
		counts[name]++
	}

	total := float64(len(values))
	distribution := make([]models.BandStat, 0, len(bands))
	for _, b := range bands {
		distribution = append(distribution, models.BandStat{
			Band:       b.name,
			Lower:      b.lower,
			Upper:      b.upper,
			Count:      counts[b.name],
			Percentage: float64(counts[b.name]) / total * 100,
		})
	}

	snap := models.HealthSnapshot{
		Count:        len(values),
		Mean:         mean,
		StdDev:       std,
		Min:          minV,
		Max:          maxV,
		Distribution: distribution,
		OutOfRange:   outOfRange,
	}
	snap.HealthScore = policy.Score(std, snap.Band(models.BandVeryLow).Percentage, snap.Band(models.BandVeryHigh).Percentage)
	snap.Status = policy.Status(snap.HealthScore)
	return snap, nil
}
