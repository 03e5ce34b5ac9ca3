package balance

import (
	"math"
	"sort"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// Analyze computes the class distribution of a label sequence. Any number of
// classes is supported. An empty sequence yields an empty distribution and
// models.ErrEmptyDataset.
func Analyze(labels []string) (models.ClassDistribution, error) {
	if len(labels) == 0 {
		return models.ClassDistribution{}, models.ErrEmptyDataset
	}
	counts := make(map[string]int)
	for _, label := range labels {
		counts[label]++
	}
	return DistributionFromCounts(counts), nil
}

// DistributionFromCounts derives ratio, majority and minority from raw counts.
// A class with a zero count makes the ratio +Inf.
func DistributionFromCounts(counts map[string]int) models.ClassDistribution {
	dist := models.ClassDistribution{
		Counts:      make(map[string]int, len(counts)),
		Percentages: make(map[string]float64, len(counts)),
		AnalyzedAt:  time.Now().UTC(),
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		return dist
	}
	sort.Strings(labels)

	for _, label := range labels {
		count := counts[label]
		if count < 0 {
			count = 0
		}
		dist.Counts[label] = count
		dist.Total += count
	}

	// Ties go to the label that sorts first.
	dist.MajorityClass, dist.MinorityClass = labels[0], labels[0]
	dist.MajorityCount, dist.MinorityCount = dist.Counts[labels[0]], dist.Counts[labels[0]]
	for _, label := range labels[1:] {
		count := dist.Counts[label]
		if count > dist.MajorityCount {
			dist.MajorityClass, dist.MajorityCount = label, count
		}
		if count < dist.MinorityCount {
			dist.MinorityClass, dist.MinorityCount = label, count
		}
	}

	if dist.Total > 0 {
		for label, count := range dist.Counts {
			dist.Percentages[label] = float64(count) / float64(dist.Total) * 100
		}
	}

	switch {
	case dist.MajorityCount == 0:
		dist.ImbalanceRatio = 1
	case dist.MinorityCount == 0:
		dist.ImbalanceRatio = math.Inf(1)
	default:
		dist.ImbalanceRatio = float64(dist.MajorityCount) / float64(dist.MinorityCount)
	}
	dist.IsImbalanced = dist.ImbalanceRatio > models.ImbalanceThreshold
	return dist
}
