package balance

import (
	"fmt"
	"sort"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// ComputeMetrics derives class weights and minority frequency from yTrue.
// When yPred is non-nil it must match yTrue in length, and weighted and macro
// precision, recall and F1 are added. Undefined ratios count as zero.
func ComputeMetrics(yTrue, yPred []string) (models.ImbalanceMetrics, error) {
	dist, err := Analyze(yTrue)
	if err != nil {
		return models.ImbalanceMetrics{}, err
	}

	metrics := models.ImbalanceMetrics{
		Distribution:      dist,
		ClassWeights:      ClassWeights(dist),
		MinorityFrequency: float64(dist.MinorityCount) / float64(dist.Total),
	}
	if yPred == nil {
		return metrics, nil
	}
	if len(yPred) != len(yTrue) {
		return metrics, fmt.Errorf("%w: %d predictions for %d labels", models.ErrInvalidDataset, len(yPred), len(yTrue))
	}

	scores := perClassScores(yTrue, yPred)
	support := 0
	for _, s := range scores {
		metrics.MacroPrecision += s.precision
		metrics.MacroRecall += s.recall
		metrics.MacroF1 += s.f1
		metrics.WeightedPrecision += s.precision * float64(s.support)
		metrics.WeightedRecall += s.recall * float64(s.support)
		metrics.WeightedF1 += s.f1 * float64(s.support)
		support += s.support
	}
	n := float64(len(scores))
	metrics.MacroPrecision /= n
	metrics.MacroRecall /= n
	metrics.MacroF1 /= n
	if support > 0 {
		metrics.WeightedPrecision /= float64(support)
		metrics.WeightedRecall /= float64(support)
		metrics.WeightedF1 /= float64(support)
	}
	metrics.HasPredictions = true
	return metrics, nil
}

// ClassWeights returns total/(classes*count) per class; absent classes get 0.
func ClassWeights(dist models.ClassDistribution) map[string]float64 {
	weights := make(map[string]float64, len(dist.Counts))
	k := float64(len(dist.Counts))
	for label, count := range dist.Counts {
		if count == 0 {
			weights[label] = 0
			continue
		}
		weights[label] = float64(dist.Total) / (k * float64(count))
	}
	return weights
}

type classScore struct {
	label     string
	precision float64
	recall    float64
	f1        float64
	support   int
}

func perClassScores(yTrue, yPred []string) []classScore {
	seen := make(map[string]struct{})
	for i := range yTrue {
		seen[yTrue[i]] = struct{}{}
		seen[yPred[i]] = struct{}{}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	scores := make([]classScore, 0, len(labels))
	for _, label := range labels {
		var tp, fp, fn int
		for i := range yTrue {
			switch {
			case yTrue[i] == label && yPred[i] == label:
				tp++
			case yPred[i] == label:
				fp++
			case yTrue[i] == label:
				fn++
			}
		}
		s := classScore{label: label, support: tp + fn}
		s.precision = safeDiv(float64(tp), float64(tp+fp))
		s.recall = safeDiv(float64(tp), float64(tp+fn))
		s.f1 = safeDiv(2*s.precision*s.recall, s.precision+s.recall)
		scores = append(scores, s)
	}
	return scores
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
