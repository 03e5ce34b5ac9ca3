package models

import (
	"fmt"
	"strings"
	"time"
)

// ImbalanceThreshold is the ratio above which a distribution counts as imbalanced.
const ImbalanceThreshold = 1.5

// Strategy selects how a dataset is resampled.
type Strategy string

const (
	StrategySMOTE       Strategy = "oversample-synthetic"
	StrategyADASYN      Strategy = "adaptive-synthetic"
	StrategyCombined    Strategy = "combined"
	StrategyUndersample Strategy = "undersample"
	StrategyNone        Strategy = "none"
)

// ParseStrategy maps a user supplied name to a Strategy. The short names
// "smote" and "adasyn" are accepted as aliases.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "oversample-synthetic", "smote":
		return StrategySMOTE, nil
	case "adaptive-synthetic", "adasyn":
		return StrategyADASYN, nil
	case "combined":
		return StrategyCombined, nil
	case "undersample":
		return StrategyUndersample, nil
	case "none", "":
		return StrategyNone, nil
	default:
		return Strategy(name), fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// Oversamples reports whether the strategy only ever adds rows.
func (s Strategy) Oversamples() bool {
	return s == StrategySMOTE || s == StrategyADASYN
}

// ClassDistribution summarises label counts.
type ClassDistribution struct {
	Counts         map[string]int
	Percentages    map[string]float64
	Total          int
	ImbalanceRatio float64
	MajorityClass  string
	MinorityClass  string
	MajorityCount  int
	MinorityCount  int
	IsImbalanced   bool
	AnalyzedAt     time.Time
}

// Empty reports whether the distribution was computed over no rows.
func (d ClassDistribution) Empty() bool {
	return d.Total == 0
}

// BalancingReport compares class distributions before and after resampling.
type BalancingReport struct {
	Strategy           Strategy
	Before             ClassDistribution
	After              ClassDistribution
	RatioImprovement   float64
	ImprovementPercent float64
	SyntheticSamples   int
	DroppedSamples     int
	FellBack           bool
	FallbackReason     string
	CreatedAt          time.Time
}

// ImbalanceMetrics carries class weights and optional per-class quality scores.
type ImbalanceMetrics struct {
	Distribution      ClassDistribution
	ClassWeights      map[string]float64
	MinorityFrequency float64

	HasPredictions    bool
	WeightedPrecision float64
	WeightedRecall    float64
	WeightedF1        float64
	MacroPrecision    float64
	MacroRecall       float64
	MacroF1           float64
}
