package api

import (
	"fmt"
	"math"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// DatasetMessage is a labelled feature matrix.
type DatasetMessage struct {
	FeatureNames []string    `json:"feature_names,omitempty"`
	Features     [][]float64 `json:"features"`
	Labels       []string    `json:"labels"`
}

// AnalyzeRequest asks for the class distribution of labels.
type AnalyzeRequest struct {
	Labels []string `json:"labels"`
}

// BalanceRequest resamples a dataset. Zero values take the server defaults.
type BalanceRequest struct {
	Dataset     DatasetMessage `json:"dataset"`
	Strategy    string         `json:"strategy,omitempty"`
	K           int            `json:"k,omitempty"`
	Seed        int64          `json:"seed,omitempty"`
	TargetRatio float64        `json:"target_ratio,omitempty"`
}

// BalanceResponse carries the resampled rows and the report.
type BalanceResponse struct {
	Dataset DatasetMessage `json:"dataset"`
	Report  ReportMessage  `json:"report"`
}

// SplitRequest splits a dataset and balances the training partition.
type SplitRequest struct {
	BalanceRequest
	TestFraction float64 `json:"test_fraction,omitempty"`
}

// SplitResponse carries both partitions.
type SplitResponse struct {
	Train            DatasetMessage      `json:"train"`
	Test             DatasetMessage      `json:"test"`
	TrainUnbalanced  int                 `json:"train_unbalanced"`
	TestDistribution DistributionMessage `json:"test_distribution"`
	Report           ReportMessage       `json:"report"`
	Note             string              `json:"note"`
}

// DistributionMessage is a ClassDistribution. Unbounded is set when the
// minority count is zero and the ratio is infinite.
type DistributionMessage struct {
	Counts         map[string]int     `json:"counts"`
	Percentages    map[string]float64 `json:"percentages"`
	Total          int                `json:"total"`
	ImbalanceRatio float64            `json:"imbalance_ratio"`
	Unbounded      bool               `json:"unbounded,omitempty"`
	MajorityClass  string             `json:"majority_class"`
	MinorityClass  string             `json:"minority_class"`
	IsImbalanced   bool               `json:"is_imbalanced"`
	AnalyzedAt     time.Time          `json:"analyzed_at"`
}

// ReportMessage is a BalancingReport.
type ReportMessage struct {
	Strategy           string              `json:"strategy"`
	Before             DistributionMessage `json:"before"`
	After              DistributionMessage `json:"after"`
	RatioImprovement   float64             `json:"ratio_improvement"`
	ImprovementPercent float64             `json:"improvement_percent"`
	SyntheticSamples   int                 `json:"synthetic_samples"`
	DroppedSamples     int                 `json:"dropped_samples"`
	FellBack           bool                `json:"fell_back"`
	FallbackReason     string              `json:"fallback_reason,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// PredictRequest scores one post.
type PredictRequest struct {
	PostID   string              `json:"post_id,omitempty"`
	Features models.PostFeatures `json:"features"`
}

// PredictionMessage is a stored prediction.
type PredictionMessage struct {
	ID               string    `json:"id"`
	PostID           string    `json:"post_id,omitempty"`
	Value            float64   `json:"value"`
	ModelVersion     string    `json:"model_version,omitempty"`
	ProcessingTimeMs float64   `json:"processing_time_ms"`
	PredictedAt      time.Time `json:"predicted_at"`
}

// PredictResponse is the outcome of a prediction.
type PredictResponse struct {
	Prediction  PredictionMessage   `json:"prediction"`
	Quality     QualityMessage      `json:"quality"`
	Anomaly     *AnomalyMessage     `json:"anomaly,omitempty"`
	Alerts      []models.Alert      `json:"alerts"`
	Explanation *models.Explanation `json:"explanation,omitempty"`
}

// HealthRequest selects the snapshot window. Zero uses the server policy.
type HealthRequest struct {
	WindowHours float64 `json:"window_hours,omitempty"`
	HourlyHours int     `json:"hourly_hours,omitempty"`
}

// BandMessage is one engagement band.
type BandMessage struct {
	Band       string  `json:"band"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// SnapshotMessage is a HealthSnapshot.
type SnapshotMessage struct {
	WindowHours  float64       `json:"window_hours"`
	Count        int           `json:"count"`
	Mean         float64       `json:"mean"`
	StdDev       float64       `json:"std_dev"`
	Min          float64       `json:"min"`
	Max          float64       `json:"max"`
	Distribution []BandMessage `json:"distribution"`
	OutOfRange   int           `json:"out_of_range"`
	HealthScore  float64       `json:"health_score"`
	Status       string        `json:"status"`
	ComputedAt   time.Time     `json:"computed_at"`
}

// HourlyMessage is one hourly aggregate.
type HourlyMessage struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
	Mean  float64   `json:"mean"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
}

// HealthResponse reports Available=false when there are no predictions or
// the store cannot be reached.
type HealthResponse struct {
	Available bool             `json:"available"`
	Snapshot  *SnapshotMessage `json:"snapshot,omitempty"`
	Hourly    []HourlyMessage  `json:"hourly,omitempty"`
}

// AnomalyRequest grades a single value.
type AnomalyRequest struct {
	Value float64 `json:"value"`
}

// AnomalyMessage is an AnomalyResult.
type AnomalyMessage struct {
	Value     float64 `json:"value"`
	ZScore    float64 `json:"z_score"`
	Deviation float64 `json:"deviation"`
	IsAnomaly bool    `json:"is_anomaly"`
	Severity  string  `json:"severity"`
}

// AnomalyResponse reports Available=false when there is no history.
type AnomalyResponse struct {
	Available bool            `json:"available"`
	Anomaly   *AnomalyMessage `json:"anomaly,omitempty"`
}

// QualityRequest validates a model input.
type QualityRequest struct {
	Features *models.PostFeatures `json:"features"`
}

// QualityMessage is a QualityReport.
type QualityMessage struct {
	Valid     bool      `json:"valid"`
	Issues    []string  `json:"issues"`
	Warnings  []string  `json:"warnings"`
	CheckedAt time.Time `json:"checked_at"`
}

// AlertsRequest lists recent alerts. Persisted reads the store rather than
// the in-memory ring.
type AlertsRequest struct {
	Limit     int  `json:"limit,omitempty"`
	Persisted bool `json:"persisted,omitempty"`
}

// AlertsResponse lists alerts oldest first.
type AlertsResponse struct {
	Alerts []models.Alert `json:"alerts"`
}

// PerformanceMessage is PerformanceStats.
type PerformanceMessage struct {
	UptimeSeconds        float64 `json:"uptime_seconds"`
	TotalPredictions     int64   `json:"total_predictions"`
	PredictionsPerSecond float64 `json:"predictions_per_second"`
	LatencyP50Ms         float64 `json:"latency_p50_ms"`
	LatencyP95Ms         float64 `json:"latency_p95_ms"`
	LatencyMeanMs        float64 `json:"latency_mean_ms"`
	Status               string  `json:"status"`
}

// MetricsRequest computes imbalance metrics; Predicted is optional.
type MetricsRequest struct {
	Labels    []string `json:"labels"`
	Predicted []string `json:"predicted,omitempty"`
}

// MetricsMessage is ImbalanceMetrics.
type MetricsMessage struct {
	Distribution      DistributionMessage `json:"distribution"`
	ClassWeights      map[string]float64  `json:"class_weights"`
	MinorityFrequency float64             `json:"minority_frequency"`
	HasPredictions    bool                `json:"has_predictions"`
	WeightedPrecision float64             `json:"weighted_precision,omitempty"`
	WeightedRecall    float64             `json:"weighted_recall,omitempty"`
	WeightedF1        float64             `json:"weighted_f1,omitempty"`
	MacroPrecision    float64             `json:"macro_precision,omitempty"`
	MacroRecall       float64             `json:"macro_recall,omitempty"`
	MacroF1           float64             `json:"macro_f1,omitempty"`
}

// HealthCheckResponse reports serving state and per-component errors.
type HealthCheckResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// FromDatasetMessage maps a request dataset into the domain type.
func FromDatasetMessage(msg DatasetMessage) (models.Dataset, error) {
	ds := models.Dataset{
		FeatureNames: append([]string(nil), msg.FeatureNames...),
		Features:     msg.Features,
		Labels:       append([]string(nil), msg.Labels...),
	}
	if err := ds.Validate(); err != nil {
		return models.Dataset{}, fmt.Errorf("dataset: %w", err)
	}
	return ds, nil
}

// ToDatasetMessage converts a domain dataset.
func ToDatasetMessage(ds models.Dataset) DatasetMessage {
	features := ds.Features
	if features == nil {
		features = [][]float64{}
	}
	labels := ds.Labels
	if labels == nil {
		labels = []string{}
	}
	return DatasetMessage{FeatureNames: ds.FeatureNames, Features: features, Labels: labels}
}

// ToDistributionMessage converts a class distribution.
func ToDistributionMessage(d models.ClassDistribution) DistributionMessage {
	msg := DistributionMessage{
		Counts:         d.Counts,
		Percentages:    d.Percentages,
		Total:          d.Total,
		ImbalanceRatio: d.ImbalanceRatio,
		MajorityClass:  d.MajorityClass,
		MinorityClass:  d.MinorityClass,
		IsImbalanced:   d.IsImbalanced,
		AnalyzedAt:     d.AnalyzedAt,
	}
	if math.IsInf(d.ImbalanceRatio, 0) || math.IsNaN(d.ImbalanceRatio) {
		msg.ImbalanceRatio = 0
		msg.Unbounded = true
	}
	if msg.Counts == nil {
		msg.Counts = map[string]int{}
	}
	if msg.Percentages == nil {
		msg.Percentages = map[string]float64{}
	}
	return msg
}

// ToReportMessage converts a balancing report.
func ToReportMessage(r models.BalancingReport) ReportMessage {
	return ReportMessage{
		Strategy:           string(r.Strategy),
		Before:             ToDistributionMessage(r.Before),
		After:              ToDistributionMessage(r.After),
		RatioImprovement:   finite(r.RatioImprovement),
		ImprovementPercent: finite(r.ImprovementPercent),
		SyntheticSamples:   r.SyntheticSamples,
		DroppedSamples:     r.DroppedSamples,
		FellBack:           r.FellBack,
		FallbackReason:     r.FallbackReason,
		CreatedAt:          r.CreatedAt,
	}
}

// ToPredictResponse converts a pipeline outcome.
func ToPredictResponse(o models.PredictionOutcome) PredictResponse {
	resp := PredictResponse{
		Prediction:  ToPredictionMessage(o.Record),
		Quality:     ToQualityMessage(o.Quality),
		Anomaly:     ToAnomalyMessage(o.Anomaly),
		Alerts:      o.Alerts,
		Explanation: o.Explanation,
	}
	if resp.Alerts == nil {
		resp.Alerts = []models.Alert{}
	}
	return resp
}

// ToPredictionMessage converts a prediction record.
func ToPredictionMessage(rec models.PredictionRecord) PredictionMessage {
	return PredictionMessage{
		ID:               rec.ID,
		PostID:           rec.PostID,
		Value:            rec.Value,
		ModelVersion:     rec.ModelVersion,
		ProcessingTimeMs: durationMs(rec.ProcessingTime),
		PredictedAt:      rec.PredictedAt,
	}
}

// ToSnapshotMessage converts a health snapshot; nil stays nil.
func ToSnapshotMessage(s *models.HealthSnapshot) *SnapshotMessage {
	if s == nil {
		return nil
	}
	msg := &SnapshotMessage{
		WindowHours:  s.Window.Hours(),
		Count:        s.Count,
		Mean:         s.Mean,
		StdDev:       s.StdDev,
		Min:          s.Min,
		Max:          s.Max,
		Distribution: make([]BandMessage, 0, len(s.Distribution)),
		OutOfRange:   s.OutOfRange,
		HealthScore:  s.HealthScore,
		Status:       string(s.Status),
		ComputedAt:   s.ComputedAt,
	}
	for _, b := range s.Distribution {
		msg.Distribution = append(msg.Distribution, BandMessage{
			Band:       string(b.Band),
			Lower:      b.Lower,
			Upper:      b.Upper,
			Count:      b.Count,
			Percentage: b.Percentage,
		})
	}
	return msg
}

// ToHourlyMessages converts hourly aggregates.
func ToHourlyMessages(hours []models.HourlyStats) []HourlyMessage {
	out := make([]HourlyMessage, 0, len(hours))
	for _, h := range hours {
		out = append(out, HourlyMessage{Hour: h.Hour, Count: h.Count, Mean: h.Mean, Min: h.Min, Max: h.Max})
	}
	return out
}

// ToAnomalyMessage converts an anomaly result; nil stays nil.
func ToAnomalyMessage(a *models.AnomalyResult) *AnomalyMessage {
	if a == nil {
		return nil
	}
	return &AnomalyMessage{
		Value:     a.Value,
		ZScore:    finite(a.ZScore),
		Deviation: a.Deviation,
		IsAnomaly: a.IsAnomaly,
		Severity:  string(a.Severity),
	}
}

// ToQualityMessage converts a quality report.
func ToQualityMessage(q models.QualityReport) QualityMessage {
	msg := QualityMessage{Valid: q.Valid, Issues: q.Issues, Warnings: q.Warnings, CheckedAt: q.CheckedAt}
	if msg.Issues == nil {
		msg.Issues = []string{}
	}
	if msg.Warnings == nil {
		msg.Warnings = []string{}
	}
	return msg
}

// ToPerformanceMessage converts serving statistics.
func ToPerformanceMessage(p models.PerformanceStats) PerformanceMessage {
	return PerformanceMessage{
		UptimeSeconds:        p.Uptime.Seconds(),
		TotalPredictions:     p.TotalPredictions,
		PredictionsPerSecond: p.PredictionsPerSecond,
		LatencyP50Ms:         durationMs(p.LatencyP50),
		LatencyP95Ms:         durationMs(p.LatencyP95),
		LatencyMeanMs:        durationMs(p.LatencyMean),
		Status:               p.Status,
	}
}

// ToMetricsMessage converts imbalance metrics.
func ToMetricsMessage(m models.ImbalanceMetrics) MetricsMessage {
	return MetricsMessage{
		Distribution:      ToDistributionMessage(m.Distribution),
		ClassWeights:      m.ClassWeights,
		MinorityFrequency: m.MinorityFrequency,
		HasPredictions:    m.HasPredictions,
		WeightedPrecision: m.WeightedPrecision,
		WeightedRecall:    m.WeightedRecall,
		WeightedF1:        m.WeightedF1,
		MacroPrecision:    m.MacroPrecision,
		MacroRecall:       m.MacroRecall,
		MacroF1:           m.MacroF1,
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
