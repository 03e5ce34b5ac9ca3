package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/montanaflynn/stats"

	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/monitor"
)

type predictionRow struct {
	ID               string  `csv:"prediction_id"`
	PostID           string  `csv:"post_id"`
	PredictedAt      string  `csv:"predicted_at"`
	Date             string  `csv:"date"`
	Hour             int     `csv:"hour"`
	DayOfWeek        string  `csv:"day_of_week"`
	Value            float64 `csv:"predicted_engagement"`
	Band             string  `csv:"engagement_band"`
	ModelVersion     string  `csv:"model_version"`
	ProcessingTimeMs float64 `csv:"processing_time_ms"`
	Platform         string  `csv:"platform"`
	TopicCategory    string  `csv:"topic_category"`
	SentimentLabel   string  `csv:"sentiment_label"`
	SentimentScore   string  `csv:"sentiment_score"`
	ToxicityScore    string  `csv:"toxicity_score"`
	EmotionType      string  `csv:"emotion_type"`
	CampaignName     string  `csv:"campaign_name"`
}

type summaryRow struct {
	Metric string  `csv:"metric"`
	Value  float64 `csv:"value"`
}

// WritePredictions writes one row per prediction in a flat, dashboard
// friendly layout.
func WritePredictions(w io.Writer, records []models.PredictionRecord) error {
	rows := make([]*predictionRow, 0, len(records))
	for _, rec := range records {
		at := rec.PredictedAt.UTC()
		row := &predictionRow{
			ID:               rec.ID,
			PostID:           rec.PostID,
			PredictedAt:      at.Format(time.RFC3339),
			Date:             at.Format("2006-01-02"),
			Hour:             at.Hour(),
			DayOfWeek:        at.Weekday().String(),
			Value:            rec.Value,
			ModelVersion:     rec.ModelVersion,
			ProcessingTimeMs: float64(rec.ProcessingTime) / float64(time.Millisecond),
		}
		if band, ok := monitor.Classify(rec.Value); ok {
			row.Band = string(band)
		}
		if f := rec.Features; f != nil {
			row.Platform = f.Platform
			row.TopicCategory = f.TopicCategory
			row.SentimentLabel = f.SentimentLabel
			row.SentimentScore = formatOptional(f.SentimentScore)
			row.ToxicityScore = formatOptional(f.ToxicityScore)
			row.EmotionType = f.EmotionType
			row.CampaignName = f.CampaignName
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(&rows, w)
}

// Summary holds descriptive statistics of prediction values. StdDev is the
// sample standard deviation.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	P25    float64
	P50    float64
	P75    float64
	Max    float64
}

// Summarize describes the prediction values. An empty input yields
// monitor.ErrNoPredictions.
func Summarize(records []models.PredictionRecord) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, monitor.ErrNoPredictions
	}
	data := make(stats.Float64Data, len(records))
	for i, rec := range records {
		data[i] = rec.Value
	}

	s := Summary{Count: len(data)}
	s.Mean, _ = stats.Mean(data)
	s.Min, _ = stats.Min(data)
	s.Max, _ = stats.Max(data)
	if len(data) > 1 {
		s.StdDev, _ = stats.StandardDeviationSample(data)
	}
	var err error
	if s.P25, err = percentile(data, 25); err != nil {
		return s, err
	}
	if s.P50, err = percentile(data, 50); err != nil {
		return s, err
	}
	if s.P75, err = percentile(data, 75); err != nil {
		return s, err
	}
	return s, nil
}

// WriteSummary writes Summary as metric/value rows.
func WriteSummary(w io.Writer, s Summary) error {
	rows := []*summaryRow{
		{Metric: "count", Value: float64(s.Count)},
		{Metric: "mean", Value: s.Mean},
		{Metric: "std", Value: s.StdDev},
		{Metric: "min", Value: s.Min},
		{Metric: "25%", Value: s.P25},
		{Metric: "50%", Value: s.P50},
		{Metric: "75%", Value: s.P75},
		{Metric: "max", Value: s.Max},
	}
	return gocsv.Marshal(&rows, w)
}

// percentile tolerates inputs too small for the library's bounds check by
// falling back to the nearest value.
func percentile(data stats.Float64Data, p float64) (float64, error) {
	if len(data) == 1 {
		return data[0], nil
	}
	v, err := stats.Percentile(data, p)
	if err == nil {
		return v, nil
	}
	v, err = stats.PercentileNearestRank(data, p)
	if err != nil {
		return 0, fmt.Errorf("percentile %.0f: %w", p, err)
	}
	return v, nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
