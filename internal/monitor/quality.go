package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// CheckQuality validates a model input: required fields, score ranges and
// suspicious combinations. Warnings never make the input invalid.
func CheckQuality(features *models.PostFeatures, now time.Time) models.QualityReport {
	report := models.QualityReport{CheckedAt: now}
	if features == nil {
		report.Issues = append(report.Issues, "no input features provided")
		return report
	}

	required := []struct {
		name    string
		present bool
	}{
		{"platform", strings.TrimSpace(features.Platform) != ""},
		{"sentiment_score", features.SentimentScore != nil},
		{"sentiment_label", strings.TrimSpace(features.SentimentLabel) != ""},
		{"toxicity_score", features.ToxicityScore != nil},
		{"emotion_type", strings.TrimSpace(features.EmotionType) != ""},
	}
	for _, field := range required {
		if !field.present {
			report.Issues = append(report.Issues, "missing required field: "+field.name)
		}
	}

	if s := features.SentimentScore; s != nil && (*s < -1 || *s > 1) {
		report.Issues = append(report.Issues, fmt.Sprintf("sentiment score out of range: %g", *s))
	}
	if s := features.ToxicityScore; s != nil && (*s < 0 || *s > 1) {
		report.Issues = append(report.Issues, fmt.Sprintf("toxicity score out of range: %g", *s))
	}
	if features.SentimentScore != nil && features.ToxicityScore != nil &&
		*features.SentimentScore > 0.9 && *features.ToxicityScore > 0.7 {
		report.Warnings = append(report.Warnings, "high toxicity with high positive sentiment")
	}

	report.Valid = len(report.Issues) == 0
	return report
}
