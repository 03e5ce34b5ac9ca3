package engine

import "github.com/miradorstack/mirador-engage/internal/models"

func bound(v float64) *float64 { return &v }

// DefaultRules is the built-in rule pack used when no file is configured.
func DefaultRules() RuleConfigFile {
	return RuleConfigFile{
		Levels: []Level{
			{Above: 0.15, Name: "very high engagement", Interpretation: "Strong potential: several factors align for good engagement."},
			{Above: 0.10, Name: "high engagement", Interpretation: "Strong potential: several factors align for good engagement."},
			{Above: 0.05, Name: "moderate engagement", Interpretation: "Decent potential; a few tweaks could improve it."},
			{Above: 0.02, Name: "low engagement", Interpretation: "May struggle. Revisit sentiment, tone or timing."},
			{Above: -1, Name: "very low engagement", Interpretation: "At risk of poor engagement. Major changes recommended."},
		},
		Rules: []Rule{
			{
				ID:     "positive-sentiment",
				Match:  RuleMatch{Field: "sentiment_score", Above: bound(0.5)},
				Factor: &models.KeyFactor{Name: "very positive sentiment", Impact: "positive", Description: "score {value}"},
			},
			{
				ID:     "negative-sentiment",
				Match:  RuleMatch{Field: "sentiment_score", Below: bound(-0.5)},
				Factor: &models.KeyFactor{Name: "very negative sentiment", Impact: "negative", Description: "score {value}"},
			},
			{
				ID:              "sentiment-below-zero",
				Match:           RuleMatch{Field: "sentiment_score", Below: bound(0)},
				Recommendations: []string{"Make it more positive: highlight benefits"},
			},
			{
				ID:     "high-toxicity",
				Match:  RuleMatch{Field: "toxicity_score", Above: bound(0.5)},
				Factor: &models.KeyFactor{Name: "high toxicity", Impact: "negative", Description: "score {value}"},
			},
			{
				ID:     "low-toxicity",
				Match:  RuleMatch{Field: "toxicity_score", Below: bound(0.5)},
				Factor: &models.KeyFactor{Name: "low toxicity", Impact: "positive", Description: "clean, friendly content"},
			},
			{
				ID:              "toxic-language",
				Match:           RuleMatch{Field: "toxicity_score", Above: bound(0.3)},
				Recommendations: []string{"Reduce negative language and stay constructive"},
			},
			{
				ID:     "growth",
				Match:  RuleMatch{Field: "user_engagement_growth", Above: bound(0.2)},
				Factor: &models.KeyFactor{Name: "strong engagement growth", Impact: "positive", Description: "growth {value}"},
			},
			{
				ID:              "declining-growth",
				Match:           RuleMatch{Field: "user_engagement_growth", Below: bound(0)},
				Recommendations: []string{"Boost user engagement with more interactive content"},
			},
			{
				ID:     "trending",
				Match:  RuleMatch{Field: "buzz_change_rate", Above: bound(10)},
				Factor: &models.KeyFactor{Name: "trending topic", Impact: "positive", Description: "buzz change {value}%"},
			},
			{
				ID:              "weekend",
				Match:           RuleMatch{Weekend: true},
				Recommendations: []string{"Weekend post: good timing for leisure users"},
			},
			{
				ID:              "underperform",
				Match:           RuleMatch{Field: fieldPrediction, Below: bound(0.05)},
				Recommendations: []string{"This content may underperform; consider major revisions"},
			},
			{
				ID:              "add-elements",
				Match:           RuleMatch{Field: fieldPrediction, AtLeast: bound(0.05), Below: bound(0.10)},
				Recommendations: []string{"Add engaging elements such as hashtags or mentions"},
			},
		},
		Fallback: []string{"Content looks good; keep a consistent posting schedule"},
	}
}
