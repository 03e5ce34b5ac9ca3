package engine

import (
	"errors"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// RuleEngine turns a prediction and its input features into an explanation.
type RuleEngine struct {
	levels   []Level
	rules    []Rule
	fallback []string
	logger   *slog.Logger
}

// Level maps a prediction floor to a label and interpretation.
type Level struct {
	Above          float64 `yaml:"above"`
	Name           string  `yaml:"name"`
	Interpretation string  `yaml:"interpretation"`
}

// Rule represents a single explanation rule.
type Rule struct {
	ID              string            `yaml:"id"`
	Match           RuleMatch         `yaml:"match"`
	Factor          *models.KeyFactor `yaml:"factor"`
	Recommendations []string          `yaml:"recommendations"`
}

// RuleMatch defines optional attributes for rule matching. All set
// attributes must hold.
type RuleMatch struct {
	Field    string   `yaml:"field"`
	Above    *float64 `yaml:"above"`
	AtLeast  *float64 `yaml:"at_least"`
	Below    *float64 `yaml:"below"`
	Platform string   `yaml:"platform"`
	Weekend  bool     `yaml:"weekend"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Levels   []Level  `yaml:"levels"`
	Rules    []Rule   `yaml:"rules"`
	Fallback []string `yaml:"fallback"`
}

const fieldPrediction = "prediction"

// NewRuleEngine loads rules from path. An empty or missing path yields the
// built-in rule pack.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := DefaultRules()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Info("rule pack not found, using built-in rules", slog.String("path", path))
		case err != nil:
			return nil, err
		default:
			var file RuleConfigFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return nil, err
			}
			if len(file.Levels) > 0 {
				cfg.Levels = file.Levels
			}
			if len(file.Rules) > 0 {
				cfg.Rules = file.Rules
			}
			if len(file.Fallback) > 0 {
				cfg.Fallback = file.Fallback
			}
		}
	}

	levels := append([]Level(nil), cfg.Levels...)
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Above > levels[j].Above })
	return &RuleEngine{levels: levels, rules: cfg.Rules, fallback: cfg.Fallback, logger: logger}, nil
}

// Explain produces the level, key factors and recommendations for a prediction.
func (e *RuleEngine) Explain(prediction float64, features *models.PostFeatures) models.Explanation {
	out := models.Explanation{Prediction: prediction, KeyFactors: []models.KeyFactor{}, Recommendations: []string{}}
	if e == nil {
		return out
	}
	for _, level := range e.levels {
		if prediction > level.Above {
			out.Level = level.Name
			out.Interpretation = level.Interpretation
			break
		}
	}
	if out.Level == "" && len(e.levels) > 0 {
		last := e.levels[len(e.levels)-1]
		out.Level, out.Interpretation = last.Name, last.Interpretation
	}

	for _, rule := range e.rules {
		value, ok := rule.Match.matches(prediction, features)
		if !ok {
			continue
		}
		if rule.Factor != nil {
			factor := *rule.Factor
			factor.Description = strings.ReplaceAll(factor.Description, "{value}", strconv.FormatFloat(value, 'f', 2, 64))
			out.KeyFactors = append(out.KeyFactors, factor)
		}
		out.Recommendations = appendUnique(out.Recommendations, rule.Recommendations...)
	}
	if len(out.Recommendations) == 0 {
		out.Recommendations = appendUnique(out.Recommendations, e.fallback...)
	}
	return out
}

func (m RuleMatch) matches(prediction float64, features *models.PostFeatures) (float64, bool) {
	if m.Platform != "" && (features == nil || !strings.EqualFold(m.Platform, features.Platform)) {
		return 0, false
	}
	if m.Weekend {
		if features == nil || features.Timestamp.IsZero() {
			return 0, false
		}
		if day := features.Timestamp.Weekday(); day != time.Saturday && day != time.Sunday {
			return 0, false
		}
	}
	if m.Field == "" {
		return 0, true
	}
	value, ok := fieldValue(m.Field, prediction, features)
	if !ok {
		return 0, false
	}
	if m.Above != nil && !(value > *m.Above) {
		return value, false
	}
	if m.AtLeast != nil && value < *m.AtLeast {
		return value, false
	}
	if m.Below != nil && !(value < *m.Below) {
		return value, false
	}
	return value, true
}

func fieldValue(field string, prediction float64, features *models.PostFeatures) (float64, bool) {
	if field == fieldPrediction {
		return prediction, true
	}
	if features == nil {
		return 0, false
	}
	var v *float64
	switch field {
	case "sentiment_score":
		v = features.SentimentScore
	case "toxicity_score":
		v = features.ToxicityScore
	case "user_engagement_growth":
		v = features.UserEngagementGrowth
	case "user_past_sentiment_avg":
		v = features.UserPastSentimentAvg
	case "buzz_change_rate":
		v = features.BuzzChangeRate
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
