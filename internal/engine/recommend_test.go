package engine

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v float64) *float64 { return &v }

func TestRuleEngineDefaults(t *testing.T) {
	engine, err := NewRuleEngine("", quietLogger())
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}

	features := &models.PostFeatures{
		Timestamp:            time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC), // Saturday
		Platform:             "instagram",
		SentimentScore:       ptr(-0.7),
		ToxicityScore:        ptr(0.4),
		UserEngagementGrowth: ptr(-0.1),
	}
	exp := engine.Explain(0.03, features)
	if exp.Level != "low engagement" {
		t.Fatalf("expected low engagement, got %q", exp.Level)
	}
	if len(exp.KeyFactors) != 2 || exp.KeyFactors[0].Name != "very negative sentiment" || exp.KeyFactors[1].Name != "low toxicity" {
		t.Fatalf("unexpected key factors %+v", exp.KeyFactors)
	}
	if exp.KeyFactors[0].Description != "score -0.70" {
		t.Fatalf("expected value substitution, got %q", exp.KeyFactors[0].Description)
	}
	want := []string{
		"Make it more positive: highlight benefits",
		"Reduce negative language and stay constructive",
		"Boost user engagement with more interactive content",
		"Weekend post: good timing for leisure users",
		"This content may underperform; consider major revisions",
	}
	if strings.Join(exp.Recommendations, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected recommendations %v", exp.Recommendations)
	}
}

func TestRuleEngineLevelsAndFallback(t *testing.T) {
	engine, err := NewRuleEngine("", nil)
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}
	cases := []struct {
		value float64
		level string
	}{
		{0.2, "very high engagement"},
		{0.12, "high engagement"},
		{0.07, "moderate engagement"},
		{0.02, "very low engagement"},
	}
	for _, tc := range cases {
		if got := engine.Explain(tc.value, nil).Level; got != tc.level {
			t.Fatalf("value %v: expected %q, got %q", tc.value, tc.level, got)
		}
	}

	exp := engine.Explain(0.2, &models.PostFeatures{SentimentScore: ptr(0.8), ToxicityScore: ptr(0.1)})
	if len(exp.Recommendations) != 1 || exp.Recommendations[0] != "Content looks good; keep a consistent posting schedule" {
		t.Fatalf("expected fallback recommendation, got %v", exp.Recommendations)
	}
	if got := engine.Explain(0.07, nil).Recommendations; len(got) != 1 || !strings.Contains(got[0], "hashtags") {
		t.Fatalf("expected moderate-band recommendation, got %v", got)
	}
}

func TestRuleEngineFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(`rules:
  - id: tiktok-trending
    match:
      platform: tiktok
      field: buzz_change_rate
      above: 5
    factor:
      name: trending on tiktok
      impact: positive
    recommendations: ["Post follow-ups while the topic trends"]
`), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	engine, err := NewRuleEngine(path, quietLogger())
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}
	exp := engine.Explain(0.3, &models.PostFeatures{Platform: "TikTok", BuzzChangeRate: ptr(12)})
	if len(exp.KeyFactors) != 1 || exp.KeyFactors[0].Name != "trending on tiktok" {
		t.Fatalf("unexpected factors %+v", exp.KeyFactors)
	}
	if len(exp.Recommendations) != 1 || exp.Recommendations[0] != "Post follow-ups while the topic trends" {
		t.Fatalf("unexpected recommendations %v", exp.Recommendations)
	}
	if exp.Level != "very high engagement" {
		t.Fatalf("expected built-in levels to remain, got %q", exp.Level)
	}

	exp = engine.Explain(0.3, &models.PostFeatures{Platform: "twitter", BuzzChangeRate: ptr(12)})
	if len(exp.KeyFactors) != 0 {
		t.Fatalf("platform mismatch should not match, got %+v", exp.KeyFactors)
	}
}

func TestRuleEngineMissingFile(t *testing.T) {
	engine, err := NewRuleEngine("non-existent.yaml", quietLogger())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if engine == nil || len(engine.rules) == 0 {
		t.Fatalf("expected built-in rules when file missing")
	}
}
