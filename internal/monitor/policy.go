package monitor

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// Policy holds the tunable constants of health scoring and anomaly grading.
type Policy struct {
	Window time.Duration `yaml:"window"`

	BaseScore        float64 `yaml:"base_score"`
	LowStdThreshold  float64 `yaml:"low_std_threshold"`
	LowStdBonus      float64 `yaml:"low_std_bonus"`
	HighStdThreshold float64 `yaml:"high_std_threshold"`
	HighStdPenalty   float64 `yaml:"high_std_penalty"`

	// Both very_low and very_high shares must fall strictly inside
	// (DiversityLower, DiversityUpper) percent to earn the bonus.
	DiversityLower   float64 `yaml:"diversity_lower"`
	DiversityUpper   float64 `yaml:"diversity_upper"`
	DiversityBonus   float64 `yaml:"diversity_bonus"`
	DiversityPenalty float64 `yaml:"diversity_penalty"`

	ExcellentAt float64 `yaml:"excellent_at"`
	GoodAt      float64 `yaml:"good_at"`
	FairAt      float64 `yaml:"fair_at"`

	AnomalyZ  float64 `yaml:"anomaly_z"`
	CriticalZ float64 `yaml:"critical_z"`
	HighZ     float64 `yaml:"high_z"`
	ModerateZ float64 `yaml:"moderate_z"`
}

// DefaultPolicy returns the stock scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		Window:           24 * time.Hour,
		BaseScore:        50,
		LowStdThreshold:  0.15,
		LowStdBonus:      25,
		HighStdThreshold: 0.40,
		HighStdPenalty:   15,
		DiversityLower:   5,
		DiversityUpper:   35,
		DiversityBonus:   25,
		DiversityPenalty: 10,
		ExcellentAt:      80,
		GoodAt:           60,
		FairAt:           40,
		AnomalyZ:         3,
		CriticalZ:        4,
		HighZ:            3,
		ModerateZ:        2,
	}
}

// LoadPolicy reads a YAML policy file over the defaults. An empty path or a
// missing file yields DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return policy, nil
		}
		return policy, err
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return DefaultPolicy(), fmt.Errorf("parse policy: %w", err)
	}
	if policy.Window <= 0 {
		policy.Window = DefaultPolicy().Window
	}
	return policy, nil
}

// Status maps a score to its label.
func (p Policy) Status(score float64) models.HealthStatus {
	switch {
	case score >= p.ExcellentAt:
		return models.HealthExcellent
	case score >= p.GoodAt:
		return models.HealthGood
	case score >= p.FairAt:
		return models.HealthFair
	default:
		return models.HealthPoor
	}
}

// Score applies the policy to a window's spread and extreme-band shares. The
// result is clamped to [0,100].
func (p Policy) Score(stdDev, veryLowPct, veryHighPct float64) float64 {
	score := p.BaseScore
	switch {
	case stdDev < p.LowStdThreshold:
		score += p.LowStdBonus
	case stdDev > p.HighStdThreshold:
		score -= p.HighStdPenalty
	}
	if p.diverse(veryLowPct) && p.diverse(veryHighPct) {
		score += p.DiversityBonus
	} else {
		score -= p.DiversityPenalty
	}
	return clamp(score, 0, 100)
}

func (p Policy) diverse(pct float64) bool {
	return pct > p.DiversityLower && pct < p.DiversityUpper
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
