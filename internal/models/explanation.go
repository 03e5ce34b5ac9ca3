package models

// KeyFactor is a feature that pushed a prediction up or down.
type KeyFactor struct {
	Name        string `json:"name" yaml:"name"`
	Impact      string `json:"impact" yaml:"impact"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Explanation is the human readable account of one prediction.
type Explanation struct {
	Prediction      float64     `json:"prediction"`
	Level           string      `json:"level"`
	Interpretation  string      `json:"interpretation,omitempty"`
	KeyFactors      []KeyFactor `json:"key_factors"`
	Recommendations []string    `json:"recommendations"`
}

// PredictionOutcome is everything produced while serving one prediction.
type PredictionOutcome struct {
	Record      PredictionRecord `json:"record"`
	Quality     QualityReport    `json:"quality"`
	Anomaly     *AnomalyResult   `json:"anomaly,omitempty"`
	Alerts      []Alert          `json:"alerts,omitempty"`
	Explanation *Explanation     `json:"explanation,omitempty"`
}
