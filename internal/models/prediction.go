package models

import "time"

// PostFeatures is the model input for a single social media post. Numeric
// fields are pointers so that missing values can be told apart from zero.
type PostFeatures struct {
	Timestamp            time.Time `json:"timestamp"`
	Platform             string    `json:"platform"`
	Language             string    `json:"language,omitempty"`
	TextContent          string    `json:"text_content,omitempty"`
	Hashtags             string    `json:"hashtags,omitempty"`
	Mentions             string    `json:"mentions,omitempty"`
	Keywords             string    `json:"keywords,omitempty"`
	TopicCategory        string    `json:"topic_category,omitempty"`
	SentimentScore       *float64  `json:"sentiment_score,omitempty"`
	SentimentLabel       string    `json:"sentiment_label,omitempty"`
	EmotionType          string    `json:"emotion_type,omitempty"`
	ToxicityScore        *float64  `json:"toxicity_score,omitempty"`
	CampaignName         string    `json:"campaign_name,omitempty"`
	CampaignPhase        string    `json:"campaign_phase,omitempty"`
	UserPastSentimentAvg *float64  `json:"user_past_sentiment_avg,omitempty"`
	UserEngagementGrowth *float64  `json:"user_engagement_growth,omitempty"`
	BuzzChangeRate       *float64  `json:"buzz_change_rate,omitempty"`
}

// PredictionRecord is a stored engagement prediction.
type PredictionRecord struct {
	ID             string
	PostID         string
	Value          float64
	ModelVersion   string
	ProcessingTime time.Duration
	PredictedAt    time.Time
	Features       *PostFeatures
}

// PredictionStats are aggregate statistics over a window of predictions.
type PredictionStats struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Window time.Duration
	Since  time.Time
}

// HourlyStats aggregates predictions falling in one clock hour.
type HourlyStats struct {
	Hour  time.Time
	Count int
	Mean  float64
	Min   float64
	Max   float64
}
