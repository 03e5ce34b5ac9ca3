package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
)

const (
	// SubjectPredictions carries one event per stored prediction.
	SubjectPredictions = "predictions"
	// SubjectAlerts carries one event per raised alert.
	SubjectAlerts = "alerts"
)

// Publisher hands opaque payloads to a messaging backend.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// NoopPublisher drops everything.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }

func (NoopPublisher) Close() error { return nil }

// Config selects and configures the backend.
type Config struct {
	Backend string // "none", "nats" or "azure-queue"
	NATS    NATSConfig
	Azure   AzureQueueConfig
}

// New builds the publisher named by cfg.Backend.
func New(cfg Config, logger *slog.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return NoopPublisher{}, nil
	case "nats":
		return NewNATSPublisher(cfg.NATS, logger)
	case "azure-queue", "azure":
		return NewAzureQueuePublisher(cfg.Azure, logger)
	default:
		return nil, fmt.Errorf("unknown stream backend %q", cfg.Backend)
	}
}

// Event is the JSON envelope written to every backend.
type Event struct {
	Kind       string          `json:"kind"`
	ID         string          `json:"id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type predictionPayload struct {
	PostID           string               `json:"post_id,omitempty"`
	Value            float64              `json:"value"`
	ModelVersion     string               `json:"model_version,omitempty"`
	ProcessingTimeMs float64              `json:"processing_time_ms"`
	Features         *models.PostFeatures `json:"features,omitempty"`
}

// Emitter encodes domain events and publishes them. Publish failures are
// returned to the caller, which decides whether they matter.
type Emitter struct {
	pub    Publisher
	logger *slog.Logger
}

// NewEmitter wraps pub; a nil pub drops all events.
func NewEmitter(pub Publisher, logger *slog.Logger) *Emitter {
	if pub == nil {
		pub = NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{pub: pub, logger: logger}
}

// PredictionMade publishes a stored prediction.
func (e *Emitter) PredictionMade(ctx context.Context, rec models.PredictionRecord) error {
	payload := predictionPayload{
		PostID:           rec.PostID,
		Value:            rec.Value,
		ModelVersion:     rec.ModelVersion,
		ProcessingTimeMs: float64(rec.ProcessingTime) / float64(time.Millisecond),
		Features:         rec.Features,
	}
	return e.emit(ctx, SubjectPredictions, "prediction", rec.ID, rec.PredictedAt, payload)
}

// Deliver publishes alerts, making the emitter usable as an alert sink.
func (e *Emitter) Deliver(ctx context.Context, alerts []models.Alert) error {
	for _, alert := range alerts {
		if err := e.emit(ctx, SubjectAlerts, "alert", alert.ID, alert.CreatedAt, alert); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying publisher.
func (e *Emitter) Close() error {
	return e.pub.Close()
}

func (e *Emitter) emit(ctx context.Context, subject, kind, id string, at time.Time, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	body, err := json.Marshal(Event{Kind: kind, ID: id, OccurredAt: at, Payload: raw})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}
	if err := e.pub.Publish(ctx, subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	e.logger.Debug("event published", slog.String("subject", subject), slog.String("id", id))
	return nil
}
