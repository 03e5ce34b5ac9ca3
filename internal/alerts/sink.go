package alerts

import (
	"context"
	"errors"
	"log/slog"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// Sink delivers alerts to a notification channel.
type Sink interface {
	Deliver(ctx context.Context, alerts []models.Alert) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, alerts []models.Alert) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, alerts []models.Alert) error {
	return f(ctx, alerts)
}

// LogSink writes alerts to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Deliver implements Sink.
func (s LogSink) Deliver(ctx context.Context, alerts []models.Alert) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, alert := range alerts {
		level := slog.LevelInfo
		switch alert.Severity {
		case models.SeverityWarning, models.SeverityModerate:
			level = slog.LevelWarn
		case models.SeverityHigh, models.SeverityCritical:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "alert raised",
			slog.String("alert_id", alert.ID),
			slog.String("type", string(alert.Type)),
			slog.String("severity", string(alert.Severity)),
			slog.String("message", alert.Message),
		)
	}
	return nil
}

// MultiSink fans alerts out to every sink and joins their errors.
type MultiSink []Sink

// Deliver implements Sink.
func (m MultiSink) Deliver(ctx context.Context, alerts []models.Alert) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Deliver(ctx, alerts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
