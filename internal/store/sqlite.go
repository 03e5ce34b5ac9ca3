package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/miradorstack/mirador-engage/internal/balance"
	"github.com/miradorstack/mirador-engage/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	post_id TEXT,
	value REAL NOT NULL,
	model_version TEXT,
	processing_ns INTEGER NOT NULL DEFAULT 0,
	predicted_at INTEGER NOT NULL,
	features TEXT
);

CREATE INDEX IF NOT EXISTS idx_predictions_predicted_at ON predictions(predicted_at);

CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	severity TEXT NOT NULL,
	message TEXT NOT NULL,
	value REAL,
	prediction_id TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);

CREATE TABLE IF NOT EXISTS balancing_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy TEXT NOT NULL,
	counts_before TEXT NOT NULL,
	counts_after TEXT NOT NULL,
	synthetic INTEGER NOT NULL DEFAULT 0,
	dropped INTEGER NOT NULL DEFAULT 0,
	ratio_improvement REAL NOT NULL DEFAULT 0,
	improvement_pct REAL NOT NULL DEFAULT 0,
	fell_back BOOLEAN NOT NULL DEFAULT 0,
	fallback_reason TEXT,
	created_at INTEGER NOT NULL
);
`

const hourNanos = int64(time.Hour)

// SQLiteStore persists predictions, alerts and balancing reports. Query
// failures are reported as models.ErrStoreUnavailable.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("prediction store initialised", slog.String("path", path))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks that the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// AppendPrediction inserts rec, assigning an ID and timestamp when unset.
func (s *SQLiteStore) AppendPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.PredictedAt.IsZero() {
		rec.PredictedAt = time.Now().UTC()
	}

	var features sql.NullString
	if rec.Features != nil {
		raw, err := json.Marshal(rec.Features)
		if err != nil {
			return fmt.Errorf("encode features: %w", err)
		}
		features = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, post_id, value, model_version, processing_ns, predicted_at, features)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PostID, rec.Value, rec.ModelVersion, int64(rec.ProcessingTime), rec.PredictedAt.UnixNano(), features,
	)
	if err != nil {
		return unavailable("append prediction", err)
	}
	return nil
}

// PredictionsSince returns records predicted strictly after since, oldest first.
func (s *SQLiteStore) PredictionsSince(ctx context.Context, since time.Time) ([]models.PredictionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, value, model_version, processing_ns, predicted_at, features
		FROM predictions
		WHERE predicted_at > ?
		ORDER BY predicted_at ASC`, since.UnixNano())
	if err != nil {
		return nil, unavailable("query predictions", err)
	}
	defer rows.Close()

	records := make([]models.PredictionRecord, 0)
	for rows.Next() {
		var (
			rec          models.PredictionRecord
			postID       sql.NullString
			modelVersion sql.NullString
			processing   int64
			predictedAt  int64
			features     sql.NullString
		)
		if err := rows.Scan(&rec.ID, &postID, &rec.Value, &modelVersion, &processing, &predictedAt, &features); err != nil {
			return nil, unavailable("scan prediction", err)
		}
		rec.PostID = postID.String
		rec.ModelVersion = modelVersion.String
		rec.ProcessingTime = time.Duration(processing)
		rec.PredictedAt = time.Unix(0, predictedAt).UTC()
		if features.Valid && features.String != "" {
			var f models.PostFeatures
			if err := json.Unmarshal([]byte(features.String), &f); err != nil {
				s.logger.Warn("skipping undecodable features", slog.String("prediction_id", rec.ID), slog.Any("error", err))
			} else {
				rec.Features = &f
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate predictions", err)
	}
	return records, nil
}

// Stats aggregates predictions after since in a single query. StdDev is the
// population standard deviation.
func (s *SQLiteStore) Stats(ctx context.Context, since time.Time) (models.PredictionStats, error) {
	stats := models.PredictionStats{Since: since}
	var mean, minV, maxV, meanSq sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(value), MIN(value), MAX(value), AVG(value * value)
		FROM predictions
		WHERE predicted_at > ?`, since.UnixNano(),
	).Scan(&stats.Count, &mean, &minV, &maxV, &meanSq)
	if err != nil {
		return stats, unavailable("aggregate predictions", err)
	}
	if stats.Count == 0 {
		return stats, nil
	}
	stats.Mean = mean.Float64
	stats.Min = minV.Float64
	stats.Max = maxV.Float64
	stats.StdDev = math.Sqrt(math.Max(0, meanSq.Float64-mean.Float64*mean.Float64))
	return stats, nil
}

// HourlyStats groups predictions after since by UTC clock hour.
func (s *SQLiteStore) HourlyStats(ctx context.Context, since time.Time) ([]models.HourlyStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT predicted_at / ? AS bucket, COUNT(*), AVG(value), MIN(value), MAX(value)
		FROM predictions
		WHERE predicted_at > ?
		GROUP BY bucket
		ORDER BY bucket ASC`, hourNanos, since.UnixNano())
	if err != nil {
		return nil, unavailable("query hourly stats", err)
	}
	defer rows.Close()

	out := make([]models.HourlyStats, 0)
	for rows.Next() {
		var (
			bucket int64
			hs     models.HourlyStats
		)
		if err := rows.Scan(&bucket, &hs.Count, &hs.Mean, &hs.Min, &hs.Max); err != nil {
			return nil, unavailable("scan hourly stats", err)
		}
		hs.Hour = time.Unix(0, bucket*hourNanos).UTC()
		out = append(out, hs)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate hourly stats", err)
	}
	return out, nil
}

// StoreAlerts inserts alerts in one transaction.
func (s *SQLiteStore) StoreAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin alerts", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO alerts (id, type, severity, message, value, prediction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return unavailable("prepare alerts", err)
	}
	defer stmt.Close()

	for _, alert := range alerts {
		id := alert.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := alert.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx, id, string(alert.Type), string(alert.Severity), alert.Message, alert.Value, alert.PredictionID, created.UnixNano()); err != nil {
			return unavailable("insert alert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit alerts", err)
	}
	return nil
}

// Deliver lets the store act as an alert sink.
func (s *SQLiteStore) Deliver(ctx context.Context, alerts []models.Alert) error {
	return s.StoreAlerts(ctx, alerts)
}

// RecentAlerts returns up to limit of the newest persisted alerts, oldest first.
func (s *SQLiteStore) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, severity, message, value, prediction_id, created_at
		FROM (SELECT * FROM alerts ORDER BY created_at DESC LIMIT ?)
		ORDER BY created_at ASC`, limit)
	if err != nil {
		return nil, unavailable("query alerts", err)
	}
	defer rows.Close()

	out := make([]models.Alert, 0, limit)
	for rows.Next() {
		var (
			alert        models.Alert
			kind         string
			severity     string
			value        sql.NullFloat64
			predictionID sql.NullString
			created      int64
		)
		if err := rows.Scan(&alert.ID, &kind, &severity, &alert.Message, &value, &predictionID, &created); err != nil {
			return nil, unavailable("scan alert", err)
		}
		alert.Type = models.AlertType(kind)
		alert.Severity = models.Severity(severity)
		alert.Value = value.Float64
		alert.PredictionID = predictionID.String
		alert.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate alerts", err)
	}
	return out, nil
}

// StoreBalancingReport persists a report and returns its row id. Class
// distributions are stored as counts and derived again on read.
func (s *SQLiteStore) StoreBalancingReport(ctx context.Context, report models.BalancingReport) (int64, error) {
	before, err := json.Marshal(report.Before.Counts)
	if err != nil {
		return 0, fmt.Errorf("encode counts: %w", err)
	}
	after, err := json.Marshal(report.After.Counts)
	if err != nil {
		return 0, fmt.Errorf("encode counts: %w", err)
	}
	created := report.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO balancing_reports (strategy, counts_before, counts_after, synthetic, dropped,
			ratio_improvement, improvement_pct, fell_back, fallback_reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(report.Strategy), string(before), string(after), report.SyntheticSamples, report.DroppedSamples,
		finite(report.RatioImprovement), finite(report.ImprovementPercent), report.FellBack, report.FallbackReason, created.UnixNano(),
	)
	if err != nil {
		return 0, unavailable("insert balancing report", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("balancing report id", err)
	}
	return id, nil
}

// BalancingReports returns up to limit of the newest reports, newest first.
func (s *SQLiteStore) BalancingReports(ctx context.Context, limit int) ([]models.BalancingReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT strategy, counts_before, counts_after, synthetic, dropped,
			ratio_improvement, improvement_pct, fell_back, fallback_reason, created_at
		FROM balancing_reports
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("query balancing reports", err)
	}
	defer rows.Close()

	out := make([]models.BalancingReport, 0)
	for rows.Next() {
		var (
			report        models.BalancingReport
			strategy      string
			before, after string
			reason        sql.NullString
			created       int64
			beforeCounts  map[string]int
			afterCounts   map[string]int
		)
		if err := rows.Scan(&strategy, &before, &after, &report.SyntheticSamples, &report.DroppedSamples,
			&report.RatioImprovement, &report.ImprovementPercent, &report.FellBack, &reason, &created); err != nil {
			return nil, unavailable("scan balancing report", err)
		}
		if err := json.Unmarshal([]byte(before), &beforeCounts); err != nil {
			return nil, fmt.Errorf("decode counts: %w", err)
		}
		if err := json.Unmarshal([]byte(after), &afterCounts); err != nil {
			return nil, fmt.Errorf("decode counts: %w", err)
		}
		report.Strategy = models.Strategy(strategy)
		report.Before = balance.DistributionFromCounts(beforeCounts)
		report.After = balance.DistributionFromCounts(afterCounts)
		report.FallbackReason = reason.String
		report.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate balancing reports", err)
	}
	return out, nil
}

func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

func unavailable(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, models.ErrStoreUnavailable, err)
}
