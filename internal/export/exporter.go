package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
)

// PredictionSource supplies the predictions to export.
type PredictionSource interface {
	PredictionsSince(ctx context.Context, since time.Time) ([]models.PredictionRecord, error)
}

// Result lists the files an export produced.
type Result struct {
	PredictionsPath string
	SummaryPath     string
	Rows            int
	Uploaded        []string
}

// Exporter writes prediction and summary CSVs and optionally uploads them.
type Exporter struct {
	source   PredictionSource
	uploader Uploader
	logger   *slog.Logger
	now      func() time.Time
}

// NewExporter constructs an Exporter; uploader may be nil.
func NewExporter(logger *slog.Logger, source PredictionSource, uploader Uploader) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{source: source, uploader: uploader, logger: logger, now: time.Now}
}

// Export writes the predictions of the last window into dir.
func (e *Exporter) Export(ctx context.Context, dir string, window time.Duration) (Result, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	now := e.now().UTC()
	records, err := e.source.PredictionsSince(ctx, now.Add(-window))
	if err != nil {
		return Result{}, err
	}
	summary, err := Summarize(records)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}
	stamp := now.Format("20060102_150405")
	result := Result{
		PredictionsPath: filepath.Join(dir, fmt.Sprintf("predictions_%s.csv", stamp)),
		SummaryPath:     filepath.Join(dir, fmt.Sprintf("summary_%s.csv", stamp)),
		Rows:            len(records),
	}

	if err := writeFile(result.PredictionsPath, func(f *os.File) error { return WritePredictions(f, records) }); err != nil {
		return result, err
	}
	if err := writeFile(result.SummaryPath, func(f *os.File) error { return WriteSummary(f, summary) }); err != nil {
		return result, err
	}
	e.logger.Info("export written",
		slog.String("predictions", result.PredictionsPath),
		slog.String("summary", result.SummaryPath),
		slog.Int("rows", result.Rows),
	)

	if e.uploader == nil {
		return result, nil
	}
	for _, path := range []string{result.PredictionsPath, result.SummaryPath} {
		name := filepath.Base(path)
		if err := uploadFile(ctx, e.uploader, name, path); err != nil {
			return result, err
		}
		result.Uploaded = append(result.Uploaded, name)
	}
	e.logger.Info("export uploaded", slog.Int("files", len(result.Uploaded)))
	return result, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func uploadFile(ctx context.Context, uploader Uploader, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return uploader.Upload(ctx, name, f)
}
