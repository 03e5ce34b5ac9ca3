package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/monitor"
)

type staticSource struct {
	records []models.PredictionRecord
}

func (s staticSource) PredictionsSince(context.Context, time.Time) ([]models.PredictionRecord, error) {
	return s.records, nil
}

type memoryUploader struct {
	blobs map[string]string
}

func (m *memoryUploader) Upload(_ context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.blobs[name] = string(data)
	return nil
}

func sampleRecords() []models.PredictionRecord {
	at := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	sentiment := 0.7
	return []models.PredictionRecord{
		{ID: "p1", Value: 0.04, PredictedAt: at, ProcessingTime: 20 * time.Millisecond,
			Features: &models.PostFeatures{Platform: "Instagram", SentimentScore: &sentiment}},
		{ID: "p2", Value: 0.3, PredictedAt: at.Add(time.Minute)},
		{ID: "p3", Value: 0.6, PredictedAt: at.Add(2 * time.Minute)},
	}
}

func TestWritePredictions(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePredictions(&buf, sampleRecords()); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "prediction_id,post_id,predicted_at") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	for _, want := range []string{"p1", "Monday", "very_low", "Instagram", "0.7", "20"} {
		if !strings.Contains(lines[1], want) {
			t.Fatalf("row %q missing %q", lines[1], want)
		}
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(sampleRecords())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Count != 3 || s.Min != 0.04 || s.Max != 0.6 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.P50 < s.Min || s.P50 > s.Max || s.P25 > s.P75 {
		t.Fatalf("percentiles out of order %+v", s)
	}
	if _, err := Summarize(nil); !errors.Is(err, monitor.ErrNoPredictions) {
		t.Fatalf("expected ErrNoPredictions, got %v", err)
	}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, s); err != nil {
		t.Fatalf("write summary: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "metric,value\ncount,3\n") {
		t.Fatalf("unexpected summary csv %q", buf.String())
	}
}

func TestExporterWritesAndUploads(t *testing.T) {
	uploader := &memoryUploader{blobs: map[string]string{}}
	e := NewExporter(slog.New(slog.NewTextHandler(io.Discard, nil)), staticSource{records: sampleRecords()}, uploader)
	e.now = func() time.Time { return time.Date(2024, 3, 4, 16, 0, 0, 0, time.UTC) }

	dir := t.TempDir()
	result, err := e.Export(context.Background(), dir, time.Hour)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Rows != 3 || len(result.Uploaded) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.HasSuffix(result.PredictionsPath, "predictions_20240304_160000.csv") {
		t.Fatalf("unexpected path %s", result.PredictionsPath)
	}
	if _, err := os.Stat(result.SummaryPath); err != nil {
		t.Fatalf("summary not written: %v", err)
	}
	if !strings.Contains(uploader.blobs["summary_20240304_160000.csv"], "count,3") {
		t.Fatalf("summary blob missing content: %v", uploader.blobs)
	}
}

func TestExporterEmptyWindow(t *testing.T) {
	e := NewExporter(nil, staticSource{}, nil)
	if _, err := e.Export(context.Background(), t.TempDir(), time.Hour); !errors.Is(err, monitor.ErrNoPredictions) {
		t.Fatalf("expected ErrNoPredictions, got %v", err)
	}
}
