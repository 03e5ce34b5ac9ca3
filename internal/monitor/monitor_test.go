package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miradorstack/mirador-engage/internal/cache"
	"github.com/miradorstack/mirador-engage/internal/models"
)

type fakeStore struct {
	records []models.PredictionRecord
	stats   models.PredictionStats
	err     error
	calls   int
}

func (f *fakeStore) PredictionsSince(_ context.Context, since time.Time) ([]models.PredictionRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.PredictionRecord, 0, len(f.records))
	for _, rec := range f.records {
		if rec.PredictedAt.After(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) Stats(context.Context, time.Time) (models.PredictionStats, error) {
	f.calls++
	return f.stats, f.err
}

func (f *fakeStore) HourlyStats(context.Context, time.Time) ([]models.HourlyStats, error) {
	f.calls++
	return nil, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scenarioRecords is 50 predictions: 40% very_low, 2% very_high, rest medium.
func scenarioRecords(now time.Time) []models.PredictionRecord {
	records := make([]models.PredictionRecord, 0, 50)
	add := func(n int, value float64) {
		for i := 0; i < n; i++ {
			records = append(records, models.PredictionRecord{
				Value:       value,
				PredictedAt: now.Add(-time.Duration(len(records)+1) * time.Minute),
			})
		}
	}
	add(20, 0.04)
	add(1, 0.55)
	add(29, 0.16)
	return records
}

func TestComputeSnapshotScenario(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	snap, err := ComputeSnapshot(scenarioRecords(now), 24*time.Hour, now, DefaultPolicy())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Count != 50 {
		t.Fatalf("expected 50 predictions, got %d", snap.Count)
	}
	if snap.StdDev >= 0.15 {
		t.Fatalf("expected low spread, got %v", snap.StdDev)
	}
	if got := snap.Band(models.BandVeryLow).Percentage; got != 40 {
		t.Fatalf("expected 40%% very_low, got %v", got)
	}
	if got := snap.Band(models.BandVeryHigh).Percentage; got != 2 {
		t.Fatalf("expected 2%% very_high, got %v", got)
	}
	if snap.HealthScore != 65 || snap.Status != models.HealthGood {
		t.Fatalf("expected 65/good, got %v/%s", snap.HealthScore, snap.Status)
	}
}

func TestComputeSnapshotExcludesOldRecords(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []models.PredictionRecord{
		{Value: 0.3, PredictedAt: now.Add(-time.Hour)},
		{Value: 0.9, PredictedAt: now.Add(-48 * time.Hour)},
	}
	snap, err := ComputeSnapshot(records, 24*time.Hour, now, DefaultPolicy())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Count != 1 || snap.Mean != 0.3 {
		t.Fatalf("expected only the recent record, got count=%d mean=%v", snap.Count, snap.Mean)
	}
	if _, err := ComputeSnapshot(records[1:], 24*time.Hour, now, DefaultPolicy()); !errors.Is(err, ErrNoPredictions) {
		t.Fatalf("expected ErrNoPredictions, got %v", err)
	}
}

func TestSnapshotOutOfRangeValues(t *testing.T) {
	snap, err := SnapshotFromValues([]float64{-1000, 1000, 0.3}, DefaultPolicy())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.OutOfRange != 2 {
		t.Fatalf("expected 2 out of range, got %d", snap.OutOfRange)
	}
	if snap.HealthScore < 0 || snap.HealthScore > 100 {
		t.Fatalf("score not clamped: %v", snap.HealthScore)
	}
}

func TestScoreIsClamped(t *testing.T) {
	generous := DefaultPolicy()
	generous.LowStdBonus = 1000
	if got := generous.Score(0, 20, 20); got != 100 {
		t.Fatalf("expected clamp to 100, got %v", got)
	}

	harsh := DefaultPolicy()
	harsh.HighStdPenalty = 1000
	if got := harsh.Score(1000, 0, 0); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}

	if got := DefaultPolicy().Score(0.2, 20, 20); got != 75 {
		t.Fatalf("expected 75 for mid spread with diversity, got %v", got)
	}
}

func TestPolicyStatus(t *testing.T) {
	p := DefaultPolicy()
	cases := map[float64]models.HealthStatus{
		100: models.HealthExcellent,
		80:  models.HealthExcellent,
		65:  models.HealthGood,
		40:  models.HealthFair,
		39:  models.HealthPoor,
	}
	for score, want := range cases {
		if got := p.Status(score); got != want {
			t.Fatalf("status(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := map[float64]models.EngagementBand{
		0:     models.BandVeryLow,
		0.049: models.BandVeryLow,
		0.05:  models.BandLow,
		0.10:  models.BandMedium,
		0.20:  models.BandHigh,
		0.50:  models.BandVeryHigh,
		1.0:   models.BandVeryHigh,
	}
	for v, want := range cases {
		got, ok := Classify(v)
		if !ok || got != want {
			t.Fatalf("classify(%v) = %s,%v want %s", v, got, ok, want)
		}
	}
	if _, ok := Classify(1.01); ok {
		t.Fatalf("expected 1.01 to be out of range")
	}
}

func TestDetectAnomaly(t *testing.T) {
	p := DefaultPolicy()

	atMean := DetectAnomaly(0.1, 0.1, 0.05, p)
	if atMean.ZScore != 0 || atMean.Severity != models.SeverityNormal || atMean.IsAnomaly {
		t.Fatalf("unexpected result at mean: %+v", atMean)
	}

	far := DetectAnomaly(0.1+5*0.05, 0.1, 0.05, p)
	if far.Severity != models.SeverityCritical || !far.IsAnomaly {
		t.Fatalf("expected critical anomaly, got %+v", far)
	}

	moderate := DetectAnomaly(0.1+2.5*0.05, 0.1, 0.05, p)
	if moderate.Severity != models.SeverityModerate || moderate.IsAnomaly {
		t.Fatalf("expected moderate non-anomaly, got %+v", moderate)
	}

	flat := DetectAnomaly(0.2, 0.2, 0, p)
	if flat.ZScore != 0 {
		t.Fatalf("expected zero z-score for zero spread, got %v", flat.ZScore)
	}
}

func TestMonitorSnapshotStoreUnavailable(t *testing.T) {
	store := &fakeStore{err: models.ErrStoreUnavailable}
	m := NewMonitor(quietLogger(), store, DefaultPolicy(), nil, 0)

	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if snap != nil {
		t.Fatalf("expected unknown health, got %+v", snap)
	}
}

func TestMonitorSnapshotOtherErrorsSurface(t *testing.T) {
	store := &fakeStore{err: errors.New("boom")}
	m := NewMonitor(quietLogger(), store, DefaultPolicy(), nil, 0)
	if _, err := m.Snapshot(context.Background()); err == nil {
		t.Fatalf("expected error to propagate")
	}
}

func TestMonitorSnapshotEmptyWindow(t *testing.T) {
	m := NewMonitor(quietLogger(), &fakeStore{}, DefaultPolicy(), nil, 0)
	snap, err := m.Snapshot(context.Background())
	if err != nil || snap != nil {
		t.Fatalf("expected nil snapshot for empty window, got %+v, %v", snap, err)
	}
}

func TestMonitorSnapshotCached(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{records: scenarioRecords(now)}
	m := NewMonitor(quietLogger(), store, DefaultPolicy(), cache.NewLRUProvider(8, time.Minute), time.Minute)

	first, err := m.Snapshot(context.Background())
	if err != nil || first == nil {
		t.Fatalf("snapshot: %+v, %v", first, err)
	}
	second, err := m.Snapshot(context.Background())
	if err != nil || second == nil {
		t.Fatalf("snapshot: %+v, %v", second, err)
	}
	if store.calls != 1 {
		t.Fatalf("expected one store call, got %d", store.calls)
	}
	if second.HealthScore != first.HealthScore {
		t.Fatalf("cached snapshot differs: %v vs %v", second.HealthScore, first.HealthScore)
	}

	m.Invalidate(context.Background())
	if _, err := m.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected store to be queried after invalidation, got %d calls", store.calls)
	}
}

func TestInvalidateDropsEveryCachedWindow(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{records: scenarioRecords(now)}
	m := NewMonitor(quietLogger(), store, DefaultPolicy(), cache.NewLRUProvider(8, time.Minute), time.Minute)
	ctx := context.Background()

	before, err := m.SnapshotWindow(ctx, time.Hour)
	if err != nil || before == nil {
		t.Fatalf("snapshot: %+v, %v", before, err)
	}
	if _, err := m.Snapshot(ctx); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	store.records = append(store.records, models.PredictionRecord{Value: 0.3, PredictedAt: now.Add(-30 * time.Second)})
	m.Invalidate(ctx)

	after, err := m.SnapshotWindow(ctx, time.Hour)
	if err != nil || after == nil {
		t.Fatalf("snapshot: %+v, %v", after, err)
	}
	if after.Count != before.Count+1 {
		t.Fatalf("expected 1h snapshot to see the new record, before=%d after=%d", before.Count, after.Count)
	}
	full, err := m.Snapshot(ctx)
	if err != nil || full == nil || full.Count != 51 {
		t.Fatalf("expected 51 records in the policy window, got %+v, %v", full, err)
	}
}

func TestMonitorZeroTTLSkipsCache(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeStore{records: scenarioRecords(now)}
	m := NewMonitor(quietLogger(), store, DefaultPolicy(), cache.NewLRUProvider(8, 5*time.Minute), 0)

	for i := 0; i < 2; i++ {
		if _, err := m.Snapshot(context.Background()); err != nil {
			t.Fatalf("snapshot: %v", err)
		}
	}
	if store.calls != 2 {
		t.Fatalf("expected every snapshot to hit the store, got %d calls", store.calls)
	}
}

func TestMonitorCheckPrediction(t *testing.T) {
	store := &fakeStore{stats: models.PredictionStats{Count: 10, Mean: 0.1, StdDev: 0.02}}
	m := NewMonitor(quietLogger(), store, DefaultPolicy(), nil, 0)

	result, err := m.CheckPrediction(context.Background(), 0.3)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result == nil || !result.IsAnomaly || result.Severity != models.SeverityCritical {
		t.Fatalf("expected critical anomaly, got %+v", result)
	}

	empty := NewMonitor(quietLogger(), &fakeStore{}, DefaultPolicy(), nil, 0)
	if result, _ := empty.CheckPrediction(context.Background(), 0.3); result != nil {
		t.Fatalf("expected no result without history, got %+v", result)
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("window: 6h\nlow_std_bonus: 30\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if p.Window != 6*time.Hour || p.LowStdBonus != 30 || p.HighStdPenalty != 15 {
		t.Fatalf("unexpected policy %+v", p)
	}

	missing, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || missing != DefaultPolicy() {
		t.Fatalf("expected defaults for missing file, got %+v, %v", missing, err)
	}
}
