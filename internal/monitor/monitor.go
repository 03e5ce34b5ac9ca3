package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/miradorstack/mirador-engage/internal/cache"
	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/utils"
)

// Store is the read side of the prediction store used by the monitor.
type Store interface {
	PredictionsSince(ctx context.Context, since time.Time) ([]models.PredictionRecord, error)
	Stats(ctx context.Context, since time.Time) (models.PredictionStats, error)
	HourlyStats(ctx context.Context, since time.Time) ([]models.HourlyStats, error)
}

// Monitor computes health snapshots and anomaly checks over recent predictions.
type Monitor struct {
	logger   *slog.Logger
	store    Store
	policy   Policy
	cache    cache.Provider
	cacheTTL time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cached map[time.Duration]struct{}
}

// NewMonitor constructs a Monitor. A nil cache or a non-positive cacheTTL
// disables snapshot caching.
func NewMonitor(logger *slog.Logger, store Store, policy Policy, cacheProvider cache.Provider, cacheTTL time.Duration) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if policy.Window <= 0 {
		policy.Window = DefaultPolicy().Window
	}
	return &Monitor{
		logger:   logger,
		store:    store,
		policy:   policy,
		cache:    cacheProvider,
		cacheTTL: cacheTTL,
		now:      time.Now,
		cached:   make(map[time.Duration]struct{}),
	}
}

// Policy returns the scoring policy in use.
func (m *Monitor) Policy() Policy {
	return m.policy
}

// Snapshot returns the health of the configured window. A nil snapshot with
// a nil error means health is unknown: the store was unavailable or the
// window was empty.
func (m *Monitor) Snapshot(ctx context.Context) (*models.HealthSnapshot, error) {
	return m.SnapshotWindow(ctx, m.policy.Window)
}

// SnapshotWindow is Snapshot over an explicit window.
func (m *Monitor) SnapshotWindow(ctx context.Context, window time.Duration) (*models.HealthSnapshot, error) {
	if window <= 0 {
		window = m.policy.Window
	}
	key := snapshotKey(window)

	if m.cacheTTL > 0 {
		var cached models.HealthSnapshot
		if err := cache.GetJSON(ctx, m.cache, key, &cached); err == nil {
			return &cached, nil
		}
	}

	if m.store == nil {
		m.logger.Warn("prediction store not configured, health unknown")
		return nil, nil
	}

	now := m.now().UTC()
	records, err := m.store.PredictionsSince(ctx, utils.WindowStart(now, window))
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			m.logger.Warn("prediction store unavailable, health unknown", slog.Any("error", err))
			return nil, nil
		}
		return nil, err
	}

	snap, err := ComputeSnapshot(records, window, now, m.policy)
	if err != nil {
		if errors.Is(err, ErrNoPredictions) {
			m.logger.Debug("no predictions in window", slog.Duration("window", window))
			return nil, nil
		}
		return nil, err
	}

	if m.cacheTTL > 0 {
		if err := cache.SetJSON(ctx, m.cache, key, snap, m.cacheTTL); err != nil {
			m.logger.Debug("cache health snapshot failed", slog.Any("error", err))
		} else {
			m.mu.Lock()
			m.cached[window] = struct{}{}
			m.mu.Unlock()
		}
	}
	return &snap, nil
}

// CheckPrediction grades value against the window statistics. It returns nil
// when there is no history to compare against.
func (m *Monitor) CheckPrediction(ctx context.Context, value float64) (*models.AnomalyResult, error) {
	if m.store == nil {
		return nil, nil
	}
	stats, err := m.store.Stats(ctx, utils.WindowStart(m.now().UTC(), m.policy.Window))
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			m.logger.Warn("prediction store unavailable, skipping anomaly check", slog.Any("error", err))
			return nil, nil
		}
		return nil, err
	}
	if stats.Count == 0 {
		return nil, nil
	}
	result := DetectAnomaly(value, stats.Mean, stats.StdDev, m.policy)
	return &result, nil
}

// Hourly returns per-hour aggregates for the last hours hours.
func (m *Monitor) Hourly(ctx context.Context, hours int) ([]models.HourlyStats, error) {
	if m.store == nil {
		return nil, nil
	}
	if hours <= 0 {
		hours = int(m.policy.Window / time.Hour)
	}
	since := utils.WindowStart(m.now().UTC(), time.Duration(hours)*time.Hour)
	out, err := m.store.HourlyStats(ctx, since)
	if err != nil && errors.Is(err, models.ErrStoreUnavailable) {
		m.logger.Warn("prediction store unavailable, hourly stats skipped", slog.Any("error", err))
		return nil, nil
	}
	return out, err
}

// Invalidate drops every cached snapshot, typically after a write.
func (m *Monitor) Invalidate(ctx context.Context) {
	m.mu.Lock()
	windows := make([]time.Duration, 0, len(m.cached)+1)
	windows = append(windows, m.policy.Window)
	for w := range m.cached {
		if w != m.policy.Window {
			windows = append(windows, w)
		}
	}
	clear(m.cached)
	m.mu.Unlock()

	for _, w := range windows {
		if err := m.cache.Del(ctx, snapshotKey(w)); err != nil {
			m.logger.Debug("drop cached snapshot failed", slog.Duration("window", w), slog.Any("error", err))
		}
	}
}

func snapshotKey(window time.Duration) string {
	return fmt.Sprintf("health:%s", window)
}
