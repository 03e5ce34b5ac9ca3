package balance

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/utils"
)

const (
	// DefaultK is the neighbour count used by the synthetic strategies.
	DefaultK = 5
	// DefaultSeed makes balancing reproducible when no seed is configured.
	DefaultSeed int64 = 42
)

// Options configures a Balancer.
type Options struct {
	Strategy    models.Strategy
	K           int
	Seed        int64
	TargetRatio float64
}

// Balancer resamples labelled datasets and keeps the last BalancingReport.
type Balancer struct {
	logger *slog.Logger
	opts   Options

	mu   sync.Mutex
	last *models.BalancingReport
}

// New constructs a Balancer, filling unset options with defaults.
func New(logger *slog.Logger, opts Options) *Balancer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Strategy == "" {
		opts.Strategy = models.StrategySMOTE
	}
	if opts.K <= 0 {
		opts.K = DefaultK
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	if opts.TargetRatio < 1 {
		opts.TargetRatio = 1
	}
	return &Balancer{logger: logger, opts: opts}
}

// Options returns the effective configuration.
func (b *Balancer) Options() Options {
	return b.opts
}

// WithStrategy returns a Balancer sharing this one's options except strategy.
func (b *Balancer) WithStrategy(strategy models.Strategy) *Balancer {
	opts := b.opts
	opts.Strategy = strategy
	return New(b.logger, opts)
}

// Balance resamples ds according to the configured strategy. Recoverable
// failures (too few neighbours, empty input, unknown strategy) are logged and
// the original rows are returned with a report marked FellBack. Malformed
// input is returned as an error.
func (b *Balancer) Balance(ds models.Dataset) (models.Dataset, models.BalancingReport, error) {
	report := models.BalancingReport{Strategy: b.opts.Strategy, CreatedAt: time.Now().UTC()}

	if err := ds.Validate(); err != nil {
		return ds, report, utils.NewAppError("balance", "invalid dataset", err)
	}

	before, err := Analyze(ds.Labels)
	if err != nil {
		report = withFallback(report, before, err)
		return b.fallback(ds, report, err), report, nil
	}
	report.Before = before

	rng := rand.New(rand.NewSource(b.opts.Seed))
	out, synthetic, dropped, err := b.resample(ds, rng)
	if err != nil {
		if !utils.Degradable(err) {
			return ds, report, err
		}
		report = withFallback(report, before, err)
		return b.fallback(ds, report, err), report, nil
	}

	after, err := Analyze(out.Labels)
	if err != nil {
		report = withFallback(report, before, err)
		return b.fallback(ds, report, err), report, nil
	}
	report.After = after
	report.SyntheticSamples = synthetic
	report.DroppedSamples = dropped
	report.RatioImprovement, report.ImprovementPercent = improvement(before.ImbalanceRatio, after.ImbalanceRatio)

	b.remember(report)
	b.logReport(report)
	return out, report, nil
}

// LastReport returns the report of the most recent Balance call.
func (b *Balancer) LastReport() (models.BalancingReport, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return models.BalancingReport{}, false
	}
	return *b.last, true
}

func (b *Balancer) resample(ds models.Dataset, rng *rand.Rand) (models.Dataset, int, int, error) {
	switch b.opts.Strategy {
	case models.StrategyNone:
		return ds.Clone(), 0, 0, nil
	case models.StrategySMOTE:
		out, synthetic, err := oversampleSMOTE(ds, b.opts.K, b.opts.TargetRatio, rng)
		return out, synthetic, 0, err
	case models.StrategyADASYN:
		out, synthetic, err := oversampleADASYN(ds, b.opts.K, b.opts.TargetRatio, rng)
		return out, synthetic, 0, err
	case models.StrategyUndersample:
		target := int(math.Floor(float64(minorityCount(ds.IndicesByClass())) * b.opts.TargetRatio))
		out, dropped := undersample(ds, target, rng)
		return out, 0, dropped, nil
	case models.StrategyCombined:
		reduced, dropped := undersample(ds, meanCount(ds.IndicesByClass()), rng)
		out, synthetic, err := oversampleSMOTE(reduced, b.opts.K, b.opts.TargetRatio, rng)
		return out, synthetic, dropped, err
	default:
		return models.Dataset{}, 0, 0, fmt.Errorf("%w: %q", models.ErrUnknownStrategy, b.opts.Strategy)
	}
}

func (b *Balancer) fallback(ds models.Dataset, report models.BalancingReport, err error) models.Dataset {
	b.logger.Warn("balancing failed, returning original data",
		slog.String("strategy", string(b.opts.Strategy)),
		slog.Int("samples", ds.Len()),
		slog.Any("error", err),
	)
	b.remember(report)
	return ds
}

func (b *Balancer) remember(report models.BalancingReport) {
	b.mu.Lock()
	b.last = &report
	b.mu.Unlock()
}

func (b *Balancer) logReport(report models.BalancingReport) {
	b.logger.Info("dataset balanced",
		slog.String("strategy", string(report.Strategy)),
		slog.Int("samples_before", report.Before.Total),
		slog.Int("samples_after", report.After.Total),
		slog.Float64("ratio_before", report.Before.ImbalanceRatio),
		slog.Float64("ratio_after", report.After.ImbalanceRatio),
		slog.Float64("improvement_pct", report.ImprovementPercent),
		slog.Int("synthetic", report.SyntheticSamples),
		slog.Int("dropped", report.DroppedSamples),
	)
}

// withFallback marks report as a no-op: the after distribution equals before.
func withFallback(report models.BalancingReport, before models.ClassDistribution, err error) models.BalancingReport {
	report.Before = before
	report.After = before
	report.FellBack = true
	report.FallbackReason = err.Error()
	return report
}

func improvement(before, after float64) (float64, float64) {
	if math.IsInf(before, 0) || math.IsInf(after, 0) {
		return 0, 0
	}
	delta := before - after
	if before == 0 {
		return delta, 0
	}
	return delta, delta / before * 100
}
