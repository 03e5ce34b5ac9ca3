package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/miradorstack/mirador-engage/internal/alerts"
	"github.com/miradorstack/mirador-engage/internal/azure"
	"github.com/miradorstack/mirador-engage/internal/balance"
	"github.com/miradorstack/mirador-engage/internal/cache"
	"github.com/miradorstack/mirador-engage/internal/config"
	"github.com/miradorstack/mirador-engage/internal/engine"
	"github.com/miradorstack/mirador-engage/internal/export"
	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/monitor"
	"github.com/miradorstack/mirador-engage/internal/repo"
	"github.com/miradorstack/mirador-engage/internal/services"
	"github.com/miradorstack/mirador-engage/internal/store"
	"github.com/miradorstack/mirador-engage/internal/stream"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Cache       cache.Provider
	Store       *store.SQLiteStore
	Monitor     *monitor.Monitor
	Emitter     *stream.Emitter
	Alerts      *alerts.Manager
	Scoring     *repo.ScoringClient
	Rules       *engine.RuleEngine
	Performance *monitor.PerformanceMonitor
	Pipeline    *engine.Pipeline
}

// New opens the store and wires every component described by cfg. Optional
// backends that fail to start (event stream) are logged and replaced by
// no-ops.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	a.Cache = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		a.Cache = cache.NewLRUProvider(cfg.Cache.Size, max(cfg.Cache.SnapshotTTL, cfg.Cache.ScoreTTL))
	}

	if dir := filepath.Dir(cfg.Store.Path); dir != "." && cfg.Store.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	st, err := store.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}
	a.Store = st

	policy, err := monitor.LoadPolicy(cfg.Monitor.PolicyPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load health policy: %w", err)
	}
	if cfg.Monitor.PolicyPath == "" && cfg.Monitor.Window > 0 {
		policy.Window = cfg.Monitor.Window
	}
	a.Monitor = monitor.NewMonitor(logger, st, policy, a.Cache, cfg.Cache.SnapshotTTL)

	pub, err := stream.New(StreamConfig(cfg), logger)
	if err != nil {
		logger.Warn("event stream unavailable, events disabled", slog.String("backend", cfg.Stream.Backend), slog.Any("error", err))
		pub = stream.NoopPublisher{}
	}
	a.Emitter = stream.NewEmitter(pub, logger)

	sinks := alerts.MultiSink{alerts.LogSink{Logger: logger}, a.Emitter}
	if cfg.Alerts.Persist {
		sinks = append(sinks, st)
	}
	a.Alerts = alerts.NewManager(logger, sinks, alerts.Options{
		Capacity:        cfg.Alerts.Capacity,
		HealthThreshold: cfg.Alerts.HealthThreshold,
		HighEngagement:  alerts.Threshold(cfg.Alerts.HighEngagement),
		LowEngagement:   alerts.Threshold(cfg.Alerts.LowEngagement),
	})

	a.Scoring = repo.NewScoringClient(cfg.Scoring.BaseURL, cfg.Scoring.PredictPath, cfg.Scoring.HealthPath, cfg.Scoring.Timeout, a.Cache, cfg.Cache.ScoreTTL)
	a.Rules, err = engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load rule pack: %w", err)
	}
	a.Performance = monitor.NewPerformanceMonitor()
	a.Pipeline = engine.NewPipeline(logger, a.Scoring, st, a.Monitor, a.Alerts, a.Emitter, a.Rules, a.Performance)
	return a, nil
}

// BalancerOptions maps the balancing section onto balance.Options. An
// unknown strategy name is kept so the balancer falls back at run time.
func BalancerOptions(cfg *config.Config) balance.Options {
	strategy, _ := models.ParseStrategy(cfg.Balancing.Strategy)
	return balance.Options{
		Strategy:    strategy,
		K:           cfg.Balancing.K,
		Seed:        cfg.Balancing.Seed,
		TargetRatio: cfg.Balancing.TargetRatio,
	}
}

// StreamConfig maps the stream and azure sections onto stream.Config.
func StreamConfig(cfg *config.Config) stream.Config {
	return stream.Config{
		Backend: cfg.Stream.Backend,
		NATS: stream.NATSConfig{
			URL:           cfg.Stream.NATS.URL,
			Name:          cfg.Stream.NATS.Name,
			SubjectPrefix: cfg.Stream.NATS.SubjectPrefix,
			MaxReconnects: cfg.Stream.NATS.MaxReconnects,
		},
		Azure: stream.AzureQueueConfig{
			Credentials: Credentials(cfg),
			QueuePrefix: cfg.Azure.QueuePrefix,
		},
	}
}

// Credentials extracts the storage account credentials.
func Credentials(cfg *config.Config) azure.Credentials {
	return azure.Credentials{
		ConnectionString: cfg.Azure.ConnectionString,
		AccountName:      cfg.Azure.AccountName,
		AccountKey:       cfg.Azure.AccountKey,
	}
}

// Service builds the gRPC facade over the wired components.
func (a *App) Service() *services.EngagementService {
	checks := map[string]func(context.Context) error{
		"store": a.Store.Ping,
	}
	if a.Scoring.Configured() {
		checks["scoring"] = a.Scoring.Health
	}
	return services.NewEngagementService(a.Logger, services.Dependencies{
		Balancing:    BalancerOptions(a.Config),
		TestFraction: a.Config.Balancing.TestFraction,
		Pipeline:     a.Pipeline,
		Health:       a.Monitor,
		Alerts:       a.Alerts,
		AlertHistory: a.Store,
		Reports:      a.Store,
		Performance:  a.Performance,
		Checks:       checks,
	})
}

// Evaluator builds the periodic health evaluator.
func (a *App) Evaluator() *engine.Evaluator {
	return engine.NewEvaluator(a.Logger, a.Monitor, a.Alerts, a.Config.Monitor.EvaluateInterval)
}

// Exporter builds the dashboard exporter, uploading to blob storage when
// enabled and credentials are present.
func (a *App) Exporter() (*export.Exporter, error) {
	var uploader export.Uploader
	if a.Config.Export.Upload {
		blob, err := export.NewAzureBlobUploader(Credentials(a.Config), a.Config.Azure.ExportContainer)
		if err != nil {
			return nil, fmt.Errorf("blob uploader: %w", err)
		}
		uploader = blob
	}
	return export.NewExporter(a.Logger, a.Store, uploader), nil
}

// Close releases every component, joining their errors.
func (a *App) Close() error {
	var errs []error
	if a.Emitter != nil {
		errs = append(errs, a.Emitter.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	return errors.Join(errs...)
}
