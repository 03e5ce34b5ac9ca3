package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-engage/internal/alerts"
	"github.com/miradorstack/mirador-engage/internal/api"
	"github.com/miradorstack/mirador-engage/internal/balance"
	"github.com/miradorstack/mirador-engage/internal/engine"
	"github.com/miradorstack/mirador-engage/internal/metrics"
	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/monitor"
	"github.com/miradorstack/mirador-engage/internal/repo"
	"github.com/miradorstack/mirador-engage/internal/utils"
)

// HealthSource is the read side of the health monitor.
type HealthSource interface {
	SnapshotWindow(ctx context.Context, window time.Duration) (*models.HealthSnapshot, error)
	Hourly(ctx context.Context, hours int) ([]models.HourlyStats, error)
	CheckPrediction(ctx context.Context, value float64) (*models.AnomalyResult, error)
}

// ReportStore persists balancing reports.
type ReportStore interface {
	StoreBalancingReport(ctx context.Context, report models.BalancingReport) (int64, error)
}

// AlertHistory reads persisted alerts.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error)
}

// Dependencies wires the service to its collaborators. Any field may be
// nil; the matching RPCs then answer FailedPrecondition.
type Dependencies struct {
	Balancing    balance.Options
	TestFraction float64
	Pipeline     *engine.Pipeline
	Health       HealthSource
	Alerts       *alerts.Manager
	AlertHistory AlertHistory
	Reports      ReportStore
	Performance  *monitor.PerformanceMonitor
	// Checks are probed by HealthCheck, keyed by component name.
	Checks map[string]func(context.Context) error
}

// EngagementService implements api.EngagementServer.
type EngagementService struct {
	logger *slog.Logger
	deps   Dependencies
	now    func() time.Time
}

var _ api.EngagementServer = (*EngagementService)(nil)

// NewEngagementService constructs the service facade.
func NewEngagementService(logger *slog.Logger, deps Dependencies) *EngagementService {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.TestFraction <= 0 || deps.TestFraction >= 1 {
		deps.TestFraction = 0.2
	}
	return &EngagementService{logger: logger, deps: deps, now: time.Now}
}

// AnalyzeImbalance returns the class distribution of the supplied labels.
func (s *EngagementService) AnalyzeImbalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in api.AnalyzeRequest
	if err := api.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	dist, err := balance.Analyze(in.Labels)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(api.ToDistributionMessage(dist))
}

// BalanceDataset resamples the supplied dataset.
func (s *EngagementService) BalanceDataset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in api.BalanceRequest
	if err := api.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ds, err := api.FromDatasetMessage(in.Dataset)
	if err != nil {
		return nil, toStatus(err)
	}

	b := s.balancer(in)
	out, report, err := b.Balance(ds)
	if err != nil {
		metrics.ObserveBalancing(string(b.Options().Strategy), metrics.OutcomeError, 0)
		return nil, toStatus(err)
	}
	s.recordReport(ctx, report)
	return encode(api.BalanceResponse{Dataset: api.ToDatasetMessage(out), Report: api.ToReportMessage(report)})
}

// SplitDataset splits the dataset and balances only the training partition.
func (s *EngagementService) SplitDataset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in api.SplitRequest
	if err := api.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ds, err := api.FromDatasetMessage(in.Dataset)
	if err != nil {
		return nil, toStatus(err)
	}
	fraction := in.TestFraction
	if fraction == 0 {
		fraction = s.deps.TestFraction
	}

	b := s.balancer(in.BalanceRequest)
	result, err := balance.SplitAndBalance(ds, fraction, b)
	if err != nil {
		return nil, toStatus(err)
	}
	s.recordReport(ctx, result.Report)

	testDist, err := balance.Analyze(result.Test.Labels)
	if err != nil && !errors.Is(err, models.ErrEmptyDataset) {
		return nil, toStatus(err)
	}
	return encode(api.SplitResponse{
		Train:            api.ToDatasetMessage(result.Train),
		Test:             api.ToDatasetMessage(result.Test),
		TrainUnbalanced:  result.TrainUnbalanced,
		TestDistribution: api.ToDistributionMessage(testDist),
		Report:           api.ToReportMessage(result.Report),
		Note:             result.Note,
	})
}

// Predict scores a post through the prediction pipeline.
func (s *EngagementService) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Pipeline == nil {
		return nil, status.Error(codes.FailedPrecondition, "prediction pipeline not configured")
	}
	var in api.PredictRequest
	if err := api.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	outcome, err := s.deps.Pipeline.Predict(ctx, engine.PredictRequest{PostID: in.PostID, Features: in.Features})
	if err != nil {
		s.logger.Warn("prediction failed", slog.String("post_id", in.PostID), slog.Any("error", err))
		return nil, toStatus(err)
	}
	return encode(api.ToPredictResponse(outcome))
}

// GetHealth returns the health snapshot and optional hourly aggregates.
func (s *EngagementService) GetHealth(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Health == nil {
		return nil, status.Error(codes.FailedPrecondition, "health monitor not configured")
	}
	var in api.HealthRequest
	if err := api.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.WindowHours < 0 || in.HourlyHours < 0 {
		return nil, status.Error(codes.InvalidArgument, "window must not be negative")
	}

	window := utils.HoursToDuration(in.WindowHours)
	snap, err := s.deps.Health.SnapshotWindow(ctx, window)
	if err != nil {
		s.logger.Error("health snapshot failed", slog.Any("error", err))
		return nil, toStatus(err)
	}
	resp := api.HealthResponse{Available: snap != nil, Snapshot: api.ToSnapshotMessage(snap)}
	if in.HourlyHours > 0 {
		hours, err := s.deps.Health.Hourly(ctx, in.HourlyHours)
		if err != nil {
			s.logger.Warn("hourly stats failed", slog.Any("error", err))
		} else {
			resp.Hourly = api.ToHourlyMessages(hours)
		}
	}
	return encode(resp)
}

// DetectAnomaly grades a value against the current window.
func (s *EngagementService) DetectAnomaly(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Health == nil {
		return nil, status.Error(codes.FailedPrecondition, "health monitor not configured")
	}
	var in api.AnomalyRequest
	if err := api.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	result, err := s.deps.Health.CheckPrediction(ctx, in.Value)
	if err != nil {
		return nil, toStatus(err)
	}
	if result != nil && result.IsAnomaly {
		metrics.ObserveAnomaly(string(result.Severity))
	}
	return encode(api.AnomalyResponse{Available: result != nil, Anomaly: api.ToAnomalyMessage(result)})
}

// CheckDataQuality validates a model input and raises a data quality alert
// when issues are found.
func (s *EngagementService) CheckDataQuality(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in api.QualityRequest
	if err := api.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	report := monitor.CheckQuality(in.Features, s.now().UTC())
	if s.deps.Alerts != nil {
		s.deps.Alerts.CheckThresholds(ctx, nil, &report)
	}
	return encode(api.ToQualityMessage(report))
}

// RecentAlerts lists alerts from memory or from the store.
func (s *EngagementService) RecentAlerts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in api.AlertsRequest
	if err := api.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if in.Limit <= 0 {
		in.Limit = 50
	}

	var list []models.Alert
	switch {
	case in.Persisted:
		if s.deps.AlertHistory == nil {
			return nil, status.Error(codes.FailedPrecondition, "alert history not configured")
		}
		stored, err := s.deps.AlertHistory.RecentAlerts(ctx, in.Limit)
		if err != nil {
			return nil, toStatus(err)
		}
		list = stored
	case s.deps.Alerts != nil:
		list = s.deps.Alerts.Recent(in.Limit)
	default:
		return nil, status.Error(codes.FailedPrecondition, "alert manager not configured")
	}
	if list == nil {
		list = []models.Alert{}
	}
	return encode(api.AlertsResponse{Alerts: list})
}

// GetPerformance reports serving throughput and latency.
func (s *EngagementService) GetPerformance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Performance == nil {
		return nil, status.Error(codes.FailedPrecondition, "performance monitor not configured")
	}
	return encode(api.ToPerformanceMessage(s.deps.Performance.Stats()))
}

// GetImbalanceMetrics computes class weights and optional prediction scores.
func (s *EngagementService) GetImbalanceMetrics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in api.MetricsRequest
	if err := api.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	m, err := balance.ComputeMetrics(in.Labels, in.Predicted)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(api.ToMetricsMessage(m))
}

// HealthCheck probes the configured components.
func (s *EngagementService) HealthCheck(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp := api.HealthCheckResponse{Status: "SERVING"}
	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.deps.Checks[name](ctx); err != nil {
			if resp.Components == nil {
				resp.Components = make(map[string]string)
			}
			resp.Components[name] = err.Error()
			resp.Status = "DEGRADED"
		}
	}
	return encode(resp)
}

func (s *EngagementService) balancer(in api.BalanceRequest) *balance.Balancer {
	opts := s.deps.Balancing
	if in.Strategy != "" {
		// Unknown names fall through to the balancer, which falls back.
		strategy, _ := models.ParseStrategy(in.Strategy)
		opts.Strategy = strategy
	}
	if in.K > 0 {
		opts.K = in.K
	}
	if in.Seed != 0 {
		opts.Seed = in.Seed
	}
	if in.TargetRatio > 0 {
		opts.TargetRatio = in.TargetRatio
	}
	return balance.New(s.logger, opts)
}

func (s *EngagementService) recordReport(ctx context.Context, report models.BalancingReport) {
	outcome := metrics.OutcomeSuccess
	if report.FellBack {
		outcome = metrics.OutcomeFallback
	}
	metrics.ObserveBalancing(string(report.Strategy), outcome, report.SyntheticSamples)

	if s.deps.Reports == nil {
		return
	}
	if _, err := s.deps.Reports.StoreBalancingReport(ctx, report); err != nil {
		s.logger.Warn("persist balancing report failed", slog.Any("error", err))
	}
}

func encode(v any) (*structpb.Struct, error) {
	out, err := api.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrInvalidDataset),
		errors.Is(err, models.ErrInvalidFraction),
		errors.Is(err, models.ErrEmptyDataset),
		errors.Is(err, models.ErrUnknownStrategy),
		errors.Is(err, models.ErrInvalidFeatures):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, models.ErrInsufficientSamples),
		errors.Is(err, repo.ErrScoringNotConfigured):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, fmt.Sprintf("internal error: %v", err))
	}
}
