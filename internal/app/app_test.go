package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/miradorstack/mirador-engage/internal/api"
	"github.com/miradorstack/mirador-engage/internal/config"
	"github.com/miradorstack/mirador-engage/internal/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("MIRADOR_ENGAGE_CONFIG", "")
	t.Setenv("MIRADOR_ENGAGE_STORE_PATH", filepath.Join(t.TempDir(), "nested", "engage.db"))
	t.Setenv("MIRADOR_ENGAGE_RULES_PATH", "")
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestNewWiresComponents(t *testing.T) {
	cfg := testConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	a, err := New(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	v := 0.3
	for i := 0; i < 5; i++ {
		value := 0.1 + float64(i)*0.02
		if err := a.Store.AppendPrediction(ctx, &models.PredictionRecord{
			Value:       value,
			PredictedAt: time.Now().UTC().Add(-time.Duration(i) * time.Minute),
			Features:    &models.PostFeatures{Platform: "twitter", SentimentScore: &v},
		}); err != nil {
			t.Fatalf("append prediction: %v", err)
		}
	}

	snap, raised, err := a.Evaluator().EvaluateOnce(ctx)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if snap == nil || snap.Count != 5 {
		t.Fatalf("expected snapshot over 5 predictions, got %+v", snap)
	}
	if len(raised) != 0 && cfg.Alerts.Persist {
		stored, err := a.Store.RecentAlerts(ctx, 10)
		if err != nil || len(stored) != len(raised) {
			t.Fatalf("expected raised alerts to be persisted, got %d (%v)", len(stored), err)
		}
	}

	resp, err := a.Service().HealthCheck(ctx, nil)
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	var out api.HealthCheckResponse
	if err := api.Decode(resp, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "SERVING" {
		t.Fatalf("expected SERVING, got %+v", out)
	}
}

func TestBalancerOptionsKeepsUnknownStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Balancing.Strategy = "adasyn"
	if got := BalancerOptions(cfg).Strategy; got != models.StrategyADASYN {
		t.Fatalf("expected adaptive-synthetic, got %q", got)
	}
	cfg.Balancing.Strategy = "magic"
	if got := BalancerOptions(cfg).Strategy; got != models.Strategy("magic") {
		t.Fatalf("expected unknown strategy to be kept, got %q", got)
	}
}

func TestExporterRequiresCredentialsForUpload(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Upload = true
	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()
	if _, err := a.Exporter(); err == nil {
		t.Fatalf("expected error without azure credentials")
	}
}
