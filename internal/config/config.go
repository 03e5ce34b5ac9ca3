package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the engagement monitor and CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store"`
	Balancing BalancingConfig `yaml:"balancing"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Cache     CacheConfig     `yaml:"cache"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Rules     RulesConfig     `yaml:"rules"`
	Azure     AzureConfig     `yaml:"azure"`
	Stream    StreamConfig    `yaml:"stream"`
	Export    ExportConfig    `yaml:"export"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// StoreConfig locates the SQLite prediction store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// BalancingConfig holds balancer defaults.
type BalancingConfig struct {
	Strategy     string  `yaml:"strategy"`
	K            int     `yaml:"k"`
	Seed         int64   `yaml:"seed"`
	TargetRatio  float64 `yaml:"targetRatio"`
	TestFraction float64 `yaml:"testFraction"`
}

// MonitorConfig controls health evaluation.
type MonitorConfig struct {
	PolicyPath       string        `yaml:"policyPath"`
	Window           time.Duration `yaml:"window"`
	EvaluateInterval time.Duration `yaml:"evaluateInterval"`
}

// AlertsConfig controls alert thresholds and retention.
type AlertsConfig struct {
	Capacity        int     `yaml:"capacity"`
	HealthThreshold float64 `yaml:"healthThreshold"`
	HighEngagement  float64 `yaml:"highEngagement"`
	LowEngagement   float64 `yaml:"lowEngagement"`
	Persist         bool    `yaml:"persist"`
}

// CacheConfig controls the in-process snapshot cache.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Size        int           `yaml:"size"`
	SnapshotTTL time.Duration `yaml:"snapshotTTL"`
	ScoreTTL    time.Duration `yaml:"scoreTTL"`
}

// ScoringConfig configures the remote model scoring endpoint.
type ScoringConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	PredictPath string        `yaml:"predictPath"`
	HealthPath  string        `yaml:"healthPath"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RulesConfig controls rule-pack loading for the explainer.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// AzureConfig holds storage account credentials shared by queues and blobs.
type AzureConfig struct {
	ConnectionString string `yaml:"connectionString"`
	AccountName      string `yaml:"accountName"`
	AccountKey       string `yaml:"accountKey"`
	QueuePrefix      string `yaml:"queuePrefix"`
	ExportContainer  string `yaml:"exportContainer"`
}

// StreamConfig selects the event backend.
type StreamConfig struct {
	Backend string     `yaml:"backend"`
	NATS    NATSConfig `yaml:"nats"`
}

// NATSConfig configures the NATS connection.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Name          string `yaml:"name"`
	SubjectPrefix string `yaml:"subjectPrefix"`
	MaxReconnects int    `yaml:"maxReconnects"`
}

// ExportConfig controls dashboard exports.
type ExportConfig struct {
	Dir    string        `yaml:"dir"`
	Window time.Duration `yaml:"window"`
	Upload bool          `yaml:"upload"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_ENGAGE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	if f := c.Balancing.TestFraction; f <= 0 || f >= 1 {
		return fmt.Errorf("balancing.testFraction must be in (0,1), got %v", f)
	}
	if c.Balancing.K < 1 {
		return fmt.Errorf("balancing.k must be positive, got %d", c.Balancing.K)
	}
	if c.Monitor.Window <= 0 {
		return fmt.Errorf("monitor.window must be positive, got %s", c.Monitor.Window)
	}
	switch strings.ToLower(c.Stream.Backend) {
	case "", "none", "nats", "azure", "azure-queue":
	default:
		return fmt.Errorf("stream.backend %q not supported", c.Stream.Backend)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50061",
			MetricsAddress:  ":2113",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Store:   StoreConfig{Path: "data/engagement.db"},
		Balancing: BalancingConfig{
			Strategy:     "oversample-synthetic",
			K:            5,
			Seed:         42,
			TargetRatio:  1.0,
			TestFraction: 0.2,
		},
		Monitor: MonitorConfig{
			Window:           24 * time.Hour,
			EvaluateInterval: time.Minute,
		},
		Alerts: AlertsConfig{
			Capacity:        1000,
			HealthThreshold: 40,
			HighEngagement:  0.9,
			LowEngagement:   0.1,
			Persist:         true,
		},
		Cache: CacheConfig{
			Enabled:     true,
			Size:        64,
			SnapshotTTL: 30 * time.Second,
			ScoreTTL:    5 * time.Minute,
		},
		Scoring: ScoringConfig{
			PredictPath: "/predict",
			HealthPath:  "/health",
			Timeout:     5 * time.Second,
		},
		Rules: RulesConfig{Path: "configs/rules/default.yaml"},
		Azure: AzureConfig{
			QueuePrefix:     "engage",
			ExportContainer: "engage-exports",
		},
		Stream: StreamConfig{
			Backend: "none",
			NATS:    NATSConfig{URL: "nats://localhost:4222", Name: "mirador-engage", SubjectPrefix: "engage"},
		},
		Export: ExportConfig{Dir: "powerbi_data", Window: 24 * time.Hour},
	}
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Address, "MIRADOR_ENGAGE_SERVER_ADDRESS")
	setString(&cfg.Server.MetricsAddress, "MIRADOR_ENGAGE_METRICS_ADDRESS")
	setString(&cfg.Logging.Level, "MIRADOR_ENGAGE_LOG_LEVEL")
	if v := os.Getenv("MIRADOR_ENGAGE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	setString(&cfg.Store.Path, "MIRADOR_ENGAGE_STORE_PATH")

	setString(&cfg.Balancing.Strategy, "MIRADOR_ENGAGE_BALANCING_STRATEGY")
	setInt(&cfg.Balancing.K, "MIRADOR_ENGAGE_BALANCING_K")
	if v := os.Getenv("MIRADOR_ENGAGE_BALANCING_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Balancing.Seed = seed
		}
	}
	setFloat(&cfg.Balancing.TargetRatio, "MIRADOR_ENGAGE_BALANCING_TARGET_RATIO")
	setFloat(&cfg.Balancing.TestFraction, "MIRADOR_ENGAGE_TEST_FRACTION")

	setString(&cfg.Monitor.PolicyPath, "MIRADOR_ENGAGE_POLICY_PATH")
	setDuration(&cfg.Monitor.Window, "MIRADOR_ENGAGE_MONITOR_WINDOW")
	setDuration(&cfg.Monitor.EvaluateInterval, "MIRADOR_ENGAGE_EVALUATE_INTERVAL")

	setInt(&cfg.Alerts.Capacity, "MIRADOR_ENGAGE_ALERTS_CAPACITY")
	setFloat(&cfg.Alerts.HealthThreshold, "MIRADOR_ENGAGE_ALERTS_HEALTH_THRESHOLD")
	setBool(&cfg.Alerts.Persist, "MIRADOR_ENGAGE_ALERTS_PERSIST")

	setBool(&cfg.Cache.Enabled, "MIRADOR_ENGAGE_CACHE_ENABLED")
	setInt(&cfg.Cache.Size, "MIRADOR_ENGAGE_CACHE_SIZE")
	setDuration(&cfg.Cache.SnapshotTTL, "MIRADOR_ENGAGE_CACHE_SNAPSHOT_TTL")
	setDuration(&cfg.Cache.ScoreTTL, "MIRADOR_ENGAGE_CACHE_SCORE_TTL")

	setString(&cfg.Scoring.BaseURL, "MIRADOR_ENGAGE_SCORING_URL")
	setDuration(&cfg.Scoring.Timeout, "MIRADOR_ENGAGE_SCORING_TIMEOUT")
	setString(&cfg.Rules.Path, "MIRADOR_ENGAGE_RULES_PATH")

	setString(&cfg.Azure.ConnectionString, "AZURE_STORAGE_CONNECTION_STRING")
	setString(&cfg.Azure.ConnectionString, "MIRADOR_ENGAGE_AZURE_CONNECTION_STRING")
	setString(&cfg.Azure.AccountName, "MIRADOR_ENGAGE_AZURE_ACCOUNT")
	setString(&cfg.Azure.AccountKey, "MIRADOR_ENGAGE_AZURE_KEY")
	setString(&cfg.Azure.QueuePrefix, "MIRADOR_ENGAGE_AZURE_QUEUE_PREFIX")
	setString(&cfg.Azure.ExportContainer, "MIRADOR_ENGAGE_AZURE_EXPORT_CONTAINER")

	setString(&cfg.Stream.Backend, "MIRADOR_ENGAGE_STREAM_BACKEND")
	setString(&cfg.Stream.NATS.URL, "MIRADOR_ENGAGE_NATS_URL")
	setString(&cfg.Stream.NATS.SubjectPrefix, "MIRADOR_ENGAGE_NATS_SUBJECT_PREFIX")

	setString(&cfg.Export.Dir, "MIRADOR_ENGAGE_EXPORT_DIR")
	setDuration(&cfg.Export.Window, "MIRADOR_ENGAGE_EXPORT_WINDOW")
	setBool(&cfg.Export.Upload, "MIRADOR_ENGAGE_EXPORT_UPLOAD")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}
