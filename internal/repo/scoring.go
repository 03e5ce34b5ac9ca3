package repo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/miradorstack/mirador-engage/internal/cache"
	"github.com/miradorstack/mirador-engage/internal/models"
)

// ErrScoringNotConfigured is returned when no scoring endpoint is set.
var ErrScoringNotConfigured = errors.New("scoring endpoint not configured")

// Score is a single model response.
type Score struct {
	Value        float64 `json:"value"`
	ModelVersion string  `json:"model_version"`
}

// ScoringClient calls the remote engagement model over HTTP JSON.
type ScoringClient struct {
	baseURL     string
	predictPath string
	healthPath  string
	httpClient  *http.Client

	cache    cache.Provider
	cacheTTL time.Duration
}

// NewScoringClient constructs a client targeting the configured model endpoint.
// A nil cache disables response caching.
func NewScoringClient(baseURL, predictPath, healthPath string, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration) *ScoringClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &ScoringClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		predictPath: predictPath,
		healthPath:  healthPath,
		httpClient:  &http.Client{Timeout: timeout},
		cache:       cacheProvider,
		cacheTTL:    cacheTTL,
	}
}

// Configured reports whether a base URL is set.
func (c *ScoringClient) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Predict scores a post. Identical feature payloads are served from cache
// for cacheTTL.
func (c *ScoringClient) Predict(ctx context.Context, features models.PostFeatures) (Score, error) {
	if !c.Configured() {
		return Score{}, ErrScoringNotConfigured
	}

	payload := map[string]any{"inputs": []models.PostFeatures{features}}
	body, err := json.Marshal(payload)
	if err != nil {
		return Score{}, fmt.Errorf("marshal payload: %w", err)
	}
	key := cacheKey(body)

	var cached Score
	if c.cacheTTL > 0 {
		if err := cache.GetJSON(ctx, c.cache, key, &cached); err == nil {
			return cached, nil
		}
	}

	var response struct {
		Predictions  []float64 `json:"predictions"`
		Prediction   *float64  `json:"prediction"`
		ModelVersion string    `json:"model_version"`
	}
	if err := c.post(ctx, c.resolvePath(c.predictPath), body, &response); err != nil {
		return Score{}, fmt.Errorf("scoring request failed: %w", err)
	}

	var score Score
	switch {
	case response.Prediction != nil:
		score.Value = *response.Prediction
	case len(response.Predictions) > 0:
		score.Value = response.Predictions[0]
	default:
		return Score{}, fmt.Errorf("scoring endpoint returned no predictions")
	}
	score.ModelVersion = response.ModelVersion

	if c.cacheTTL > 0 {
		_ = cache.SetJSON(ctx, c.cache, key, score, c.cacheTTL)
	}
	return score, nil
}

// Health checks that the model endpoint answers.
func (c *ScoringClient) Health(ctx context.Context) error {
	if !c.Configured() {
		return ErrScoringNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolvePath(c.healthPath), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scoring endpoint returned %s", resp.Status)
	}
	return nil
}

func (c *ScoringClient) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *ScoringClient) post(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scoring endpoint returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func cacheKey(body []byte) string {
	sum := sha256.Sum256(body)
	return "score:" + hex.EncodeToString(sum[:16])
}
