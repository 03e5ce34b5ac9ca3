package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/miradorstack/mirador-engage/internal/cache"
	"github.com/miradorstack/mirador-engage/internal/models"
)

type transportFunc func(*http.Request) (*http.Response, error)

func (f transportFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// stubTransport returns an http.Client whose requests are answered by fn.
func stubTransport(fn transportFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func TestPredictCachesResults(t *testing.T) {
	hits := 0
	client := NewScoringClient("https://scoring.example.com/model", "/predict", "/health", time.Second, cache.NewLRUProvider(8, time.Minute), time.Minute)
	client.httpClient = stubTransport(func(req *http.Request) (*http.Response, error) {
		hits++
		if req.URL.Path != "/model/predict" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		var body struct {
			Inputs []models.PostFeatures `json:"inputs"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Inputs) != 1 || body.Inputs[0].Platform != "twitter" {
			t.Fatalf("unexpected request body: %+v", body)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{"predictions": []float64{0.42}, "model_version": "7"}), nil
	})

	ctx := context.Background()
	features := models.PostFeatures{Platform: "twitter"}
	score, err := client.Predict(ctx, features)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Value != 0.42 || score.ModelVersion != "7" {
		t.Fatalf("unexpected score: %+v", score)
	}

	if _, err := client.Predict(ctx, features); err != nil {
		t.Fatalf("unexpected cached error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("cache miss triggered network call; hits=%d", hits)
	}
}

func TestPredictSingleValueResponse(t *testing.T) {
	client := NewScoringClient("https://scoring.example.com", "predict", "health", time.Second, nil, 0)
	client.httpClient = stubTransport(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{"prediction": 0.9}), nil
	})
	score, err := client.Predict(context.Background(), models.PostFeatures{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score.Value != 0.9 {
		t.Fatalf("expected 0.9, got %v", score.Value)
	}
}

func TestPredictErrors(t *testing.T) {
	if _, err := NewScoringClient("", "/predict", "/health", time.Second, nil, 0).Predict(context.Background(), models.PostFeatures{}); !errors.Is(err, ErrScoringNotConfigured) {
		t.Fatalf("expected ErrScoringNotConfigured, got %v", err)
	}

	client := NewScoringClient("https://scoring.example.com", "/predict", "/health", time.Second, nil, 0)
	client.httpClient = stubTransport(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusBadGateway, map[string]any{}), nil
	})
	if _, err := client.Predict(context.Background(), models.PostFeatures{}); err == nil {
		t.Fatalf("expected error for upstream failure")
	}

	client.httpClient = stubTransport(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, http.StatusOK, map[string]any{"predictions": []float64{}}), nil
	})
	if _, err := client.Predict(context.Background(), models.PostFeatures{}); err == nil {
		t.Fatalf("expected error for empty predictions")
	}
}

func TestHealth(t *testing.T) {
	client := NewScoringClient("https://scoring.example.com", "/predict", "/health", time.Second, nil, 0)
	client.httpClient = stubTransport(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet || req.URL.Path != "/health" {
			t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
		}
		return jsonResponse(t, http.StatusOK, map[string]any{"status": "ok"}), nil
	})
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
