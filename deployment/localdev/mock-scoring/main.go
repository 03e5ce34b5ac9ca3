// Command mock-scoring serves a deterministic engagement model for local
// development of the monitor.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
)

const modelVersion = "mock-linear-1"

type predictRequest struct {
	Inputs []models.PostFeatures `json:"inputs"`
}

type predictResponse struct {
	Predictions  []float64 `json:"predictions"`
	ModelVersion string    `json:"model_version"`
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "model_version": modelVersion})
	})

	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Inputs) == 0 {
			http.Error(w, "inputs must not be empty", http.StatusBadRequest)
			return
		}
		resp := predictResponse{ModelVersion: modelVersion}
		for _, in := range req.Inputs {
			resp.Predictions = append(resp.Predictions, score(in))
		}
		writeJSON(w, resp)
	})

	logger := log.New(log.Writer(), "scoring-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// score is a toy linear model over the numeric signals, clipped to the
// range real engagement rates fall in.
func score(f models.PostFeatures) float64 {
	v := 0.05
	v += 0.04 * value(f.SentimentScore)
	v -= 0.06 * value(f.ToxicityScore)
	v += 0.03 * value(f.UserEngagementGrowth)
	v += 0.02 * value(f.BuzzChangeRate)
	if wd := f.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
		v += 0.01
	}
	return math.Round(math.Max(0, math.Min(0.3, v))*1e4) / 1e4
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
