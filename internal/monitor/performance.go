package monitor

import (
	"sync/atomic"
	"time"

	"github.com/miradorstack/mirador-engage/internal/models"
	"github.com/miradorstack/mirador-engage/internal/utils"
)

// PerformanceMonitor tracks serving throughput and latency since start-up.
type PerformanceMonitor struct {
	started   time.Time
	total     atomic.Int64
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewPerformanceMonitor starts the uptime clock.
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		started:   time.Now(),
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// Observe records one prediction and its processing time.
func (p *PerformanceMonitor) Observe(d time.Duration) {
	p.total.Add(1)
	p.latencies.Observe(d)
}

// Stats reports uptime, totals and latency percentiles.
func (p *PerformanceMonitor) Stats() models.PerformanceStats {
	uptime := p.now().Sub(p.started)
	total := p.total.Load()

	stats := models.PerformanceStats{
		Uptime:           uptime,
		TotalPredictions: total,
		LatencyP50:       p.latencies.Percentile(50),
		LatencyP95:       p.latencies.Percentile(95),
		Status:           "idle",
	}
	if p.latencies.Count() > 0 {
		stats.LatencyMean = p.latencies.Mean()
	}
	if secs := uptime.Seconds(); secs > 0 {
		stats.PredictionsPerSecond = float64(total) / secs
	}
	if stats.PredictionsPerSecond > 0 {
		stats.Status = "healthy"
	}
	return stats
}
