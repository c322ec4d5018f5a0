// Copyright 2025 PeerNest AI Service Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package monitor collects per-request categorization metrics in a bounded
// in-memory buffer and derives health indicators from them.
package monitor

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxRecords bounds the metric buffer.
const DefaultMaxRecords = 1000

// Health thresholds. Values at or beyond the warning bound but better than
// the critical bound report "warning".
const (
	SuccessRateHealthy  = 0.95
	SuccessRateWarning  = 0.90
	ResponseTimeHealthy = 1000.0
	ResponseTimeWarning = 3000.0
	ConfidenceHealthy   = 0.8
	ConfidenceWarning   = 0.6
	FallbackRateHealthy = 0.1
	FallbackRateWarning = 0.3
)

// Record captures the outcome of one categorization request.
type Record struct {
	Timestamp       time.Time `json:"timestamp"`
	Success         bool      `json:"success"`
	CacheHit        bool      `json:"cache_hit"`
	FallbackUsed    bool      `json:"fallback_used"`
	CrisisDetected  bool      `json:"crisis_detected"`
	ResponseTimeMs  float64   `json:"response_time_ms"`
	Confidence      float64   `json:"confidence"`
	ModelUsed       string    `json:"model_used"`
	PrimaryCategory string    `json:"primary_category"`
	ErrorKind       string    `json:"error_kind,omitempty"`
}

// Summary aggregates records over a time window.
type Summary struct {
	WindowMinutes    int            `json:"window_minutes"`
	TotalRequests    int            `json:"total_requests"`
	SuccessfulCount  int            `json:"successful_count"`
	SuccessRate      float64        `json:"success_rate"`
	AvgResponseMs    float64        `json:"avg_response_time_ms"`
	MedianResponseMs float64        `json:"median_response_time_ms"`
	MinResponseMs    float64        `json:"min_response_time_ms"`
	MaxResponseMs    float64        `json:"max_response_time_ms"`
	AvgConfidence    float64        `json:"avg_confidence"`
	CacheHitRate     float64        `json:"cache_hit_rate"`
	FallbackRate     float64        `json:"fallback_rate"`
	CrisisCount      int            `json:"crisis_count"`
	ErrorBreakdown   map[string]int `json:"error_breakdown,omitempty"`
}

// RealTimeStats combines lifetime counters with a recent activity window.
type RealTimeStats struct {
	TotalSinceStart int       `json:"total_since_start"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
	StartedAt       time.Time `json:"started_at"`
	LastFiveMinutes Summary   `json:"last_five_minutes"`
}

// CategoryStats describes how often one category was primary.
type CategoryStats struct {
	Category      string  `json:"category"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// HealthIndicator is a tri-state assessment of one metric.
type HealthIndicator struct {
	Status string  `json:"status"`
	Value  float64 `json:"value"`
}

// HealthIndicators derives service health from recent metrics.
type HealthIndicators struct {
	Overall      string          `json:"overall"`
	SuccessRate  HealthIndicator `json:"success_rate"`
	ResponseTime HealthIndicator `json:"response_time"`
	Confidence   HealthIndicator `json:"confidence"`
	FallbackRate HealthIndicator `json:"fallback_rate"`
}

// Monitor records categorization outcomes in a bounded ring. Oldest records
// are dropped once the buffer is full. Safe for concurrent use.
type Monitor struct {
	mu         sync.RWMutex
	records    []Record
	maxRecords int
	total      int
	startedAt  time.Time
	logger     *zap.Logger
}

// NewMonitor creates a metrics monitor holding at most maxRecords entries.
func NewMonitor(maxRecords int, logger *zap.Logger) *Monitor {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Monitor{
		records:    make([]Record, 0, maxRecords),
		maxRecords: maxRecords,
		startedAt:  time.Now(),
		logger:     logger,
	}
}

// RecordCategorization adds one request outcome to the buffer.
func (m *Monitor) RecordCategorization(r Record) {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) >= m.maxRecords {
		m.records = m.records[1:]
	}
	m.records = append(m.records, r)
	m.total++
}

// Summarize aggregates records from the past window duration.
func (m *Monitor) Summarize(window time.Duration) Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summarizeLocked(window)
}

func (m *Monitor) summarizeLocked(window time.Duration) Summary {
	cutoff := time.Now().Add(-window)
	summary := Summary{WindowMinutes: int(window.Minutes())}

	var responseTimes []float64
	var confidenceSum float64
	var confidenceCount int
	cacheHits := 0
	fallbacks := 0

	for _, r := range m.records {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		summary.TotalRequests++
		if r.Success {
			summary.SuccessfulCount++
		}
		if r.CacheHit {
			cacheHits++
		}
		if r.FallbackUsed {
			fallbacks++
		}
		if r.CrisisDetected {
			summary.CrisisCount++
		}
		if r.ErrorKind != "" {
			if summary.ErrorBreakdown == nil {
				summary.ErrorBreakdown = make(map[string]int)
			}
			summary.ErrorBreakdown[r.ErrorKind]++
		}
		responseTimes = append(responseTimes, r.ResponseTimeMs)
		if r.Confidence > 0 {
			confidenceSum += r.Confidence
			confidenceCount++
		}
	}

	if summary.TotalRequests == 0 {
		return summary
	}

	total := float64(summary.TotalRequests)
	summary.SuccessRate = float64(summary.SuccessfulCount) / total
	summary.CacheHitRate = float64(cacheHits) / total
	summary.FallbackRate = float64(fallbacks) / total
	summary.AvgResponseMs = mean(responseTimes)
	summary.MedianResponseMs = median(responseTimes)
	summary.MinResponseMs, summary.MaxResponseMs = bounds(responseTimes)
	if confidenceCount > 0 {
		summary.AvgConfidence = confidenceSum / float64(confidenceCount)
	}
	return summary
}

// Stats returns lifetime counters plus a five-minute activity window.
func (m *Monitor) Stats() RealTimeStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return RealTimeStats{
		TotalSinceStart: m.total,
		UptimeSeconds:   time.Since(m.startedAt).Seconds(),
		StartedAt:       m.startedAt,
		LastFiveMinutes: m.summarizeLocked(5 * time.Minute),
	}
}

// CategoryAnalytics returns per-category counts over the window, most
// frequent first.
func (m *Monitor) CategoryAnalytics(window time.Duration) []CategoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	counts := make(map[string]int)
	confidence := make(map[string]float64)
	for _, r := range m.records {
		if r.Timestamp.Before(cutoff) || r.PrimaryCategory == "" {
			continue
		}
		counts[r.PrimaryCategory]++
		confidence[r.PrimaryCategory] += r.Confidence
	}

	stats := make([]CategoryStats, 0, len(counts))
	for category, count := range counts {
		stats = append(stats, CategoryStats{
			Category:      category,
			Count:         count,
			AvgConfidence: confidence[category] / float64(count),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Category < stats[j].Category
	})
	return stats
}

// Health derives tri-state indicators from the last hour of metrics. With
// no traffic everything reports healthy.
func (m *Monitor) Health() HealthIndicators {
	summary := m.Summarize(time.Hour)

	if summary.TotalRequests == 0 {
		return HealthIndicators{
			Overall:      "healthy",
			SuccessRate:  HealthIndicator{Status: "healthy", Value: 1},
			ResponseTime: HealthIndicator{Status: "healthy"},
			Confidence:   HealthIndicator{Status: "healthy", Value: 1},
			FallbackRate: HealthIndicator{Status: "healthy"},
		}
	}

	indicators := HealthIndicators{
		SuccessRate:  gradeHighGood(summary.SuccessRate, SuccessRateHealthy, SuccessRateWarning),
		ResponseTime: gradeLowGood(summary.AvgResponseMs, ResponseTimeHealthy, ResponseTimeWarning),
		Confidence:   gradeHighGood(summary.AvgConfidence, ConfidenceHealthy, ConfidenceWarning),
		FallbackRate: gradeLowGood(summary.FallbackRate, FallbackRateHealthy, FallbackRateWarning),
	}

	indicators.Overall = "healthy"
	for _, ind := range []HealthIndicator{
		indicators.SuccessRate,
		indicators.ResponseTime,
		indicators.Confidence,
		indicators.FallbackRate,
	} {
		switch ind.Status {
		case "critical":
			indicators.Overall = "degraded"
			return indicators
		case "warning":
			indicators.Overall = "warning"
		}
	}
	return indicators
}

// Reset clears the buffer and the lifetime counter, returning how many
// records were dropped.
func (m *Monitor) Reset() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := len(m.records)
	m.records = m.records[:0]
	m.total = 0
	m.logger.Info("Metrics reset", zap.Int("dropped_records", dropped))
	return dropped
}

func gradeHighGood(value, healthy, warning float64) HealthIndicator {
	switch {
	case value >= healthy:
		return HealthIndicator{Status: "healthy", Value: value}
	case value >= warning:
		return HealthIndicator{Status: "warning", Value: value}
	default:
		return HealthIndicator{Status: "critical", Value: value}
	}
}

func gradeLowGood(value, healthy, warning float64) HealthIndicator {
	switch {
	case value <= healthy:
		return HealthIndicator{Status: "healthy", Value: value}
	case value <= warning:
		return HealthIndicator{Status: "warning", Value: value}
	default:
		return HealthIndicator{Status: "critical", Value: value}
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func bounds(values []float64) (min, max float64) {
	if len(values) == 0 {
		return 0, 0
	}
	min, max = values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
