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

package monitor

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func record(success bool, responseMs, confidence float64) Record {
	return Record{
		Success:        success,
		ResponseTimeMs: responseMs,
		Confidence:     confidence,
		ModelUsed:      "llama3-70b-8192",
	}
}

func TestSummarize(t *testing.T) {
	m := NewMonitor(100, zaptest.NewLogger(t))

	m.RecordCategorization(Record{Success: true, ResponseTimeMs: 100, Confidence: 0.9, CacheHit: true, PrimaryCategory: "Anxiety & Panic"})
	m.RecordCategorization(Record{Success: true, ResponseTimeMs: 300, Confidence: 0.7, FallbackUsed: true, PrimaryCategory: "Anxiety & Panic", ErrorKind: "transport"})
	m.RecordCategorization(Record{Success: false, ResponseTimeMs: 200, CrisisDetected: true, ErrorKind: "unavailable"})

	s := m.Summarize(time.Hour)
	if s.TotalRequests != 3 {
		t.Fatalf("TotalRequests = %d, want 3", s.TotalRequests)
	}
	if s.SuccessfulCount != 2 {
		t.Errorf("SuccessfulCount = %d, want 2", s.SuccessfulCount)
	}
	if s.SuccessRate < 0.66 || s.SuccessRate > 0.67 {
		t.Errorf("SuccessRate = %v", s.SuccessRate)
	}
	if s.AvgResponseMs != 200 {
		t.Errorf("AvgResponseMs = %v, want 200", s.AvgResponseMs)
	}
	if s.MedianResponseMs != 200 {
		t.Errorf("MedianResponseMs = %v, want 200", s.MedianResponseMs)
	}
	if s.MinResponseMs != 100 || s.MaxResponseMs != 300 {
		t.Errorf("Min/MaxResponseMs = %v/%v, want 100/300", s.MinResponseMs, s.MaxResponseMs)
	}
	if s.ErrorBreakdown["transport"] != 1 || s.ErrorBreakdown["unavailable"] != 1 {
		t.Errorf("ErrorBreakdown = %v", s.ErrorBreakdown)
	}
	if s.AvgConfidence < 0.79 || s.AvgConfidence > 0.81 {
		t.Errorf("AvgConfidence = %v, want ~0.8", s.AvgConfidence)
	}
	if s.CrisisCount != 1 {
		t.Errorf("CrisisCount = %d, want 1", s.CrisisCount)
	}
	if s.CacheHitRate < 0.33 || s.CacheHitRate > 0.34 {
		t.Errorf("CacheHitRate = %v", s.CacheHitRate)
	}
}

func TestSummarizeEmptyWindow(t *testing.T) {
	m := NewMonitor(100, zaptest.NewLogger(t))
	s := m.Summarize(time.Hour)
	if s.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0", s.TotalRequests)
	}
	if s.SuccessRate != 0 || s.AvgResponseMs != 0 {
		t.Error("Empty summary should be all zeros")
	}
}

func TestRingBufferEviction(t *testing.T) {
	m := NewMonitor(5, zaptest.NewLogger(t))

	for i := 0; i < 8; i++ {
		m.RecordCategorization(record(true, float64(i), 0.8))
	}

	s := m.Summarize(time.Hour)
	if s.TotalRequests != 5 {
		t.Errorf("Buffer should cap at 5, got %d", s.TotalRequests)
	}

	stats := m.Stats()
	if stats.TotalSinceStart != 8 {
		t.Errorf("TotalSinceStart = %d, want 8 (unaffected by eviction)", stats.TotalSinceStart)
	}

	// Oldest records (0, 1, 2) were evicted
	if s.AvgResponseMs != 5 {
		t.Errorf("AvgResponseMs = %v, want 5 (mean of 3..7)", s.AvgResponseMs)
	}
}

func TestCategoryAnalytics(t *testing.T) {
	m := NewMonitor(100, zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		m.RecordCategorization(Record{Success: true, Confidence: 0.9, PrimaryCategory: "Anxiety & Panic"})
	}
	m.RecordCategorization(Record{Success: true, Confidence: 0.5, PrimaryCategory: "Pet Loss"})

	stats := m.CategoryAnalytics(time.Hour)
	if len(stats) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(stats))
	}
	if stats[0].Category != "Anxiety & Panic" || stats[0].Count != 3 {
		t.Errorf("Top category = %+v", stats[0])
	}
	if stats[0].AvgConfidence < 0.89 || stats[0].AvgConfidence > 0.91 {
		t.Errorf("AvgConfidence = %v, want ~0.9", stats[0].AvgConfidence)
	}
}

func TestHealthNoTraffic(t *testing.T) {
	m := NewMonitor(100, zaptest.NewLogger(t))
	h := m.Health()
	if h.Overall != "healthy" {
		t.Errorf("Overall = %q, want healthy with no traffic", h.Overall)
	}
}

func TestHealthDegradedOnLowSuccessRate(t *testing.T) {
	m := NewMonitor(100, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		m.RecordCategorization(record(true, 100, 0.9))
	}
	for i := 0; i < 5; i++ {
		m.RecordCategorization(record(false, 100, 0))
	}

	h := m.Health()
	if h.SuccessRate.Status != "critical" {
		t.Errorf("SuccessRate.Status = %q, want critical at 0.5", h.SuccessRate.Status)
	}
	if h.Overall != "degraded" {
		t.Errorf("Overall = %q, want degraded", h.Overall)
	}
}

func TestHealthWarningOnSlowResponses(t *testing.T) {
	m := NewMonitor(100, zaptest.NewLogger(t))

	for i := 0; i < 10; i++ {
		m.RecordCategorization(record(true, 2000, 0.9))
	}

	h := m.Health()
	if h.ResponseTime.Status != "warning" {
		t.Errorf("ResponseTime.Status = %q, want warning at 2000ms", h.ResponseTime.Status)
	}
	if h.Overall != "warning" {
		t.Errorf("Overall = %q, want warning", h.Overall)
	}
}

func TestHealthCriticalFallbackRate(t *testing.T) {
	m := NewMonitor(100, zaptest.NewLogger(t))

	for i := 0; i < 10; i++ {
		r := record(true, 100, 0.9)
		if i < 4 {
			r.FallbackUsed = true
		}
		m.RecordCategorization(r)
	}

	h := m.Health()
	if h.FallbackRate.Status != "critical" {
		t.Errorf("FallbackRate.Status = %q, want critical at 0.4", h.FallbackRate.Status)
	}
}

func TestReset(t *testing.T) {
	m := NewMonitor(100, zaptest.NewLogger(t))

	for i := 0; i < 4; i++ {
		m.RecordCategorization(record(true, 100, 0.9))
	}

	dropped := m.Reset()
	if dropped != 4 {
		t.Errorf("Reset dropped %d, want 4", dropped)
	}

	s := m.Summarize(time.Hour)
	if s.TotalRequests != 0 {
		t.Errorf("TotalRequests after reset = %d", s.TotalRequests)
	}

	stats := m.Stats()
	if stats.TotalSinceStart != 0 {
		t.Errorf("TotalSinceStart after reset = %d, want 0", stats.TotalSinceStart)
	}
}

func TestMedian(t *testing.T) {
	testCases := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 5},
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := median(tc.values); got != tc.expected {
				t.Errorf("median(%v) = %v, want %v", tc.values, got, tc.expected)
			}
		})
	}
}
