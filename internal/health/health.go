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

// Package health aggregates dependency probes and pipeline quality
// indicators into a single service health report.
package health

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/JoelMun99/peernest-ai-service/internal/monitor"
)

const (
	// StatusHealthy represents healthy status
	StatusHealthy = "healthy"
	// StatusDegraded represents degraded status
	StatusDegraded = "degraded"
	// StatusUnhealthy represents unhealthy status
	StatusUnhealthy = "unhealthy"
	// DefaultTimeout is the default timeout for a full health check pass
	DefaultTimeout = 5 * time.Second
)

// CheckResult is the outcome of a single dependency probe.
type CheckResult struct {
	Status    string                 `json:"status"`
	LatencyMs float64                `json:"latency_ms"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Response is the complete health report for the service.
type Response struct {
	Status       string                 `json:"status"`
	Service      string                 `json:"service"`
	Version      string                 `json:"version"`
	Environment  string                 `json:"environment"`
	UptimeSecs   float64                `json:"uptime_seconds"`
	Dependencies map[string]CheckResult `json:"dependencies"`
	System       map[string]interface{} `json:"system"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Checker probes one dependency.
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) CheckResult

// Check implements the Checker interface.
func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Manager runs registered checkers and combines their results.
type Manager struct {
	serviceName string
	version     string
	startTime   time.Time
	checkers    map[string]Checker
	timeout     time.Duration
	logger      *zap.Logger
}

// NewManager creates a health check manager.
func NewManager(serviceName, version string, logger *zap.Logger) *Manager {
	return &Manager{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		checkers:    make(map[string]Checker),
		timeout:     DefaultTimeout,
		logger:      logger,
	}
}

// SetTimeout overrides the check pass timeout.
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// AddChecker registers a dependency probe under name.
func (m *Manager) AddChecker(name string, checker Checker) {
	m.checkers[name] = checker
}

// Check runs every registered probe and returns the combined report.
// Any unhealthy dependency makes the service unhealthy; any degraded
// dependency makes it degraded.
func (m *Manager) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	dependencies := make(map[string]CheckResult, len(m.checkers))
	overall := StatusHealthy

	for name, checker := range m.checkers {
		start := time.Now()
		result := checker.Check(ctx)
		result.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
		result.Timestamp = time.Now().UTC()
		dependencies[name] = result

		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall != StatusUnhealthy {
				overall = StatusDegraded
			}
		}
	}

	return Response{
		Status:       overall,
		Service:      m.serviceName,
		Version:      m.version,
		Environment:  environment(),
		UptimeSecs:   time.Since(m.startTime).Seconds(),
		Dependencies: dependencies,
		System:       systemMetadata(),
		Timestamp:    time.Now().UTC(),
	}
}

// PingChecker probes a dependency through its ping function. Transient
// network failures report degraded rather than unhealthy so one slow
// upstream does not flip the whole service.
func PingChecker(name string, pingFunc func(ctx context.Context) error, transient bool) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := pingFunc(ctx); err != nil {
			status := StatusUnhealthy
			if transient {
				status = StatusDegraded
			}
			return CheckResult{
				Status: status,
				Error:  fmt.Sprintf("%s ping failed: %v", name, err),
			}
		}
		return CheckResult{
			Status:   StatusHealthy,
			Metadata: map[string]interface{}{"dependency": name},
		}
	})
}

// PipelineChecker converts the monitor's quality indicators into a
// dependency probe. Any critical indicator is degraded at the service
// level: the service keeps answering requests through fallback even
// when categorization quality drops.
func PipelineChecker(mon *monitor.Monitor) Checker {
	return CheckerFunc(func(_ context.Context) CheckResult {
		indicators := mon.Health()

		status := StatusHealthy
		if indicators.Overall != StatusHealthy {
			status = StatusDegraded
		}

		return CheckResult{
			Status: status,
			Metadata: map[string]interface{}{
				"success_rate":  indicators.SuccessRate,
				"response_time": indicators.ResponseTime,
				"confidence":    indicators.Confidence,
				"fallback_rate": indicators.FallbackRate,
			},
		}
	})
}

func systemMetadata() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"go_version":   runtime.Version(),
		"goroutines":   runtime.NumGoroutine(),
		"memory_alloc": memStats.Alloc,
		"gc_runs":      memStats.NumGC,
		"hostname":     hostname(),
		"process_id":   os.Getpid(),
	}
}

func environment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return env
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
