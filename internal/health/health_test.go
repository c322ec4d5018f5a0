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

package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/JoelMun99/peernest-ai-service/internal/monitor"
)

func staticChecker(status string) Checker {
	return CheckerFunc(func(_ context.Context) CheckResult {
		return CheckResult{Status: status}
	})
}

func TestManagerCombinesStatuses(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[string]string
		want     string
	}{
		{
			name:     "all healthy",
			statuses: map[string]string{"cache": StatusHealthy, "groq": StatusHealthy},
			want:     StatusHealthy,
		},
		{
			name:     "one degraded",
			statuses: map[string]string{"cache": StatusHealthy, "groq": StatusDegraded},
			want:     StatusDegraded,
		},
		{
			name:     "unhealthy wins over degraded",
			statuses: map[string]string{"cache": StatusUnhealthy, "groq": StatusDegraded},
			want:     StatusUnhealthy,
		},
		{
			name:     "no checkers",
			statuses: map[string]string{},
			want:     StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("peernest-ai-service", "test", zaptest.NewLogger(t))
			for name, status := range tt.statuses {
				m.AddChecker(name, staticChecker(status))
			}

			resp := m.Check(context.Background())
			if resp.Status != tt.want {
				t.Errorf("Status = %q, want %q", resp.Status, tt.want)
			}
			if len(resp.Dependencies) != len(tt.statuses) {
				t.Errorf("got %d dependencies, want %d", len(resp.Dependencies), len(tt.statuses))
			}
			if resp.Service != "peernest-ai-service" {
				t.Errorf("Service = %q", resp.Service)
			}
		})
	}
}

func TestPingChecker(t *testing.T) {
	healthy := PingChecker("cache", func(_ context.Context) error { return nil }, false)
	if got := healthy.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("healthy ping Status = %q", got.Status)
	}

	hard := PingChecker("cache", func(_ context.Context) error {
		return errors.New("connection refused")
	}, false)
	if got := hard.Check(context.Background()); got.Status != StatusUnhealthy {
		t.Errorf("hard failure Status = %q, want unhealthy", got.Status)
	}

	soft := PingChecker("groq", func(_ context.Context) error {
		return errors.New("timeout")
	}, true)
	got := soft.Check(context.Background())
	if got.Status != StatusDegraded {
		t.Errorf("transient failure Status = %q, want degraded", got.Status)
	}
	if got.Error == "" {
		t.Error("expected error detail on failed probe")
	}
}

func TestPipelineChecker(t *testing.T) {
	logger := zaptest.NewLogger(t)

	mon := monitor.NewMonitor(100, logger)
	if got := PipelineChecker(mon).Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("idle pipeline Status = %q, want healthy", got.Status)
	}

	for i := 0; i < 10; i++ {
		mon.RecordCategorization(monitor.Record{
			Timestamp:      time.Now(),
			Success:        i%2 == 0,
			ResponseTimeMs: 200,
			Confidence:     0.8,
		})
	}
	if got := PipelineChecker(mon).Check(context.Background()); got.Status != StatusDegraded {
		t.Errorf("failing pipeline Status = %q, want degraded", got.Status)
	}
}
