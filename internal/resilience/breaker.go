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

package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BreakerState represents the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed means normal operation
	BreakerClosed BreakerState = iota
	// BreakerOpen means failing fast without calling the dependency
	BreakerOpen
	// BreakerHalfOpen means probing whether the dependency recovered
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the breaker is open and calls are rejected.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	Name          string
	MaxFailures   int
	ResetTimeout  time.Duration
	HalfOpenProbe int
}

// DefaultBreakerConfig returns the thresholds used for the AI classifier:
// open after 5 consecutive failures, probe again after 60s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:          name,
		MaxFailures:   5,
		ResetTimeout:  60 * time.Second,
		HalfOpenProbe: 3,
	}
}

// BreakerStats is a snapshot of breaker counters for the stats endpoint.
type BreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	SuccessfulCalls int       `json:"successful_calls"`
	FailedCalls     int       `json:"failed_calls"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	StateChanged    time.Time `json:"state_changed"`
}

// Breaker implements the circuit breaker pattern around an unreliable
// dependency. It is safe for concurrent use.
type Breaker struct {
	config       BreakerConfig
	state        BreakerState
	failures     int
	probes       int
	probeSuccess int
	successful   int
	failed       int
	lastFailure  time.Time
	stateChanged time.Time
	mu           sync.Mutex
	logger       *zap.Logger
}

// NewBreaker creates a circuit breaker in the closed state.
func NewBreaker(config BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		config:       config,
		state:        BreakerClosed,
		stateChanged: time.Now(),
		logger:       logger,
	}
}

// Execute runs fn through the breaker. When the breaker is open it returns
// ErrCircuitOpen without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	b.record(err)
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker counters.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Name:            b.config.Name,
		State:           b.state.String(),
		Failures:        b.failures,
		SuccessfulCalls: b.successful,
		FailedCalls:     b.failed,
		LastFailureTime: b.lastFailure,
		StateChanged:    b.stateChanged,
	}
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger.Info("Circuit breaker manually reset", zap.String("name", b.config.Name))
	b.transition(BreakerClosed)
	b.failures = 0
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(b.stateChanged) > b.config.ResetTimeout {
			b.transition(BreakerHalfOpen)
			b.probes++
			return true
		}
		return false
	case BreakerHalfOpen:
		if b.probes < b.config.HalfOpenProbe {
			b.probes++
			return true
		}
		return false
	default:
		return false
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.failed++
		b.lastFailure = time.Now()

		if b.state == BreakerHalfOpen || (b.state == BreakerClosed && b.failures >= b.config.MaxFailures) {
			b.transition(BreakerOpen)
		}
		return
	}

	b.successful++
	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.probeSuccess++
		if b.probeSuccess >= b.config.HalfOpenProbe {
			b.transition(BreakerClosed)
			b.failures = 0
		}
	}
}

func (b *Breaker) transition(newState BreakerState) {
	if b.state == newState {
		return
	}
	oldState := b.state
	b.state = newState
	b.stateChanged = time.Now()
	b.probes = 0
	b.probeSuccess = 0

	b.logger.Info("Circuit breaker state changed",
		zap.String("name", b.config.Name),
		zap.String("from", oldState.String()),
		zap.String("to", newState.String()),
		zap.Int("failures", b.failures))
}
