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

// Package ratelimit throttles API clients with sliding windows, keeping a
// separate budget per endpoint category so heavy bulk traffic cannot starve
// single categorization requests.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Endpoint categories with independent budgets.
const (
	CategoryCategorize = "categorize"
	CategoryBulk       = "bulk"
	CategoryAdmin      = "admin"
)

// idleClientAge is how long a client may be silent before its window
// state is discarded.
const idleClientAge = 5 * time.Minute

// Config tunes the limiter. Categories absent from Limits are not throttled.
type Config struct {
	Enabled bool
	Window  time.Duration
	Limits  map[string]int
}

// DefaultConfig allows 30 categorizations, 10 bulk requests, and 120
// admin calls per client per minute.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Window:  time.Minute,
		Limits: map[string]int{
			CategoryCategorize: 30,
			CategoryBulk:       10,
			CategoryAdmin:      120,
		},
	}
}

// CategoryStats counts outcomes for one endpoint category.
type CategoryStats struct {
	Limit    int   `json:"limit"`
	Allowed  int64 `json:"allowed"`
	Rejected int64 `json:"rejected"`
}

// Stats is a snapshot of limiter activity.
type Stats struct {
	Enabled       bool                     `json:"enabled"`
	WindowSeconds float64                  `json:"window_seconds"`
	ActiveClients int                      `json:"active_clients"`
	Categories    map[string]CategoryStats `json:"categories"`
}

type clientWindow struct {
	hits     map[string][]time.Time
	lastSeen time.Time
}

// Limiter tracks per-client request timestamps in sliding windows. Safe for
// concurrent use.
type Limiter struct {
	mu        sync.Mutex
	config    Config
	clients   map[string]*clientWindow
	allowed   map[string]int64
	rejected  map[string]int64
	lastPrune time.Time
	logger    *zap.Logger
}

// NewLimiter creates a limiter for the configured category budgets.
func NewLimiter(config Config, logger *zap.Logger) *Limiter {
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.Limits == nil {
		config.Limits = DefaultConfig().Limits
	}
	return &Limiter{
		config:    config,
		clients:   make(map[string]*clientWindow),
		allowed:   make(map[string]int64),
		rejected:  make(map[string]int64),
		lastPrune: time.Now(),
		logger:    logger,
	}
}

// Allow reports whether clientID may make another request in category. When
// rejected it also returns how long until the oldest hit leaves the window.
func (l *Limiter) Allow(clientID, category string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.config.Enabled {
		return true, 0
	}
	limit, throttled := l.config.Limits[category]
	if !throttled {
		return true, 0
	}

	now := time.Now()
	l.pruneLocked(now)

	cw := l.clients[clientID]
	if cw == nil {
		cw = &clientWindow{hits: make(map[string][]time.Time)}
		l.clients[clientID] = cw
	}
	cw.lastSeen = now

	cutoff := now.Add(-l.config.Window)
	kept := cw.hits[category][:0]
	for _, h := range cw.hits[category] {
		if h.After(cutoff) {
			kept = append(kept, h)
		}
	}

	if len(kept) >= limit {
		cw.hits[category] = kept
		l.rejected[category]++
		retryAfter := l.config.Window - now.Sub(kept[0])
		l.logger.Debug("Request rate limited",
			zap.String("client", clientID),
			zap.String("category", category),
			zap.Int("limit", limit),
			zap.Duration("retry_after", retryAfter))
		return false, retryAfter
	}

	cw.hits[category] = append(kept, now)
	l.allowed[category]++
	return true, 0
}

// Middleware enforces the category budget, answering 429 with a Retry-After
// header when a client exhausts it.
func (l *Limiter) Middleware(category string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := l.Allow(c.ClientIP(), category)
		if !ok {
			seconds := int(retryAfter.Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate limit exceeded",
				"category":            category,
				"retry_after_seconds": seconds,
			})
			return
		}
		c.Next()
	}
}

// Stats returns current limiter counters.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	categories := make(map[string]CategoryStats, len(l.config.Limits))
	for category, limit := range l.config.Limits {
		categories[category] = CategoryStats{
			Limit:    limit,
			Allowed:  l.allowed[category],
			Rejected: l.rejected[category],
		}
	}

	return Stats{
		Enabled:       l.config.Enabled,
		WindowSeconds: l.config.Window.Seconds(),
		ActiveClients: len(l.clients),
		Categories:    categories,
	}
}

// pruneLocked drops state for clients idle longer than idleClientAge. Runs
// at most once per window.
func (l *Limiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.config.Window {
		return
	}
	l.lastPrune = now

	cutoff := now.Add(-idleClientAge)
	for id, cw := range l.clients {
		if cw.lastSeen.Before(cutoff) {
			delete(l.clients, id)
		}
	}
}
