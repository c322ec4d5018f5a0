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

// Package cache stores categorization results keyed by a hash of the
// struggle text, model, and relevant request context. A Redis backend is
// used when configured and reachable, with a transparent in-memory
// fallback.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// KeyPrefix namespaces all categorization cache keys
	KeyPrefix = "categorization:"
	// SchemaVersion is baked into cache keys so result format changes
	// invalidate old entries
	SchemaVersion = "2.0"
	// DefaultTTL is how long results stay cached
	DefaultTTL = 5 * time.Minute
)

// Store is a byte-oriented cache for serialized categorization results.
type Store interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value under key for the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Invalidate removes entries matching pattern ("*" for all, or a
	// prefix form like "abc*") and returns how many were removed.
	Invalidate(ctx context.Context, pattern string) (int, error)
	// Stats returns backend counters.
	Stats(ctx context.Context) (Stats, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Stats describes cache effectiveness for the stats endpoint.
type Stats struct {
	Backend string  `json:"backend"`
	Entries int64   `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// KeyContext holds the request context fields that influence
// categorization output and therefore participate in the cache key.
// Session and user identifiers deliberately do not.
type KeyContext struct {
	Priority    string `json:"priority,omitempty"`
	SessionType string `json:"session_type,omitempty"`
	UserHistory string `json:"user_history,omitempty"`
}

// keyMaterial is the canonical structure hashed into a cache key. Field
// order is fixed by the struct definition, so marshaling is deterministic.
type keyMaterial struct {
	Text    string     `json:"text"`
	Model   string     `json:"model"`
	Schema  string     `json:"schema"`
	Context KeyContext `json:"context"`
}

// GenerateKey derives the cache key for a struggle text and model. The text
// is normalized so trivial whitespace and casing differences share an entry.
func GenerateKey(struggleText, model string, kc KeyContext) string {
	material := keyMaterial{
		Text:    normalizeText(struggleText),
		Model:   model,
		Schema:  SchemaVersion,
		Context: kc,
	}

	data, _ := json.Marshal(material)
	sum := sha256.Sum256(data)
	return KeyPrefix + hex.EncodeToString(sum[:])
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Config selects and tunes the cache backend.
type Config struct {
	// RedisURL enables the Redis backend when non-empty,
	// e.g. redis://localhost:6379/0
	RedisURL string
	TTL      time.Duration
	// MaxEntries bounds the in-memory store
	MaxEntries int
}

// NewStore creates the configured cache backend. When Redis is configured
// but unreachable the in-memory store is used instead so categorization
// keeps working.
func NewStore(cfg Config, logger *zap.Logger) Store {
	if cfg.RedisURL != "" {
		store, err := NewRedisStore(cfg.RedisURL, logger)
		if err == nil {
			return store
		}
		logger.Warn("Redis unavailable, falling back to in-memory cache",
			zap.String("redis_url", cfg.RedisURL),
			zap.Error(err))
	}
	return NewMemoryStore(cfg.MaxEntries, logger)
}
