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

package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxEntries bounds the in-memory cache size.
const DefaultMaxEntries = 1000

type memoryEntry struct {
	value      []byte
	expiresAt  time.Time
	accessedAt time.Time
}

// MemoryStore is an in-process cache used when Redis is not configured or
// unreachable. Expired entries are purged lazily; when the store grows past
// its capacity the least recently accessed entries are evicted.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	maxEntries int
	hits       int64
	misses     int64
	logger     *zap.Logger
}

// NewMemoryStore creates an in-memory cache store.
func NewMemoryStore(maxEntries int, logger *zap.Logger) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	logger.Info("In-memory cache initialized", zap.Int("max_entries", maxEntries))
	return &MemoryStore{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		logger:     logger,
	}
}

// Get returns the cached value for key if present and not expired.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		m.misses++
		return nil, false, nil
	}

	entry.accessedAt = time.Now()
	m.hits++

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

// Set stores value under key for the given TTL.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxEntries {
		m.purgeExpiredLocked()
		if len(m.entries) >= m.maxEntries {
			m.evictOldestLocked()
		}
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	now := time.Now()
	m.entries[key] = &memoryEntry{
		value:      stored,
		expiresAt:  now.Add(ttl),
		accessedAt: now,
	}
	return nil
}

// Invalidate removes entries whose key contains pattern and returns the
// count removed. "*" or an empty pattern clears everything.
func (m *MemoryStore) Invalidate(ctx context.Context, pattern string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pattern == "" || pattern == "*" {
		removed := len(m.entries)
		m.entries = make(map[string]*memoryEntry)
		m.logger.Info("Memory cache cleared", zap.Int("removed", removed))
		return removed, nil
	}

	needle := strings.Trim(pattern, "*")
	removed := 0
	for key := range m.entries {
		if strings.Contains(key, needle) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Stats returns hit/miss counters and the current entry count.
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Backend: "memory",
		Entries: int64(len(m.entries)),
		Hits:    m.hits,
		Misses:  m.misses,
	}
	if total := m.hits + m.misses; total > 0 {
		stats.HitRate = float64(m.hits) / float64(total)
	}
	return stats, nil
}

// Ping always succeeds for the in-memory backend.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases the entry map.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry)
	return nil
}

func (m *MemoryStore) purgeExpiredLocked() {
	now := time.Now()
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}

// evictOldestLocked removes the least recently accessed tenth of the cache
// to make room for new entries.
func (m *MemoryStore) evictOldestLocked() {
	toEvict := m.maxEntries / 10
	if toEvict < 1 {
		toEvict = 1
	}

	for i := 0; i < toEvict && len(m.entries) > 0; i++ {
		var oldestKey string
		var oldestTime time.Time
		for key, entry := range m.entries {
			if oldestKey == "" || entry.accessedAt.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.accessedAt
			}
		}
		delete(m.entries, oldestKey)
	}

	m.logger.Debug("Evicted least recently used cache entries",
		zap.Int("evicted", toEvict),
		zap.Int("remaining", len(m.entries)))
}
