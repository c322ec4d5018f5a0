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

package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoelMun99/peernest-ai-service/internal/audit"
	"github.com/JoelMun99/peernest-ai-service/internal/cache"
	"github.com/JoelMun99/peernest-ai-service/internal/fallback"
	"github.com/JoelMun99/peernest-ai-service/internal/llm"
	"github.com/JoelMun99/peernest-ai-service/internal/monitor"
	"github.com/JoelMun99/peernest-ai-service/internal/resilience"
	"github.com/JoelMun99/peernest-ai-service/internal/taxonomy"
)

const (
	// DefaultMaxTextLength caps incoming struggle text
	DefaultMaxTextLength = 5000
	// DefaultBulkConcurrency bounds concurrent items in bulk mode
	DefaultBulkConcurrency = 5
	// SlowResponseMs is the threshold for flagging slow categorizations
	SlowResponseMs = 5000
	// FallbackTTLDivisor shortens the cache TTL for fallback results so a
	// recovered classifier takes over sooner
	FallbackTTLDivisor = 2
)

// Classifier is the AI classification dependency.
type Classifier interface {
	CategorizeStruggle(ctx context.Context, struggleText string, availableCategories []string) (*llm.Classification, *llm.CallMetrics, error)
	Model() string
}

// Config tunes the orchestration behavior.
type Config struct {
	CacheEnabled    bool
	CacheTTL        time.Duration
	FallbackEnabled bool
	MaxTextLength   int
	BulkConcurrency int
}

// Service orchestrates a categorization request through cache lookup, AI
// classification, and keyword fallback. It never propagates classifier
// failures to callers; the worst outcome is a degraded default result.
type Service struct {
	classifier Classifier
	fallback   *fallback.Engine
	store      cache.Store
	monitor    *monitor.Monitor
	audit      *audit.Store
	config     Config
	logger     *zap.Logger

	mu         sync.RWMutex
	categories []string
}

// NewService wires the categorization pipeline. auditStore may be nil to
// disable the audit trail.
func NewService(classifier Classifier, fallbackEngine *fallback.Engine, store cache.Store, mon *monitor.Monitor, auditStore *audit.Store, config Config, logger *zap.Logger) *Service {
	return &Service{
		classifier: classifier,
		fallback:   fallbackEngine,
		store:      store,
		monitor:    mon,
		audit:      auditStore,
		config:     normalizeConfig(config),
		logger:     logger,
		categories: taxonomy.AllSubcategories(),
	}
}

func normalizeConfig(config Config) Config {
	if config.MaxTextLength <= 0 {
		config.MaxTextLength = DefaultMaxTextLength
	}
	if config.BulkConcurrency <= 0 {
		config.BulkConcurrency = DefaultBulkConcurrency
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = cache.DefaultTTL
	}
	return config
}

// Reconfigure replaces the orchestration tunables, normalizing zero values
// the same way NewService does. Used by config hot reload; in-flight
// requests keep the settings they started with.
func (s *Service) Reconfigure(config Config) {
	config = normalizeConfig(config)

	s.mu.Lock()
	s.config = config
	s.mu.Unlock()

	s.logger.Info("Service tunables updated",
		zap.Bool("cache_enabled", config.CacheEnabled),
		zap.Bool("fallback_enabled", config.FallbackEnabled),
		zap.Int("max_text_length", config.MaxTextLength),
		zap.Int("bulk_concurrency", config.BulkConcurrency))
}

func (s *Service) cfg() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Categorize processes one struggle text. Only invalid input returns an
// error; classifier and cache failures degrade through fallback instead.
func (s *Service) Categorize(ctx context.Context, req Request) (result *Result, err error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.New().String()
	cfg := s.cfg()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic during categorization",
				zap.Any("panic", r),
				zap.String("request_id", requestID))
			result = s.degradedResult(requestID, req, start, "internal error")
			s.record(result, req, "panic")
			err = nil
		}
	}()

	model := FallbackModelName
	if s.classifier != nil {
		model = s.classifier.Model()
	}
	key := cache.GenerateKey(req.StruggleText, model, cache.KeyContext{
		Priority:    req.Context.Priority,
		SessionType: req.Context.SessionType,
		UserHistory: req.Context.UserHistory,
	})

	if cfg.CacheEnabled {
		if cached := s.lookupCache(ctx, key, requestID, req, start); cached != nil {
			s.record(cached, req, "")
			return cached, nil
		}
	}

	var aiErr error
	if s.classifier != nil {
		classification, callMetrics, callErr := s.classifier.CategorizeStruggle(ctx, req.StruggleText, s.Categories())
		if callErr == nil {
			result = s.buildAIResult(requestID, req, classification, callMetrics, start)
			s.storeInCache(ctx, key, result, cfg.CacheTTL)
			s.record(result, req, "")
			return result, nil
		}
		aiErr = callErr
		s.logger.Warn("AI categorization failed",
			zap.Error(aiErr),
			zap.String("request_id", requestID))
	}

	if cfg.FallbackEnabled {
		result = s.buildFallbackResult(requestID, req, aiErr, start)
		s.storeInCache(ctx, key, result, cfg.CacheTTL/FallbackTTLDivisor)
		s.record(result, req, errorKindOf(aiErr))
		return result, nil
	}

	result = s.degradedResult(requestID, req, start, "categorization unavailable")
	s.record(result, req, "unavailable")
	return result, nil
}

// CategorizeBulk processes items concurrently with per-item isolation:
// one bad item never affects the others, and result order matches input
// order.
func (s *Service) CategorizeBulk(ctx context.Context, reqs []Request) *BulkResult {
	start := time.Now()
	results := make([]*Result, len(reqs))

	sem := make(chan struct{}, s.cfg().BulkConcurrency)
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, item Request) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := s.Categorize(ctx, item)
			if err != nil {
				res = s.degradedResult(uuid.New().String(), item, time.Now(), err.Error())
				res.Notes = append(res.Notes, "Item rejected: "+err.Error())
			}
			results[idx] = res
		}(i, req)
	}
	wg.Wait()

	bulk := &BulkResult{
		Results:     results,
		TotalItems:  len(reqs),
		TotalTimeMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	for _, r := range results {
		if r.Success {
			bulk.Succeeded++
		} else {
			bulk.Failed++
		}
	}
	return bulk
}

// Categories returns the active subcategory list.
func (s *Service) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}

// SetCategories replaces the active subcategory list. Every entry must be a
// known taxonomy subcategory.
func (s *Service) SetCategories(subcategories []string) error {
	if len(subcategories) == 0 {
		return resilience.NewBadRequestError("category list cannot be empty", nil)
	}
	for _, sub := range subcategories {
		if taxonomy.MainCategoryFor(sub) == taxonomy.Unknown {
			return resilience.NewBadRequestError(
				fmt.Sprintf("unknown subcategory: %q", sub), nil)
		}
	}

	s.mu.Lock()
	s.categories = append([]string(nil), subcategories...)
	s.mu.Unlock()

	s.logger.Info("Active categories updated", zap.Int("count", len(subcategories)))
	return nil
}

// Model returns the active classifier model name.
func (s *Service) Model() string {
	if s.classifier == nil {
		return FallbackModelName
	}
	return s.classifier.Model()
}

// InvalidateCache removes cached results matching pattern.
func (s *Service) InvalidateCache(ctx context.Context, pattern string) (int, error) {
	return s.store.Invalidate(ctx, pattern)
}

// CacheStats returns cache backend counters.
func (s *Service) CacheStats(ctx context.Context) (cache.Stats, error) {
	return s.store.Stats(ctx)
}

// Close releases the cache and audit backends.
func (s *Service) Close() error {
	var firstErr error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			firstErr = err
		}
	}
	if s.audit != nil {
		if err := s.audit.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) validate(req Request) error {
	if len(req.StruggleText) == 0 {
		return resilience.NewBadRequestError("struggle_text is required", nil)
	}
	if max := s.cfg().MaxTextLength; len(req.StruggleText) > max {
		return resilience.NewBadRequestError(
			fmt.Sprintf("struggle_text exceeds maximum length of %d characters", max), nil)
	}
	return nil
}

func (s *Service) lookupCache(ctx context.Context, key, requestID string, req Request, start time.Time) *Result {
	data, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Cache lookup failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var cached Result
	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.Warn("Discarding unreadable cache entry", zap.Error(err))
		return nil
	}

	cached.RequestID = requestID
	cached.SessionID = req.SessionID
	cached.Timestamp = time.Now().UTC()
	cached.Metrics.CacheHit = true
	cached.Metrics.ProcessingTimeMs = elapsedMs(start)
	return &cached
}

func (s *Service) storeInCache(ctx context.Context, key string, result *Result, ttl time.Duration) {
	if !s.cfg().CacheEnabled {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, key, data, ttl); err != nil {
		s.logger.Warn("Failed to cache result", zap.Error(err))
	}
}

func (s *Service) buildAIResult(requestID string, req Request, classification *llm.Classification, callMetrics *llm.CallMetrics, start time.Time) *Result {
	categories := make([]CategoryScore, 0, len(classification.Categories))
	crisis := classification.CrisisDetected
	for _, c := range classification.Categories {
		categories = append(categories, CategoryScore{
			Category:     c.Category,
			MainCategory: taxonomy.MainCategoryFor(c.Category),
			Confidence:   c.Confidence,
		})
		if taxonomy.IsCrisisCategory(c.Category) {
			crisis = true
		}
	}

	result := &Result{
		RequestID:         requestID,
		SessionID:         req.SessionID,
		Success:           true,
		Categories:        categories,
		PrimaryCategory:   classification.PrimaryCategory,
		OverallConfidence: classification.OverallConfidence,
		CrisisDetected:    crisis,
		Reasoning:         classification.Reasoning,
		SuggestedRooms:    suggestRooms(categories),
		Metrics: ProcessingMetrics{
			ProcessingTimeMs: elapsedMs(start),
			ExternalAPIMs:    float64(callMetrics.Duration.Microseconds()) / 1000,
			ModelUsed:        callMetrics.Model,
			TokensUsed:       callMetrics.TotalTokens,
			Attempts:         callMetrics.Attempts,
		},
		Timestamp: time.Now().UTC(),
	}
	s.enrich(result)
	return result
}

func (s *Service) buildFallbackResult(requestID string, req Request, aiErr error, start time.Time) *Result {
	scores := s.fallback.Classify(req.StruggleText, s.Categories())

	categories := make([]CategoryScore, 0, len(scores))
	crisis := false
	for _, score := range scores {
		categories = append(categories, CategoryScore{
			Category:     score.Category,
			MainCategory: taxonomy.MainCategoryFor(score.Category),
			Confidence:   score.Confidence,
		})
		if taxonomy.IsCrisisCategory(score.Category) {
			crisis = true
		}
	}

	result := &Result{
		RequestID:         requestID,
		SessionID:         req.SessionID,
		Success:           true,
		Categories:        categories,
		PrimaryCategory:   categories[0].Category,
		OverallConfidence: fallback.OverallConfidence(scores),
		CrisisDetected:    crisis,
		SuggestedRooms:    suggestRooms(categories),
		Notes:             []string{fallbackNote(aiErr)},
		Metrics: ProcessingMetrics{
			ProcessingTimeMs: elapsedMs(start),
			ModelUsed:        FallbackModelName,
			FallbackUsed:     true,
		},
		Timestamp: time.Now().UTC(),
	}
	s.enrich(result)
	return result
}

func (s *Service) degradedResult(requestID string, req Request, start time.Time, reason string) *Result {
	s.logger.Warn("Returning degraded result",
		zap.String("request_id", requestID),
		zap.String("reason", reason))

	return &Result{
		RequestID: requestID,
		SessionID: req.SessionID,
		Success:   false,
		Categories: []CategoryScore{{
			Category:   fallback.DefaultCategory,
			Confidence: 0.5,
		}},
		PrimaryCategory:   fallback.DefaultCategory,
		OverallConfidence: 0.5,
		Notes: []string{
			"Categorization could not be completed; a general support match was assigned.",
		},
		Metrics: ProcessingMetrics{
			ProcessingTimeMs: elapsedMs(start),
			ModelUsed:        "none",
		},
		Timestamp: time.Now().UTC(),
	}
}

// enrich appends human-readable notes about confidence and processing.
func (s *Service) enrich(result *Result) {
	switch {
	case result.OverallConfidence >= 0.8:
		result.Notes = append(result.Notes, "High confidence in this categorization.")
	case result.OverallConfidence >= 0.6:
		result.Notes = append(result.Notes, "Moderate confidence; the categorization may benefit from confirmation.")
	default:
		result.Notes = append(result.Notes, "Low confidence; more detail about the struggle would improve matching.")
	}

	if len(result.Categories) > 1 {
		result.Notes = append(result.Notes, "Multiple struggle areas were identified.")
	}
	if result.Metrics.ProcessingTimeMs > SlowResponseMs {
		result.Notes = append(result.Notes, "Categorization took longer than usual.")
	}
	result.Notes = append(result.Notes, "Powered by "+result.Metrics.ModelUsed)
}

func (s *Service) record(result *Result, req Request, errorKind string) {
	if s.monitor != nil {
		s.monitor.RecordCategorization(monitor.Record{
			Timestamp:       result.Timestamp,
			Success:         result.Success,
			CacheHit:        result.Metrics.CacheHit,
			FallbackUsed:    result.Metrics.FallbackUsed,
			CrisisDetected:  result.CrisisDetected,
			ResponseTimeMs:  result.Metrics.ProcessingTimeMs,
			Confidence:      result.OverallConfidence,
			ModelUsed:       result.Metrics.ModelUsed,
			PrimaryCategory: result.PrimaryCategory,
			ErrorKind:       errorKind,
		})
	}

	if s.audit != nil {
		err := s.audit.Record(audit.Entry{
			RequestID:       result.RequestID,
			SessionID:       req.SessionID,
			TextLength:      len(req.StruggleText),
			Success:         result.Success,
			CacheHit:        result.Metrics.CacheHit,
			FallbackUsed:    result.Metrics.FallbackUsed,
			CrisisDetected:  result.CrisisDetected,
			PrimaryCategory: result.PrimaryCategory,
			ModelUsed:       result.Metrics.ModelUsed,
			ProcessingMs:    result.Metrics.ProcessingTimeMs,
		})
		if err != nil {
			s.logger.Warn("Failed to write audit entry", zap.Error(err))
		}
	}
}

// fallbackNote explains why keyword matching was used, carrying the
// classifier failure when there was one.
func fallbackNote(aiErr error) string {
	if aiErr != nil {
		return "Fallback categorization used: " + aiErr.Error()
	}
	return "AI categorization was unavailable; keyword matching was used instead."
}

// errorKindOf maps a classifier failure to a metrics label.
func errorKindOf(err error) string {
	if err == nil {
		return ""
	}
	var clsErr *llm.ClassifierError
	if errors.As(err, &clsErr) {
		return string(clsErr.Kind)
	}
	return "other"
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
