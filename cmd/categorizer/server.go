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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JoelMun99/peernest-ai-service/internal/audit"
	"github.com/JoelMun99/peernest-ai-service/internal/cache"
	"github.com/JoelMun99/peernest-ai-service/internal/categorize"
	"github.com/JoelMun99/peernest-ai-service/internal/config"
	"github.com/JoelMun99/peernest-ai-service/internal/fallback"
	"github.com/JoelMun99/peernest-ai-service/internal/health"
	"github.com/JoelMun99/peernest-ai-service/internal/llm"
	"github.com/JoelMun99/peernest-ai-service/internal/monitor"
	"github.com/JoelMun99/peernest-ai-service/internal/ratelimit"
	"github.com/JoelMun99/peernest-ai-service/internal/resilience"
	"github.com/JoelMun99/peernest-ai-service/internal/taxonomy"
)

const (
	// StatsWindow is the window used by the stats endpoint summaries
	StatsWindow = time.Hour
)

type server struct {
	service       *categorize.Service
	llmClient     *llm.Client
	monitor       *monitor.Monitor
	healthManager *health.Manager
	auditStore    *audit.Store
	rateLimiter   *ratelimit.Limiter
	config        *config.Config
	logger        *zap.Logger
}

// serviceDeps holds the assembled categorization pipeline and the
// components the HTTP layer needs direct access to.
type serviceDeps struct {
	service    *categorize.Service
	llmClient  *llm.Client
	store      cache.Store
	monitor    *monitor.Monitor
	auditStore *audit.Store
}

// buildDeps assembles the categorization pipeline from configuration.
func buildDeps(cfg *config.Config, logger *zap.Logger) (*serviceDeps, error) {
	llmClient, err := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Groq client: %w", err)
	}

	store := cache.NewStore(cache.Config{
		RedisURL:   cfg.Cache.RedisURL,
		TTL:        cfg.Cache.TTL,
		MaxEntries: cfg.Cache.MaxEntries,
	}, logger)

	mon := monitor.NewMonitor(cfg.Monitor.MaxRecords, logger)

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(cfg.Audit.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit store: %w", err)
		}
	}

	service := categorize.NewService(
		llmClient,
		fallback.NewEngine(logger),
		store,
		mon,
		auditStore,
		categorize.Config{
			CacheEnabled:    cfg.Cache.Enabled,
			CacheTTL:        cfg.Cache.TTL,
			FallbackEnabled: cfg.Fallback.Enabled,
			MaxTextLength:   cfg.Server.MaxTextLength,
			BulkConcurrency: cfg.Server.BulkConcurrency,
		},
		logger,
	)

	return &serviceDeps{
		service:    service,
		llmClient:  llmClient,
		store:      store,
		monitor:    mon,
		auditStore: auditStore,
	}, nil
}

func newServer(cfg *config.Config, logger *zap.Logger) (*server, error) {
	deps, err := buildDeps(cfg, logger)
	if err != nil {
		return nil, err
	}

	healthManager := health.NewManager("peernest-ai-service", Version, logger)
	healthManager.AddChecker("cache", health.PingChecker("cache", deps.store.Ping, false))
	healthManager.AddChecker("groq", health.PingChecker("groq", deps.llmClient.Ping, true))
	healthManager.AddChecker("pipeline", health.PipelineChecker(deps.monitor))

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Enabled: cfg.RateLimit.Enabled,
		Window:  time.Minute,
		Limits: map[string]int{
			ratelimit.CategoryCategorize: cfg.RateLimit.CategorizePerMinute,
			ratelimit.CategoryBulk:       cfg.RateLimit.BulkPerMinute,
			ratelimit.CategoryAdmin:      cfg.RateLimit.AdminPerMinute,
		},
	}, logger)

	return &server{
		service:       deps.service,
		llmClient:     deps.llmClient,
		monitor:       deps.monitor,
		healthManager: healthManager,
		auditStore:    deps.auditStore,
		rateLimiter:   limiter,
		config:        cfg,
		logger:        logger,
	}, nil
}

// applyConfig pushes reloaded tunables into the running pipeline. Listener
// settings and the model endpoint stay fixed for the process lifetime.
func (s *server) applyConfig(cfg *config.Config) {
	s.service.Reconfigure(categorize.Config{
		CacheEnabled:    cfg.Cache.Enabled,
		CacheTTL:        cfg.Cache.TTL,
		FallbackEnabled: cfg.Fallback.Enabled,
		MaxTextLength:   cfg.Server.MaxTextLength,
		BulkConcurrency: cfg.Server.BulkConcurrency,
	})
}

func (s *server) router() *gin.Engine {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.handleHealth)

	categorizeLimit := s.rateLimiter.Middleware(ratelimit.CategoryCategorize)
	bulkLimit := s.rateLimiter.Middleware(ratelimit.CategoryBulk)
	adminLimit := s.rateLimiter.Middleware(ratelimit.CategoryAdmin)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.POST("/categorize", categorizeLimit, s.handleCategorize)
		v1.POST("/categorize/bulk", bulkLimit, s.handleCategorizeBulk)
		v1.POST("/crisis-check", categorizeLimit, s.handleCrisisCheck)
		v1.GET("/categories", adminLimit, s.handleGetCategories)
		v1.PUT("/categories", adminLimit, s.handlePutCategories)
		v1.GET("/stats", adminLimit, s.handleStats)
		v1.POST("/stats/reset", adminLimit, s.handleStatsReset)
		v1.DELETE("/cache", adminLimit, s.handleCacheInvalidate)
		v1.GET("/models", adminLimit, s.handleModels)
		v1.GET("/info", adminLimit, s.handleInfo)
		v1.GET("/audit", adminLimit, s.handleAuditLog)
		v1.DELETE("/audit", adminLimit, s.handleAuditPrune)
	}

	return router
}

// run starts the HTTP server and blocks until shutdown.
func (s *server) run() error {
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.router(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting categorization service",
			zap.String("addr", httpServer.Addr),
			zap.String("model", s.llmClient.Model()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down categorization service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Graceful shutdown failed", zap.Error(err))
	}

	return s.service.Close()
}

type contextPayload struct {
	Priority    string `json:"priority"`
	SessionType string `json:"session_type"`
	UserHistory string `json:"user_history"`
}

type categorizeRequest struct {
	StruggleText string         `json:"struggle_text" binding:"required"`
	SessionID    string         `json:"session_id"`
	Context      contextPayload `json:"context"`
}

type bulkRequest struct {
	Items []categorizeRequest `json:"items" binding:"required"`
}

func (r categorizeRequest) toServiceRequest() categorize.Request {
	return categorize.Request{
		StruggleText: r.StruggleText,
		SessionID:    r.SessionID,
		Context: categorize.RequestContext{
			Priority:    r.Context.Priority,
			SessionType: r.Context.SessionType,
			UserHistory: r.Context.UserHistory,
		},
	}
}

func (s *server) handleCategorize(c *gin.Context) {
	var req categorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, resilience.NewBadRequestError("invalid request format: "+err.Error(), err))
		return
	}

	result, err := s.service.Categorize(c.Request.Context(), req.toServiceRequest())
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("Categorization completed",
		zap.String("request_id", result.RequestID),
		zap.String("primary_category", result.PrimaryCategory),
		zap.Bool("crisis_detected", result.CrisisDetected),
		zap.Bool("cache_hit", result.Metrics.CacheHit),
		zap.Bool("fallback_used", result.Metrics.FallbackUsed),
		zap.Float64("processing_ms", result.Metrics.ProcessingTimeMs),
	)

	c.JSON(http.StatusOK, result)
}

func (s *server) handleCategorizeBulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, resilience.NewBadRequestError("invalid request format: "+err.Error(), err))
		return
	}
	if len(req.Items) == 0 {
		s.respondError(c, resilience.NewBadRequestError("items cannot be empty", nil))
		return
	}
	if len(req.Items) > s.config.Server.BulkMaxItems {
		s.respondError(c, resilience.NewBadRequestError(
			fmt.Sprintf("too many items: %d exceeds limit of %d", len(req.Items), s.config.Server.BulkMaxItems), nil))
		return
	}

	reqs := make([]categorize.Request, len(req.Items))
	for i, item := range req.Items {
		reqs[i] = item.toServiceRequest()
	}

	result := s.service.CategorizeBulk(c.Request.Context(), reqs)

	s.logger.Info("Bulk categorization completed",
		zap.Int("total_items", result.TotalItems),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Float64("total_ms", result.TotalTimeMs),
	)

	c.JSON(http.StatusOK, result)
}

func (s *server) handleGetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"hierarchy": taxonomy.Hierarchy(),
		"active":    s.service.Categories(),
		"summary":   taxonomy.Summary(),
	})
}

type putCategoriesRequest struct {
	Categories []string `json:"categories" binding:"required"`
}

func (s *server) handlePutCategories(c *gin.Context) {
	var req putCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, resilience.NewBadRequestError("invalid request format: "+err.Error(), err))
		return
	}

	if err := s.service.SetCategories(req.Categories); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active": s.service.Categories(),
	})
}

type crisisRequest struct {
	StruggleText string `json:"struggle_text" binding:"required"`
}

func (s *server) handleCrisisCheck(c *gin.Context) {
	var req crisisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, resilience.NewBadRequestError("invalid request format: "+err.Error(), err))
		return
	}

	assessment, metrics, err := s.llmClient.DetectCrisis(c.Request.Context(), req.StruggleText)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("Crisis check completed",
		zap.Bool("crisis_detected", assessment.CrisisDetected),
		zap.String("crisis_level", assessment.CrisisLevel),
		zap.Bool("immediate_intervention_needed", assessment.ImmediateInterventionNeeded),
	)

	c.JSON(http.StatusOK, gin.H{
		"assessment":           assessment,
		"model":                metrics.Model,
		"external_api_time_ms": float64(metrics.Duration.Microseconds()) / 1000,
	})
}

func (s *server) handleAuditLog(c *gin.Context) {
	if s.auditStore == nil {
		s.respondError(c, resilience.NewNotFoundError("audit trail is not enabled", nil))
		return
	}

	filters := audit.FilterOptions{Model: c.Query("model")}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.respondError(c, resilience.NewBadRequestError("limit must be a positive integer", err))
			return
		}
		filters.Limit = limit
	}
	if raw := c.Query("success"); raw != "" {
		v := raw == "true"
		filters.Success = &v
	}
	if raw := c.Query("fallback"); raw != "" {
		v := raw == "true"
		filters.FallbackUsed = &v
	}

	entries, err := s.auditStore.Query(filters)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total, err := s.auditStore.Count()
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
		"total":   total,
	})
}

func (s *server) handleAuditPrune(c *gin.Context) {
	if s.auditStore == nil {
		s.respondError(c, resilience.NewNotFoundError("audit trail is not enabled", nil))
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		s.respondError(c, resilience.NewBadRequestError("days must be a positive integer", err))
		return
	}

	removed, err := s.auditStore.Prune(time.Now().AddDate(0, 0, -days))
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("Audit trail pruned",
		zap.Int("older_than_days", days),
		zap.Int64("removed", removed))
	c.JSON(http.StatusOK, gin.H{"removed": removed, "older_than_days": days})
}

func (s *server) handleHealth(c *gin.Context) {
	report := s.healthManager.Check(c.Request.Context())

	statusCode := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, report)
}

func (s *server) handleStats(c *gin.Context) {
	cacheStats, err := s.service.CacheStats(c.Request.Context())
	if err != nil {
		s.logger.Warn("Failed to read cache stats", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"realtime":   s.monitor.Stats(),
		"summary":    s.monitor.Summarize(StatsWindow),
		"categories": s.monitor.CategoryAnalytics(StatsWindow),
		"cache":      cacheStats,
		"breaker":    s.llmClient.BreakerStats(),
		"rate_limit": s.rateLimiter.Stats(),
	})
}

func (s *server) handleStatsReset(c *gin.Context) {
	dropped := s.monitor.Reset()
	s.logger.Info("Metrics reset", zap.Int("dropped_records", dropped))
	c.JSON(http.StatusOK, gin.H{"dropped_records": dropped})
}

func (s *server) handleCacheInvalidate(c *gin.Context) {
	pattern := c.DefaultQuery("pattern", "*")

	removed, err := s.service.InvalidateCache(c.Request.Context(), pattern)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("Cache invalidated",
		zap.String("pattern", pattern),
		zap.Int("removed", removed))
	c.JSON(http.StatusOK, gin.H{"removed": removed, "pattern": pattern})
}

func (s *server) handleModels(c *gin.Context) {
	models, err := s.llmClient.ListModels(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active": s.llmClient.Model(),
		"models": models,
	})
}

func (s *server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":          "peernest-ai-service",
		"version":          Version,
		"model":            s.llmClient.Model(),
		"fallback_enabled": s.config.Fallback.Enabled,
		"cache_enabled":    s.config.Cache.Enabled,
		"audit_enabled":    s.config.Audit.Enabled,
		"max_text_length":  s.config.Server.MaxTextLength,
		"bulk_max_items":   s.config.Server.BulkMaxItems,
	})
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *server) respondError(c *gin.Context, err error) {
	svcErr := resilience.Classify(err, c.FullPath())

	if svcErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}

	c.JSON(svcErr.StatusCode, svcErr.ToErrorResponse(uuid.New().String()))
}
