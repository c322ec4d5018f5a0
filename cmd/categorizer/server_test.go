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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JoelMun99/peernest-ai-service/internal/categorize"
	"github.com/JoelMun99/peernest-ai-service/internal/config"
)

// fakeGroqBackend serves the two Groq API endpoints the service uses.
func fakeGroqBackend(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var chatReq struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&chatReq))
		require.NotEmpty(t, chatReq.Messages)

		var payload map[string]interface{}
		if strings.Contains(chatReq.Messages[0].Content, "CRISIS DETECTION") {
			payload = map[string]interface{}{
				"crisis_detected":               true,
				"crisis_level":                  "high",
				"crisis_categories":             []string{"Suicidal Ideation"},
				"immediate_intervention_needed": true,
				"risk_indicators":               []string{"expressed plan"},
				"confidence":                    0.9,
			}
		} else {
			payload = map[string]interface{}{
				"categories": []map[string]interface{}{
					{"category": "Anxiety & Panic", "confidence": 0.92},
				},
				"primary_category":   "Anxiety & Panic",
				"reasoning":          "panic symptoms described",
				"crisis_detected":    false,
				"overall_confidence": 0.92,
			}
		}
		content, err := json.Marshal(payload)
		require.NoError(t, err)

		resp := map[string]interface{}{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "llama3-70b-8192",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]interface{}{"role": "assistant", "content": string(content)},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]interface{}{
				"prompt_tokens":     250,
				"completion_tokens": 60,
				"total_tokens":      310,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/models", func(w http.ResponseWriter, _ *http.Request) {
		resp := map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"id": "llama3-70b-8192", "object": "model", "created": 1, "owned_by": "meta"},
				{"id": "mixtral-8x7b-32768", "object": "model", "created": 1, "owned_by": "mistral"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	return httptest.NewServer(mux)
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *server {
	t.Helper()

	backend := fakeGroqBackend(t)
	t.Cleanup(backend.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8090,
			MaxTextLength:   5000,
			BulkConcurrency: 2,
			BulkMaxItems:    3,
		},
		LLM: config.LLMConfig{
			APIKey:      "test-key", // pragma: allowlist secret
			BaseURL:     backend.URL,
			Model:       "llama3-70b-8192",
			MaxTokens:   500,
			Temperature: 0.3,
			Timeout:     5 * time.Second,
			MaxRetries:  1,
		},
		Fallback: config.FallbackConfig{Enabled: true},
		Cache: config.CacheConfig{
			Enabled:    true,
			TTL:        time.Minute,
			MaxEntries: 100,
		},
		Monitor: config.MonitorConfig{MaxRecords: 100},
		Audit:   config.AuditConfig{Enabled: false},
		Logging: config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}

	if mutate != nil {
		mutate(cfg)
	}

	srv, err := newServer(cfg, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() { _ = srv.service.Close() })

	return srv
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newTestServer(t, nil).router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleCategorize(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/categorize", map[string]interface{}{
		"struggle_text": "I keep having panic attacks before meetings",
		"session_id":    "sess-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result categorize.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.True(t, result.Success)
	assert.Equal(t, "Anxiety & Panic", result.PrimaryCategory)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, "llama3-70b-8192", result.Metrics.ModelUsed)
	assert.False(t, result.Metrics.FallbackUsed)
	assert.NotEmpty(t, result.RequestID)
	assert.NotEmpty(t, result.SuggestedRooms)
}

func TestHandleCategorizeRejectsMissingText(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/categorize", map[string]interface{}{
		"session_id": "sess-1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCategorizeBulk(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/categorize/bulk", map[string]interface{}{
		"items": []map[string]interface{}{
			{"struggle_text": "panic attacks at work"},
			{"struggle_text": "cannot sleep from worry"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result categorize.BulkResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, 2, result.TotalItems)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, result.Results, 2)
}

func TestHandleCategorizeBulkLimits(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/categorize/bulk", map[string]interface{}{
		"items": []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/categorize/bulk", map[string]interface{}{
		"items": []map[string]interface{}{
			{"struggle_text": "one"},
			{"struggle_text": "two"},
			{"struggle_text": "three"},
			{"struggle_text": "four"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCategories(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Hierarchy []struct {
			Name          string   `json:"name"`
			Subcategories []string `json:"subcategories"`
		} `json:"hierarchy"`
		Active []string `json:"active"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Hierarchy, 18)
	assert.Len(t, body.Active, 90)

	// Restrict active categories
	w = doJSON(t, router, http.MethodPut, "/api/v1/categories", map[string]interface{}{
		"categories": []string{"Anxiety & Panic", "Social Anxiety"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var updated struct {
		Active []string `json:"active"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, []string{"Anxiety & Panic", "Social Anxiety"}, updated.Active)

	// Unknown subcategory is rejected
	w = doJSON(t, router, http.MethodPut, "/api/v1/categories", map[string]interface{}{
		"categories": []string{"Not A Real Category"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status       string                 `json:"status"`
		Service      string                 `json:"service"`
		Dependencies map[string]interface{} `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "peernest-ai-service", body.Service)
	assert.Contains(t, body.Dependencies, "cache")
	assert.Contains(t, body.Dependencies, "groq")
	assert.Contains(t, body.Dependencies, "pipeline")
}

func TestHandleStats(t *testing.T) {
	router := newTestRouter(t)

	// Generate one record first
	w := doJSON(t, router, http.MethodPost, "/api/v1/categorize", map[string]interface{}{
		"struggle_text": "panic attacks",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "realtime")
	assert.Contains(t, body, "summary")
	assert.Contains(t, body, "cache")
	assert.Contains(t, body, "breaker")
	assert.Contains(t, body, "rate_limit")

	// Reset drops the recorded metrics
	w = doJSON(t, router, http.MethodPost, "/api/v1/stats/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var reset struct {
		DroppedRecords int `json:"dropped_records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reset))
	assert.Equal(t, 1, reset.DroppedRecords)
}

func TestHandleCacheInvalidate(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/categorize", map[string]interface{}{
		"struggle_text": "panic attacks",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Removed int    `json:"removed"`
		Pattern string `json:"pattern"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Removed)
	assert.Equal(t, "*", body.Pattern)
}

func TestHandleModels(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/models", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Active string   `json:"active"`
		Models []string `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "llama3-70b-8192", body.Active)
	assert.Contains(t, body.Models, "mixtral-8x7b-32768")
}

func TestHandleInfo(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/info", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "peernest-ai-service", body["service"])
	assert.Equal(t, "llama3-70b-8192", body["model"])
	assert.Equal(t, true, body["fallback_enabled"])
}

func TestHandleCrisisCheck(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/crisis-check", map[string]interface{}{
		"struggle_text": "I want to end it all",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Assessment struct {
			CrisisDetected              bool     `json:"crisis_detected"`
			CrisisLevel                 string   `json:"crisis_level"`
			CrisisCategories            []string `json:"crisis_categories"`
			ImmediateInterventionNeeded bool     `json:"immediate_intervention_needed"`
		} `json:"assessment"`
		Model string `json:"model"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Assessment.CrisisDetected)
	assert.Equal(t, "high", body.Assessment.CrisisLevel)
	assert.Contains(t, body.Assessment.CrisisCategories, "Suicidal Ideation")
	assert.True(t, body.Assessment.ImmediateInterventionNeeded)
	assert.Equal(t, "llama3-70b-8192", body.Model)

	w = doJSON(t, router, http.MethodPost, "/api/v1/crisis-check", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAuditLog(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Audit = config.AuditConfig{
			Enabled: true,
			DBPath:  filepath.Join(t.TempDir(), "audit.db"),
		}
	})
	router := srv.router()

	w := doJSON(t, router, http.MethodPost, "/api/v1/categorize", map[string]interface{}{
		"struggle_text": "panic attacks at work",
		"session_id":    "sess-audit",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/audit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Entries []struct {
			SessionID       string `json:"session_id"`
			PrimaryCategory string `json:"primary_category"`
			Success         bool   `json:"success"`
		} `json:"entries"`
		Count int `json:"count"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, 1, body.Total)
	assert.Equal(t, "sess-audit", body.Entries[0].SessionID)
	assert.Equal(t, "Anxiety & Panic", body.Entries[0].PrimaryCategory)
	assert.True(t, body.Entries[0].Success)

	w = doJSON(t, router, http.MethodGet, "/api/v1/audit?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/audit?days=1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var pruned struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pruned))
	assert.Equal(t, 0, pruned.Removed)
}

func TestHandleAuditLogDisabled(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/audit", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{
			Enabled:             true,
			CategorizePerMinute: 1,
			BulkPerMinute:       1,
			AdminPerMinute:      100,
		}
	})
	router := srv.router()

	body := map[string]interface{}{"struggle_text": "panic attacks at work"}

	w := doJSON(t, router, http.MethodPost, "/api/v1/categorize", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/categorize", body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Admin endpoints budget independently
	w = doJSON(t, router, http.MethodGet, "/api/v1/info", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
