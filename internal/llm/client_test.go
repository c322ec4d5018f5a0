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

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// completionReply builds an OpenAI-compatible chat completion response body.
func completionReply(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "llama3-70b-8192",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     250,
			"completion_tokens": 60,
			"total_tokens":      310,
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "llama3-70b-8192",
		MaxRetries: 1,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, srv
}

func TestCategorizeStruggleSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply := `{"categories": [{"category": "Anxiety & Panic", "confidence": 0.91}], "primary_category": "Anxiety & Panic", "crisis_detected": false}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionReply(reply))
	})

	c, metrics, err := client.CategorizeStruggle(context.Background(),
		"I keep having panic attacks", testCategories)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.PrimaryCategory != "Anxiety & Panic" {
		t.Errorf("Primary = %q", c.PrimaryCategory)
	}
	if metrics.TotalTokens != 310 {
		t.Errorf("TotalTokens = %d, want 310", metrics.TotalTokens)
	}
	if metrics.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", metrics.Attempts)
	}
}

func TestDetectCrisisSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply := `{"crisis_detected": true, "crisis_level": "high", "crisis_categories": ["Suicidal Ideation"], "immediate_intervention_needed": true, "confidence": 0.9}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionReply(reply))
	})

	assessment, metrics, err := client.DetectCrisis(context.Background(), "I want to end it all")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !assessment.CrisisDetected {
		t.Error("expected CrisisDetected = true")
	}
	if assessment.CrisisLevel != "high" {
		t.Errorf("CrisisLevel = %q, want high", assessment.CrisisLevel)
	}
	if metrics.TotalTokens != 310 {
		t.Errorf("TotalTokens = %d, want 310", metrics.TotalTokens)
	}
}

func TestCategorizeStruggleRetriesOnServerError(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, `{"error": {"message": "internal error"}}`, http.StatusInternalServerError)
			return
		}
		reply := `{"categories": [{"category": "Depression & Mood Swings", "confidence": 0.8}], "primary_category": "Depression & Mood Swings"}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionReply(reply))
	})

	c, metrics, err := client.CategorizeStruggle(context.Background(),
		"I feel hopeless", testCategories)
	if err != nil {
		t.Fatalf("Unexpected error after retry: %v", err)
	}
	if c.PrimaryCategory != "Depression & Mood Swings" {
		t.Errorf("Primary = %q", c.PrimaryCategory)
	}
	if metrics.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", metrics.Attempts)
	}
}

func TestCategorizeStruggleDoesNotRetryAuthFailure(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error": {"message": "invalid api key"}}`, http.StatusUnauthorized)
	})

	_, _, err := client.CategorizeStruggle(context.Background(),
		"some text", testCategories)
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call for auth failure, got %d", calls)
	}

	var clsErr *ClassifierError
	if !errors.As(err, &clsErr) {
		t.Fatalf("Expected ClassifierError, got %T", err)
	}
	if clsErr.Kind != KindTransport {
		t.Errorf("Kind = %s, want transport", clsErr.Kind)
	}
}

func TestCategorizeStruggleParseFailureNotRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionReply("I am unable to categorize this."))
	})

	_, _, err := client.CategorizeStruggle(context.Background(),
		"some text", testCategories)
	if err == nil {
		t.Fatal("Expected parse error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 API call, got %d", calls)
	}

	var clsErr *ClassifierError
	if !errors.As(err, &clsErr) {
		t.Fatalf("Expected ClassifierError, got %T", err)
	}
	if clsErr.Kind != KindParse {
		t.Errorf("Kind = %s, want parse", clsErr.Kind)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatal("Expected error for missing API key")
	}
}

func TestListModels(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"id": "llama3-70b-8192", "object": "model"},
				{"id": "mixtral-8x7b-32768", "object": "model"},
			},
		})
	})

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("Expected 2 models, got %d", len(models))
	}
	if models[0] != "llama3-70b-8192" {
		t.Errorf("models[0] = %q", models[0])
	}
}
