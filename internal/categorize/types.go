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

// Package categorize orchestrates struggle categorization: cache lookup,
// AI classification, keyword fallback, and result enrichment.
package categorize

import "time"

// FallbackModelName marks results produced by the keyword rule engine.
const FallbackModelName = "fallback_rules"

// RequestContext carries the request fields that influence categorization.
type RequestContext struct {
	Priority    string `json:"priority,omitempty"`
	SessionType string `json:"session_type,omitempty"`
	UserHistory string `json:"user_history,omitempty"`
}

// Request is one struggle to categorize.
type Request struct {
	StruggleText string         `json:"struggle_text"`
	SessionID    string         `json:"session_id,omitempty"`
	Context      RequestContext `json:"context,omitempty"`
}

// CategoryScore is one matched subcategory annotated with its main category.
type CategoryScore struct {
	Category     string  `json:"category"`
	MainCategory string  `json:"main_category,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// ProcessingMetrics describes how a result was produced.
type ProcessingMetrics struct {
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	ExternalAPIMs    float64 `json:"external_api_time_ms,omitempty"`
	ModelUsed        string  `json:"model_used"`
	TokensUsed       int     `json:"tokens_used,omitempty"`
	Attempts         int     `json:"attempts,omitempty"`
	CacheHit         bool    `json:"cache_hit"`
	FallbackUsed     bool    `json:"fallback_used"`
}

// RoomSuggestion points a user toward a peer-support room for their
// primary struggle.
type RoomSuggestion struct {
	RoomType   string  `json:"room_type"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	MatchScore float64 `json:"match_score,omitempty"`
}

// Result is a completed categorization.
type Result struct {
	RequestID         string            `json:"request_id"`
	SessionID         string            `json:"session_id,omitempty"`
	Success           bool              `json:"success"`
	Categories        []CategoryScore   `json:"categories"`
	PrimaryCategory   string            `json:"primary_category"`
	OverallConfidence float64           `json:"overall_confidence"`
	CrisisDetected    bool              `json:"crisis_detected"`
	Reasoning         string            `json:"reasoning,omitempty"`
	Notes             []string          `json:"notes,omitempty"`
	SuggestedRooms    []RoomSuggestion  `json:"suggested_rooms,omitempty"`
	Metrics           ProcessingMetrics `json:"metrics"`
	Timestamp         time.Time         `json:"timestamp"`
}

// BulkResult wraps the per-item results of a bulk request. Results keep the
// order of the incoming items.
type BulkResult struct {
	Results     []*Result `json:"results"`
	TotalItems  int       `json:"total_items"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	TotalTimeMs float64   `json:"total_time_ms"`
}
