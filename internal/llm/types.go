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

// Package llm adapts the Groq chat completion API for struggle
// categorization, including parsing and validating model replies.
package llm

import (
	"fmt"
	"time"
)

// CategoryScore is one subcategory with its model-assigned confidence.
type CategoryScore struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Classification is a validated categorization produced by the model.
type Classification struct {
	Categories        []CategoryScore `json:"categories"`
	PrimaryCategory   string          `json:"primary_category"`
	Reasoning         string          `json:"reasoning,omitempty"`
	CrisisDetected    bool            `json:"crisis_detected"`
	OverallConfidence float64         `json:"overall_confidence"`
}

// CrisisAssessment is the model's dedicated risk analysis of a struggle
// text, separate from the category confidences of a full classification.
type CrisisAssessment struct {
	CrisisDetected              bool     `json:"crisis_detected"`
	CrisisLevel                 string   `json:"crisis_level"`
	CrisisCategories            []string `json:"crisis_categories,omitempty"`
	ImmediateInterventionNeeded bool     `json:"immediate_intervention_needed"`
	RiskIndicators              []string `json:"risk_indicators,omitempty"`
	Confidence                  float64  `json:"confidence"`
}

// CallMetrics describes one completed API call.
type CallMetrics struct {
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Duration         time.Duration `json:"duration"`
	Attempts         int           `json:"attempts"`
}

// ErrorKind distinguishes the failure stages of a categorization call.
type ErrorKind string

const (
	// KindTransport covers network and upstream API failures
	KindTransport ErrorKind = "transport"
	// KindParse covers unparseable model replies
	KindParse ErrorKind = "parse"
	// KindValidation covers replies that parse but contain no usable categories
	KindValidation ErrorKind = "validation"
)

// ClassifierError is a failure from the AI classifier with enough context
// for the orchestrator to decide whether to fall back.
type ClassifierError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *ClassifierError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}
