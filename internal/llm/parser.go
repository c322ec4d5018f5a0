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
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"
)

// rawClassification mirrors the JSON shape requested from the model.
type rawClassification struct {
	Categories []struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	} `json:"categories"`
	PrimaryCategory string `json:"primary_category"`
	Reasoning       string `json:"reasoning"`
	CrisisDetected  bool   `json:"crisis_detected"`
}

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseClassification extracts a classification from a model reply. Models
// wrap the JSON in prose, markdown fences, or emit it without the outer
// braces, so several extraction strategies are tried in order. Categories
// not in validCategories are dropped and confidences clamped to [0, 1];
// survivors are sorted by descending confidence, and primary and overall
// confidence are recomputed from them. A reply without a primary_category
// field is rejected outright.
func ParseClassification(content string, validCategories []string) (*Classification, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ClassifierError{Kind: KindParse, Message: "empty model reply"}
	}

	raw, ok := tryParse(content)
	if !ok {
		raw, ok = parseAfterMarker(content)
	}
	if !ok {
		raw, ok = parseFenced(content)
	}
	if !ok {
		raw, ok = parseBraceScan(content)
	}
	if !ok {
		return nil, &ClassifierError{
			Kind:    KindParse,
			Message: "no parseable categorization in model reply",
		}
	}

	return validate(raw, validCategories)
}

// tryParse attempts a direct parse, also accepting replies that omit the
// outer braces as the prompt's example output does.
func tryParse(s string) (rawClassification, bool) {
	s = strings.TrimSpace(s)
	var raw rawClassification

	if strings.HasPrefix(s, "{") {
		if json.Unmarshal([]byte(s), &raw) == nil && len(raw.Categories) > 0 {
			return raw, true
		}
		return rawClassification{}, false
	}

	if strings.HasPrefix(s, `"categories"`) {
		if json.Unmarshal([]byte("{"+s+"}"), &raw) == nil && len(raw.Categories) > 0 {
			return raw, true
		}
	}
	return rawClassification{}, false
}

func parseAfterMarker(content string) (rawClassification, bool) {
	idx := strings.Index(content, "JSON OUTPUT:")
	if idx < 0 {
		return rawClassification{}, false
	}
	rest := content[idx+len("JSON OUTPUT:"):]
	if raw, ok := tryParse(rest); ok {
		return raw, true
	}
	return parseBraceScan(rest)
}

func parseFenced(content string) (rawClassification, bool) {
	for _, m := range jsonFenceRe.FindAllStringSubmatch(content, -1) {
		if raw, ok := tryParse(m[1]); ok {
			return raw, true
		}
	}
	return rawClassification{}, false
}

// parseBraceScan locates the object containing "categories" by walking back
// to the nearest opening brace and forward to its balanced close.
func parseBraceScan(content string) (rawClassification, bool) {
	catIdx := strings.Index(content, `"categories"`)
	if catIdx < 0 {
		return rawClassification{}, false
	}

	start := strings.LastIndex(content[:catIdx], "{")
	if start < 0 {
		// No enclosing brace; treat the remainder as a braceless body
		return tryParse(content[catIdx:])
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return tryParse(content[start : i+1])
			}
		}
	}
	return rawClassification{}, false
}

// ParseCrisisAssessment extracts a crisis assessment from a model reply,
// tolerating markdown fences and surrounding prose.
func ParseCrisisAssessment(content string) (*CrisisAssessment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ClassifierError{Kind: KindParse, Message: "empty model reply"}
	}
	if m := jsonFenceRe.FindStringSubmatch(content); m != nil {
		content = m[1]
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, &ClassifierError{
			Kind:    KindParse,
			Message: "no parseable crisis assessment in model reply",
		}
	}

	var assessment CrisisAssessment
	if err := json.Unmarshal([]byte(content[start:end+1]), &assessment); err != nil {
		return nil, &ClassifierError{
			Kind:    KindParse,
			Message: "malformed crisis assessment: " + err.Error(),
			Err:     err,
		}
	}

	if assessment.Confidence < 0 {
		assessment.Confidence = 0
	}
	if assessment.Confidence > 1 {
		assessment.Confidence = 1
	}
	if assessment.CrisisLevel == "" {
		assessment.CrisisLevel = "none"
	}
	return &assessment, nil
}

func validate(raw rawClassification, validCategories []string) (*Classification, error) {
	if raw.PrimaryCategory == "" {
		return nil, &ClassifierError{
			Kind:    KindValidation,
			Message: "model reply missing primary_category",
		}
	}

	validSet := make(map[string]bool, len(validCategories))
	for _, c := range validCategories {
		validSet[c] = true
	}

	var categories []CategoryScore
	for _, c := range raw.Categories {
		if c.Category == "" || !validSet[c.Category] {
			continue
		}
		confidence := c.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		categories = append(categories, CategoryScore{
			Category:   c.Category,
			Confidence: confidence,
		})
	}

	if len(categories) == 0 {
		return nil, &ClassifierError{
			Kind:    KindValidation,
			Message: "model reply contained no valid categories",
		}
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Confidence > categories[j].Confidence
	})

	sum := 0.0
	for _, c := range categories {
		sum += c.Confidence
	}

	return &Classification{
		Categories:        categories,
		PrimaryCategory:   categories[0].Category,
		Reasoning:         raw.Reasoning,
		CrisisDetected:    raw.CrisisDetected,
		OverallConfidence: math.Round(sum/float64(len(categories))*100) / 100,
	}, nil
}
