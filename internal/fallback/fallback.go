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

// Package fallback provides keyword-based struggle categorization used when
// the AI classifier is unavailable or fails.
package fallback

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/JoelMun99/peernest-ai-service/internal/taxonomy"
)

// Scoring weights and confidence bounds
const (
	PrimaryKeywordWeight   = 3.0
	WholeWordBonus         = 1.0
	SecondaryKeywordWeight = 1.5
	PatternMatchWeight     = 2.0
	MultiSignalWeight      = 0.5
	ConfidenceScale        = 0.7
	MinConfidence          = 0.1
	MaxConfidence          = 0.8
	MaxCategories          = 3

	// DefaultCategory is returned when no keyword signals match at all.
	DefaultCategory   = "General Support"
	DefaultConfidence = 0.3
)

// Score is one scored subcategory from the rule engine.
type Score struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

type rule struct {
	category  string
	primary   []string
	secondary []string
	patterns  []*regexp.Regexp
}

// Engine scores struggle text against keyword rules. It is safe for
// concurrent use; rules are immutable after construction.
type Engine struct {
	rules  []rule
	logger *zap.Logger
}

// NewEngine compiles the taxonomy keyword tables into a scoring engine.
// Rules are ordered by taxonomy position so ties break deterministically
// the same way the hierarchy is displayed.
func NewEngine(logger *zap.Logger) *Engine {
	keywords := taxonomy.FallbackKeywords()

	rules := make([]rule, 0, len(keywords))
	for _, cat := range taxonomy.AllSubcategories() {
		ks, ok := keywords[cat]
		if !ok {
			continue
		}
		r := rule{
			category:  cat,
			primary:   normalizeAll(ks.Primary),
			secondary: normalizeAll(ks.Secondary),
		}
		for _, p := range ks.Patterns {
			re, err := regexp.Compile(`(?i)` + p)
			if err != nil {
				logger.Warn("Skipping invalid keyword pattern",
					zap.String("category", cat),
					zap.String("pattern", p),
					zap.Error(err))
				continue
			}
			r.patterns = append(r.patterns, re)
		}
		rules = append(rules, r)
	}

	return &Engine{rules: rules, logger: logger}
}

// Classify scores the struggle text against the rules for the available
// subcategories and returns up to MaxCategories matches ordered by
// confidence. A nil or empty available list admits every rule. When nothing
// matches it returns the general support default so callers always get at
// least one category.
func (e *Engine) Classify(text string, available []string) []Score {
	normalized := normalize(text)
	if normalized == "" {
		return []Score{{Category: DefaultCategory, Confidence: DefaultConfidence}}
	}
	padded := " " + normalized + " "

	var availableSet map[string]bool
	if len(available) > 0 {
		availableSet = make(map[string]bool, len(available))
		for _, c := range available {
			availableSet[c] = true
		}
	}

	type scored struct {
		category string
		score    float64
	}
	var matches []scored

	for _, r := range e.rules {
		if availableSet != nil && !availableSet[r.category] {
			continue
		}
		score := 0.0
		primaryHits := 0

		for _, kw := range r.primary {
			if !strings.Contains(normalized, kw) {
				continue
			}
			score += PrimaryKeywordWeight
			primaryHits++
			if strings.Contains(padded, " "+kw+" ") {
				score += WholeWordBonus
			}
		}

		for _, kw := range r.secondary {
			if strings.Contains(normalized, kw) {
				score += SecondaryKeywordWeight
			}
		}

		for _, re := range r.patterns {
			score += PatternMatchWeight * float64(len(re.FindAllString(normalized, -1)))
		}

		// Multiple distinct primary signals indicate a stronger match
		if primaryHits > 1 {
			score += MultiSignalWeight * float64(primaryHits)
		}

		if score > 0 {
			matches = append(matches, scored{category: r.category, score: score})
		}
	}

	if len(matches) == 0 {
		e.logger.Debug("No keyword matches, using default category")
		return []Score{{Category: DefaultCategory, Confidence: DefaultConfidence}}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if len(matches) > MaxCategories {
		matches = matches[:MaxCategories]
	}

	maxScore := matches[0].score
	results := make([]Score, 0, len(matches))
	for _, m := range matches {
		confidence := m.score / maxScore * ConfidenceScale
		if confidence > MaxConfidence {
			confidence = MaxConfidence
		}
		if confidence < MinConfidence {
			confidence = MinConfidence
		}
		results = append(results, Score{
			Category:   m.category,
			Confidence: round2(confidence),
		})
	}
	return results
}

// OverallConfidence is the unweighted mean of the score confidences,
// rounded to two decimal places.
func OverallConfidence(scores []Score) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s.Confidence
	}
	return round2(sum / float64(len(scores)))
}

// normalize lowercases, strips punctuation, and collapses whitespace so
// keyword matching is insensitive to casing and separators.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func normalizeAll(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if n := normalize(kw); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
