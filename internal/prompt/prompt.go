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

// Package prompt builds the LLM prompts for struggle categorization,
// including crisis-priority framing and few-shot examples.
package prompt

import (
	"fmt"
	"strings"

	"github.com/JoelMun99/peernest-ai-service/internal/taxonomy"
)

// fewShotExample is one input/output pair shown to the model.
type fewShotExample struct {
	input      string
	primary    string
	categories string
}

// Builder assembles categorization prompts from the taxonomy hierarchy.
type Builder struct {
	hierarchy []taxonomy.MainCategory
	crisis    map[string]bool
	examples  []fewShotExample
}

// NewBuilder creates a prompt builder seeded with the PeerNest taxonomy.
func NewBuilder() *Builder {
	crisis := make(map[string]bool)
	for _, c := range taxonomy.CrisisCategories() {
		crisis[c] = true
	}

	return &Builder{
		hierarchy: taxonomy.Hierarchy(),
		crisis:    crisis,
		examples: []fewShotExample{
			{
				input:      "I've been having panic attacks at work and my heart races whenever I think about presentations. I can't sleep and feel constantly on edge.",
				primary:    "Anxiety & Panic",
				categories: "Anxiety & Panic (0.92), Job or Work Burnout (0.76)",
			},
			{
				input:      "I've been thinking about ending my life because I don't see any point in continuing. Everything feels hopeless.",
				primary:    "Suicidal Ideation",
				categories: "Suicidal Ideation (0.96), Depression & Mood Swings (0.84)",
			},
		},
	}
}

// BuildCategorizationPrompt creates the main categorization prompt for a
// struggle text, constrained to the available subcategories.
func (b *Builder) BuildCategorizationPrompt(struggleText string, available []string) string {
	var sb strings.Builder

	sb.WriteString("Analyze this mental health struggle and categorize into PeerNest subcategories.\n\n")
	sb.WriteString(b.crisisWarning())
	sb.WriteString("\n\nGUIDELINES:\n")
	sb.WriteString("1. Select 1-3 most relevant subcategories\n")
	sb.WriteString("2. Assign confidence scores (0.0-1.0)\n")
	sb.WriteString("3. Crisis categories take priority\n\n")
	sb.WriteString("CATEGORIES:\n")
	sb.WriteString(b.organizeByMain(available))
	sb.WriteString("\n\n")
	sb.WriteString(b.fewShotSection())
	sb.WriteString("\n\nUSER STRUGGLE: \"")
	sb.WriteString(struggleText)
	sb.WriteString("\"\n\nJSON OUTPUT:\n")
	sb.WriteString(`"categories": [{"category": "Name", "confidence": 0.85}],` + "\n")
	sb.WriteString(`"primary_category": "Highest Confidence Category",` + "\n")
	sb.WriteString(`"reasoning": "Brief explanation",` + "\n")
	sb.WriteString(`"crisis_detected": false` + "\n\n")
	sb.WriteString("Use only listed subcategories. Primary = highest confidence.\n")

	return sb.String()
}

// BuildCrisisDetectionPrompt creates a specialized prompt focused solely on
// immediate risk indicators.
func (b *Builder) BuildCrisisDetectionPrompt(struggleText string) string {
	return fmt.Sprintf(`CRISIS DETECTION ANALYSIS

You are a crisis intervention specialist. Analyze the following text for immediate risk indicators.

CRISIS CATEGORIES TO DETECT:
- Suicidal Ideation (thoughts of ending life, suicide plans, hopelessness)
- Non-suicidal Self-injury (cutting, burning, self-harm behaviors)
- Safety Planning (immediate safety concerns, crisis situations)
- Consent Violation (sexual assault, abuse, trauma)
- Flashbacks & Triggers (severe PTSD episodes, dissociation)

TEXT TO ANALYZE:
%q

Respond with JSON only:
{
    "crisis_detected": true/false,
    "crisis_level": "none/low/medium/high/immediate",
    "crisis_categories": ["category1", "category2"],
    "immediate_intervention_needed": true/false,
    "risk_indicators": ["indicator1", "indicator2"],
    "confidence": 0.0-1.0
}
`, struggleText)
}

// OptimizeForModel adapts the prompt framing to the model family. Mixtral
// models respond better to tagged instructions, Llama models to a direct
// task header.
func (b *Builder) OptimizeForModel(basePrompt, modelName string) string {
	name := strings.ToLower(modelName)
	switch {
	case strings.Contains(name, "mixtral"):
		return "<instructions>\n" + basePrompt + "\n</instructions>"
	case strings.Contains(name, "llama"):
		return "### Task: Mental Health Categorization\n\n" + basePrompt
	default:
		return basePrompt
	}
}

// organizeByMain groups the available subcategories under their main
// categories, with crisis subcategories listed separately.
func (b *Builder) organizeByMain(available []string) string {
	availableSet := make(map[string]bool, len(available))
	for _, s := range available {
		availableSet[s] = true
	}

	var lines []string
	for _, mc := range b.hierarchy {
		var regular, crisis []string
		for _, sub := range mc.Subcategories {
			if !availableSet[sub] {
				continue
			}
			if b.crisis[sub] {
				crisis = append(crisis, sub)
			} else {
				regular = append(regular, sub)
			}
		}
		if len(regular) > 0 {
			lines = append(lines, mc.Name+": "+strings.Join(regular, ", "))
		}
		if len(crisis) > 0 {
			lines = append(lines, mc.Name+" (CRISIS): "+strings.Join(crisis, ", "))
		}
	}

	return strings.Join(lines, "\n")
}

func (b *Builder) crisisWarning() string {
	crisisList := strings.Join(taxonomy.CrisisCategories(), ", ")
	return "CRISIS PRIORITY: " + crisisList + "\n\nif detected: high confidence (0.8+), primary category, crisis_detected: true"
}

func (b *Builder) fewShotSection() string {
	var sb strings.Builder
	sb.WriteString("EXAMPLES:")
	for i, ex := range b.examples {
		fmt.Fprintf(&sb, "\nEX%d: %q -> %s, %s", i+1, ex.input, ex.primary, ex.categories)
	}
	return sb.String()
}
