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

import "github.com/JoelMun99/peernest-ai-service/internal/taxonomy"

// Room matching against live peer-support rooms is not built yet; until it
// is, suggestions are static per main category so clients can already render
// the surface.
var roomNames = map[string]string{
	"Mental Health – Emotional Regulation": "Calm Corner",
	"Mental Health – Cognitive Struggles":  "Clear Minds",
	"Neurodivergence":                      "Neurodivergent Hangout",
	"Identity & Self-worth":                "Self-worth Circle",
	"LGBTQ+ Struggles":                     "Pride Space",
	"Friendship & Dating Struggles":        "Connection Corner",
	"Marriage & Divorce":                   "Relationship Support",
	"Family Pressure or Estrangement":      "Family Matters",
	"Academic or School Stress":            "Study Stress Relief",
	"Job or Work Burnout":                  "Work-Life Room",
	"Financial Pressure":                   "Money Worries",
	"Life Direction & Time Struggles":      "Finding Direction",
	"Loneliness & Isolation":               "Together Space",
	"Grief & Loss":                         "Grief Support",
	"Suicidal Thoughts & Self-harm":        "Crisis Support",
	"Struggling with Therapy or Support":   "Therapy Talk",
	"Chronic Illness":                      "Chronic Warriors",
	"Sexual Assault & Trauma":              "Survivor Space",
	"Living with a Disability":             "Accessibility Allies",
}

// suggestRooms maps the matched categories to peer-support rooms, one
// suggestion per distinct main category, strongest match first.
func suggestRooms(categories []CategoryScore) []RoomSuggestion {
	seen := make(map[string]bool)
	var suggestions []RoomSuggestion
	for _, c := range categories {
		main := c.MainCategory
		if main == "" {
			main = taxonomy.MainCategoryFor(c.Category)
		}
		if main == taxonomy.Unknown || seen[main] {
			continue
		}
		seen[main] = true

		name, ok := roomNames[main]
		if !ok {
			continue
		}
		suggestions = append(suggestions, RoomSuggestion{
			RoomType:   main,
			Name:       name,
			Status:     "coming_soon",
			MatchScore: c.Confidence,
		})
	}
	return suggestions
}
