package taxonomy

import (
	"regexp"
	"testing"
)

func TestAllSubcategoriesUniqueAndComplete(t *testing.T) {
	subs := AllSubcategories()

	if len(subs) != 90 {
		t.Errorf("Expected 90 subcategories, got %d", len(subs))
	}

	seen := make(map[string]bool)
	for _, s := range subs {
		if seen[s] {
			t.Errorf("Duplicate subcategory: %q", s)
		}
		seen[s] = true
	}
}

func TestAllSubcategoriesStableOrder(t *testing.T) {
	first := AllSubcategories()
	second := AllSubcategories()

	if len(first) != len(second) {
		t.Fatalf("Length changed between calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Order changed at index %d: %q vs %q", i, first[i], second[i])
		}
	}

	// Returned slice is a copy; mutating it must not affect later calls
	first[0] = "mutated"
	if AllSubcategories()[0] == "mutated" {
		t.Error("AllSubcategories returned shared backing array")
	}
}

func TestMainCategoryFor(t *testing.T) {
	testCases := []struct {
		subcategory string
		expected    string
	}{
		{"Anxiety & Panic", "Mental Health – Emotional Regulation"},
		{"Suicidal Ideation", "Suicidal Thoughts & Self-harm"},
		{"Consent Violation", "Sexual Assault & Trauma"},
		{"Debt & Bills", "Financial Pressure"},
		{"Pet Loss", "Grief & Loss"},
		{"Not A Real Category", Unknown},
		{"", Unknown},
	}

	for _, tc := range testCases {
		got := MainCategoryFor(tc.subcategory)
		if got != tc.expected {
			t.Errorf("MainCategoryFor(%q) = %q, want %q", tc.subcategory, got, tc.expected)
		}
	}
}

func TestSubcategoriesFor(t *testing.T) {
	subs := SubcategoriesFor("Grief & Loss")
	if len(subs) != 5 {
		t.Fatalf("Expected 5 subcategories for Grief & Loss, got %d", len(subs))
	}
	if subs[0] != "Death of a Loved One" {
		t.Errorf("Expected first subcategory 'Death of a Loved One', got %q", subs[0])
	}

	if got := SubcategoriesFor("Nonexistent"); got != nil {
		t.Errorf("Expected nil for unknown main category, got %v", got)
	}
}

func TestHierarchyShape(t *testing.T) {
	h := Hierarchy()
	if len(h) != 18 {
		t.Fatalf("Expected 18 main categories, got %d", len(h))
	}
	for _, mc := range h {
		if len(mc.Subcategories) != 5 {
			t.Errorf("Main category %q has %d subcategories, want 5", mc.Name, len(mc.Subcategories))
		}
	}
}

func TestSummary(t *testing.T) {
	s := Summary()
	if s["total_main_categories"] != 18 {
		t.Errorf("total_main_categories = %d, want 18", s["total_main_categories"])
	}
	if s["total_subcategories"] != 90 {
		t.Errorf("total_subcategories = %d, want 90", s["total_subcategories"])
	}
}

func TestFallbackKeywordsReferenceRealSubcategories(t *testing.T) {
	for sub, ks := range FallbackKeywords() {
		if MainCategoryFor(sub) == Unknown {
			t.Errorf("Keyword set for %q does not match any subcategory", sub)
		}
		if len(ks.Primary) == 0 {
			t.Errorf("Keyword set for %q has no primary keywords", sub)
		}
		for _, p := range ks.Patterns {
			if _, err := regexp.Compile(`(?i)` + p); err != nil {
				t.Errorf("Keyword set for %q has invalid pattern %q: %v", sub, p, err)
			}
		}
	}
}

func TestCrisisCategories(t *testing.T) {
	crisis := CrisisCategories()
	if len(crisis) == 0 {
		t.Fatal("Expected non-empty crisis category list")
	}
	for _, c := range crisis {
		if MainCategoryFor(c) == Unknown {
			t.Errorf("Crisis category %q is not a known subcategory", c)
		}
	}

	if !IsCrisisCategory("Suicidal Ideation") {
		t.Error("Suicidal Ideation should be a crisis category")
	}
	if IsCrisisCategory("Pet Loss") {
		t.Error("Pet Loss should not be a crisis category")
	}
}
