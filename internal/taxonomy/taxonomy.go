// Package taxonomy holds the static PeerNest category hierarchy.
// Users are matched on subcategories, so the flat subcategory list is
// the label space every classifier works against.
package taxonomy

// Unknown is returned when a subcategory does not belong to any main category.
const Unknown = "Unknown"

// MainCategory groups a set of subcategories under a display name.
// Order of subcategories is preserved for display and deterministic scoring.
type MainCategory struct {
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
}

// mainCategories is the canonical PeerNest hierarchy. The slice order is the
// display order and must stay stable: AllSubcategories flattens in this order
// and the fallback classifier uses it as the tie-break order.
var mainCategories = []MainCategory{
	{"Mental Health – Emotional Regulation", []string{
		"Anxiety & Panic",
		"Depression & Mood Swings",
		"Burnout & Exhaustion",
		"Anger Management",
		"Emotional Numbness",
	}},
	{"Mental Health – Cognitive Struggles", []string{
		"OCD & Intrusive Thoughts",
		"Dissociation & Spacing Out",
		"Overthinking & Rumination",
		"Brain Fog & Memory Issues",
		"Decision Fatigue",
	}},
	{"Neurodivergence", []string{
		"ADHD (Focus, Impulsivity)",
		"Autism Spectrum (Masking, Sensory Overload)",
		"Executive Dysfunction",
		"Rejection Sensitivity",
		"Navigating Diagnosis or Self-Diagnosis",
	}},
	{"Identity & Self-worth", []string{
		"Self-esteem & Confidence",
		"Body Image (Weight Loss Struggles, Weight Gain Struggles)",
		"Perfectionism & Self-criticism",
		"Cultural & Personal Identity",
		"Acceptance & Self-love",
	}},
	{"LGBTQ+ Struggles", []string{
		"Coming Out",
		"Gender Dysphoria",
		"Homophobic Family or Friends",
		"Cross Dressing / Gender Expression",
		"Transgender vs Cisgender Identity",
	}},
	{"Friendship & Dating Struggles", []string{
		"Trust Issues",
		"Jealousy & Insecurity",
		"Unhealthy Dynamics",
		"Ghosting & Rejection",
		"Pressure to Fit In",
	}},
	{"Marriage & Divorce", []string{
		"Communication Breakdown",
		"Emotional Distance",
		"Separation & Divorce",
		"Infidelity",
		"Resentment & Forgiveness",
	}},
	{"Family Pressure or Estrangement", []string{
		"Toxic Parenting",
		"Religious/Cultural Pressure",
		"Childhood Trauma",
		"Sibling Conflict",
		"Generational Trauma",
	}},
	{"Academic or School Stress", []string{
		"Exam Anxiety",
		"Failing Exams",
		"Academic Pressure",
		"Bullying",
		"Balancing Social & School Life",
	}},
	{"Job or Work Burnout", []string{
		"Toxic Work Environments",
		"Overworking",
		"Job Insecurity",
		"Career Confusion",
		"Poor Work-Life Balance",
	}},
	{"Financial Pressure", []string{
		"Debt & Bills",
		"Job Loss",
		"Financial Dependence",
		"Budgeting Struggles",
		"Shame Around Money",
	}},
	{"Life Direction & Time Struggles", []string{
		"Feeling Lost or Stuck",
		"Fear of Failure",
		"Lack of Motivation",
		"Time Management",
		"Existential Questions",
	}},
	{"Loneliness & Isolation", []string{
		"Feeling Misunderstood",
		"Social Anxiety",
		"No One to Talk To",
		"Disconnected from Community",
		"Isolation Despite Being Around Others",
	}},
	{"Grief & Loss", []string{
		"Death of a Loved One",
		"Pet Loss",
		"Delayed Grief",
		"Disenfranchised Grief",
		"Coping with Holidays/Anniversaries",
	}},
	{"Suicidal Thoughts & Self-harm", []string{
		"Suicidal Ideation",
		"Non-suicidal Self-injury (NSSI)",
		"Safety Planning",
		"Coping Alternatives",
		"Talking About It",
	}},
	{"Struggling with Therapy or Support", []string{
		"Fear of Vulnerability",
		"Not Connecting with Therapist",
		"Stigma About Getting Help",
		"Feeling Like It's Not Working",
		"Navigating First-Time Therapy",
	}},
	{"Chronic Illness", []string{
		"Pain Management",
		"Medical Fatigue & Brain Fog",
		"Navigating Diagnosis",
		"Body Changes & Acceptance",
		"Feeling Misunderstood by Others",
	}},
	{"Sexual Assault & Trauma", []string{
		"Consent Violation",
		"Flashbacks & Triggers",
		"Shame & Guilt",
		"Trust Recovery",
		"Navigating Disclosure",
	}},
	{"Living with a Disability", []string{
		"Accessibility Barriers",
		"Navigating Daily Tasks",
		"Feeling Overlooked or Excluded",
		"Ableism & Discrimination",
		"Emotional Impact of Disability",
	}},
}

// mainBySubcategory is built once at init for O(1) parent lookup.
var mainBySubcategory = func() map[string]string {
	m := make(map[string]string)
	for _, mc := range mainCategories {
		for _, sub := range mc.Subcategories {
			m[sub] = mc.Name
		}
	}
	return m
}()

// AllSubcategories returns the flat list of every subcategory in hierarchy
// order. The returned slice is a copy; callers may mutate it freely.
func AllSubcategories() []string {
	var subs []string
	for _, mc := range mainCategories {
		subs = append(subs, mc.Subcategories...)
	}
	return subs
}

// MainCategoryFor returns the main category owning the given subcategory,
// or Unknown if the subcategory is not part of the taxonomy. Absence is a
// normal outcome, not an error.
func MainCategoryFor(subcategory string) string {
	if main, ok := mainBySubcategory[subcategory]; ok {
		return main
	}
	return Unknown
}

// SubcategoriesFor returns the subcategories of a main category, or nil if
// the main category does not exist.
func SubcategoriesFor(mainCategory string) []string {
	for _, mc := range mainCategories {
		if mc.Name == mainCategory {
			out := make([]string, len(mc.Subcategories))
			copy(out, mc.Subcategories)
			return out
		}
	}
	return nil
}

// Hierarchy returns the full main-category list in display order.
func Hierarchy() []MainCategory {
	out := make([]MainCategory, len(mainCategories))
	copy(out, mainCategories)
	return out
}

// Summary reports basic counts over the taxonomy.
func Summary() map[string]int {
	subs := AllSubcategories()
	return map[string]int{
		"total_main_categories": len(mainCategories),
		"total_subcategories":   len(subs),
	}
}
