package taxonomy

// KeywordSet defines the match signals for one subcategory used by the
// rule-based fallback classifier. Primary keywords carry the most weight,
// secondary keywords less, and patterns are regular expressions matched
// case-insensitively.
type KeywordSet struct {
	Primary   []string
	Secondary []string
	Patterns  []string
}

// fallbackKeywords maps subcategories to their match signals. Not every
// subcategory has an entry; unmatched subcategories simply never score in
// the fallback path.
var fallbackKeywords = map[string]KeywordSet{
	// Mental Health – Emotional Regulation
	"Anxiety & Panic": {
		Primary:   []string{"anxiety", "anxious", "panic", "panic attack", "nervous", "worried"},
		Secondary: []string{"heart racing", "can't breathe", "restless", "tense", "fear"},
		Patterns:  []string{`panic attack`, `anxiety`, `heart (racing|pounding)`},
	},
	"Depression & Mood Swings": {
		Primary:   []string{"depressed", "depression", "sad", "hopeless", "mood swings"},
		Secondary: []string{"empty", "worthless", "tired", "exhausted", "no energy"},
		Patterns:  []string{`feel (empty|worthless)`, `mood (swings|changes)`, `can.?t (get up|function)`},
	},
	"Burnout & Exhaustion": {
		Primary:   []string{"burnout", "burned out", "exhausted", "exhaustion", "drained"},
		Secondary: []string{"overwhelmed", "too much", "can't cope", "overworked"},
		Patterns:  []string{`burned out`, `completely (exhausted|drained)`, `can.?t (cope|handle)`},
	},
	"Anger Management": {
		Primary:   []string{"angry", "anger", "rage", "furious", "mad"},
		Secondary: []string{"irritated", "frustrated", "explosive", "temper"},
		Patterns:  []string{`anger (issues|problems)`, `can.?t control`, `explosive (anger|rage)`},
	},
	"Emotional Numbness": {
		Primary:   []string{"numb", "numbness", "feel nothing", "emotionally numb"},
		Secondary: []string{"disconnected", "empty", "void", "can't feel"},
		Patterns:  []string{`feel (nothing|numb)`, `emotionally (numb|disconnected)`},
	},

	// Mental Health – Cognitive Struggles
	"OCD & Intrusive Thoughts": {
		Primary:   []string{"ocd", "obsessive", "compulsive", "intrusive thoughts"},
		Secondary: []string{"repetitive", "checking", "counting", "unwanted thoughts"},
		Patterns:  []string{`intrusive thoughts`, `obsessive (thoughts|behavior)`, `can.?t stop (thinking|checking)`},
	},
	"Overthinking & Rumination": {
		Primary:   []string{"overthinking", "rumination", "ruminating", "can't stop thinking"},
		Secondary: []string{"analyzing", "replaying", "obsessing", "stuck in my head"},
		Patterns:  []string{`overthinking`, `can.?t stop (thinking|analyzing)`, `stuck in (my head|loop)`},
	},
	"Brain Fog & Memory Issues": {
		Primary:   []string{"brain fog", "memory", "forgetful", "can't concentrate"},
		Secondary: []string{"fuzzy", "unclear", "confusion", "memory problems"},
		Patterns:  []string{`brain fog`, `memory (issues|problems)`, `can.?t (concentrate|focus|remember)`},
	},

	// Neurodivergence
	"ADHD (Focus, Impulsivity)": {
		Primary:   []string{"adhd", "attention", "focus", "impulsive", "hyperactive"},
		Secondary: []string{"distractible", "restless", "can't sit still", "hyperfocus"},
		Patterns:  []string{`can.?t (focus|concentrate)`, `attention (deficit|problems)`, `adhd`},
	},
	"Autism Spectrum (Masking, Sensory Overload)": {
		Primary:   []string{"autism", "autistic", "masking", "sensory overload"},
		Secondary: []string{"stimming", "meltdown", "overwhelming sounds", "social scripts"},
		Patterns:  []string{`sensory overload`, `autism`, `masking`},
	},

	// Identity & Self-worth
	"Self-esteem & Confidence": {
		Primary:   []string{"self-esteem", "confidence", "self-worth", "insecure"},
		Secondary: []string{"not good enough", "worthless", "inadequate", "self-doubt"},
		Patterns:  []string{`low (self-esteem|confidence)`, `not good enough`, `feel (worthless|inadequate)`},
	},
	"Perfectionism & Self-criticism": {
		Primary:   []string{"perfectionist", "perfectionism", "self-critical", "never good enough"},
		Secondary: []string{"harsh on myself", "high standards", "failure", "disappointed"},
		Patterns:  []string{`perfectionist`, `never good enough`, `harsh on myself`},
	},

	// LGBTQ+ Struggles
	"Coming Out": {
		Primary:   []string{"coming out", "closeted", "tell parents", "reveal sexuality"},
		Secondary: []string{"scared to tell", "family reaction", "hiding who i am"},
		Patterns:  []string{`coming out`, `tell (my parents|family)`, `hiding who i am`},
	},
	"Gender Dysphoria": {
		Primary:   []string{"gender dysphoria", "dysphoria", "wrong body", "gender identity"},
		Secondary: []string{"transgender", "trans", "gender confusion", "body dysphoria"},
		Patterns:  []string{`gender dysphoria`, `wrong body`, `don.?t feel like`},
	},

	// Friendship & Dating Struggles
	"Trust Issues": {
		Primary:   []string{"trust issues", "can't trust", "betrayed", "betrayal"},
		Secondary: []string{"lied to", "suspicious", "guard up", "let down"},
		Patterns:  []string{`trust issues`, `can.?t trust`, `betrayed`},
	},
	"Ghosting & Rejection": {
		Primary:   []string{"ghosted", "ghosting", "rejected", "rejection"},
		Secondary: []string{"ignored", "left on read", "stopped replying", "unwanted"},
		Patterns:  []string{`ghost(ed|ing)`, `reject(ed|ion)`, `left on read`},
	},

	// Family
	"Childhood Trauma": {
		Primary:   []string{"childhood trauma", "abusive parents", "grew up with", "traumatic childhood"},
		Secondary: []string{"neglect", "abuse", "as a child", "my upbringing"},
		Patterns:  []string{`childhood trauma`, `(abused|neglected) as a child`, `growing up`},
	},
	"Toxic Parenting": {
		Primary:   []string{"toxic parents", "toxic mother", "toxic father", "controlling parents"},
		Secondary: []string{"manipulative", "guilt trip", "never approve", "strict"},
		Patterns:  []string{`toxic (parents|mother|father|family)`, `controlling (parents|family)`},
	},

	// Academic
	"Exam Anxiety": {
		Primary:   []string{"exam anxiety", "test anxiety", "exam stress", "finals"},
		Secondary: []string{"blank out", "studying", "grades", "fail the exam"},
		Patterns:  []string{`(exam|test) (anxiety|stress)`, `afraid (of failing|to fail)`},
	},

	// Work & Career
	"Toxic Work Environments": {
		Primary:   []string{"toxic workplace", "toxic boss", "hostile work", "workplace bullying"},
		Secondary: []string{"harassment", "discrimination", "hostile", "abusive boss"},
		Patterns:  []string{`toxic (work|workplace|boss)`, `workplace (bullying|harassment)`},
	},
	"Job Insecurity": {
		Primary:   []string{"job insecurity", "losing job", "layoffs", "unemployment"},
		Secondary: []string{"job hunting", "unemployed", "career uncertainty"},
		Patterns:  []string{`losing (my )?job`, `job (insecurity|uncertainty)`, `laid off`},
	},

	// Financial
	"Debt & Bills": {
		Primary:   []string{"debt", "bills", "can't afford", "broke"},
		Secondary: []string{"loans", "rent", "overdue", "collections"},
		Patterns:  []string{`in debt`, `can.?t (pay|afford)`, `drowning in (debt|bills)`},
	},

	// Loneliness
	"Social Anxiety": {
		Primary:   []string{"social anxiety", "afraid of people", "avoid people", "socially anxious"},
		Secondary: []string{"crowds", "small talk", "judged", "awkward"},
		Patterns:  []string{`social anxiety`, `afraid of (people|crowds)`, `being judged`},
	},
	"No One to Talk To": {
		Primary:   []string{"no one to talk to", "nobody listens", "all alone", "no friends"},
		Secondary: []string{"lonely", "isolated", "by myself", "no support"},
		Patterns:  []string{`no one to talk to`, `nobody (listens|cares)`, `completely alone`},
	},

	// Grief
	"Death of a Loved One": {
		Primary:   []string{"passed away", "died", "death of", "lost my"},
		Secondary: []string{"grieving", "funeral", "miss them", "mourning"},
		Patterns:  []string{`passed away`, `lost my (mom|dad|mother|father|brother|sister|friend|wife|husband|partner)`},
	},

	// Crisis categories (high priority)
	"Suicidal Ideation": {
		Primary:   []string{"suicidal", "suicide", "kill myself", "end my life", "don't want to live"},
		Secondary: []string{"hopeless", "no point", "better off dead", "suicidal thoughts"},
		Patterns:  []string{`suicidal (thoughts|ideation)`, `kill myself`, `end (my )?life`, `don.?t want to live`},
	},
	"Non-suicidal Self-injury (NSSI)": {
		Primary:   []string{"self-harm", "cutting", "self-injury", "hurt myself"},
		Secondary: []string{"razor", "blade", "scars", "burning", "scratching"},
		Patterns:  []string{`self.harm`, `hurt myself`, `cutting`, `self.injury`},
	},
}

// crisisCategories are the subcategories that require immediate, high
// priority handling; the prompt builder surfaces them separately.
var crisisCategories = []string{
	"Suicidal Ideation",
	"Non-suicidal Self-injury (NSSI)",
	"Safety Planning",
	"Consent Violation",
	"Flashbacks & Triggers",
}

// FallbackKeywords returns the keyword table for the rule-based classifier.
// The returned map is shared; callers must not mutate it.
func FallbackKeywords() map[string]KeywordSet {
	return fallbackKeywords
}

// CrisisCategories returns the subcategories flagged for crisis handling.
func CrisisCategories() []string {
	out := make([]string, len(crisisCategories))
	copy(out, crisisCategories)
	return out
}

// IsCrisisCategory reports whether the subcategory is on the crisis list.
func IsCrisisCategory(subcategory string) bool {
	for _, c := range crisisCategories {
		if c == subcategory {
			return true
		}
	}
	return false
}
