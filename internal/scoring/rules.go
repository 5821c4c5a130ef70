package scoring

import (
	"fmt"
	"strings"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/profile"
)

const (
	categoryWeight = 35
	categoryJitter = 10

	circumstanceJitter = 5

	immediateBonus = 20
	soonBonus      = 10

	// shelterBonus saturates the score of shelter resources for homeless users.
	shelterBonus    = maxScore
	evictionBonus   = 25
	transitionBonus = 15

	areaBonus  = 15
	areaJitter = 5

	maxScore = 100
)

type circumstanceRule struct {
	weight  int
	markers []string
	reason  string
}

var circumstanceRules = map[string]circumstanceRule{
	profile.CircumstanceVeteran: {
		weight:  25,
		markers: []string{"veteran"},
		reason:  "Offers services for veterans.",
	},
	profile.CircumstanceDisability: {
		weight:  25,
		markers: []string{"disabilit", "accessible"},
		reason:  "Supports people with disabilities.",
	},
	profile.CircumstanceImmigrant: {
		weight:  20,
		markers: []string{"immigra", "esl", "refugee"},
		reason:  "Works with immigrant families and offers language support.",
	},
	profile.CircumstancePregnant: {
		weight:  20,
		markers: []string{"pregnan", "prenatal", "maternal", "wic"},
		reason:  "Provides prenatal and maternal support.",
	},
	profile.CircumstanceElderly: {
		weight:  20,
		markers: []string{"senior", "elderly", "older adult"},
		reason:  "Has programs for older adults.",
	},
	profile.CircumstanceStudent: {
		weight:  15,
		markers: []string{"student", "education", "ged", "tutoring"},
		reason:  "Supports students and continuing education.",
	},
	profile.CircumstanceChildren: {
		weight:  15,
		markers: []string{"children", "family", "families", "youth", "parenting", "kids", "childcare"},
		reason:  "Serves families with children.",
	},
}

var (
	shelterMarkers    = []string{"shelter", "drop-in", "safe haven"}
	evictionMarkers   = []string{"eviction", "homeless prevention", "rental assistance", "housing court", "rent arrears"}
	transitionMarkers = []string{"housing assistance", "rapid rehousing", "housing placement", "supportive housing"}
)

// urgentCategories are raised when the user needs help immediately.
var urgentCategories = map[string]ai.UrgencyLevel{
	catalog.CategoryHousing:      ai.UrgencyCritical,
	catalog.CategoryFood:         ai.UrgencyHigh,
	catalog.CategoryMentalHealth: ai.UrgencyHigh,
}

// needs is the profile reduced to what the rules read.
type needs struct {
	help          profile.Set
	circumstances []string
	urgency       string
	living        string
	area          string
}

func needsOf(p *profile.UserProfile) needs {
	if p == nil {
		return needs{help: profile.Set{}}
	}
	return needs{
		help:          profile.NewSet(p.HelpNeeded()),
		circumstances: p.SpecialCircumstances(),
		urgency:       p.Urgency(),
		living:        p.LivingSituation(),
		area:          p.PreferredArea(),
	}
}

type evaluation struct {
	score   int
	urgency ai.UrgencyLevel
	reasons []string

	// pinned wins ties against other resources with the same score.
	pinned bool
}

func (e *evaluation) add(points int, reason string) {
	e.score += points
	e.reasons = append(e.reasons, reason)
}

func (e *evaluation) raise(level ai.UrgencyLevel) {
	e.urgency = e.urgency.Raise(level)
}

// evaluate applies every rule to one resource. Jitter is drawn exactly once per
// contributing rule, in rule order.
func evaluate(rng Rand, n needs, res *catalog.Resource) evaluation {
	ev := evaluation{urgency: ai.UrgencyMedium}
	category := res.NormalizedCategory()
	label := catalog.CategoryLabel(category)
	selected := n.help.Has(category)

	if selected {
		ev.add(categoryWeight+jitter(rng, categoryJitter),
			fmt.Sprintf("Provides %s services you asked for.", label))
	}

	for _, c := range n.circumstances {
		rule, ok := circumstanceRules[c]
		if !ok || !res.HasTag(rule.markers...) {
			continue
		}
		ev.add(rule.weight+jitter(rng, circumstanceJitter), rule.reason)
	}

	if level, urgent := urgentCategories[category]; urgent && selected {
		switch n.urgency {
		case profile.UrgencyImmediate:
			ev.add(immediateBonus, fmt.Sprintf("Can help right away with urgent %s needs.", label))
			ev.raise(level)
		case profile.UrgencySoon:
			ev.add(soonBonus, fmt.Sprintf("Can help with %s needs in the coming weeks.", label))
		}
	}

	switch n.living {
	case profile.LivingHomeless:
		if res.HasTag(shelterMarkers...) {
			ev.add(shelterBonus, "Offers emergency shelter for people without a place to stay.")
			ev.raise(ai.UrgencyCritical)
			ev.pinned = true
		}
	case profile.LivingRisk:
		if res.HasTag(evictionMarkers...) {
			ev.add(evictionBonus, "Helps prevent eviction so you can keep your home.")
			ev.raise(ai.UrgencyHigh)
		}
	case profile.LivingTemporary, profile.LivingShelter:
		if res.HasTag(transitionMarkers...) {
			ev.add(transitionBonus, "Helps people in temporary housing move into a stable home.")
			ev.raise(ai.UrgencyHigh)
		}
	}

	if n.area != "" && strings.Contains(strings.ToLower(res.Address), n.area) {
		ev.add(areaBonus+jitter(rng, areaJitter),
			fmt.Sprintf("Located in your preferred area (%s).", n.area))
	}

	ev.score = clamp(ev.score, 0, maxScore)
	return ev
}

func (e evaluation) reasoning(res *catalog.Resource) string {
	if len(e.reasons) == 0 {
		return fmt.Sprintf("%s offers %s services that may be relevant to your situation.",
			displayTitle(res), catalog.CategoryLabel(res.Category))
	}
	return strings.Join(e.reasons, " ")
}

func displayTitle(res *catalog.Resource) string {
	if title := strings.TrimSpace(res.Title); title != "" {
		return title
	}
	return "This resource"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
