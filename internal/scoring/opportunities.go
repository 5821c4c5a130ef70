package scoring

import (
	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/profile"
)

const (
	hiddenTarget         = 5
	qualificationsTarget = 5
	adviceTarget         = 5
	longTermTarget       = 6
)

var (
	hiddenPool = []string{
		"Emergency rental assistance programs",
		"Free tax preparation services",
		"Utility assistance programs",
		"Food stamp benefits enrollment",
		"Medicaid application assistance",
		"Fair Fares NYC half-price MetroCards",
		"Lifeline and Affordable Connectivity discounts for phone and internet",
		"IDNYC, the free municipal ID that unlocks library and museum memberships",
		"Bronx library branches with free computer classes and job search help",
		"Summer Youth Employment Program for ages 14 to 24",
	}
	qualificationsPool = []string{
		"Emergency assistance programs",
		"Community health programs",
		"Free legal aid services",
		"Educational support programs",
		"Job training initiatives",
		"SNAP food benefits based on household income",
		"NYC Housing Connect affordable housing lotteries",
		"Free or low-cost care at NYC Health + Hospitals clinics",
		"The Earned Income Tax Credit if you worked this year",
	}
	advicePool = []string{
		"Apply for multiple programs simultaneously",
		"Build relationships with case workers",
		"Keep all documentation organized",
		"Ask every organization about additional services",
		"Consider long-term stability planning",
		"Keep copies of every application and note the date you submitted it",
		"Ask for a written denial if you are turned down so you can appeal",
		"Use one case manager as your main point of contact across programs",
	}
	longTermPool = []string{
		"Address immediate crisis needs",
		"Secure stable housing and food",
		"Focus on income stability",
		"Build emergency savings",
		"Develop career goals",
		"Give back to community",
		"Earn a credential or certificate in a growing field",
		"Improve your credit with free financial counseling at an NYC Financial Empowerment Center",
		"Apply for affordable housing lotteries every year",
	}
)

type seedRule struct {
	match func(n needs) bool
	entry string
}

func helps(category string) func(needs) bool {
	return func(n needs) bool { return n.help.Has(category) }
}

func has(circumstance string) func(needs) bool {
	return func(n needs) bool {
		for _, c := range n.circumstances {
			if c == circumstance {
				return true
			}
		}
		return false
	}
}

func living(situations ...string) func(needs) bool {
	return func(n needs) bool {
		for _, s := range situations {
			if n.living == s {
				return true
			}
		}
		return false
	}
}

var (
	hiddenRules = []seedRule{
		{living(profile.LivingHomeless), "Emergency shelter intake through the Department of Homeless Services"},
		{helps(catalog.CategoryHousing), "Emergency rental assistance programs"},
		{helps(catalog.CategoryFood), "Food stamp benefits enrollment"},
		{has(profile.CircumstanceVeteran), "Supportive Services for Veteran Families housing grants"},
		{has(profile.CircumstancePregnant), "WIC benefits for pregnancy and early childhood"},
	}
	qualificationsRules = []seedRule{
		{living(profile.LivingHomeless, profile.LivingShelter, profile.LivingRisk), "Emergency assistance programs"},
		{helps(catalog.CategoryHealthcare), "Community health programs"},
		{helps(catalog.CategoryJobs), "Job training initiatives"},
		{helps(catalog.CategoryEducation), "Educational support programs"},
		{has(profile.CircumstanceElderly), "Senior Citizen Rent Increase Exemption (SCRIE)"},
		{has(profile.CircumstanceDisability), "Disability Rent Increase Exemption (DRIE)"},
	}
	adviceRules = []seedRule{
		{living(profile.LivingRisk), "Respond to every court notice and ask for a free lawyer through Right to Counsel"},
		{func(n needs) bool { return n.urgency == profile.UrgencyImmediate }, "Ask every organization about additional services"},
		{func(n needs) bool { return len(n.help) > 1 }, "Apply for multiple programs simultaneously"},
	}
	longTermRules = []seedRule{
		{living(profile.LivingHomeless, profile.LivingShelter, profile.LivingTemporary), "Secure stable housing and food"},
		{helps(catalog.CategoryJobs), "Develop career goals"},
		{has(profile.CircumstanceStudent), "Earn a credential or certificate in a growing field"},
	}
)

// AnalyzeOpportunities fills each pool with rule-matched entries first, then random draws from the rest.
func (s *Scorer) AnalyzeOpportunities(p *profile.UserProfile) *ai.OpportunityAnalysis {
	rng := s.newRand()
	n := needsOf(p)
	return &ai.OpportunityAnalysis{
		HiddenOpportunities: fillPool(rng, n, hiddenRules, hiddenPool, hiddenTarget),
		Qualifications:      fillPool(rng, n, qualificationsRules, qualificationsPool, qualificationsTarget),
		StrategicAdvice:     fillPool(rng, n, adviceRules, advicePool, adviceTarget),
		LongTermPath:        fillPool(rng, n, longTermRules, longTermPool, longTermTarget),
	}
}

const maxSeeded = 3

func fillPool(rng Rand, n needs, rules []seedRule, pool []string, target int) []string {
	out := make([]string, 0, target)
	seen := make(map[string]struct{}, target)
	for _, rule := range rules {
		if len(out) == maxSeeded {
			break
		}
		if _, dup := seen[rule.entry]; dup || !rule.match(n) {
			continue
		}
		seen[rule.entry] = struct{}{}
		out = append(out, rule.entry)
	}

	remaining := make([]string, 0, len(pool))
	for _, entry := range pool {
		if _, dup := seen[entry]; !dup {
			remaining = append(remaining, entry)
		}
	}
	return append(out, pick(rng, remaining, target-len(out))...)
}
