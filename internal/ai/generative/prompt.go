package generative

import (
	"fmt"
	"strings"

	_ "embed"

	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/profile"
)

//go:embed prompts/recommendations.md
var recommendationsTemplate string

//go:embed prompts/opportunities.md
var opportunitiesTemplate string

// Slot values used when an answer is missing.
const (
	notSpecified  = "Not specified"
	anyArea       = "Any area"
	noneSelected  = "None"
	noneProvided  = "None provided"
	notListed     = "Not listed"
	callForHours  = "Call for hours"
	generalTags   = "General services"
	anonymousName = "Community member"
)

// BuildRecommendationPrompt renders the recommendation prompt. It does no I/O.
func BuildRecommendationPrompt(p *profile.UserProfile, resources *catalog.Resources) string {
	replacer := strings.NewReplacer(append(profileSlots(p),
		"{{NAME}}", nameSlot(p),
		"{{RESOURCES}}", resourceListing(resources),
	)...)
	return strings.TrimSpace(replacer.Replace(recommendationsTemplate))
}

// BuildOpportunityPrompt renders the opportunity analysis prompt. It does no I/O.
func BuildOpportunityPrompt(p *profile.UserProfile) string {
	replacer := strings.NewReplacer(profileSlots(p)...)
	return strings.TrimSpace(replacer.Replace(opportunitiesTemplate))
}

func profileSlots(p *profile.UserProfile) []string {
	if p == nil {
		p = &profile.UserProfile{}
	}

	area := p.Answers.Single(profile.QuestionPreferredArea)
	if area == "" || area == profile.AreaAny {
		area = anyArea
	}

	return []string{
		"{{LIVING_SITUATION}}", orDefault(p.LivingSituation(), notSpecified),
		"{{HELP_NEEDED}}", orDefault(strings.Join(p.HelpNeeded(), ", "), notSpecified),
		"{{URGENCY}}", orDefault(p.Urgency(), notSpecified),
		"{{SPECIAL_CIRCUMSTANCES}}", orDefault(strings.Join(p.SpecialCircumstances(), ", "), noneSelected),
		"{{PREFERRED_AREA}}", area,
		"{{ADDITIONAL_DETAILS}}", orDefault(singleLine(p.AdditionalDetails()), noneProvided),
	}
}

func nameSlot(p *profile.UserProfile) string {
	if p == nil {
		return anonymousName
	}
	return orDefault(singleLine(p.Name), anonymousName)
}

func resourceListing(resources *catalog.Resources) string {
	if resources.Len() == 0 {
		return "(no resources available)"
	}

	var b strings.Builder
	n := 0
	for _, r := range resources.Items {
		if r == nil {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. ID: %s\n", n, r.ID)
		fmt.Fprintf(&b, "   Name: %s\n", singleLine(r.Title))
		fmt.Fprintf(&b, "   Category: %s\n", r.NormalizedCategory())
		fmt.Fprintf(&b, "   Address: %s\n", singleLine(r.Address))
		fmt.Fprintf(&b, "   Phone: %s\n", orDefault(singleLine(r.Phone), notListed))
		fmt.Fprintf(&b, "   Hours: %s\n", orDefault(singleLine(r.Hours), callForHours))
		fmt.Fprintf(&b, "   Services: %s\n", orDefault(strings.Join(r.Tags, ", "), generalTags))
		fmt.Fprintf(&b, "   Description: %s\n\n", singleLine(r.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}

// singleLine collapses whitespace so user text cannot break the slot layout.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
