package scoring

import (
	"fmt"
	"strings"

	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/profile"
)

// programs maps a need or circumstance to a locale program worth mentioning.
var programs = []struct {
	key     string
	program string
}{
	{catalog.CategoryFood, "SNAP benefits and emergency food through ACCESS HRA"},
	{catalog.CategoryHousing, "One Shot Deal emergency assistance from HRA for rent arrears"},
	{catalog.CategoryJobs, "Workforce1 Career Centers for free job placement and training"},
	{catalog.CategoryEducation, "Free GED and ESL classes through CUNY and Bronx Community College"},
	{catalog.CategoryMentalHealth, "NYC 988 for free, confidential counseling at any hour"},
	{catalog.CategoryHealthcare, "Medicaid or the Essential Plan through NY State of Health"},
	{catalog.CategoryLegal, "Free civil legal help through the NYC Right to Counsel program"},
	{profile.CircumstanceVeteran, "VA health care and benefits through the James J. Peters VA Medical Center"},
	{profile.CircumstancePregnant, "WIC nutrition support for pregnant people and young children"},
	{profile.CircumstanceChildren, "Child Care Assistance Program vouchers and the Child Tax Credit"},
	{profile.CircumstanceElderly, "Older adult centers and home-delivered meals through NYC Aging"},
	{profile.CircumstanceImmigrant, "Free immigration legal screenings through ActionNYC"},
	{profile.CircumstanceStudent, "Tuition help through FAFSA and the Excelsior Scholarship"},
	{profile.CircumstanceDisability, "Access-A-Ride paratransit and disability benefits counseling"},
}

const benefitsScreener = "A free benefits screening with the ACCESS NYC eligibility tool"

func insights(n needs, helpNeeded []string, recommended int) []string {
	var out []string

	switch n.urgency {
	case profile.UrgencyImmediate:
		out = append(out, "You need help right away, so resources that can act quickly are ranked first.")
	case profile.UrgencySoon:
		out = append(out, "You need help soon. Reaching out this week gives you time before things become urgent.")
	case profile.UrgencyPlanning, profile.UrgencyExploring:
		out = append(out, "You are planning ahead, which leaves time to compare programs and prepare documents.")
	default:
		out = append(out, "You did not say how urgent your needs are, so resources are ranked by overall fit.")
	}

	switch len(helpNeeded) {
	case 0:
		out = append(out, "You did not pick specific needs, so we included services that help most Bronx residents.")
	case 1:
		out = append(out, fmt.Sprintf("We focused on %s resources near you.", catalog.CategoryLabel(helpNeeded[0])))
	default:
		out = append(out, fmt.Sprintf("You asked for help in %d areas (%s). Working on them together often unlocks more support.",
			len(helpNeeded), labels(helpNeeded)))
	}

	if len(n.circumstances) > 0 {
		out = append(out, fmt.Sprintf("Your situation (%s) may qualify you for priority services and extra programs.",
			strings.Join(n.circumstances, ", ")))
	}

	switch n.living {
	case profile.LivingHomeless, profile.LivingShelter:
		out = append(out, "Finding safe, stable housing is the first priority, and several programs can help with that.")
	case profile.LivingRisk:
		out = append(out, "Acting early on a housing problem gives you the most options to stay in your home.")
	}

	if recommended == 0 {
		out = append(out, "No verified resources matched your answers yet, but the next steps below still apply.")
	}
	return out
}

func nextSteps(n needs) []string {
	var out []string
	if n.urgency == profile.UrgencyImmediate {
		out = append(out, "Call your top match today. If you are in danger, call 911, or call 988 for a mental health crisis.")
	}
	if n.living == profile.LivingHomeless || n.living == profile.LivingRisk {
		out = append(out, "Call 311 and ask for the Homebase office nearest you for help keeping or finding housing.")
	}
	return append(out,
		"Gather photo ID, proof of address and proof of income before your first appointment.",
		"Contact your top two resources this week and write down who you spoke with.",
		"Update your answers whenever your situation changes so your matches stay current.",
	)
}

func bundleOpportunities(helpNeeded, circumstances []string) []string {
	wanted := profile.NewSet(append(append([]string(nil), helpNeeded...), circumstances...))
	var out []string
	for _, p := range programs {
		if wanted.Has(p.key) {
			out = append(out, p.program)
		}
	}
	return append(out, benefitsScreener)
}

func labels(categories []string) string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = catalog.CategoryLabel(c)
	}
	return strings.Join(out, ", ")
}
