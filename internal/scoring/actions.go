package scoring

import (
	"fmt"
	"strings"

	"github.com/spigell/resource-matcher/internal/catalog"
)

var categoryActions = map[string][]string{
	catalog.CategoryHousing: {
		"Bring photo ID, proof of income and any housing documents such as a lease or shelter letter",
		"Ask whether they can help with rent arrears or an emergency placement",
	},
	catalog.CategoryFood: {
		"No documentation is usually required, just come during distribution hours",
		"Bring your own bags or a cart if you can",
	},
	catalog.CategoryJobs: {
		"Bring an updated resume, or ask for help writing one",
		"Ask about paid training programs and upcoming hiring events",
	},
	catalog.CategoryEducation: {
		"Ask about eligibility and the next class start dates",
		"Ask whether a placement test is required before enrolling",
	},
	catalog.CategoryMentalHealth: {
		"Ask about walk-in hours and sliding-scale fees",
		"Ask whether they accept Medicaid or your insurance",
	},
	catalog.CategoryLegal: {
		"Bring any court papers, notices or letters you received",
		"Ask whether you qualify for free representation",
	},
	catalog.CategoryHealthcare: {
		"Bring your insurance card, or ask about free and low-cost care",
		"Ask about enrolling in Medicaid or the Essential Plan on site",
	},
	catalog.CategoryFamily: {
		"Bring ID for yourself and your children",
		"Ask about parenting programs and childcare referrals",
	},
	catalog.CategoryYouth: {
		"Ask which programs are open to your age group",
	},
	catalog.CategorySeniors: {
		"Bring photo ID and your Medicare or Medicaid card",
		"Ask about meal programs and transportation to appointments",
	},
}

const defaultCategoryAction = "Ask about eligibility requirements and what to bring"

var logisticsQuestions = []string{
	"Ask whether they offer transportation help or MetroCards",
	"Ask if services are available in your preferred language",
	"Ask whether childcare is available during appointments",
	"Confirm their current hours before you go",
	"Ask if you can complete intake over the phone",
}

var crossReferrals = []string{
	"Ask for a referral to SNAP enrollment through ACCESS HRA",
	"Ask about Fair Fares NYC for half-price subway and bus rides",
	"Ask whether they can connect you with a case manager",
	"Ask about free tax preparation through NYC Free Tax Prep",
	"Ask about utility help through the Home Energy Assistance Program",
	"Ask about Lifeline discounts for phone and internet service",
	"Ask how to get IDNYC, the free city identification card",
	"Ask which partner organizations they refer clients to",
	"Ask about other programs offered at the same location",
}

// actionItems returns the contact step, the category steps and one logistics question.
func actionItems(rng Rand, res *catalog.Resource) []string {
	label := catalog.CategoryLabel(res.Category)
	items := []string{contactAction(res, label)}

	category, ok := categoryActions[res.NormalizedCategory()]
	if !ok {
		category = []string{defaultCategoryAction}
	}
	items = append(items, category...)

	return append(items, logisticsQuestions[rng.IntN(len(logisticsQuestions))])
}

func contactAction(res *catalog.Resource, label string) string {
	title := displayTitle(res)
	if phone := strings.TrimSpace(res.Phone); phone != "" {
		return fmt.Sprintf("Call %s at %s to ask about their %s services", title, phone, label)
	}
	if address := strings.TrimSpace(res.Address); address != "" {
		return fmt.Sprintf("Visit %s at %s to ask about their %s services", title, address, label)
	}
	return fmt.Sprintf("Visit %s in person to ask about their %s services", title, label)
}

// referrals returns two or three distinct cross-referral suggestions.
func referrals(rng Rand) []string {
	return pick(rng, crossReferrals, 2+rng.IntN(2))
}
