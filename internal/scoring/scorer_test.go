package scoring

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/profile"
)

func verified(id, category string, tags ...string) *catalog.Resource {
	return &catalog.Resource{
		ID:       catalog.ResourceID(id),
		Title:    "Resource " + id,
		Category: category,
		Address:  "100 Example Ave, Bronx, NY 10451",
		Tags:     tags,
		Verified: true,
	}
}

func profileWith(answers profile.Answers) *profile.UserProfile {
	return &profile.UserProfile{Name: "Test", Email: "test@example.com", Answers: answers}
}

func assertWellFormed(t *testing.T, bundle *ai.Bundle, resources *catalog.Resources) {
	t.Helper()
	if bundle == nil {
		t.Fatalf("bundle must not be nil")
	}
	if len(bundle.Insights) == 0 || len(bundle.NextSteps) == 0 || len(bundle.Opportunities) == 0 {
		t.Fatalf("narratives must be populated: %+v", bundle)
	}

	index := resources.Index()
	seen := map[catalog.ResourceID]bool{}
	for i, rec := range bundle.Recommendations {
		if rec.RelevanceScore <= 0 || rec.RelevanceScore > 100 {
			t.Fatalf("score out of range for %s: %d", rec.ResourceID, rec.RelevanceScore)
		}
		if i > 0 && bundle.Recommendations[i-1].RelevanceScore < rec.RelevanceScore {
			t.Fatalf("recommendations are not sorted at %d", i)
		}
		if strings.TrimSpace(rec.Reasoning) == "" {
			t.Fatalf("empty reasoning for %s", rec.ResourceID)
		}
		if len(rec.ActionItems) < 2 {
			t.Fatalf("expected at least 2 action items for %s, got %v", rec.ResourceID, rec.ActionItems)
		}
		if n := len(rec.Opportunities); n < 2 || n > 3 {
			t.Fatalf("expected 2-3 opportunities for %s, got %d", rec.ResourceID, n)
		}
		if _, ok := ai.ParseUrgencyLevel(string(rec.UrgencyLevel)); !ok {
			t.Fatalf("unknown urgency %q", rec.UrgencyLevel)
		}
		if _, ok := index[rec.ResourceID]; !ok {
			t.Fatalf("recommendation references unknown resource %s", rec.ResourceID)
		}
		if seen[rec.ResourceID] {
			t.Fatalf("duplicate recommendation for %s", rec.ResourceID)
		}
		seen[rec.ResourceID] = true
	}
}

func TestScoreRecommendationsWellFormed(t *testing.T) {
	seed, err := catalog.LoadSeed()
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}

	profiles := map[string]profile.Answers{
		"empty": {},
		"full": {
			profile.QuestionLivingSituation:      "risk",
			profile.QuestionHelpNeeded:           []any{"housing", "food", "legal", "jobs"},
			profile.QuestionUrgency:              "immediate",
			profile.QuestionSpecialCircumstances: []any{"children", "immigrant", "veteran"},
			profile.QuestionPreferredArea:        "south",
			profile.QuestionAdditionalDetails:    "Two kids, behind on rent.",
		},
		"malformed": {
			profile.QuestionHelpNeeded:           []any{"food", 42, nil, "FOOD"},
			profile.QuestionUrgency:              []any{"soon", "immediate"},
			profile.QuestionSpecialCircumstances: 7,
		},
		"everything": {
			profile.QuestionHelpNeeded: []any{"food", "housing", "jobs", "education", "mental-health", "healthcare", "legal", "family", "youth", "seniors"},
		},
	}

	for name, answers := range profiles {
		for s := uint64(1); s <= 20; s++ {
			t.Run(fmt.Sprintf("%s/seed-%d", name, s), func(t *testing.T) {
				scorer := New(WithSeed(s))
				bundle := scorer.ScoreRecommendations(profileWith(answers), seed)
				assertWellFormed(t, bundle, seed)
				if len(bundle.Recommendations) > defaultMaxResults {
					t.Fatalf("expected at most %d recommendations, got %d", defaultMaxResults, len(bundle.Recommendations))
				}
			})
		}
	}
}

func TestScoreZeroResourcesAreDropped(t *testing.T) {
	resources := catalog.NewResources(
		verified("1", "food"),
		verified("2", "jobs"),
		verified("3", "transportation", "metrocards"),
	)
	p := profileWith(profile.Answers{profile.QuestionHelpNeeded: []any{"food"}})

	bundle := New(WithSeed(3)).ScoreRecommendations(p, resources)
	if diff := cmp.Diff([]string{"1"}, bundle.ResourceIDs()); diff != "" {
		t.Fatalf("unexpected recommendations (-want +got):\n%s", diff)
	}
}

func TestImmediateFoodNeed(t *testing.T) {
	resources := catalog.NewResources(
		verified("1", "food"),
		verified("2", "jobs"),
	)
	p := profileWith(profile.Answers{
		profile.QuestionHelpNeeded: []any{"food"},
		profile.QuestionUrgency:    "immediate",
	})

	for s := uint64(0); s < 50; s++ {
		bundle := New(WithSeed(s)).ScoreRecommendations(p, resources)
		if len(bundle.Recommendations) == 0 || bundle.Recommendations[0].ResourceID != "1" {
			t.Fatalf("seed %d: expected food resource first, got %v", s, bundle.ResourceIDs())
		}
		first := bundle.Recommendations[0]
		if first.UrgencyLevel != ai.UrgencyHigh {
			t.Fatalf("seed %d: expected high urgency, got %q", s, first.UrgencyLevel)
		}
		for _, rec := range bundle.Recommendations[1:] {
			if rec.ResourceID == "2" && rec.RelevanceScore >= first.RelevanceScore {
				t.Fatalf("seed %d: jobs resource must score lower than food resource", s)
			}
		}
	}
}

func TestHomelessShelterIsCritical(t *testing.T) {
	resources := catalog.NewResources(
		verified("1", "housing"),
		verified("2", "housing", "case management"),
		verified("3", "housing", "Emergency Shelter"),
		verified("4", "housing"),
		verified("5", "food", "food pantry"),
	)
	p := profileWith(profile.Answers{
		profile.QuestionLivingSituation: "homeless",
		profile.QuestionHelpNeeded:      []any{"housing"},
	})

	for s := uint64(0); s < 50; s++ {
		bundle := New(WithSeed(s)).ScoreRecommendations(p, resources)
		pos := -1
		for i, rec := range bundle.Recommendations {
			if rec.ResourceID == "3" {
				pos = i
				if rec.UrgencyLevel != ai.UrgencyCritical {
					t.Fatalf("seed %d: expected critical urgency, got %q", s, rec.UrgencyLevel)
				}
				if !strings.Contains(rec.Reasoning, "shelter") {
					t.Fatalf("seed %d: reasoning does not mention shelter: %q", s, rec.Reasoning)
				}
			}
		}
		if pos < 0 || pos > 2 {
			t.Fatalf("seed %d: shelter resource must be in the top 3, got position %d", s, pos)
		}
	}
}

func TestHomelessShelterOutranksCategoryMatches(t *testing.T) {
	seed, err := catalog.LoadSeed()
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	shelters := map[catalog.ResourceID]bool{}
	for _, res := range seed.Items {
		if res.HasTag(shelterMarkers...) {
			shelters[res.ID] = true
		}
	}
	if len(shelters) == 0 {
		t.Fatalf("seed catalog has no shelter resources")
	}

	p := profileWith(profile.Answers{
		profile.QuestionLivingSituation: "homeless",
		profile.QuestionHelpNeeded:      []any{"food", "jobs", "legal", "education", "mental-health"},
		profile.QuestionUrgency:         "immediate",
	})

	for s := uint64(0); s < 50; s++ {
		bundle := New(WithSeed(s)).ScoreRecommendations(p, seed)
		assertWellFormed(t, bundle, seed)

		found := false
		for i, rec := range bundle.Recommendations {
			if !shelters[rec.ResourceID] {
				continue
			}
			found = true
			if i > 2 {
				t.Fatalf("seed %d: shelter %s ranked at position %d, ids %v", s, rec.ResourceID, i, bundle.ResourceIDs())
			}
			if rec.UrgencyLevel != ai.UrgencyCritical {
				t.Fatalf("seed %d: expected critical urgency for %s, got %q", s, rec.ResourceID, rec.UrgencyLevel)
			}
		}
		if !found {
			t.Fatalf("seed %d: no shelter recommended, ids %v", s, bundle.ResourceIDs())
		}
	}
}

func TestSelectTopPinnedWinsTies(t *testing.T) {
	candidates := []scored{
		{index: 0, rec: &ai.Recommendation{ResourceID: "a", RelevanceScore: maxScore}},
		{index: 1, rec: &ai.Recommendation{ResourceID: "b", RelevanceScore: maxScore}},
		{index: 2, rec: &ai.Recommendation{ResourceID: "c", RelevanceScore: maxScore}},
		{index: 3, rec: &ai.Recommendation{ResourceID: "shelter", RelevanceScore: maxScore}, pinned: true},
	}

	got := selectTop(New(WithSeed(1)).newRand(), candidates, 3)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, string(c.rec.ResourceID))
	}
	if diff := cmp.Diff([]string{"shelter", "a", "b"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestLivingSituationHousingRules(t *testing.T) {
	cases := []struct {
		living  string
		tag     string
		score   int
		urgency ai.UrgencyLevel
	}{
		{living: profile.LivingTemporary, tag: "Housing Assistance", score: transitionBonus, urgency: ai.UrgencyHigh},
		{living: profile.LivingShelter, tag: "housing assistance", score: transitionBonus, urgency: ai.UrgencyHigh},
		{living: profile.LivingStable, tag: "housing assistance", score: 0, urgency: ai.UrgencyMedium},
		{living: profile.LivingTemporary, tag: "eviction prevention", score: 0, urgency: ai.UrgencyMedium},
		{living: profile.LivingRisk, tag: "eviction prevention", score: evictionBonus, urgency: ai.UrgencyHigh},
		{living: profile.LivingHomeless, tag: "emergency shelter", score: maxScore, urgency: ai.UrgencyCritical},
	}

	for _, tc := range cases {
		t.Run(tc.living+"/"+tc.tag, func(t *testing.T) {
			n := needsOf(profileWith(profile.Answers{profile.QuestionLivingSituation: tc.living}))
			ev := evaluate(New(WithSeed(2)).newRand(), n, verified("1", "legal", tc.tag))
			if ev.score != tc.score {
				t.Fatalf("expected score %d, got %d", tc.score, ev.score)
			}
			if ev.urgency != tc.urgency {
				t.Fatalf("expected urgency %q, got %q", tc.urgency, ev.urgency)
			}
			if tc.score > 0 && len(ev.reasons) != 1 {
				t.Fatalf("expected one reasoning fragment, got %v", ev.reasons)
			}
		})
	}
}

func TestUrgencyRulesOnlyRaise(t *testing.T) {
	res := verified("1", "housing", "eviction prevention")
	n := needsOf(profileWith(profile.Answers{
		profile.QuestionLivingSituation: "risk",
		profile.QuestionHelpNeeded:      []any{"housing"},
		profile.QuestionUrgency:         "immediate",
	}))

	ev := evaluate(New(WithSeed(1)).newRand(), n, res)
	if ev.urgency != ai.UrgencyCritical {
		t.Fatalf("eviction rule must not lower critical urgency, got %q", ev.urgency)
	}

	soon := needsOf(profileWith(profile.Answers{
		profile.QuestionHelpNeeded: []any{"housing"},
		profile.QuestionUrgency:    "soon",
	}))
	ev = evaluate(New(WithSeed(1)).newRand(), soon, verified("2", "housing"))
	if ev.urgency != ai.UrgencyMedium {
		t.Fatalf("soon urgency must stay medium, got %q", ev.urgency)
	}
}

func TestReasoningReflectsContributions(t *testing.T) {
	res := verified("1", "legal", "veterans legal clinic")
	res.Address = "360 E 161st St, South Bronx, NY 10451"
	n := needsOf(profileWith(profile.Answers{
		profile.QuestionHelpNeeded:           []any{"legal"},
		profile.QuestionSpecialCircumstances: []any{"veteran"},
		profile.QuestionPreferredArea:        "south",
	}))

	ev := evaluate(New(WithSeed(9)).newRand(), n, res)
	if len(ev.reasons) != 3 {
		t.Fatalf("expected 3 reasoning fragments, got %v", ev.reasons)
	}
	minimum := categoryWeight + circumstanceRules[profile.CircumstanceVeteran].weight + areaBonus
	if ev.score < minimum || ev.score > minimum+categoryJitter+circumstanceJitter+areaJitter {
		t.Fatalf("score %d outside expected bounds", ev.score)
	}
	for _, want := range []string{"legal services", "veterans", "preferred area"} {
		if !strings.Contains(ev.reasoning(res), want) {
			t.Fatalf("reasoning %q does not mention %q", ev.reasoning(res), want)
		}
	}

	none := evaluate(New(WithSeed(9)).newRand(), needsOf(nil), res)
	if none.score != 0 || none.reasoning(res) == "" {
		t.Fatalf("expected zero score with default reasoning, got %d %q", none.score, none.reasoning(res))
	}
}

func TestScoreIsClamped(t *testing.T) {
	res := verified("1", "housing", "emergency shelter", "veteran", "disability services", "families", "wic", "senior", "esl")
	n := needsOf(profileWith(profile.Answers{
		profile.QuestionLivingSituation:      "homeless",
		profile.QuestionHelpNeeded:           []any{"housing"},
		profile.QuestionUrgency:              "immediate",
		profile.QuestionSpecialCircumstances: []any{"veteran", "disability", "children", "pregnant", "elderly", "immigrant"},
	}))

	ev := evaluate(New(WithSeed(1)).newRand(), n, res)
	if ev.score != maxScore {
		t.Fatalf("expected clamped score %d, got %d", maxScore, ev.score)
	}
}

func TestActionItems(t *testing.T) {
	rng := New(WithSeed(1)).newRand()

	withPhone := verified("1", "housing")
	withPhone.Phone = "718-555-0100"
	items := actionItems(rng, withPhone)
	if !strings.HasPrefix(items[0], "Call Resource 1 at 718-555-0100") {
		t.Fatalf("unexpected contact action %q", items[0])
	}
	if len(items) != 4 {
		t.Fatalf("expected contact, two housing items and one logistics item, got %v", items)
	}

	unknown := verified("2", "transportation")
	items = actionItems(rng, unknown)
	if !strings.HasPrefix(items[0], "Visit Resource 2 at 100 Example Ave") {
		t.Fatalf("unexpected contact action %q", items[0])
	}
	if items[1] != defaultCategoryAction {
		t.Fatalf("expected default category action, got %q", items[1])
	}
	if !contains(logisticsQuestions, items[len(items)-1]) {
		t.Fatalf("last item must be a logistics question, got %q", items[len(items)-1])
	}
}

func TestTopThreeDeterministicTailSampled(t *testing.T) {
	items := []*catalog.Resource{
		verified("a", "housing", "veteran services", "eviction prevention"),
		verified("b", "food", "veteran"),
		verified("c", "housing"),
	}
	tail := map[catalog.ResourceID]bool{}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("t%d", i)
		items = append(items, verified(id, "education", "veteran"))
		tail[catalog.ResourceID(id)] = true
	}
	items = append(items, verified("z", "jobs"))
	resources := catalog.NewResources(items...)

	p := profileWith(profile.Answers{
		profile.QuestionLivingSituation:      "risk",
		profile.QuestionHelpNeeded:           []any{"housing", "food"},
		profile.QuestionUrgency:              "immediate",
		profile.QuestionSpecialCircumstances: []any{"veteran"},
	})

	sampled := map[catalog.ResourceID]bool{}
	for s := uint64(0); s < 50; s++ {
		bundle := New(WithSeed(s)).ScoreRecommendations(p, resources)
		ids := bundle.ResourceIDs()
		if len(ids) != defaultMaxResults {
			t.Fatalf("seed %d: expected %d results, got %d", s, defaultMaxResults, len(ids))
		}
		if diff := cmp.Diff([]string{"a", "b", "c"}, ids[:3]); diff != "" {
			t.Fatalf("seed %d: top 3 mismatch (-want +got):\n%s", s, diff)
		}
		for _, rec := range bundle.Recommendations[3:] {
			if !tail[rec.ResourceID] {
				t.Fatalf("seed %d: unexpected tail resource %s", s, rec.ResourceID)
			}
			sampled[rec.ResourceID] = true
		}
	}
	if len(sampled) <= defaultMaxResults-3 {
		t.Fatalf("expected diverse tail across seeds, only saw %d resources", len(sampled))
	}
}

func TestSelectTopTieBreakByInputOrder(t *testing.T) {
	candidates := []scored{
		{index: 0, rec: &ai.Recommendation{ResourceID: "x", RelevanceScore: 40}},
		{index: 1, rec: &ai.Recommendation{ResourceID: "y", RelevanceScore: 50}},
		{index: 2, rec: &ai.Recommendation{ResourceID: "z", RelevanceScore: 40}},
		{index: 3, rec: &ai.Recommendation{ResourceID: "w", RelevanceScore: 0}},
	}

	got := selectTop(New(WithSeed(1)).newRand(), candidates, 8)
	ids := make([]string, 0, len(got))
	for _, c := range got {
		ids = append(ids, string(c.rec.ResourceID))
	}
	if diff := cmp.Diff([]string{"y", "x", "z"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSkipsIneligibleAndDuplicateResources(t *testing.T) {
	unverified := verified("2", "food")
	unverified.Verified = false
	resources := catalog.NewResources(
		verified("1", "food"),
		unverified,
		nil,
		verified("1", "food"),
		verified("", "food"),
	)
	p := profileWith(profile.Answers{profile.QuestionHelpNeeded: "food"})

	bundle := New(WithSeed(5)).ScoreRecommendations(p, resources)
	if diff := cmp.Diff([]string{"1"}, bundle.ResourceIDs()); diff != "" {
		t.Fatalf("unexpected recommendations (-want +got):\n%s", diff)
	}
}

func TestEmptyCatalogStillHasNarratives(t *testing.T) {
	p := profileWith(profile.Answers{
		profile.QuestionHelpNeeded:           []any{"food", "housing"},
		profile.QuestionSpecialCircumstances: []any{"pregnant"},
	})

	for _, resources := range []*catalog.Resources{nil, catalog.NewResources()} {
		bundle := New().ScoreRecommendations(p, resources)
		if len(bundle.Recommendations) != 0 {
			t.Fatalf("expected no recommendations, got %d", len(bundle.Recommendations))
		}
		assertWellFormed(t, bundle, catalog.NewResources())
		if !contains(bundle.Opportunities, "WIC nutrition support for pregnant people and young children") {
			t.Fatalf("expected WIC program in opportunities: %v", bundle.Opportunities)
		}
	}

	bundle := New().ScoreRecommendations(nil, nil)
	assertWellFormed(t, bundle, catalog.NewResources())
}

func TestNarrativesAreDeterministic(t *testing.T) {
	seed, err := catalog.LoadSeed()
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	p := profileWith(profile.Answers{
		profile.QuestionLivingSituation:      "homeless",
		profile.QuestionHelpNeeded:           []any{"housing", "mental-health"},
		profile.QuestionUrgency:              "immediate",
		profile.QuestionSpecialCircumstances: []any{"veteran"},
	})

	first := New(WithSeed(1)).ScoreRecommendations(p, seed)
	second := New(WithSeed(2)).ScoreRecommendations(p, seed)
	if diff := cmp.Diff(first.Insights, second.Insights); diff != "" {
		t.Fatalf("insights differ across seeds:\n%s", diff)
	}
	if diff := cmp.Diff(first.NextSteps, second.NextSteps); diff != "" {
		t.Fatalf("next steps differ across seeds:\n%s", diff)
	}
	if diff := cmp.Diff(first.Opportunities, second.Opportunities); diff != "" {
		t.Fatalf("opportunities differ across seeds:\n%s", diff)
	}
}

func TestSameSeedReproducesBundle(t *testing.T) {
	seed, err := catalog.LoadSeed()
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	p := profileWith(profile.Answers{profile.QuestionHelpNeeded: []any{"legal", "family", "youth"}})

	scorer := New(WithSeed(42))
	if diff := cmp.Diff(scorer.ScoreRecommendations(p, seed), scorer.ScoreRecommendations(p, seed)); diff != "" {
		t.Fatalf("same seed produced different bundles:\n%s", diff)
	}
}

func TestAnalyzeOpportunitiesPoolSizes(t *testing.T) {
	profiles := []*profile.UserProfile{
		nil,
		profileWith(profile.Answers{}),
		profileWith(profile.Answers{
			profile.QuestionLivingSituation:      "homeless",
			profile.QuestionHelpNeeded:           []any{"housing", "food", "jobs", "healthcare", "education"},
			profile.QuestionUrgency:              "immediate",
			profile.QuestionSpecialCircumstances: []any{"veteran", "pregnant", "elderly", "disability", "student"},
		}),
	}

	for i, p := range profiles {
		for s := uint64(0); s < 20; s++ {
			analysis := New(WithSeed(s)).AnalyzeOpportunities(p)
			pools := map[string]struct {
				values []string
				target int
			}{
				"hidden":         {analysis.HiddenOpportunities, hiddenTarget},
				"qualifications": {analysis.Qualifications, qualificationsTarget},
				"advice":         {analysis.StrategicAdvice, adviceTarget},
				"longTerm":       {analysis.LongTermPath, longTermTarget},
			}
			for name, pool := range pools {
				if len(pool.values) != pool.target {
					t.Fatalf("profile %d seed %d: %s has %d entries, want %d", i, s, name, len(pool.values), pool.target)
				}
				sorted := append([]string(nil), pool.values...)
				sort.Strings(sorted)
				for j := 1; j < len(sorted); j++ {
					if sorted[j] == sorted[j-1] {
						t.Fatalf("profile %d seed %d: duplicate %q in %s", i, s, sorted[j], name)
					}
				}
			}
		}
	}
}

func TestAnalyzeOpportunitiesSeedsRuleMatches(t *testing.T) {
	p := profileWith(profile.Answers{
		profile.QuestionLivingSituation: "homeless",
		profile.QuestionHelpNeeded:      []any{"housing"},
	})

	analysis := New(WithSeed(1)).AnalyzeOpportunities(p)
	want := []string{
		"Emergency shelter intake through the Department of Homeless Services",
		"Emergency rental assistance programs",
	}
	if diff := cmp.Diff(want, analysis.HiddenOpportunities[:2]); diff != "" {
		t.Fatalf("seeded entries mismatch (-want +got):\n%s", diff)
	}
	if analysis.LongTermPath[0] != "Secure stable housing and food" {
		t.Fatalf("expected housing path first, got %q", analysis.LongTermPath[0])
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
