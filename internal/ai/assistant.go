package ai

import (
	"context"
	"strings"

	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/profile"
)

type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "low"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

var urgencyRank = map[UrgencyLevel]int{
	UrgencyLow:      0,
	UrgencyMedium:   1,
	UrgencyHigh:     2,
	UrgencyCritical: 3,
}

// ParseUrgencyLevel maps free text onto a known level. Unknown values yield medium and false.
func ParseUrgencyLevel(s string) (UrgencyLevel, bool) {
	level := UrgencyLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := urgencyRank[level]; ok {
		return level, true
	}
	return UrgencyMedium, false
}

// Raise returns the higher of the two levels.
func (u UrgencyLevel) Raise(to UrgencyLevel) UrgencyLevel {
	if urgencyRank[to] > urgencyRank[u] {
		return to
	}
	return u
}

type Recommendation struct {
	ResourceID     catalog.ResourceID `json:"resourceId"`
	RelevanceScore int                `json:"relevanceScore"`
	Reasoning      string             `json:"reasoning"`
	UrgencyLevel   UrgencyLevel       `json:"urgencyLevel"`
	ActionItems    []string           `json:"actionItems"`
	Opportunities  []string           `json:"opportunities"`
}

// Bundle is the ranked recommendation set with profile-level narratives.
type Bundle struct {
	Recommendations []*Recommendation `json:"recommendations"`
	Insights        []string          `json:"insights"`
	NextSteps       []string          `json:"nextSteps"`
	Opportunities   []string          `json:"opportunities"`
}

// ResourceIDs returns the recommended ids in ranking order.
func (b *Bundle) ResourceIDs() []string {
	if b == nil {
		return nil
	}
	ids := make([]string, 0, len(b.Recommendations))
	for _, rec := range b.Recommendations {
		ids = append(ids, string(rec.ResourceID))
	}
	return ids
}

type OpportunityAnalysis struct {
	HiddenOpportunities []string `json:"hiddenOpportunities"`
	Qualifications      []string `json:"qualifications"`
	StrategicAdvice     []string `json:"strategicAdvice"`
	LongTermPath        []string `json:"longTermPath"`
}

// Source tells where a result came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// GenerationOptions are the sampling parameters passed to a text generator.
type GenerationOptions struct {
	Temperature float32
	MaxTokens   int
}

// TextGenerator sends a single prompt to a generative text service.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
	Model() string
}

// Recommender ranks resources for a profile.
type Recommender interface {
	Recommend(ctx context.Context, p *profile.UserProfile, resources *catalog.Resources) (*Bundle, error)
}

// OpportunityAnalyzer produces program suggestions that are not tied to a resource.
type OpportunityAnalyzer interface {
	AnalyzeOpportunities(ctx context.Context, p *profile.UserProfile) (*OpportunityAnalysis, error)
}
