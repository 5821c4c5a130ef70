// Package scoring ranks catalog resources for a profile without calling any
// external service. It is the fallback behind the generative recommender and
// never fails.
package scoring

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/profile"
)

type Scorer struct {
	newRand    RandFactory
	maxResults int
	logger     *zap.Logger
}

type Option func(*Scorer)

// WithSeed makes every call draw from a fresh source seeded with seed.
func WithSeed(seed uint64) Option {
	return func(s *Scorer) { s.newRand = seededFactory(seed) }
}

func WithRandSource(factory RandFactory) Option {
	return func(s *Scorer) {
		if factory != nil {
			s.newRand = factory
		}
	}
}

func WithMaxResults(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(opts ...Option) *Scorer {
	s := &Scorer{
		newRand:    timeSeededFactory(),
		maxResults: defaultMaxResults,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreRecommendations scores every eligible resource, ranks them and builds the
// profile narratives. Unverified, id-less and duplicate resources are skipped.
func (s *Scorer) ScoreRecommendations(p *profile.UserProfile, resources *catalog.Resources) *ai.Bundle {
	rng := s.newRand()
	n := needsOf(p)

	var candidates []scored
	seen := make(map[catalog.ResourceID]struct{}, resources.Len())
	skipped := 0
	if resources != nil {
		for i, res := range resources.Items {
			if !catalog.Eligible(res) {
				skipped++
				continue
			}
			if _, dup := seen[res.ID]; dup {
				skipped++
				continue
			}
			seen[res.ID] = struct{}{}

			ev := evaluate(rng, n, res)
			candidates = append(candidates, scored{
				index:  i,
				pinned: ev.pinned,
				rec: &ai.Recommendation{
					ResourceID:     res.ID,
					RelevanceScore: ev.score,
					Reasoning:      ev.reasoning(res),
					UrgencyLevel:   ev.urgency,
					ActionItems:    actionItems(rng, res),
					Opportunities:  referrals(rng),
				},
			})
		}
	}

	selected := selectTop(rng, candidates, s.maxResults)
	recs := make([]*ai.Recommendation, 0, len(selected))
	for _, c := range selected {
		recs = append(recs, c.rec)
	}

	var help, circumstances []string
	if p != nil {
		help = p.HelpNeeded()
		circumstances = p.SpecialCircumstances()
	}

	s.logger.Debug("scored resources",
		zap.Int("candidates", len(candidates)),
		zap.Int("skipped", skipped),
		zap.Int("selected", len(recs)),
	)

	return &ai.Bundle{
		Recommendations: recs,
		Insights:        insights(n, help, len(recs)),
		NextSteps:       nextSteps(n),
		Opportunities:   bundleOpportunities(help, circumstances),
	}
}

// Recommend adapts the scorer to ai.Recommender. It never returns an error.
func (s *Scorer) Recommend(_ context.Context, p *profile.UserProfile, resources *catalog.Resources) (*ai.Bundle, error) {
	return s.ScoreRecommendations(p, resources), nil
}

// Analyzer adapts the scorer to ai.OpportunityAnalyzer.
type Analyzer struct {
	*Scorer
}

func (a Analyzer) AnalyzeOpportunities(_ context.Context, p *profile.UserProfile) (*ai.OpportunityAnalysis, error) {
	return a.Scorer.AnalyzeOpportunities(p), nil
}
