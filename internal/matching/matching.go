// Package matching runs the recommendation fallback chain: the generative
// path first, the deterministic scorer whenever it fails or times out.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/filtering"
	"github.com/spigell/resource-matcher/internal/metrics"
	"github.com/spigell/resource-matcher/internal/profile"
	"github.com/spigell/resource-matcher/internal/scoring"
)

const (
	DefaultTimeout = 25 * time.Second

	kindRecommendations = "recommendations"
	kindOpportunities   = "opportunities"
)

// Result is what one matching run returns to callers.
type Result struct {
	Bundle              *ai.Bundle              `json:"recommendations"`
	Opportunities       *ai.OpportunityAnalysis `json:"opportunities"`
	Source              ai.Source               `json:"source"`
	OpportunitiesSource ai.Source               `json:"opportunitiesSource"`
}

type Matcher struct {
	scorer      *scoring.Scorer
	recommender ai.Recommender
	analyzer    ai.OpportunityAnalyzer
	pipeline    *filtering.Pipeline
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

type Option func(*Matcher)

// WithGenerative enables the generative path for both recommendations and
// opportunity analysis. Either may be nil.
func WithGenerative(r ai.Recommender, a ai.OpportunityAnalyzer) Option {
	return func(m *Matcher) {
		m.recommender = r
		m.analyzer = a
	}
}

func WithPipeline(p *filtering.Pipeline) Option {
	return func(m *Matcher) { m.pipeline = p }
}

func WithTimeout(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Matcher) { m.metrics = mt }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func New(scorer *scoring.Scorer, opts ...Option) *Matcher {
	if scorer == nil {
		scorer = scoring.New()
	}
	m := &Matcher{
		scorer:  scorer,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match filters resources and runs recommendations and the opportunity
// analysis concurrently. It only fails when the eligibility pipeline fails.
func (m *Matcher) Match(ctx context.Context, p *profile.UserProfile, resources *catalog.Resources) (*Result, error) {
	eligible, err := m.eligible(ctx, resources)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Bundle, res.Source = m.recommend(gctx, p, eligible)
		return nil
	})
	g.Go(func() error {
		res.Opportunities, res.OpportunitiesSource = m.analyze(gctx, p)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.logger.Info("matching finished",
		zap.String("source", string(res.Source)),
		zap.String("opportunities_source", string(res.OpportunitiesSource)),
		zap.Int("recommendations", len(res.Bundle.Recommendations)),
	)
	return res, nil
}

// Recommend runs only the recommendation chain.
func (m *Matcher) Recommend(ctx context.Context, p *profile.UserProfile, resources *catalog.Resources) (*ai.Bundle, ai.Source, error) {
	eligible, err := m.eligible(ctx, resources)
	if err != nil {
		return nil, "", err
	}
	bundle, source := m.recommend(ctx, p, eligible)
	return bundle, source, nil
}

// AnalyzeOpportunities runs only the opportunity analysis chain.
func (m *Matcher) AnalyzeOpportunities(ctx context.Context, p *profile.UserProfile) (*ai.OpportunityAnalysis, ai.Source) {
	return m.analyze(ctx, p)
}

func (m *Matcher) eligible(ctx context.Context, resources *catalog.Resources) (*catalog.Resources, error) {
	if resources == nil {
		resources = catalog.NewResources()
	}
	if m.pipeline == nil {
		return resources, nil
	}
	filtered, err := m.pipeline.Run(ctx, resources)
	if err != nil {
		return nil, fmt.Errorf("filter resources: %w", err)
	}
	return filtered, nil
}

func (m *Matcher) recommend(ctx context.Context, p *profile.UserProfile, resources *catalog.Resources) (*ai.Bundle, ai.Source) {
	if m.recommender != nil {
		var bundle *ai.Bundle
		err := m.attempt(ctx, kindRecommendations, func(ctx context.Context) error {
			var err error
			bundle, err = m.recommender.Recommend(ctx, p, resources)
			return err
		})
		if err == nil && bundle != nil {
			m.backfillBundle(bundle, p, resources)
			m.metrics.ObserveRun(kindRecommendations, string(ai.SourceAI), len(bundle.Recommendations))
			return bundle, ai.SourceAI
		}
	} else {
		m.metrics.ObserveFallback(kindRecommendations, metrics.ReasonDisabled)
	}

	bundle := m.scorer.ScoreRecommendations(p, resources)
	m.metrics.ObserveRun(kindRecommendations, string(ai.SourceFallback), len(bundle.Recommendations))
	return bundle, ai.SourceFallback
}

func (m *Matcher) analyze(ctx context.Context, p *profile.UserProfile) (*ai.OpportunityAnalysis, ai.Source) {
	if m.analyzer != nil {
		var analysis *ai.OpportunityAnalysis
		err := m.attempt(ctx, kindOpportunities, func(ctx context.Context) error {
			var err error
			analysis, err = m.analyzer.AnalyzeOpportunities(ctx, p)
			return err
		})
		if err == nil && analysis != nil {
			m.backfillAnalysis(analysis, p)
			m.metrics.ObserveRun(kindOpportunities, string(ai.SourceAI), 0)
			return analysis, ai.SourceAI
		}
	} else {
		m.metrics.ObserveFallback(kindOpportunities, metrics.ReasonDisabled)
	}

	m.metrics.ObserveRun(kindOpportunities, string(ai.SourceFallback), 0)
	return m.scorer.AnalyzeOpportunities(p), ai.SourceFallback
}

// attempt runs one generative call under the configured timeout. A failure is
// logged and counted, never returned to the caller of Match.
func (m *Matcher) attempt(ctx context.Context, kind string, call func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := call(callCtx)
	m.metrics.ObserveGeneration(kind, time.Since(start))
	if err == nil {
		return nil
	}

	reason := metrics.ReasonError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		reason = metrics.ReasonTimeout
	}
	m.metrics.ObserveFallback(kind, reason)
	m.logger.Warn("generative call failed, using fallback",
		zap.String("kind", kind),
		zap.String("reason", reason),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	return err
}

// backfillBundle fills narratives the generative reply left empty.
func (m *Matcher) backfillBundle(b *ai.Bundle, p *profile.UserProfile, resources *catalog.Resources) {
	if len(b.Insights) > 0 && len(b.NextSteps) > 0 && len(b.Opportunities) > 0 {
		return
	}
	det := m.scorer.ScoreRecommendations(p, resources)
	if len(b.Insights) == 0 {
		b.Insights = det.Insights
	}
	if len(b.NextSteps) == 0 {
		b.NextSteps = det.NextSteps
	}
	if len(b.Opportunities) == 0 {
		b.Opportunities = det.Opportunities
	}
}

func (m *Matcher) backfillAnalysis(a *ai.OpportunityAnalysis, p *profile.UserProfile) {
	if len(a.HiddenOpportunities) > 0 && len(a.Qualifications) > 0 &&
		len(a.StrategicAdvice) > 0 && len(a.LongTermPath) > 0 {
		return
	}
	det := m.scorer.AnalyzeOpportunities(p)
	if len(a.HiddenOpportunities) == 0 {
		a.HiddenOpportunities = det.HiddenOpportunities
	}
	if len(a.Qualifications) == 0 {
		a.Qualifications = det.Qualifications
	}
	if len(a.StrategicAdvice) == 0 {
		a.StrategicAdvice = det.StrategicAdvice
	}
	if len(a.LongTermPath) == 0 {
		a.LongTermPath = det.LongTermPath
	}
}
