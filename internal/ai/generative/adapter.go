// Package generative asks an external text generator for recommendations and
// parses the reply into the same shapes the deterministic scorer returns.
package generative

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/logger"
	"github.com/spigell/resource-matcher/internal/profile"
	"github.com/spigell/resource-matcher/internal/utils"
)

const (
	defaultMaxLogLength = 200
	defaultMaxResults   = 8
)

var (
	RecommendationOptions = ai.GenerationOptions{Temperature: 0.7, MaxTokens: 3000}
	OpportunityOptions    = ai.GenerationOptions{Temperature: 0.8, MaxTokens: 1500}
)

// Adapter implements ai.Recommender and ai.OpportunityAnalyzer on top of a
// text generator. Every call is a single attempt.
type Adapter struct {
	generator  ai.TextGenerator
	logger     *zap.Logger
	maxLogLen  int
	maxResults int
}

func NewAdapter(generator ai.TextGenerator, log *zap.Logger, maxLogLength, maxResults int) (*Adapter, error) {
	if generator == nil {
		return nil, errors.New("text generator is required")
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	return &Adapter{
		generator:  generator,
		logger:     logger.WithFields(log, logger.StringFields(logger.StringField{Key: logger.FieldModel, Value: generator.Model()})...),
		maxLogLen:  maxLogLength,
		maxResults: maxResults,
	}, nil
}

func (a *Adapter) Recommend(ctx context.Context, p *profile.UserProfile, resources *catalog.Resources) (*ai.Bundle, error) {
	prompt := BuildRecommendationPrompt(p, resources)
	raw, err := a.generate(ctx, "recommendations", prompt, RecommendationOptions)
	if err != nil {
		return nil, err
	}

	bundle, dropped, err := parseBundle(raw, resources, a.maxResults)
	if err != nil {
		return nil, fmt.Errorf("parse recommendations reply: %w", err)
	}
	if dropped > 0 {
		a.logger.Info("dropped generated recommendations",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(bundle.Recommendations)),
		)
	}
	return bundle, nil
}

func (a *Adapter) AnalyzeOpportunities(ctx context.Context, p *profile.UserProfile) (*ai.OpportunityAnalysis, error) {
	raw, err := a.generate(ctx, "opportunities", BuildOpportunityPrompt(p), OpportunityOptions)
	if err != nil {
		return nil, err
	}

	analysis, err := parseOpportunities(raw)
	if err != nil {
		return nil, fmt.Errorf("parse opportunities reply: %w", err)
	}
	return analysis, nil
}

func (a *Adapter) generate(ctx context.Context, kind, prompt string, opts ai.GenerationOptions) (string, error) {
	a.logger.Debug("generate request",
		zap.String("kind", kind),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.Generate(ctx, prompt, opts)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}

	a.logger.Debug("generate response",
		zap.String("kind", kind),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)
	return raw, nil
}
