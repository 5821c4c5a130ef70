package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/ai/chatcompletions"
	"github.com/spigell/resource-matcher/internal/ai/gemini"
	"github.com/spigell/resource-matcher/internal/ai/generative"
	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/catalog/postgres"
	"github.com/spigell/resource-matcher/internal/filtering"
	"github.com/spigell/resource-matcher/internal/identity"
	"github.com/spigell/resource-matcher/internal/logger"
	"github.com/spigell/resource-matcher/internal/matching"
	"github.com/spigell/resource-matcher/internal/metrics"
	"github.com/spigell/resource-matcher/internal/scoring"
	"github.com/spigell/resource-matcher/internal/secrets"
	"github.com/spigell/resource-matcher/internal/server"
)

const (
	providerChatCompletions = "chat-completions"
	providerGemini          = "gemini"
)

// closers collects cleanup funcs for resources opened during wiring.
type closers []func() error

func (c *closers) Close(log *zap.Logger) {
	for i := len(*c) - 1; i >= 0; i-- {
		if err := (*c)[i](); err != nil {
			log.Warn("closing resource", zap.Error(err))
		}
	}
}

// newCatalog prefers postgres, then catalog.file, then the built-in seed.
// The repository is returned separately so callers can seed it.
func newCatalog(config *Config, logger *zap.Logger, cl *closers) (server.Catalog, *postgres.Repository, error) {
	if dsn := strings.TrimSpace(config.Postgres.DSN); dsn != "" {
		db, err := postgres.Open(postgres.Config{DSN: dsn, MaxConnections: config.Postgres.MaxConnections})
		if err != nil {
			return nil, nil, err
		}
		*cl = append(*cl, db.Close)
		logger.Info("using postgres catalog")
		repo := postgres.NewRepository(db)
		return repo, repo, nil
	}

	if file := strings.TrimSpace(config.Catalog.File); file != "" {
		resources, err := catalog.LoadFile(file)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using catalog file", zap.String("file", file), zap.Int("resources", resources.Len()))
		return catalog.NewStatic(resources), nil, nil
	}

	resources, err := catalog.LoadSeed()
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using built-in catalog", zap.Int("resources", resources.Len()))
	return catalog.NewStatic(resources), nil, nil
}

// newStore returns nil when redis is not configured.
func newStore(ctx context.Context, config *Config, logger *zap.Logger, cl *closers) (*identity.Store, error) {
	addr := strings.TrimSpace(config.Redis.Address)
	if addr == "" {
		logger.Info("redis is not configured, user storage is disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	*cl = append(*cl, client.Close)

	store := identity.NewStore(client, identity.Config{RecommendationTTL: config.Redis.RecommendationTTL})
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newMatcher(ctx context.Context, config *Config, log *zap.Logger, mt *metrics.Metrics) (*matching.Matcher, error) {
	scorerOpts := []scoring.Option{
		scoring.WithMaxResults(config.Scoring.MaxResults),
		scoring.WithLogger(log.Named("scoring")),
	}
	if config.Scoring.Seed != 0 {
		scorerOpts = append(scorerOpts, scoring.WithSeed(config.Scoring.Seed))
	}
	scorer := scoring.New(scorerOpts...)

	pipeline, err := newPipeline(config.Scoring, log.Named("filtering"))
	if err != nil {
		return nil, fmt.Errorf("building filters: %w", err)
	}

	opts := []matching.Option{
		matching.WithPipeline(pipeline),
		matching.WithTimeout(config.AI.Timeout),
		matching.WithMetrics(mt),
		matching.WithLogger(log.Named("matching")),
	}

	if config.AI.Enabled {
		adapter, err := newGenerativeAdapter(ctx, config, log)
		if err != nil {
			log.Warn("generative recommendations disabled, using fallback only", zap.Error(err))
		} else {
			opts = append(opts, matching.WithGenerative(adapter, adapter))
		}
	}

	return matching.New(scorer, opts...), nil
}

// newPipeline builds the eligibility filters and logs the status of each step.
func newPipeline(config *ScoringConfig, log *zap.Logger) (*filtering.Pipeline, error) {
	steps := filtering.Default()
	for _, name := range config.DisabledFilters {
		filtering.DisableByName(steps, strings.TrimSpace(name), "disabled in config")
	}

	pipeline, err := filtering.New(&filtering.Config{
		ExcludedCategories: config.ExcludedCategories,
		ExcludeFile:        config.ExcludeFile,
	}, steps, log)
	if err != nil {
		return nil, err
	}

	for _, status := range pipeline.Describe() {
		fields := []zap.Field{
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
		}
		if status.Reason != "" {
			fields = append(fields, zap.String("reason", status.Reason))
		}
		for k, v := range status.Details {
			fields = append(fields, zap.String(k, v))
		}
		log.Info("filter status", fields...)
	}
	return pipeline, nil
}

func newGenerativeAdapter(ctx context.Context, config *Config, log *zap.Logger) (*generative.Adapter, error) {
	generator, provider, err := newTextGenerator(ctx, config.AI)
	if err != nil {
		return nil, err
	}

	adapterLogger := logger.WithCommonFields(log.Named("generative"), provider, generator.Model())
	return generative.NewAdapter(generator, adapterLogger, config.AI.MaxLogLength, config.Scoring.MaxResults)
}

func newTextGenerator(ctx context.Context, cfg *AIConfig) (ai.TextGenerator, string, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", providerChatCompletions:
		// The default endpoint accepts anonymous requests, so the key is optional.
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "chat completions api key",
			Value: cfg.Chat.APIKey,
			File:  cfg.Chat.APIKeyFile,
			Env:   "AI_API_KEY",
		})
		if err != nil && !errors.Is(err, secrets.ErrNotConfigured) {
			return nil, "", err
		}
		return chatcompletions.New(chatcompletions.Config{
			URL:     cfg.Chat.URL,
			APIKey:  apiKey,
			Model:   cfg.Chat.Model,
			Timeout: cfg.Timeout,
		}), providerChatCompletions, nil
	case providerGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}
		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
		if err != nil {
			return nil, "", err
		}
		return generator, providerGemini, nil
	default:
		return nil, "", fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
