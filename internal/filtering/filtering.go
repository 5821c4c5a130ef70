// Package filtering narrows a catalog down to the resources that may be
// recommended. Steps run in order on a working copy of the list.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/catalog"
)

// Filter represents a single filtering step applied to resources.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, r *catalog.Resources) (*catalog.Resources, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	ExcludedCategories []string
	ExcludeFile        string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard pipeline in execution order.
func Default() []Filter {
	return []Filter{
		NewVerified(),
		NewUniqueIDs(),
		NewExcludedCategories(),
		NewExcludeFile(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Pipeline validates its steps once and can then be run for every request.
type Pipeline struct {
	steps  []Filter
	logger *zap.Logger
}

// New validates every enabled step against cfg.
func New(cfg *Config, steps []Filter, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return &Pipeline{steps: steps, logger: logger}, nil
}

// Run applies the enabled steps to a copy of r. The input list is never modified.
func (p *Pipeline) Run(ctx context.Context, r *catalog.Resources) (*catalog.Resources, error) {
	deps := Deps{Logger: p.logger}
	current := r.Clone()

	for _, step := range p.steps {
		if !step.IsEnabled() {
			p.logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		p.logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		current = next
	}

	return current, nil
}

// Describe returns status entries for the pipeline's filters.
func (p *Pipeline) Describe() []Status {
	return Describe(p.steps)
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
