package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/catalog"
)

type excludedCategoriesFilter struct {
	categories []string
}

// NewExcludedCategories creates a filter that removes resources in categories configured in the config.
func NewExcludedCategories() Filter {
	return &excludedCategoriesFilter{}
}

func (f *excludedCategoriesFilter) Name() string { return "excluded_categories" }

func (f *excludedCategoriesFilter) Disable(string) {}

func (f *excludedCategoriesFilter) IsEnabled() bool { return true }

func (f *excludedCategoriesFilter) Validate(cfg *Config) error {
	f.categories = nil
	if cfg == nil {
		return nil
	}
	for _, c := range cfg.ExcludedCategories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			f.categories = append(f.categories, c)
		}
	}
	return nil
}

func (f *excludedCategoriesFilter) Apply(_ context.Context, deps Deps, r *catalog.Resources) (*catalog.Resources, Step, error) {
	initial := r.Len()
	if len(f.categories) == 0 {
		return r, Step{Initial: initial, Dropped: 0, Left: r.Len()}, nil
	}

	excluded := r.Exclude(catalog.ResourceCategoryField, f.categories)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding resources by category",
			zap.Strings("excluded_categories", f.categories),
			zap.Strings("excluded_resources", excluded),
			zap.Int("resources_left", r.Len()),
		)
	}

	return r, Step{Initial: initial, Dropped: len(excluded), Left: r.Len()}, nil
}

func (f *excludedCategoriesFilter) Status() Status {
	details := map[string]string{}
	if len(f.categories) > 0 {
		details["categories"] = strings.Join(f.categories, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
