package filtering

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/catalog"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes resources listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

// Apply reads the file on every run so edits take effect without a restart.
func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, r *catalog.Resources) (*catalog.Resources, Step, error) {
	initial := r.Len()
	if f.path == "" {
		return r, Step{Initial: initial, Dropped: 0, Left: r.Len()}, nil
	}

	excluded, err := catalog.GetExcludedResourcesFromFile(f.path)
	if err != nil {
		return r, Step{}, fmt.Errorf("getting excluded resources from file: %w", err)
	}

	removed := r.Exclude(catalog.ResourceIDField, excluded.ResourceIDs())
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding resources based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_resources", removed),
			zap.Int("resources_left", r.Len()),
		)
	}

	return r, Step{Initial: initial, Dropped: len(removed), Left: r.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
