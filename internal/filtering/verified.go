package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/resource-matcher/internal/catalog"
)

type verifiedFilter struct {
	disabled bool
	reason   string
}

// NewVerified creates a filter that removes unverified resources and resources without an id.
func NewVerified() Filter {
	return &verifiedFilter{}
}

func (f *verifiedFilter) Name() string { return "verified" }

func (f *verifiedFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *verifiedFilter) IsEnabled() bool { return !f.disabled }

func (f *verifiedFilter) Validate(*Config) error { return nil }

func (f *verifiedFilter) Apply(_ context.Context, deps Deps, r *catalog.Resources) (*catalog.Resources, Step, error) {
	initial := r.Len()

	var excluded []string
	r.Retain(func(res *catalog.Resource) bool {
		if catalog.Eligible(res) {
			return true
		}
		excluded = append(excluded, res.Title)
		return false
	})

	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding unverified resources",
			zap.Strings("excluded_resources", excluded),
			zap.Int("resources_left", r.Len()),
		)
	}

	return r, Step{Initial: initial, Dropped: initial - r.Len(), Left: r.Len()}, nil
}

func (f *verifiedFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type uniqueIDsFilter struct{}

// NewUniqueIDs creates a filter that keeps the first resource for every id.
func NewUniqueIDs() Filter {
	return &uniqueIDsFilter{}
}

func (f *uniqueIDsFilter) Name() string { return "unique_ids" }

func (f *uniqueIDsFilter) Disable(string) {}

func (f *uniqueIDsFilter) IsEnabled() bool { return true }

func (f *uniqueIDsFilter) Validate(*Config) error { return nil }

func (f *uniqueIDsFilter) Apply(_ context.Context, deps Deps, r *catalog.Resources) (*catalog.Resources, Step, error) {
	initial := r.Len()
	seen := make(map[catalog.ResourceID]struct{}, initial)

	var duplicates []string
	r.Retain(func(res *catalog.Resource) bool {
		if _, dup := seen[res.ID]; dup {
			duplicates = append(duplicates, string(res.ID))
			return false
		}
		seen[res.ID] = struct{}{}
		return true
	})

	if deps.Logger != nil && len(duplicates) > 0 {
		deps.Logger.Warn("catalog contains duplicate resource ids",
			zap.Strings("duplicate_ids", duplicates),
		)
	}

	return r, Step{Initial: initial, Dropped: len(duplicates), Left: r.Len()}, nil
}
