package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	ResourceIDField       = "ID"
	ResourceCategoryField = "Category"
)

// Resources is an ordered resource list. Order is significant: it is the
// tie-break order used when ranking.
type Resources struct {
	Items []*Resource
}

// NewResources wraps the given items.
func NewResources(items ...*Resource) *Resources {
	return &Resources{Items: items}
}

func (r *Resources) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

func (r *Resources) FindByID(id ResourceID) *Resource {
	if r == nil {
		return nil
	}
	for _, res := range r.Items {
		if res != nil && res.ID == id {
			return res
		}
	}
	return nil
}

// Index returns a lookup table by id. The first resource wins on duplicates.
func (r *Resources) Index() map[ResourceID]*Resource {
	index := make(map[ResourceID]*Resource, r.Len())
	if r == nil {
		return index
	}
	for _, res := range r.Items {
		if res == nil {
			continue
		}
		if _, ok := index[res.ID]; !ok {
			index[res.ID] = res
		}
	}
	return index
}

func (r *Resources) IDs() []string {
	ids := make([]string, 0, r.Len())
	if r == nil {
		return ids
	}
	for _, res := range r.Items {
		if res != nil {
			ids = append(ids, string(res.ID))
		}
	}
	return ids
}

func (r *Resource) GetStringField(name string) string {
	switch name {
	case ResourceIDField:
		return string(r.ID)
	case ResourceCategoryField:
		return r.NormalizedCategory()
	default:
		return ""
	}
}

// Exclude removes every resource whose field equals one of the targets and
// returns the removed ids. The order of the remaining resources is preserved.
func (r *Resources) Exclude(name string, targets []string) []string {
	if r == nil || len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if name == ResourceCategoryField {
			t = strings.ToLower(strings.TrimSpace(t))
		}
		set[t] = struct{}{}
	}

	var excluded []string
	r.Retain(func(res *Resource) bool {
		if _, ok := set[res.GetStringField(name)]; ok {
			excluded = append(excluded, string(res.ID))
			return false
		}
		return true
	})
	return excluded
}

// Retain keeps only the resources for which keep returns true. Nil entries are dropped.
func (r *Resources) Retain(keep func(*Resource) bool) {
	if r == nil {
		return
	}
	kept := r.Items[:0]
	for _, res := range r.Items {
		if res != nil && keep(res) {
			kept = append(kept, res)
		}
	}
	for i := len(kept); i < len(r.Items); i++ {
		r.Items[i] = nil
	}
	r.Items = kept
}

// Clone returns a shallow copy of the list so filters can reorder or drop
// entries without touching the caller's slice.
func (r *Resources) Clone() *Resources {
	if r == nil {
		return &Resources{}
	}
	items := make([]*Resource, len(r.Items))
	copy(items, r.Items)
	return &Resources{Items: items}
}

// ReportByCategory groups resources by category for display.
func (r *Resources) ReportByCategory() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	if r == nil {
		return report
	}
	for _, res := range r.Items {
		if res == nil {
			continue
		}
		key := CategoryLabel(res.Category)
		report[key] = append(report[key], map[string]string{
			"id":      string(res.ID),
			"title":   res.Title,
			"address": res.Address,
			"phone":   res.Phone,
			"hours":   res.Hours,
		})
	}
	return report
}

// Categories returns the distinct normalized categories in sorted order.
func (r *Resources) Categories() []string {
	seen := make(map[string]struct{})
	if r != nil {
		for _, res := range r.Items {
			if res != nil {
				seen[res.NormalizedCategory()] = struct{}{}
			}
		}
	}
	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// ExcludedResources is the on-disk list of resources hidden from recommendations.
type ExcludedResources struct {
	Items []*ExcludedResource
}

type ExcludedResource struct {
	ID         ResourceID
	Title      string
	Reason     string `json:",omitempty"`
	ExcludedAt time.Time
}

// ToExcluded converts the list into exclude-file entries.
func (r *Resources) ToExcluded(reason string) *ExcludedResources {
	excluded := &ExcludedResources{}
	if r == nil {
		return excluded
	}
	for _, res := range r.Items {
		if res == nil {
			continue
		}
		excluded.Items = append(excluded.Items, &ExcludedResource{
			ID:         res.ID,
			Title:      res.Title,
			Reason:     strings.TrimSpace(reason),
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

// GetExcludedResourcesFromFile reads an exclude file. A missing or empty file
// yields an empty list.
func GetExcludedResourcesFromFile(path string) (*ExcludedResources, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ExcludedResources{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedResources{}, nil
	}

	var excluded ExcludedResources
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, fmt.Errorf("decode exclude file %q: %w", path, err)
	}
	return &excluded, nil
}

// Append adds entries whose id is not already present.
func (e *ExcludedResources) Append(s *ExcludedResources) {
	if s == nil {
		return
	}
	known := make(map[ResourceID]struct{}, len(e.Items))
	for _, item := range e.Items {
		known[item.ID] = struct{}{}
	}
	for _, item := range s.Items {
		if _, ok := known[item.ID]; ok {
			continue
		}
		known[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedResources) ResourceIDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, string(item.ID))
	}
	return ids
}

func (e *ExcludedResources) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
