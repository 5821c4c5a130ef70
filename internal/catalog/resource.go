package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Known categories. The set is open: resources with other categories are still scored.
const (
	CategoryFood         = "food"
	CategoryHousing      = "housing"
	CategoryJobs         = "jobs"
	CategoryEducation    = "education"
	CategoryMentalHealth = "mental-health"
	CategoryLegal        = "legal"
	CategoryHealthcare   = "healthcare"
	CategoryFamily       = "family"
	CategoryYouth        = "youth"
	CategorySeniors      = "seniors"
)

// ResourceID is an opaque resource key. Catalogs use both integer and UUID keys,
// so every id is carried as its canonical string form.
type ResourceID string

func (id ResourceID) String() string { return string(id) }

// ParseResourceID coerces a decoded JSON or YAML value into a ResourceID.
// Strings are trimmed, integral numbers are formatted without a fraction.
// Fractional numbers, booleans and empty values are rejected.
func ParseResourceID(v any) (ResourceID, bool) {
	switch val := v.(type) {
	case ResourceID:
		return val, strings.TrimSpace(string(val)) != ""
	case string:
		s := strings.TrimSpace(val)
		return ResourceID(s), s != ""
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return ResourceID(strconv.FormatInt(i, 10)), true
		}
		f, err := val.Float64()
		if err != nil {
			return "", false
		}
		return ParseResourceID(f)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) {
			return "", false
		}
		return ResourceID(strconv.FormatInt(int64(val), 10)), true
	case float32:
		return ParseResourceID(float64(val))
	case int:
		return ResourceID(strconv.Itoa(val)), true
	case int64:
		return ResourceID(strconv.FormatInt(val, 10)), true
	case int32:
		return ResourceID(strconv.FormatInt(int64(val), 10)), true
	default:
		return "", false
	}
}

func (id *ResourceID) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*id = ""
		return nil
	}

	parsed, ok := ParseResourceID(raw)
	if !ok {
		return fmt.Errorf("invalid resource id %s", string(data))
	}
	*id = parsed
	return nil
}

func (id *ResourceID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("resource id must be a scalar, got yaml kind %d", node.Kind)
	}
	*id = ResourceID(strings.TrimSpace(node.Value))
	return nil
}

// Tags is a list of free-text service descriptors. Decoding tolerates
// non-string elements by dropping them.
type Tags []string

func (t *Tags) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		var single string
		if errSingle := json.Unmarshal(data, &single); errSingle == nil {
			*t = Tags{single}
			return nil
		}
		return err
	}

	tags := make(Tags, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			tags = append(tags, strings.TrimSpace(s))
		}
	}
	*t = tags
	return nil
}

// Resource is a catalog entry describing a local service provider.
type Resource struct {
	ID          ResourceID `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title" validate:"required"`
	Category    string     `json:"category" yaml:"category" validate:"required"`
	Address     string     `json:"address" yaml:"address" validate:"required"`
	Phone       string     `json:"phone,omitempty" yaml:"phone,omitempty"`
	Hours       string     `json:"hours,omitempty" yaml:"hours,omitempty"`
	Link        string     `json:"link,omitempty" yaml:"link,omitempty" validate:"omitempty,url"`
	Tags        Tags       `json:"tags" yaml:"tags"`
	Description string     `json:"description" yaml:"description"`
	Verified    bool       `json:"verified" yaml:"verified"`
}

// NormalizedCategory returns the lowercased, trimmed category.
func (r *Resource) NormalizedCategory() string {
	if r == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(r.Category))
}

// HasTag reports whether any tag contains any of the keywords, case-insensitively.
func (r *Resource) HasTag(keywords ...string) bool {
	if r == nil {
		return false
	}
	for _, tag := range r.Tags {
		tag = strings.ToLower(tag)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(tag, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

// Eligible reports whether the resource may be scored and recommended.
func Eligible(r *Resource) bool {
	return r != nil && r.Verified && strings.TrimSpace(string(r.ID)) != ""
}

// CategoryLabel turns a category key into display words, e.g. "mental-health" -> "mental health".
func CategoryLabel(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return "community"
	}
	return strings.ReplaceAll(category, "-", " ")
}
