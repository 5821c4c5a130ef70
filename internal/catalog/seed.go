package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	_ "embed"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed seed/bronx.yaml
var seedCatalog []byte

var validate = validator.New()

// LoadSeed returns the built-in Bronx catalog.
func LoadSeed() (*Resources, error) {
	return decode(seedCatalog, "built-in seed catalog")
}

// LoadFile reads a YAML (or JSON, which is valid YAML) catalog file.
func LoadFile(path string) (*Resources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %q: %w", path, err)
	}
	return decode(data, path)
}

func decode(data []byte, source string) (*Resources, error) {
	var items []*Resource
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}

	resources := &Resources{Items: items}
	if err := Validate(resources); err != nil {
		return nil, fmt.Errorf("validate %s: %w", source, err)
	}
	return resources, nil
}

// Validate checks every resource for required display fields.
func Validate(resources *Resources) error {
	var errs []error
	for i, res := range resources.Items {
		if res == nil {
			errs = append(errs, fmt.Errorf("resource #%d is empty", i+1))
			continue
		}
		if err := validate.Struct(res); err != nil {
			errs = append(errs, fmt.Errorf("resource #%d (%s): %w", i+1, res.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Static serves a fixed in-memory catalog.
type Static struct {
	resources *Resources
}

func NewStatic(resources *Resources) *Static {
	return &Static{resources: resources}
}

// ListVerified returns a copy of the verified resources.
func (s *Static) ListVerified(_ context.Context) (*Resources, error) {
	out := s.resources.Clone()
	out.Retain(Eligible)
	return out, nil
}
