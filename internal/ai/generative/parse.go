package generative

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/catalog"
)

var (
	ErrEmptyReply             = errors.New("generative reply is empty")
	ErrNoJSON                 = errors.New("generative reply does not contain a JSON object")
	ErrMissingRecommendations = errors.New("generative reply has no recommendations list")
	ErrNoMatchingResources    = errors.New("generative reply does not reference any known resource")
)

//go:embed schemas/bundle.json
var bundleSchema string

//go:embed schemas/opportunities.json
var opportunitiesSchema string

var (
	bundleSchemaLoader        = gojsonschema.NewStringLoader(bundleSchema)
	opportunitiesSchemaLoader = gojsonschema.NewStringLoader(opportunitiesSchema)
)

// SchemaError lists the schema violations found in a reply.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "generative reply violates schema: " + strings.Join(e.Violations, "; ")
}

type wireRecommendation struct {
	ResourceID     any      `mapstructure:"resourceId"`
	RelevanceScore any      `mapstructure:"relevanceScore"`
	Reasoning      string   `mapstructure:"reasoning"`
	UrgencyLevel   string   `mapstructure:"urgencyLevel"`
	ActionItems    []string `mapstructure:"actionItems"`
	Opportunities  []string `mapstructure:"opportunities"`
}

type wireBundle struct {
	Recommendations []map[string]any `mapstructure:"recommendations"`
	Insights        []string         `mapstructure:"insights"`
	NextSteps       []string         `mapstructure:"nextSteps"`
	Opportunities   []string         `mapstructure:"opportunities"`
}

// extractJSON isolates the text between the first '{' and the last '}'.
func extractJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyReply
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return raw[start : end+1], nil
}

func decodeReply(raw string, schema gojsonschema.JSONLoader) (map[string]any, error) {
	payload, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}

	// doc is returned with schema errors so callers can tell what was missing.
	return doc, validateSchema(schema, doc)
}

func validateSchema(schema gojsonschema.JSONLoader, doc map[string]any) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate reply: %w", err)
	}
	if result.Valid() {
		return nil
	}

	schemaErr := &SchemaError{}
	for _, desc := range result.Errors() {
		schemaErr.Violations = append(schemaErr.Violations, desc.String())
	}
	return schemaErr
}

func weakDecode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// parseBundle turns a raw reply into a bundle restricted to the given resources.
// Unknown and duplicate ids are dropped; the rest is sorted by score.
func parseBundle(raw string, resources *catalog.Resources, maxResults int) (*ai.Bundle, int, error) {
	doc, err := decodeReply(raw, bundleSchemaLoader)
	if err != nil {
		var schemaErr *SchemaError
		if errors.As(err, &schemaErr) {
			if _, ok := doc["recommendations"].([]any); !ok {
				return nil, 0, fmt.Errorf("%w: %v", ErrMissingRecommendations, err)
			}
		}
		return nil, 0, err
	}

	var wire wireBundle
	if err := weakDecode(doc, &wire); err != nil {
		return nil, 0, fmt.Errorf("decode reply: %w", err)
	}

	index := resources.Index()
	seen := make(map[catalog.ResourceID]struct{}, len(wire.Recommendations))
	recs := make([]*ai.Recommendation, 0, len(wire.Recommendations))
	dropped := 0

	for _, item := range wire.Recommendations {
		var w wireRecommendation
		if err := weakDecode(item, &w); err != nil {
			dropped++
			continue
		}
		id, ok := catalog.ParseResourceID(w.ResourceID)
		if !ok {
			dropped++
			continue
		}
		res, known := index[id]
		if !known || !catalog.Eligible(res) {
			dropped++
			continue
		}
		if _, dup := seen[id]; dup {
			dropped++
			continue
		}
		seen[id] = struct{}{}
		recs = append(recs, normalizeRecommendation(w, res))
	}

	if len(recs) == 0 && resources.Len() > 0 {
		return nil, dropped, ErrNoMatchingResources
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].RelevanceScore > recs[j].RelevanceScore
	})
	if maxResults > 0 && len(recs) > maxResults {
		dropped += len(recs) - maxResults
		recs = recs[:maxResults]
	}

	return &ai.Bundle{
		Recommendations: recs,
		Insights:        cleanStrings(wire.Insights),
		NextSteps:       cleanStrings(wire.NextSteps),
		Opportunities:   cleanStrings(wire.Opportunities),
	}, dropped, nil
}

func normalizeRecommendation(w wireRecommendation, res *catalog.Resource) *ai.Recommendation {
	label := catalog.CategoryLabel(res.Category)
	urgency, _ := ai.ParseUrgencyLevel(w.UrgencyLevel)

	reasoning := strings.TrimSpace(w.Reasoning)
	if reasoning == "" {
		reasoning = fmt.Sprintf("%s offers %s services that match your needs.", res.Title, label)
	}

	actions := cleanStrings(w.ActionItems)
	for _, def := range []string{fmt.Sprintf("Contact %s directly", res.Title), "Ask about eligibility requirements"} {
		if len(actions) >= 2 {
			break
		}
		actions = append(actions, def)
	}

	return &ai.Recommendation{
		ResourceID:     res.ID,
		RelevanceScore: coerceScore(w.RelevanceScore),
		Reasoning:      reasoning,
		UrgencyLevel:   urgency,
		ActionItems:    actions,
		Opportunities:  cleanStrings(w.Opportunities),
	}
}

func parseOpportunities(raw string) (*ai.OpportunityAnalysis, error) {
	doc, err := decodeReply(raw, opportunitiesSchemaLoader)
	if err != nil {
		return nil, err
	}

	var analysis ai.OpportunityAnalysis
	if err := weakDecode(doc, &analysis); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	analysis.HiddenOpportunities = cleanStrings(analysis.HiddenOpportunities)
	analysis.Qualifications = cleanStrings(analysis.Qualifications)
	analysis.StrategicAdvice = cleanStrings(analysis.StrategicAdvice)
	analysis.LongTermPath = cleanStrings(analysis.LongTermPath)
	return &analysis, nil
}

// coerceScore accepts numbers and numeric strings and clamps them to 0..100.
func coerceScore(v any) int {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = val
	case int:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(val), "%"), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(f))))
}

// cleanStrings trims entries, drops blanks and duplicates, and never returns nil.
func cleanStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
