package profile

import (
	"sort"
	"strings"
)

// QuestionID identifies an onboarding question.
type QuestionID int

const (
	QuestionLivingSituation      QuestionID = 1
	QuestionHelpNeeded           QuestionID = 2
	QuestionUrgency              QuestionID = 3
	QuestionSpecialCircumstances QuestionID = 4
	QuestionPreferredArea        QuestionID = 5
	QuestionAdditionalDetails    QuestionID = 6
)

const (
	LivingStable    = "stable"
	LivingTemporary = "temporary"
	LivingShelter   = "shelter"
	LivingHomeless  = "homeless"
	LivingRisk      = "risk"

	UrgencyImmediate = "immediate"
	UrgencySoon      = "soon"
	UrgencyPlanning  = "planning"
	UrgencyExploring = "exploring"

	AreaAny = "any"
)

// Special circumstances recognized by the questionnaire.
const (
	CircumstanceChildren   = "children"
	CircumstanceElderly    = "elderly"
	CircumstanceDisability = "disability"
	CircumstanceVeteran    = "veteran"
	CircumstanceStudent    = "student"
	CircumstancePregnant   = "pregnant"
	CircumstanceImmigrant  = "immigrant"
)

// Answers maps a question to its raw answer. Depending on the question the value
// is a string or a list of strings; anything else is treated as "not specified".
type Answers map[QuestionID]any

// UserProfile is the part of a user record the matching engine consumes.
type UserProfile struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Answers Answers `json:"answers"`
}

// Single returns a single-select or free-text answer, lowercased and trimmed.
// A list answer with exactly one element is accepted as well.
func (a Answers) Single(id QuestionID) string {
	switch val := a[id].(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(val))
	case []string:
		if len(val) == 1 {
			return strings.ToLower(strings.TrimSpace(val[0]))
		}
	case []any:
		if len(val) == 1 {
			if s, ok := val[0].(string); ok {
				return strings.ToLower(strings.TrimSpace(s))
			}
		}
	}
	return ""
}

// Multi returns a multi-select answer as a list of lowercased, trimmed, unique
// values in their original order. Non-string elements are skipped.
func (a Answers) Multi(id QuestionID) []string {
	var raw []string
	switch val := a[id].(type) {
	case string:
		raw = []string{val}
	case []string:
		raw = val
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	seen := make(map[string]struct{}, len(raw))
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}

// Text returns a free-text answer with surrounding whitespace removed and case preserved.
func (a Answers) Text(id QuestionID) string {
	if s, ok := a[id].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// IDs returns the answered question ids in ascending order.
func (a Answers) IDs() []QuestionID {
	ids := make([]QuestionID, 0, len(a))
	for id := range a {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p UserProfile) LivingSituation() string { return p.Answers.Single(QuestionLivingSituation) }

func (p UserProfile) HelpNeeded() []string { return p.Answers.Multi(QuestionHelpNeeded) }

func (p UserProfile) Urgency() string { return p.Answers.Single(QuestionUrgency) }

func (p UserProfile) SpecialCircumstances() []string {
	return p.Answers.Multi(QuestionSpecialCircumstances)
}

// PreferredArea returns the preferred area, or an empty string when the user can
// travel anywhere or did not answer.
func (p UserProfile) PreferredArea() string {
	area := p.Answers.Single(QuestionPreferredArea)
	if area == AreaAny {
		return ""
	}
	return area
}

func (p UserProfile) AdditionalDetails() string { return p.Answers.Text(QuestionAdditionalDetails) }

// Set is a lookup set built from a multi-select answer.
type Set map[string]struct{}

// NewSet builds a Set from the provided values.
func NewSet(values []string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s Set) Has(value string) bool {
	_, ok := s[value]
	return ok
}
