package profile

import (
	"fmt"
	"strings"
)

// Kind describes how a question is answered.
type Kind string

const (
	KindSingle Kind = "single"
	KindMulti  Kind = "multi"
	KindText   Kind = "text"
)

const maxTextAnswerRunes = 2000

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Question struct {
	ID       QuestionID `json:"id"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle,omitempty"`
	Kind     Kind       `json:"kind"`
	Options  []Option   `json:"options,omitempty"`
}

// Questionnaire is the fixed onboarding questionnaire.
var Questionnaire = []Question{
	{
		ID:       QuestionLivingSituation,
		Title:    "What's your current living situation?",
		Subtitle: "This helps us understand your housing stability",
		Kind:     KindSingle,
		Options: []Option{
			{Value: LivingStable, Label: "I have stable housing"},
			{Value: LivingTemporary, Label: "I'm staying temporarily with friends/family"},
			{Value: LivingShelter, Label: "I'm in a shelter or transitional housing"},
			{Value: LivingHomeless, Label: "I don't have a place to stay"},
			{Value: LivingRisk, Label: "I'm at risk of losing my housing"},
		},
	},
	{
		ID:       QuestionHelpNeeded,
		Title:    "What type of help are you looking for?",
		Subtitle: "Select all that apply",
		Kind:     KindMulti,
		Options: []Option{
			{Value: "food", Label: "Food assistance"},
			{Value: "housing", Label: "Housing support"},
			{Value: "jobs", Label: "Job training or employment"},
			{Value: "education", Label: "Education or GED programs"},
			{Value: "mental-health", Label: "Mental health support"},
			{Value: "healthcare", Label: "Healthcare services"},
			{Value: "childcare", Label: "Childcare or family support"},
			{Value: "legal", Label: "Legal assistance"},
		},
	},
	{
		ID:       QuestionUrgency,
		Title:    "How urgent is your situation?",
		Subtitle: "This helps us prioritize the most important resources for you",
		Kind:     KindSingle,
		Options: []Option{
			{Value: UrgencyImmediate, Label: "I need help today or this week"},
			{Value: UrgencySoon, Label: "I need help within the next month"},
			{Value: UrgencyPlanning, Label: "I'm planning ahead for future needs"},
			{Value: UrgencyExploring, Label: "I'm just exploring what's available"},
		},
	},
	{
		ID:       QuestionSpecialCircumstances,
		Title:    "Do you have any of these situations?",
		Subtitle: "This helps us find specialized programs you might qualify for",
		Kind:     KindMulti,
		Options: []Option{
			{Value: CircumstanceChildren, Label: "I have children under 18"},
			{Value: CircumstanceElderly, Label: "I care for elderly family members"},
			{Value: CircumstanceDisability, Label: "I or a family member has a disability"},
			{Value: CircumstanceVeteran, Label: "I'm a veteran"},
			{Value: CircumstanceStudent, Label: "I'm currently a student"},
			{Value: CircumstancePregnant, Label: "I'm pregnant or recently gave birth"},
			{Value: CircumstanceImmigrant, Label: "I'm new to the US or need immigration help"},
		},
	},
	{
		ID:       QuestionPreferredArea,
		Title:    "What area of the Bronx are you in or prefer?",
		Subtitle: "We'll prioritize resources that are convenient for you",
		Kind:     KindSingle,
		Options: []Option{
			{Value: "south", Label: "South Bronx (Mott Haven, Melrose, Port Morris)"},
			{Value: "central", Label: "Central Bronx (Concourse, Highbridge, Morris Heights)"},
			{Value: "west", Label: "West Bronx (Kingsbridge, Riverdale, Fordham)"},
			{Value: "east", Label: "East Bronx (Soundview, Castle Hill, Parkchester)"},
			{Value: "north", Label: "North Bronx (Norwood, Wakefield, Williamsbridge)"},
			{Value: AreaAny, Label: "I can travel anywhere in the Bronx"},
		},
	},
	{
		ID:       QuestionAdditionalDetails,
		Title:    "Is there anything specific you'd like us to know?",
		Subtitle: "Optional",
		Kind:     KindText,
	},
}

// FindQuestion returns the question with the given id.
func FindQuestion(id QuestionID) (Question, bool) {
	for _, q := range Questionnaire {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

func (q Question) hasOption(value string) bool {
	for _, o := range q.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// LabelFor returns the human readable label of an option value, or the value itself.
func (q Question) LabelFor(value string) string {
	for _, o := range q.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return value
}

// Normalize checks submitted answers against the questionnaire and returns them
// in canonical shape: strings for single-select and text, string lists for multi-select.
// An empty or null answer is kept as "" (or an empty list) so a stored value can be cleared.
func Normalize(answers Answers) (Answers, error) {
	normalized := make(Answers, len(answers))
	for _, id := range answers.IDs() {
		q, ok := FindQuestion(id)
		if !ok {
			return nil, fmt.Errorf("unknown question id %d", id)
		}

		switch q.Kind {
		case KindSingle:
			value := answers.Single(id)
			if value != "" && !q.hasOption(value) {
				return nil, fmt.Errorf("question %d: unsupported option %q", id, value)
			}
			normalized[id] = value
		case KindMulti:
			values := answers.Multi(id)
			for _, v := range values {
				if !q.hasOption(v) {
					return nil, fmt.Errorf("question %d: unsupported option %q", id, v)
				}
			}
			normalized[id] = values
		case KindText:
			text := answers.Text(id)
			if runes := []rune(text); len(runes) > maxTextAnswerRunes {
				text = strings.TrimSpace(string(runes[:maxTextAnswerRunes]))
			}
			normalized[id] = text
		}
	}
	return normalized, nil
}
