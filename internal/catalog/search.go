package catalog

import "strings"

// CategoryAll disables category filtering in Search.
const CategoryAll = "all"

var searchSynonyms = map[string][]string{
	"food":      {"hungry", "eat", "meal", "grocery", "pantry", "kitchen"},
	"housing":   {"home", "apartment", "rent", "eviction", "homeless", "shelter"},
	"job":       {"work", "employment", "career", "training", "resume"},
	"education": {"school", "ged", "college", "learn", "study", "class"},
	"mental":    {"therapy", "counseling", "depression", "anxiety", "stress"},
	"help":      {"assistance", "support", "aid", "service"},
	"emergency": {"urgent", "crisis", "immediate", "now"},
}

// Search filters resources by category and then by free-text query. A resource
// matches when any query term, or a synonym of it, occurs in its title,
// description, category, tags or address. The input order is preserved.
func Search(resources *Resources, query, category string) *Resources {
	result := &Resources{}
	if resources == nil {
		return result
	}

	category = strings.ToLower(strings.TrimSpace(category))
	terms := strings.Fields(strings.ToLower(query))

	for _, res := range resources.Items {
		if res == nil {
			continue
		}
		if category != "" && category != CategoryAll && res.NormalizedCategory() != category {
			continue
		}
		if len(terms) == 0 || matchesAnyTerm(searchableText(res), terms) {
			result.Items = append(result.Items, res)
		}
	}
	return result
}

func searchableText(res *Resource) string {
	parts := []string{res.Title, res.Description, res.Category}
	parts = append(parts, res.Tags...)
	parts = append(parts, res.Address)
	return strings.ToLower(strings.Join(parts, " "))
}

func matchesAnyTerm(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
		for key, synonyms := range searchSynonyms {
			if term != key && !contains(synonyms, term) {
				continue
			}
			if strings.Contains(text, key) {
				return true
			}
			for _, syn := range synonyms {
				if strings.Contains(text, syn) {
					return true
				}
			}
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
