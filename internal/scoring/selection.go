package scoring

import (
	"sort"

	"github.com/spigell/resource-matcher/internal/ai"
)

const (
	defaultMaxResults = 8
	guaranteedTop     = 3
	diversityWindow   = 10
)

type scored struct {
	rec    *ai.Recommendation
	index  int
	pinned bool
}

func byScore(items []scored) func(i, j int) bool {
	return func(i, j int) bool {
		if items[i].rec.RelevanceScore != items[j].rec.RelevanceScore {
			return items[i].rec.RelevanceScore > items[j].rec.RelevanceScore
		}
		if items[i].pinned != items[j].pinned {
			return items[i].pinned
		}
		return items[i].index < items[j].index
	}
}

// selectTop ranks the candidates, always keeps the best three and fills the
// rest of the result by sampling ranks 4-13 without replacement.
func selectTop(rng Rand, candidates []scored, maxResults int) []scored {
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.rec.RelevanceScore > 0 {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, byScore(ranked))

	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	top := min(guaranteedTop, len(ranked), maxResults)
	result := append([]scored(nil), ranked[:top]...)

	end := min(len(ranked), guaranteedTop+diversityWindow)
	if top >= end {
		return result
	}
	window := append([]scored(nil), ranked[top:end]...)

	for len(result) < maxResults && len(window) > 0 {
		i := rng.IntN(len(window))
		result = append(result, window[i])
		window = append(window[:i], window[i+1:]...)
	}

	sort.SliceStable(result, byScore(result))
	return result
}
