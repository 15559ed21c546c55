package search

import (
	"sort"

	"github.com/groundcheck-ai/groundcheck/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is
// empirically validated across domains.
const DefaultRRFConstant = 60

// FuseRRF combines ranked backend result lists with Reciprocal Rank Fusion.
// Each item at 0-based rank r in a list contributes 1/(k + r + 1) to its
// fused score; contributions sum across lists. Output is sorted by fused
// score descending, ties broken by lexicographically smaller chunk id.
func FuseRRF(k int, lists ...[]store.ScoredID) []store.ScoredID {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	fused := make(map[string]float64)
	for _, list := range lists {
		for rank, item := range list {
			fused[item.ID] += 1.0 / float64(k+rank+1)
		}
	}
	if len(fused) == 0 {
		return nil
	}

	results := make([]store.ScoredID, 0, len(fused))
	for id, score := range fused {
		results = append(results, store.ScoredID{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}
