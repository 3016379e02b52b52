package search

import (
	"slices"

	"github.com/poiesic/secondbrain/core"
)

// Fused is one chunk's reciprocal rank fusion result.
type Fused struct {
	ID    core.ID
	Score float64
	// Ranks holds the 0-based rank of the chunk in each input list, -1 if absent.
	Ranks []int
}

// InAll reports whether the chunk appeared in every input list.
func (f Fused) InAll() bool {
	for _, r := range f.Ranks {
		if r < 0 {
			return false
		}
	}
	return len(f.Ranks) > 0
}

// ReciprocalRankFusion merges ranked ID lists. A chunk at rank r in a list
// contributes 1/(k+r+1); contributions are summed across lists. Results are
// ordered by descending score. Ties keep first-seen order, scanning the lists
// in argument order. Only the first occurrence of an ID within a list counts.
func ReciprocalRankFusion(k int, lists ...[]core.ID) []Fused {
	index := make(map[core.ID]int)
	var out []Fused
	for li, list := range lists {
		for rank, id := range list {
			pos, ok := index[id]
			if !ok {
				ranks := make([]int, len(lists))
				for i := range ranks {
					ranks[i] = -1
				}
				pos = len(out)
				index[id] = pos
				out = append(out, Fused{ID: id, Ranks: ranks})
			}
			if out[pos].Ranks[li] >= 0 {
				continue
			}
			out[pos].Ranks[li] = rank
			out[pos].Score += 1 / float64(k+rank+1)
		}
	}

	slices.SortStableFunc(out, func(a, b Fused) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out
}

// normalizeFusion maps a two-list fusion score onto [0,1], where 1 is rank 0
// in both lists.
func normalizeFusion(score float64, k int) float64 {
	return max(0, min(1, score/(2/float64(k+1))))
}
