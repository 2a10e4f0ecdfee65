package retrieval

import (
	"sort"

	"ai-tutor-be/internal/entity"
)

// RankedList is one source's ranked candidates plus the weight its votes
// carry in fusion.
type RankedList struct {
	Source string // "semantic" or "keyword"
	Weight float64
	Chunks []*entity.ScoredChunk
}

type fusedCandidate struct {
	chunk      *entity.CurriculumChunk
	fusedScore float64
	bestSim    float64
	origins    []string
}

// fuseRRF merges ranked lists with weighted Reciprocal Rank Fusion:
// fused(doc) = sum over lists containing doc of weight * 1/(k + rank),
// rank starting at 1. A document present in several lists accumulates
// votes, so agreement between sources outranks a single strong source.
func fuseRRF(lists []RankedList, k int) []fusedCandidate {
	if k <= 0 {
		k = 60
	}

	scoreMap := make(map[string]*fusedCandidate)
	var order []string

	for _, list := range lists {
		for rank, scored := range list.Chunks {
			id := scored.Chunk.Id.String()
			cand, exists := scoreMap[id]
			if !exists {
				cand = &fusedCandidate{chunk: scored.Chunk}
				scoreMap[id] = cand
				order = append(order, id)
			}
			cand.fusedScore += list.Weight * (1.0 / float64(k+rank+1))
			cand.origins = append(cand.origins, list.Source)
			if scored.Score > cand.bestSim {
				cand.bestSim = scored.Score
			}
		}
	}

	fused := make([]fusedCandidate, 0, len(order))
	for _, id := range order {
		fused = append(fused, *scoreMap[id])
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].fusedScore > fused[j].fusedScore
	})

	return fused
}
