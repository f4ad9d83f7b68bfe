// Package fusion merges multiple relevance signals into one ranking.
//
// Search runs three independent retrievers over the same memory store
// (dense vector similarity, lexical term match, graph-connectivity boost)
// and this package combines their ranked lists with reciprocal rank fusion,
// re-weights by memory quality, and enforces result diversity.
package fusion

import (
	"sort"

	"github.com/engramlabs/engram-go/pkg/intelligence"
	"github.com/engramlabs/engram-go/pkg/storage"
)

// Fusion defaults.
const (
	// DefaultRRFK is the rank-smoothing constant in the reciprocal rank
	// formula 1/(k + rank). 60 is the value from the original RRF paper.
	DefaultRRFK = 60

	// DefaultDiversityThreshold is the cosine similarity at or above which
	// a candidate is considered redundant with an already-selected result.
	DefaultDiversityThreshold = 0.92
)

// Re-weighting coefficients. The fused rank score is scaled by a quality
// multiplier built from importance, retention, and access frequency, with a
// floor so that a brand-new memory is dampened, never erased.
const (
	weightFloor      = 0.5
	weightImportance = 0.25
	weightRetention  = 0.15
	weightFrequency  = 0.10
)

// Engine fuses ranked memory lists.
type Engine struct {
	// k is the RRF smoothing constant.
	k int

	// decay supplies retention values for re-weighting.
	decay *intelligence.DecayModel

	// diversityThreshold is the redundancy cutoff for diversity selection.
	diversityThreshold float64
}

// NewEngine creates a fusion engine. Zero values select the defaults.
func NewEngine(k int, decay *intelligence.DecayModel, diversityThreshold float64) *Engine {
	if k <= 0 {
		k = DefaultRRFK
	}
	if decay == nil {
		decay = intelligence.NewDecayModel(0, 0)
	}
	if diversityThreshold == 0 {
		diversityThreshold = DefaultDiversityThreshold
	}
	return &Engine{
		k:                  k,
		decay:              decay,
		diversityThreshold: diversityThreshold,
	}
}

// candidate accumulates fusion state for one memory across lists.
type candidate struct {
	memory   *storage.Memory
	rrfScore float64

	// rankSum is the sum of per-list ranks, with absent lists counted at
	// one past the end. Lower means more consistently ranked.
	rankSum int
}

// Fuse merges ranked lists with reciprocal rank fusion.
//
// Each memory's fused score is the sum of 1/(k + rank) over the lists it
// appears in (rank is 1-based). Ties break toward the lower combined rank,
// then toward the lower ID for determinism. The fused score is stored in
// each memory's Score field.
func (e *Engine) Fuse(lists ...[]*storage.Memory) []*storage.Memory {
	candidates := make(map[int64]*candidate)

	// Absent entries are treated as ranked just past the end of the
	// longest list so rankSum comparisons stay meaningful.
	maxLen := 0
	for _, list := range lists {
		if len(list) > maxLen {
			maxLen = len(list)
		}
	}

	for _, list := range lists {
		for rank, memory := range list {
			c, ok := candidates[memory.ID]
			if !ok {
				c = &candidate{memory: memory, rankSum: (maxLen + 1) * len(lists)}
				candidates[memory.ID] = c
			}
			c.rrfScore += 1.0 / float64(e.k+rank+1)
			c.rankSum -= (maxLen + 1) - (rank + 1)
		}
	}

	fused := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		fused = append(fused, c)
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].rrfScore != fused[j].rrfScore {
			return fused[i].rrfScore > fused[j].rrfScore
		}
		if fused[i].rankSum != fused[j].rankSum {
			return fused[i].rankSum < fused[j].rankSum
		}
		return fused[i].memory.ID < fused[j].memory.ID
	})

	result := make([]*storage.Memory, len(fused))
	for i, c := range fused {
		c.memory.Score = c.rrfScore
		result[i] = c.memory
	}
	return result
}

// Reweight scales each memory's fused score by a quality multiplier:
//
//	score *= floor + wI*importance + wR*retention + wF*accessFrequency
//
// and re-sorts. Retention comes from the Ebbinghaus decay model, so stale
// memories sink even when textually relevant.
func (e *Engine) Reweight(memories []*storage.Memory) []*storage.Memory {
	for _, memory := range memories {
		retention := e.decay.Retention(memory.CreatedAt, memory.LastAccessedAt)
		frequency := intelligence.AccessFrequencyScore(memory.AccessCount)

		multiplier := weightFloor +
			weightImportance*memory.Importance +
			weightRetention*retention +
			weightFrequency*frequency
		memory.Score *= multiplier
	}

	sort.SliceStable(memories, func(i, j int) bool {
		if memories[i].Score != memories[j].Score {
			return memories[i].Score > memories[j].Score
		}
		return memories[i].ID < memories[j].ID
	})

	return memories
}

// Diversify greedily selects up to limit memories, skipping any candidate
// whose embedding is near-redundant with an already-selected one. Candidates
// without embeddings are never considered redundant.
func (e *Engine) Diversify(memories []*storage.Memory, limit int) []*storage.Memory {
	if limit <= 0 || limit > len(memories) {
		limit = len(memories)
	}

	selected := make([]*storage.Memory, 0, limit)
	for _, memory := range memories {
		if len(selected) >= limit {
			break
		}

		redundant := false
		for _, prior := range selected {
			if len(memory.Embedding) == 0 || len(prior.Embedding) == 0 {
				continue
			}
			if intelligence.CosineSimilarity(memory.Embedding, prior.Embedding) >= e.diversityThreshold {
				redundant = true
				break
			}
		}
		if !redundant {
			selected = append(selected, memory)
		}
	}

	return selected
}

// Rank runs the full pipeline: fuse, reweight, diversify, truncate.
func (e *Engine) Rank(limit int, lists ...[]*storage.Memory) []*storage.Memory {
	fused := e.Fuse(lists...)
	weighted := e.Reweight(fused)
	return e.Diversify(weighted, limit)
}
