// Package intelligence provides memory-quality features: near-duplicate
// detection, retention decay, and importance evaluation.
package intelligence

import (
	"context"
	"math"

	"github.com/engramlabs/engram-go/pkg/storage"
)

// DefaultDuplicateThreshold is the cosine similarity at or above which two
// texts are treated as the same memory.
const DefaultDuplicateThreshold = 0.95

// DedupManager detects near-duplicate memories by vector similarity.
//
// Store is idempotent: when a duplicate is found the existing memory ID is
// returned and no new record is created.
type DedupManager struct {
	// store is the memory store used for similarity search.
	store storage.MemoryStore

	// threshold is the similarity threshold for duplicate detection.
	// Typical range: 0.9-0.98 (higher = stricter, fewer duplicates).
	threshold float64
}

// NewDedupManager creates a new deduplication manager.
// A threshold of 0 selects DefaultDuplicateThreshold.
func NewDedupManager(store storage.MemoryStore, threshold float64) *DedupManager {
	if threshold == 0 {
		threshold = DefaultDuplicateThreshold
	}
	return &DedupManager{
		store:     store,
		threshold: threshold,
	}
}

// Threshold returns the configured similarity threshold.
func (m *DedupManager) Threshold() float64 {
	return m.threshold
}

// FindDuplicate searches for an existing memory within the near-duplicate
// threshold of the given embedding.
//
// Only the top few most similar memories are checked; anything below the
// threshold cannot be a duplicate by definition.
//
// Returns the duplicate memory (nil if none) and any search error.
func (m *DedupManager) FindDuplicate(ctx context.Context, embedding []float64, category string) (*storage.Memory, error) {
	opts := &storage.SearchOptions{
		Category: category,
		Limit:    5,
		MinScore: m.threshold,
	}

	memories, err := m.store.Search(ctx, embedding, opts)
	if err != nil {
		return nil, err
	}

	for _, mem := range memories {
		if mem.Score >= m.threshold {
			return mem, nil
		}
	}

	return nil, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
//
// Returns a value between -1.0 and 1.0, or 0.0 if the vectors have
// different dimensions or zero norm.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
