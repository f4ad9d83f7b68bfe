package mysql

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/engramlabs/engram-go/pkg/storage"
)

// memoryColumns is the canonical column list for SELECTs.
const memoryColumns = `id, content, category, subject, source, confidence, importance,
	access_count, retention_strength, embedding, metadata, superseded_by,
	created_at, updated_at, last_accessed_at`

// buildWhereClause builds a WHERE clause from common filters.
func buildWhereClause(category, subject string, excludeSuperseded bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, category)
	}
	if subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, subject)
	}
	if excludeSuperseded {
		conditions = append(conditions, "superseded_by IS NULL")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// scanMemory scans a memory from a database row or rows.
func scanMemory(scanner interface{}) (*storage.Memory, error) {
	var memory storage.Memory
	var embeddingStr string
	var metadataStr sql.NullString
	var supersededBy sql.NullInt64
	var lastAccessedAt sql.NullTime

	dest := []interface{}{
		&memory.ID,
		&memory.Content,
		&memory.Category,
		&memory.Subject,
		&memory.Source,
		&memory.Confidence,
		&memory.Importance,
		&memory.AccessCount,
		&memory.RetentionStrength,
		&embeddingStr,
		&metadataStr,
		&supersededBy,
		&memory.CreatedAt,
		&memory.UpdatedAt,
		&lastAccessedAt,
	}

	var err error
	switch s := scanner.(type) {
	case *sql.Row:
		err = s.Scan(dest...)
	case *sql.Rows:
		err = s.Scan(dest...)
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(embeddingStr), &memory.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}

	if metadataStr.Valid && metadataStr.String != "" && metadataStr.String != "null" {
		if err := json.Unmarshal([]byte(metadataStr.String), &memory.Metadata); err != nil {
			return nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	if supersededBy.Valid {
		memory.SupersededBy = &supersededBy.Int64
	}
	if lastAccessedAt.Valid {
		memory.LastAccessedAt = &lastAccessedAt.Time
	}

	return &memory, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
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

// termMatchScore scores a memory by the fraction of terms found in its
// content or subject (case-insensitive).
func termMatchScore(memory *storage.Memory, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}

	content := strings.ToLower(memory.Content)
	subject := strings.ToLower(memory.Subject)

	matched := 0
	for _, term := range terms {
		t := strings.ToLower(term)
		if strings.Contains(content, t) || strings.Contains(subject, t) {
			matched++
		}
	}

	return float64(matched) / float64(len(terms))
}

// sortByScore sorts memories by score (descending, stable on ID) and limits
// the number of results.
func sortByScore(memories []*storage.Memory, limit int) []*storage.Memory {
	n := len(memories)
	for i := 0; i < n-1; i++ {
		for j := 0; j < n-i-1; j++ {
			if memories[j].Score < memories[j+1].Score ||
				(memories[j].Score == memories[j+1].Score && memories[j].ID > memories[j+1].ID) {
				memories[j], memories[j+1] = memories[j+1], memories[j]
			}
		}
	}

	if limit > 0 && len(memories) > limit {
		return memories[:limit]
	}

	return memories
}
