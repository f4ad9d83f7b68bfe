package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/engramlabs/engram-go/pkg/storage"
)

// memoryColumns is the canonical column list for SELECTs. The embedding is
// cast to text so it can be scanned and parsed as a JSON array.
const memoryColumns = `id, content, category, subject, source, confidence, importance,
	access_count, retention_strength, embedding::text, metadata, superseded_by,
	created_at, updated_at, last_accessed_at`

// vectorToString converts an embedding to the pgvector literal form
// "[v1,v2,...]".
func vectorToString(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// buildWhereClause builds a WHERE clause from common filters, numbering
// placeholders from firstArg.
func buildWhereClause(category, subject string, excludeSuperseded bool, firstArg int) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", firstArg+len(args)))
		args = append(args, category)
	}
	if subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", firstArg+len(args)))
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

func scanInto(scanner interface{}, dest ...interface{}) error {
	switch s := scanner.(type) {
	case *sql.Row:
		return s.Scan(dest...)
	case *sql.Rows:
		return s.Scan(dest...)
	default:
		return fmt.Errorf("unsupported scanner type")
	}
}

// scanMemory scans a memory from a database row or rows.
func scanMemory(scanner interface{}) (*storage.Memory, error) {
	memory, _, err := scanMemoryFields(scanner, false)
	return memory, err
}

// scanMemoryWithScore scans a memory plus a trailing score column.
func scanMemoryWithScore(scanner interface{}) (*storage.Memory, error) {
	memory, score, err := scanMemoryFields(scanner, true)
	if err != nil {
		return nil, err
	}
	memory.Score = score
	return memory, nil
}

func scanMemoryFields(scanner interface{}, withScore bool) (*storage.Memory, float64, error) {
	var memory storage.Memory
	var embeddingStr string
	var metadataStr sql.NullString
	var supersededBy sql.NullInt64
	var lastAccessedAt sql.NullTime
	var score float64

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
	if withScore {
		dest = append(dest, &score)
	}

	if err := scanInto(scanner, dest...); err != nil {
		return nil, 0, err
	}

	// pgvector's text form "[...]" is a valid JSON array.
	if err := json.Unmarshal([]byte(embeddingStr), &memory.Embedding); err != nil {
		return nil, 0, fmt.Errorf("parse embedding: %w", err)
	}

	if metadataStr.Valid && metadataStr.String != "" && metadataStr.String != "null" {
		if err := json.Unmarshal([]byte(metadataStr.String), &memory.Metadata); err != nil {
			return nil, 0, fmt.Errorf("parse metadata: %w", err)
		}
	}

	if supersededBy.Valid {
		memory.SupersededBy = &supersededBy.Int64
	}
	if lastAccessedAt.Valid {
		memory.LastAccessedAt = &lastAccessedAt.Time
	}

	return &memory, score, nil
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
