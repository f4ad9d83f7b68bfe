package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
)

// scanEntity scans an entity from a database row or rows.
func scanEntity(scanner interface{}) (*Entity, error) {
	var entity Entity
	var metadataStr sql.NullString

	dest := []interface{}{
		&entity.ID,
		&entity.Name,
		&entity.CanonicalName,
		&entity.EntityType,
		&metadataStr,
		&entity.AccessCount,
		&entity.CreatedAt,
		&entity.UpdatedAt,
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

	if metadataStr.Valid && metadataStr.String != "" && metadataStr.String != "null" {
		if err := json.Unmarshal([]byte(metadataStr.String), &entity.Metadata); err != nil {
			return nil, fmt.Errorf("parse entity metadata: %w", err)
		}
	}

	return &entity, nil
}

// scanRelationships drains a relationship result set.
func scanRelationships(rows *sql.Rows) ([]*Relationship, error) {
	var relationships []*Relationship
	for rows.Next() {
		var rel Relationship
		var objectID sql.NullInt64
		var validTo sql.NullTime

		err := rows.Scan(
			&rel.ID,
			&rel.SubjectID,
			&rel.Predicate,
			&objectID,
			&rel.ObjectValue,
			&rel.ValidFrom,
			&validTo,
			&rel.Confidence,
		)
		if err != nil {
			return nil, err
		}

		if objectID.Valid {
			rel.ObjectID = &objectID.Int64
		}
		if validTo.Valid {
			rel.ValidTo = &validTo.Time
		}

		relationships = append(relationships, &rel)
	}
	return relationships, rows.Err()
}

// marshalMetadata serializes metadata to JSON, or NULL when empty.
func marshalMetadata(metadata map[string]interface{}) (interface{}, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal entity metadata: %w", err)
	}
	return string(data), nil
}

// objectIDArg converts an optional object ID into a SQL argument.
func objectIDArg(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

// connectivityScore maps a relationship count onto [0, 1] on a log scale,
// saturating around 50 relationships.
func connectivityScore(count int) float64 {
	if count <= 0 {
		return 0
	}
	score := math.Log(float64(count)+1) / math.Log(50)
	if score > 1 {
		return 1
	}
	return score
}
