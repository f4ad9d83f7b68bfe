// Package graph provides the knowledge graph store: entities with canonical
// names and temporally versioned relationships.
//
// Relationship changes are represented as closed/open validity intervals
// rather than overwrites, so the history of a fact is never lost.
package graph

import "time"

// Entity is a node in the knowledge graph.
//
// This type is defined in the graph package to avoid circular dependencies
// with the core package. It mirrors the core.Entity structure.
type Entity struct {
	ID            int64
	Name          string
	CanonicalName string
	EntityType    string
	Metadata      map[string]interface{}
	AccessCount   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Relationship is a temporally versioned edge.
//
// Exactly one of ObjectID and ObjectValue is set. A nil ValidTo means the
// relationship is currently valid.
type Relationship struct {
	ID          int64
	SubjectID   int64
	Predicate   string
	ObjectID    *int64
	ObjectValue string
	ValidFrom   time.Time
	ValidTo     *time.Time
	Confidence  float64
}

// SameObject reports whether the relationship points at the given object.
func (r *Relationship) SameObject(objectID *int64, objectValue string) bool {
	if r.ObjectID != nil && objectID != nil {
		return *r.ObjectID == *objectID
	}
	if r.ObjectID == nil && objectID == nil {
		return r.ObjectValue == objectValue
	}
	return false
}

// Profile is the profile view of an entity: currently valid relationships
// grouped by predicate, plus the related entities reachable through them.
type Profile struct {
	Entity        *Entity
	Relationships map[string][]*Relationship
	Related       []*Entity
}
