// Package core provides the Engram cognition service and its domain types.
package core

import "time"

// Category classifies a memory by the kind of information it carries.
//
// Categories drive tiered context assembly: identity memories are injected
// before family memories, family before preferences, and so on.
type Category string

const (
	// CategoryIdentity holds facts about who the user is.
	CategoryIdentity Category = "identity"

	// CategoryFamily holds facts about family members and close relationships.
	CategoryFamily Category = "family"

	// CategoryPreference holds likes, dislikes, and habits.
	CategoryPreference Category = "preference"

	// CategoryProject holds facts about ongoing projects and work.
	CategoryProject Category = "project"

	// CategoryDecision holds decisions the user or agent has made.
	CategoryDecision Category = "decision"

	// CategoryContext holds situational, general-purpose facts.
	CategoryContext Category = "context"

	// CategoryHealth holds health and wellness facts.
	CategoryHealth Category = "health"

	// CategoryFinancial holds financial facts.
	CategoryFinancial Category = "financial"
)

// Categories lists every valid memory category.
var Categories = []Category{
	CategoryIdentity,
	CategoryFamily,
	CategoryPreference,
	CategoryProject,
	CategoryDecision,
	CategoryContext,
	CategoryHealth,
	CategoryFinancial,
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Memory is a single unit of stored knowledge.
//
// A memory has at most one superseding successor (SupersededBy); superseded
// memories are kept for history but excluded from search. Deletion is
// permanent.
type Memory struct {
	// ID is the unique identifier of the memory.
	ID int64 `json:"id"`

	// Content is the text content of the memory.
	Content string `json:"content"`

	// Category classifies the memory (identity, family, preference, ...).
	Category Category `json:"category"`

	// Subject is an optional free-text subject, usually an entity name.
	Subject string `json:"subject,omitempty"`

	// Source records where the memory came from (conversation, extraction, api).
	Source string `json:"source,omitempty"`

	// Confidence is the extraction confidence in [0,1]. Memories created
	// directly through the API default to 1.0.
	Confidence float64 `json:"confidence"`

	// Importance is an evaluated importance score in [0,1] used for
	// search re-ranking.
	Importance float64 `json:"importance"`

	// AccessCount is the number of times the memory has been read.
	AccessCount int `json:"access_count"`

	// RetentionStrength is the current retention strength (0.0-1.0) from
	// the decay model. 1.0 = perfect retention.
	RetentionStrength float64 `json:"retention_strength"`

	// Embedding is the dense vector for similarity search.
	// Omitted from JSON to reduce payload size.
	Embedding []float64 `json:"-"`

	// Metadata contains additional structured information.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// SupersededBy is the ID of the memory that replaced this one,
	// or nil if the memory is current.
	SupersededBy *int64 `json:"superseded_by,omitempty"`

	// CreatedAt is when the memory was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the memory was last updated.
	UpdatedAt time.Time `json:"updated_at"`

	// LastAccessedAt is when the memory was last read (nil if never).
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// Score is the fused relevance score from search operations.
	Score float64 `json:"score,omitempty"`
}

// EntityType classifies a knowledge-graph entity.
type EntityType string

const (
	EntityPerson     EntityType = "person"
	EntityPlace      EntityType = "place"
	EntityProject    EntityType = "project"
	EntityOrg        EntityType = "org"
	EntityEvent      EntityType = "event"
	EntityTechnology EntityType = "technology"
	EntityOther      EntityType = "other"
)

// EntityTypes lists every valid entity type.
var EntityTypes = []EntityType{
	EntityPerson, EntityPlace, EntityProject,
	EntityOrg, EntityEvent, EntityTechnology, EntityOther,
}

// ValidEntityType reports whether t is a known entity type.
func ValidEntityType(t EntityType) bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Entity is a node in the knowledge graph.
//
// CanonicalName (the normalized name) uniquely identifies an entity within
// a type.
type Entity struct {
	ID            int64                  `json:"id"`
	Name          string                 `json:"name"`
	CanonicalName string                 `json:"canonical_name"`
	EntityType    EntityType             `json:"entity_type"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	AccessCount   int                    `json:"access_count"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Relationship is a temporally versioned edge in the knowledge graph.
//
// Exactly one of ObjectID and ObjectValue is set. A nil ValidTo means the
// relationship is currently valid; at most one relationship with the same
// (subject, predicate, object) may be valid at a time. Superseding a fact
// closes the old interval and opens a new one, never mutating history.
type Relationship struct {
	ID          int64      `json:"id"`
	SubjectID   int64      `json:"subject_id"`
	Predicate   string     `json:"predicate"`
	ObjectID    *int64     `json:"object_id,omitempty"`
	ObjectValue string     `json:"object_value,omitempty"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to,omitempty"`
	Confidence  float64    `json:"confidence"`
}

// Valid reports whether the relationship is currently valid.
func (r *Relationship) Valid() bool {
	return r.ValidTo == nil
}

// WisdomEntry records one reasoning-action-outcome cycle of the
// experiential learning loop.
//
// Lifecycle: created on log, mutated once by outcome recording, mutated
// again (independently) by feedback attachment. Feedback may be attached
// before an outcome is recorded. Entries are never deleted.
type WisdomEntry struct {
	ID             string    `json:"id"`
	ActionType     string    `json:"action_type"`
	Reasoning      string    `json:"reasoning"`
	Outcome        string    `json:"outcome,omitempty"`
	OutcomeDetails string    `json:"outcome_details,omitempty"`
	FeedbackScore  *int      `json:"feedback_score,omitempty"`
	FeedbackNotes  string    `json:"feedback_notes,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Timestamp      time.Time `json:"timestamp"`

	// Score is the relevance score from wisdom search.
	Score float64 `json:"score,omitempty"`
}

// EntityProfile is the profile view of an entity: the entity itself,
// its currently valid relationships grouped by predicate, and the set of
// related entities reachable through those relationships.
type EntityProfile struct {
	Entity        *Entity                    `json:"entity"`
	Relationships map[string][]*Relationship `json:"relationships"`
	Related       []*Entity                  `json:"related"`
}

// StoreResult is the outcome of a store operation.
type StoreResult struct {
	// Memory is the stored (or pre-existing) memory.
	Memory *Memory `json:"memory"`

	// Deduplicated is true when the content matched an existing memory
	// within the near-duplicate threshold and no new record was created.
	Deduplicated bool `json:"deduplicated"`
}

// ExtractionResult summarizes what an extraction run wrote.
type ExtractionResult struct {
	Memories      []*Memory       `json:"memories"`
	Entities      []*Entity       `json:"entities"`
	Relationships []*Relationship `json:"relationships"`
}

// Stats is a point-in-time snapshot of service counters.
type Stats struct {
	MemoryCount       int64   `json:"memory_count"`
	EntityCount       int64   `json:"entity_count"`
	RelationshipCount int64   `json:"relationship_count"`
	WisdomCount       int64   `json:"wisdom_count"`
	SearchCount       int64   `json:"search_count"`
	AvgSearchMillis   float64 `json:"avg_search_ms"`
	MaxSearchMillis   float64 `json:"max_search_ms"`
	LatencyBudgetMs   int     `json:"latency_budget_ms"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
}
