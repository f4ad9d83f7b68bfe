package core

import (
	"github.com/engramlabs/engram-go/pkg/graph"
	"github.com/engramlabs/engram-go/pkg/storage"
	"github.com/engramlabs/engram-go/pkg/wisdom"
)

// toStorageMemory converts a core memory to its storage representation.
func toStorageMemory(m *Memory) *storage.Memory {
	return &storage.Memory{
		ID:                m.ID,
		Content:           m.Content,
		Category:          string(m.Category),
		Subject:           m.Subject,
		Source:            m.Source,
		Confidence:        m.Confidence,
		Importance:        m.Importance,
		AccessCount:       m.AccessCount,
		RetentionStrength: m.RetentionStrength,
		Embedding:         m.Embedding,
		Metadata:          m.Metadata,
		SupersededBy:      m.SupersededBy,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		LastAccessedAt:    m.LastAccessedAt,
		Score:             m.Score,
	}
}

// fromStorageMemory converts a storage memory to its core representation.
func fromStorageMemory(m *storage.Memory) *Memory {
	return &Memory{
		ID:                m.ID,
		Content:           m.Content,
		Category:          Category(m.Category),
		Subject:           m.Subject,
		Source:            m.Source,
		Confidence:        m.Confidence,
		Importance:        m.Importance,
		AccessCount:       m.AccessCount,
		RetentionStrength: m.RetentionStrength,
		Embedding:         m.Embedding,
		Metadata:          m.Metadata,
		SupersededBy:      m.SupersededBy,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		LastAccessedAt:    m.LastAccessedAt,
		Score:             m.Score,
	}
}

// fromStorageMemories converts a slice of storage memories.
func fromStorageMemories(memories []*storage.Memory) []*Memory {
	result := make([]*Memory, len(memories))
	for i, m := range memories {
		result[i] = fromStorageMemory(m)
	}
	return result
}

// fromGraphEntity converts a graph entity to its core representation.
func fromGraphEntity(e *graph.Entity) *Entity {
	return &Entity{
		ID:            e.ID,
		Name:          e.Name,
		CanonicalName: e.CanonicalName,
		EntityType:    EntityType(e.EntityType),
		Metadata:      e.Metadata,
		AccessCount:   e.AccessCount,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// fromGraphRelationship converts a graph relationship to its core
// representation.
func fromGraphRelationship(r *graph.Relationship) *Relationship {
	return &Relationship{
		ID:          r.ID,
		SubjectID:   r.SubjectID,
		Predicate:   r.Predicate,
		ObjectID:    r.ObjectID,
		ObjectValue: r.ObjectValue,
		ValidFrom:   r.ValidFrom,
		ValidTo:     r.ValidTo,
		Confidence:  r.Confidence,
	}
}

// fromGraphProfile converts a graph profile to its core representation.
func fromGraphProfile(p *graph.Profile) *EntityProfile {
	profile := &EntityProfile{
		Entity:        fromGraphEntity(p.Entity),
		Relationships: make(map[string][]*Relationship, len(p.Relationships)),
	}
	for predicate, rels := range p.Relationships {
		converted := make([]*Relationship, len(rels))
		for i, rel := range rels {
			converted[i] = fromGraphRelationship(rel)
		}
		profile.Relationships[predicate] = converted
	}
	for _, related := range p.Related {
		profile.Related = append(profile.Related, fromGraphEntity(related))
	}
	return profile
}

// fromWisdomEntry converts a wisdom entry to its core representation.
func fromWisdomEntry(e *wisdom.Entry) *WisdomEntry {
	return &WisdomEntry{
		ID:             e.ID,
		ActionType:     e.ActionType,
		Reasoning:      e.Reasoning,
		Outcome:        e.Outcome,
		OutcomeDetails: e.OutcomeDetails,
		FeedbackScore:  e.FeedbackScore,
		FeedbackNotes:  e.FeedbackNotes,
		Tags:           e.Tags,
		Timestamp:      e.Timestamp,
		Score:          e.Score,
	}
}
