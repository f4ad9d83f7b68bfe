// Package extraction turns conversation text into structured knowledge:
// memorable facts, entities, and relationships, each with a confidence
// score.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/engramlabs/engram-go/pkg/llm"
)

// Fact is a self-contained piece of information extracted from text.
type Fact struct {
	// Content is the fact itself, phrased to stand alone.
	Content string `json:"content"`

	// Category is the memory category the fact belongs to.
	Category string `json:"category"`

	// Subject is who or what the fact is about.
	Subject string `json:"subject,omitempty"`

	// Confidence is the extractor's confidence in [0, 1].
	Confidence float64 `json:"confidence"`
}

// ExtractedEntity is an entity mention found in the text.
type ExtractedEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExtractedRelationship is a (subject, predicate, object) triple. Object is
// an entity name when the target is an entity, Value a literal otherwise.
type ExtractedRelationship struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object,omitempty"`
	Value      string  `json:"value,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Result is the full output of one extraction pass.
type Result struct {
	Facts         []Fact                  `json:"facts"`
	Entities      []ExtractedEntity       `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
}

// Extractor extracts structured knowledge from conversations using an LLM.
//
// Example usage:
//
//	extractor := NewExtractor(llmProvider)
//	result, err := extractor.Extract(ctx, "I'm Alice, I work at Acme.")
type Extractor struct {
	// llm is the LLM provider for extraction.
	llm llm.Provider

	// customPrompt overrides the default system prompt when non-empty.
	customPrompt string
}

// NewExtractor creates a new extractor with the default prompt.
func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{llm: provider}
}

// NewExtractorWithPrompt creates an extractor with a custom system prompt.
func NewExtractorWithPrompt(provider llm.Provider, customPrompt string) *Extractor {
	return &Extractor{llm: provider, customPrompt: customPrompt}
}

// Extract runs the extraction pipeline over conversation text.
//
// The process:
//  1. Calls the LLM with the extraction prompt
//  2. Strips any code fences from the response
//  3. Parses the JSON into facts, entities, and relationships
//
// Malformed items in an otherwise valid response are dropped rather than
// failing the whole call.
func (e *Extractor) Extract(ctx context.Context, text string) (*Result, error) {
	if e.llm == nil {
		return nil, fmt.Errorf("extraction: no LLM provider configured")
	}
	if strings.TrimSpace(text) == "" {
		return &Result{}, nil
	}

	messages := []llm.Message{
		{Role: "system", Content: e.getSystemPrompt()},
		{Role: "user", Content: "Input:\n" + text},
	}

	response, err := e.llm.GenerateWithMessages(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract knowledge: %w", err)
	}

	result, err := parseResponse(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	return result, nil
}

// getSystemPrompt returns the system prompt for extraction.
func (e *Extractor) getSystemPrompt() string {
	if e.customPrompt != "" {
		return e.customPrompt
	}

	today := time.Now().Format("2006-01-02")
	return fmt.Sprintf(`You are a Personal Knowledge Extractor. Extract memorable facts, entities, and relationships from conversations.

Categories for facts: identity, family, preference, project, decision, context, health, financial.
Entity types: person, place, org, project, event, technology, other.

CRITICAL Rules:
1. TEMPORAL: ALWAYS include time info in facts (dates, relative refs like "yesterday").
2. COMPLETE: Each fact must stand alone with who/what/when/where when available.
3. SEPARATE: Extract distinct facts separately.
4. ENTITIES: Extract people, places, organizations, and projects mentioned by name.
5. RELATIONSHIPS: Express stated connections as subject/predicate/object triples. Use "object" when the target is a named entity, "value" for literals like dates or amounts.
6. CONFIDENCE: 1.0 for direct statements, lower for inferences.

Examples:
Input: Hi.
Output: {"facts": [], "entities": [], "relationships": []}

Input: I'm Alice, a software engineer at Acme.
Output: {"facts": [{"content": "Name is Alice", "category": "identity", "subject": "Alice", "confidence": 1.0}, {"content": "Alice is a software engineer at Acme", "category": "identity", "subject": "Alice", "confidence": 1.0}], "entities": [{"name": "Alice", "type": "person"}, {"name": "Acme", "type": "org"}], "relationships": [{"subject": "Alice", "predicate": "works_at", "object": "Acme", "confidence": 1.0}]}

Input: My sister Maria prefers tea over coffee.
Output: {"facts": [{"content": "Sister Maria prefers tea over coffee", "category": "family", "subject": "Maria", "confidence": 1.0}], "entities": [{"name": "Maria", "type": "person"}], "relationships": [{"subject": "Maria", "predicate": "prefers_drink", "value": "tea", "confidence": 1.0}]}

Rules:
- Today: %s
- Return JSON: {"facts": [...], "entities": [...], "relationships": [...]}
- Extract from user/assistant messages only
- If nothing is memorable, return empty lists
- Preserve input language

Extract from the conversation below:`, today)
}

// parseResponse parses the LLM response, tolerating code fences and
// partially malformed items.
func parseResponse(response string) (*Result, error) {
	response = removeCodeBlocks(response)

	var raw struct {
		Facts         []Fact                  `json:"facts"`
		Entities      []ExtractedEntity       `json:"entities"`
		Relationships []ExtractedRelationship `json:"relationships"`
	}
	if err := json.Unmarshal([]byte(response), &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	result := &Result{}

	for _, fact := range raw.Facts {
		if strings.TrimSpace(fact.Content) == "" {
			continue
		}
		if fact.Category == "" {
			fact.Category = "context"
		}
		if fact.Confidence <= 0 || fact.Confidence > 1 {
			fact.Confidence = 1.0
		}
		result.Facts = append(result.Facts, fact)
	}

	for _, entity := range raw.Entities {
		if strings.TrimSpace(entity.Name) == "" {
			continue
		}
		if entity.Type == "" {
			entity.Type = "other"
		}
		result.Entities = append(result.Entities, entity)
	}

	for _, rel := range raw.Relationships {
		if rel.Subject == "" || rel.Predicate == "" {
			continue
		}
		if rel.Object == "" && rel.Value == "" {
			continue
		}
		if rel.Confidence <= 0 || rel.Confidence > 1 {
			rel.Confidence = 1.0
		}
		result.Relationships = append(result.Relationships, rel)
	}

	return result, nil
}

// removeCodeBlocks strips markdown code fences from a response.
func removeCodeBlocks(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	return strings.TrimSpace(response)
}
