// Package storage provides interfaces and types for memory storage backends.
//
// It defines the MemoryStore interface that all storage implementations must
// satisfy, along with memory types and search options.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by storage backends.
var (
	// ErrNotFound indicates the requested memory does not exist.
	ErrNotFound = errors.New("storage: memory not found")

	// ErrAlreadySuperseded indicates the memory already has a successor.
	ErrAlreadySuperseded = errors.New("storage: memory already superseded")
)

// Memory represents a memory row in a storage backend.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. It mirrors the core.Memory structure.
type Memory struct {
	// ID is the unique identifier of the memory.
	ID int64

	// Content is the text content of the memory.
	Content string

	// Category classifies the memory (identity, family, preference, ...).
	Category string

	// Subject is an optional free-text subject.
	Subject string

	// Source records where the memory came from.
	Source string

	// Confidence is the extraction confidence in [0,1].
	Confidence float64

	// Importance is the evaluated importance score in [0,1].
	Importance float64

	// AccessCount is the number of times the memory has been read.
	AccessCount int

	// RetentionStrength is the current retention strength (0.0-1.0).
	RetentionStrength float64

	// Embedding is the dense vector for similarity search.
	Embedding []float64

	// Metadata contains additional structured information.
	Metadata map[string]interface{}

	// SupersededBy is the ID of the replacing memory, nil if current.
	SupersededBy *int64

	// CreatedAt is when the memory was created.
	CreatedAt time.Time

	// UpdatedAt is when the memory was last updated.
	UpdatedAt time.Time

	// LastAccessedAt is when the memory was last read (nil if never).
	LastAccessedAt *time.Time

	// Score is the similarity score from search operations.
	Score float64
}

// SearchOptions contains options for vector search operations.
type SearchOptions struct {
	// Category filters results to one category (empty = all).
	Category string

	// Subject filters results to one subject (empty = all).
	Subject string

	// Limit sets the maximum number of results to return.
	Limit int

	// MinScore sets the minimum similarity score for results.
	MinScore float64

	// IncludeSuperseded includes superseded memories in the results.
	// Off by default: search only sees current knowledge.
	IncludeSuperseded bool
}

// TextSearchOptions contains options for lexical search operations.
type TextSearchOptions struct {
	// Category filters results to one category (empty = all).
	Category string

	// Subject filters results to one subject (empty = all).
	Subject string

	// Limit sets the maximum number of results to return.
	Limit int
}

// ListOptions contains options for listing operations.
type ListOptions struct {
	// Category filters results to one category (empty = all).
	Category string

	// Limit sets the maximum number of results to return.
	Limit int

	// Offset sets the number of results to skip.
	Offset int
}

// MemoryStore defines the interface for memory storage backends.
//
// All storage implementations (SQLite, PostgreSQL, MySQL) must implement
// this interface.
type MemoryStore interface {
	// Insert inserts a memory into the store.
	Insert(ctx context.Context, memory *Memory) error

	// Search performs dense vector similarity search.
	// Returns matching memories sorted by similarity (highest first).
	Search(ctx context.Context, embedding []float64, opts *SearchOptions) ([]*Memory, error)

	// SearchText performs lexical search: memories whose content or subject
	// contains any of the given terms, scored by the fraction of terms
	// matched and sorted by that score (highest first). Superseded memories
	// are excluded.
	SearchText(ctx context.Context, terms []string, opts *TextSearchOptions) ([]*Memory, error)

	// Get retrieves a memory by ID. Returns ErrNotFound if missing.
	Get(ctx context.Context, id int64) (*Memory, error)

	// Update persists changed content, importance, retention strength,
	// and metadata for an existing memory.
	Update(ctx context.Context, memory *Memory) error

	// Touch records a read: increments access_count, sets last_accessed_at,
	// and stores the reinforced retention strength.
	Touch(ctx context.Context, id int64, accessedAt time.Time, retention float64) error

	// MarkSuperseded links a successor to a memory. A memory may have at
	// most one successor; returns ErrAlreadySuperseded when one is set.
	MarkSuperseded(ctx context.Context, id, successorID int64) error

	// Delete permanently deletes a memory by ID. Returns ErrNotFound if
	// missing.
	Delete(ctx context.Context, id int64) error

	// List retrieves memories ordered by importance then recency,
	// excluding superseded ones. Used by tiered context assembly.
	List(ctx context.Context, opts *ListOptions) ([]*Memory, error)

	// Count returns the number of stored memories, superseded included.
	Count(ctx context.Context) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}
