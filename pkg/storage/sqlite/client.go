// Package sqlite provides the SQLite implementation of the memory store.
//
// SQLite is the default backend: file-based, no server to run. Vectors are
// stored as JSON strings in TEXT fields, and similarity search uses
// in-memory cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/engramlabs/engram-go/pkg/storage"
)

// Client implements storage.MemoryStore using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing memories.
	tableName string
}

// Config contains configuration for creating a SQLite memory store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use. Defaults to "memories".
	TableName string
}

// NewClient creates a new SQLite memory store client.
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	client := &Client{
		db:        db,
		tableName: tableName,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// DB exposes the underlying connection so that the graph and wisdom stores
// can share a single database file.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Open opens a bare SQLite connection without creating the memories table.
// Used when the graph and wisdom stores live in their own file.
func Open(dbPath string) (*sql.DB, error) {
	dbDir := filepath.Dir(dbPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("Open: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	return db, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 1.0,
			importance REAL NOT NULL DEFAULT 0.5,
			access_count INTEGER NOT NULL DEFAULT 0,
			retention_strength REAL NOT NULL DEFAULT 1.0,
			embedding TEXT NOT NULL,
			metadata TEXT,
			superseded_by INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_accessed_at DATETIME
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_category ON %s(category, superseded_by)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts a memory into the SQLite database.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, content, category, subject, source, confidence, importance,
		 access_count, retention_strength, embedding, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	embeddingJSON, err := json.Marshal(memory.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	metadataJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	now := time.Now()
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = now
	}
	memory.UpdatedAt = now

	_, err = c.db.ExecContext(ctx, query,
		memory.ID,
		memory.Content,
		memory.Category,
		memory.Subject,
		memory.Source,
		memory.Confidence,
		memory.Importance,
		memory.AccessCount,
		memory.RetentionStrength,
		string(embeddingJSON),
		string(metadataJSON),
		memory.CreatedAt,
		memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Search performs vector similarity search using cosine similarity.
//
// SQLite does not have native vector operations, so similarity is calculated
// in memory after loading candidate records.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	whereClause, args := buildWhereClause(opts.Category, opts.Subject, !opts.IncludeSuperseded)

	query := fmt.Sprintf(`
		SELECT %s FROM %s %s ORDER BY id
	`, memoryColumns, c.tableName, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}

		score := cosineSimilarity(embedding, memory.Embedding)
		memory.Score = score

		if score >= opts.MinScore {
			memories = append(memories, memory)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sortByScore(memories, opts.Limit), nil
}

// SearchText performs lexical search over content and subject.
//
// Candidates match any term via LIKE; the final score is the fraction of
// terms matched, computed in memory for consistency across backends.
func (c *Client) SearchText(ctx context.Context, terms []string, opts *storage.TextSearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.TextSearchOptions{}
	}
	if len(terms) == 0 {
		return nil, nil
	}

	whereClause, args := buildWhereClause(opts.Category, opts.Subject, true)

	var likeClauses []string
	for _, term := range terms {
		likeClauses = append(likeClauses, "(content LIKE ? OR subject LIKE ?)")
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}
	if whereClause == "" {
		whereClause = "WHERE (" + strings.Join(likeClauses, " OR ") + ")"
	} else {
		whereClause += " AND (" + strings.Join(likeClauses, " OR ") + ")"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s %s ORDER BY updated_at DESC
	`, memoryColumns, c.tableName, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("SearchText: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memory.Score = termMatchScore(memory, terms)
		if memory.Score > 0 {
			memories = append(memories, memory)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sortByScore(memories, opts.Limit), nil
}

// Get retrieves a memory by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Memory, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = ?
	`, memoryColumns, c.tableName)

	row := c.db.QueryRowContext(ctx, query, id)

	memory, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return memory, nil
}

// Update persists changed fields of an existing memory.
func (c *Client) Update(ctx context.Context, memory *storage.Memory) error {
	metadataJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = ?, importance = ?, retention_strength = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query,
		memory.Content, memory.Importance, memory.RetentionStrength,
		string(metadataJSON), time.Now(), memory.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Touch records a read of the memory.
func (c *Client) Touch(ctx context.Context, id int64, accessedAt time.Time, retention float64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET access_count = access_count + 1, last_accessed_at = ?, retention_strength = ?
		WHERE id = ?
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, accessedAt, retention, id)
	if err != nil {
		return fmt.Errorf("Touch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Touch: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// MarkSuperseded links a successor to a memory.
//
// The guarded UPDATE enforces the at-most-one-successor invariant without a
// separate read.
func (c *Client) MarkSuperseded(ctx context.Context, id, successorID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET superseded_by = ?, updated_at = ? WHERE id = ? AND superseded_by IS NULL
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, successorID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("MarkSuperseded: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkSuperseded: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := c.Get(ctx, id); err != nil {
			return err
		}
		return storage.ErrAlreadySuperseded
	}

	return nil
}

// Delete permanently deletes a memory by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.tableName)

	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// List retrieves memories ordered by importance then recency.
func (c *Client) List(ctx context.Context, opts *storage.ListOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}

	whereClause, args := buildWhereClause(opts.Category, "", true)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s %s
		ORDER BY importance DESC, updated_at DESC
		LIMIT ? OFFSET ?
	`, memoryColumns, c.tableName, whereClause)

	args = append(args, limit, opts.Offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, memory)
	}

	return memories, rows.Err()
}

// Count returns the number of stored memories.
func (c *Client) Count(ctx context.Context) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.tableName)
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
