// Package mysql provides the MySQL implementation of the memory store.
//
// Embeddings are stored as JSON text and similarity is computed in memory,
// which keeps the backend compatible with plain MySQL and MySQL-protocol
// databases without vector extensions.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/engramlabs/engram-go/pkg/storage"
)

// Client is a MySQL memory store.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains MySQL configuration.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	TableName string
}

// NewClient creates a new MySQL memory store client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			content TEXT NOT NULL,
			category VARCHAR(32) NOT NULL,
			subject VARCHAR(255) NOT NULL DEFAULT '',
			source VARCHAR(255) NOT NULL DEFAULT '',
			confidence DOUBLE NOT NULL DEFAULT 1.0,
			importance DOUBLE NOT NULL DEFAULT 0.5,
			access_count INT NOT NULL DEFAULT 0,
			retention_strength DOUBLE NOT NULL DEFAULT 1.0,
			embedding LONGTEXT NOT NULL,
			metadata JSON,
			superseded_by BIGINT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_accessed_at DATETIME,
			INDEX idx_category (category, superseded_by)
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts a memory.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) error {
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

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, content, category, subject, source, confidence, importance,
		 access_count, retention_strength, embedding, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

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

// Search performs vector similarity search with in-memory cosine
// calculation, mirroring the SQLite backend.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	whereClause, args := buildWhereClause(opts.Category, opts.Subject, !opts.IncludeSuperseded)

	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY id`, memoryColumns, c.tableName, whereClause)

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

		memory.Score = cosineSimilarity(embedding, memory.Embedding)
		if memory.Score >= opts.MinScore {
			memories = append(memories, memory)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sortByScore(memories, opts.Limit), nil
}

// SearchText performs lexical search over content and subject.
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
	likeClause := "(" + strings.Join(likeClauses, " OR ") + ")"
	if whereClause == "" {
		whereClause = "WHERE " + likeClause
	} else {
		whereClause += " AND " + likeClause
	}

	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY updated_at DESC`, memoryColumns, c.tableName, whereClause)

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
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, memoryColumns, c.tableName)

	memory, err := scanMemory(c.db.QueryRowContext(ctx, query, id))
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

	return checkAffected(result)
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

	return checkAffected(result)
}

// MarkSuperseded links a successor to a memory.
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

	return checkAffected(result)
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

func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
