// Package postgres provides the PostgreSQL + pgvector implementation of the
// memory store. Similarity ordering happens SQL-side via the pgvector cosine
// operator.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/engramlabs/engram-go/pkg/storage"
)

// Client is a PostgreSQL + pgvector memory store.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	TableName          string
	EmbeddingModelDims int
	SSLMode            string
}

// NewClient creates a new PostgreSQL memory store client.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	client := &Client{
		db:         db,
		tableName:  tableName,
		dimensions: cfg.EmbeddingModelDims,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables enables pgvector and creates the memories table.
func (c *Client) initTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			content TEXT NOT NULL,
			category VARCHAR(32) NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			confidence FLOAT NOT NULL DEFAULT 1.0,
			importance FLOAT NOT NULL DEFAULT 0.5,
			access_count INT NOT NULL DEFAULT 0,
			retention_strength FLOAT NOT NULL DEFAULT 1.0,
			embedding vector(%d) NOT NULL,
			metadata JSONB,
			superseded_by BIGINT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_accessed_at TIMESTAMP
		)
	`, c.tableName, c.dimensions)

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

// Insert inserts a memory.
func (c *Client) Insert(ctx context.Context, memory *storage.Memory) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector, $11, $12, $13)
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
		vectorToString(memory.Embedding),
		string(metadataJSON),
		memory.CreatedAt,
		memory.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Search performs vector similarity search using the pgvector cosine
// distance operator. Score = 1 - cosine_distance.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	where, args := buildWhereClause(opts.Category, opts.Subject, !opts.IncludeSuperseded, 1)
	vectorArg := len(args) + 1
	args = append(args, vectorToString(embedding))

	scoreCond := ""
	if opts.MinScore > 0 {
		scoreCond = fmt.Sprintf(" AND 1 - (embedding <=> $%d::vector) >= $%d", vectorArg, len(args)+1)
		args = append(args, opts.MinScore)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $%d::vector) AS score
		FROM %s
		%s%s
		ORDER BY embedding <=> $%d::vector, id
		LIMIT $%d
	`, memoryColumns, vectorArg, c.tableName, where, scoreCond, vectorArg, len(args))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var memories []*storage.Memory
	for rows.Next() {
		memory, err := scanMemoryWithScore(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, memory)
	}

	return memories, rows.Err()
}

// SearchText performs lexical search over content and subject using ILIKE.
func (c *Client) SearchText(ctx context.Context, terms []string, opts *storage.TextSearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.TextSearchOptions{}
	}
	if len(terms) == 0 {
		return nil, nil
	}

	where, args := buildWhereClause(opts.Category, opts.Subject, true, 1)

	likeClause := ""
	for i, term := range terms {
		if i > 0 {
			likeClause += " OR "
		}
		n := len(args) + 1
		likeClause += fmt.Sprintf("(content ILIKE $%d OR subject ILIKE $%d)", n, n)
		args = append(args, "%"+term+"%")
	}
	if where == "" {
		where = "WHERE (" + likeClause + ")"
	} else {
		where += " AND (" + likeClause + ")"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s %s ORDER BY updated_at DESC
	`, memoryColumns, c.tableName, where)

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
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, memoryColumns, c.tableName)

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
		SET content = $1, importance = $2, retention_strength = $3, metadata = $4, updated_at = $5
		WHERE id = $6
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query,
		memory.Content, memory.Importance, memory.RetentionStrength,
		string(metadataJSON), time.Now(), memory.ID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	return checkAffected(result, "Update")
}

// Touch records a read of the memory.
func (c *Client) Touch(ctx context.Context, id int64, accessedAt time.Time, retention float64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET access_count = access_count + 1, last_accessed_at = $1, retention_strength = $2
		WHERE id = $3
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, accessedAt, retention, id)
	if err != nil {
		return fmt.Errorf("Touch: %w", err)
	}

	return checkAffected(result, "Touch")
}

// MarkSuperseded links a successor to a memory.
func (c *Client) MarkSuperseded(ctx context.Context, id, successorID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET superseded_by = $1, updated_at = $2 WHERE id = $3 AND superseded_by IS NULL
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
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.tableName)

	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	return checkAffected(result, "Delete")
}

// List retrieves memories ordered by importance then recency.
func (c *Client) List(ctx context.Context, opts *storage.ListOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.ListOptions{}
	}

	where, args := buildWhereClause(opts.Category, "", true, 1)

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s %s
		ORDER BY importance DESC, updated_at DESC
		LIMIT $%d OFFSET $%d
	`, memoryColumns, c.tableName, where, len(args)+1, len(args)+2)

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

func checkAffected(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
