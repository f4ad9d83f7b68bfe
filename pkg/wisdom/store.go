// Package wisdom records agent decisions and their outcomes so that past
// experience can inform future actions.
//
// An entry moves through a lifecycle: logged at decision time, annotated
// with an outcome once the result is known, and optionally scored by user
// feedback. Entries are never deleted.
package wisdom

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for the wisdom store.
var (
	// ErrNotFound is returned when the requested entry does not exist.
	ErrNotFound = fmt.Errorf("wisdom: entry not found")

	// ErrInvalidScore is returned when a feedback score is outside 1-5.
	ErrInvalidScore = fmt.Errorf("wisdom: feedback score must be between 1 and 5")

	// ErrInvalidOutcome is returned for outcomes other than success,
	// failure, or partial.
	ErrInvalidOutcome = fmt.Errorf("wisdom: outcome must be success, failure, or partial")
)

// Entry is a recorded decision and its eventual outcome.
type Entry struct {
	// ID is a UUID assigned at log time.
	ID string `json:"id"`

	// ActionType labels the kind of decision, e.g. "recommendation".
	ActionType string `json:"action_type"`

	// Reasoning is why the action was taken.
	Reasoning string `json:"reasoning"`

	// Outcome is empty until RecordOutcome is called, then "success",
	// "failure", or "partial".
	Outcome string `json:"outcome,omitempty"`

	// OutcomeDetails is free text describing what happened.
	OutcomeDetails string `json:"outcome_details,omitempty"`

	// FeedbackScore is the user rating (1-5), nil until feedback arrives.
	FeedbackScore *int `json:"feedback_score,omitempty"`

	// FeedbackNotes is the user's comment on the feedback.
	FeedbackNotes string `json:"feedback_notes,omitempty"`

	// Tags are free-form labels for retrieval.
	Tags []string `json:"tags,omitempty"`

	// Timestamp is when the decision was logged.
	Timestamp time.Time `json:"timestamp"`

	// Score is the relevance score populated by Search.
	Score float64 `json:"score,omitempty"`
}

// Outcomes accepted by RecordOutcome.
var validOutcomes = map[string]bool{
	"success": true,
	"failure": true,
	"partial": true,
}

// Store persists wisdom entries in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a wisdom store on an existing database handle and
// initializes the schema.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init wisdom schema: %w", err)
	}
	return s, nil
}

// initSchema creates the wisdom table if needed.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS wisdom (
		id TEXT PRIMARY KEY,
		action_type TEXT NOT NULL,
		reasoning TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT '',
		outcome_details TEXT NOT NULL DEFAULT '',
		feedback_score INTEGER,
		feedback_notes TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wisdom_action ON wisdom(action_type, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Log records a decision at the moment it is taken, before the outcome is
// known. Returns the entry with its assigned ID.
func (s *Store) Log(ctx context.Context, actionType, reasoning string, tags []string) (*Entry, error) {
	if actionType == "" {
		return nil, fmt.Errorf("wisdom: action type is empty")
	}
	if reasoning == "" {
		return nil, fmt.Errorf("wisdom: reasoning is empty")
	}

	entry := &Entry{
		ID:         uuid.New().String(),
		ActionType: actionType,
		Reasoning:  reasoning,
		Tags:       tags,
		Timestamp:  time.Now().UTC(),
	}

	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wisdom (id, action_type, reasoning, tags, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.ActionType, entry.Reasoning, string(tagsJSON), entry.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert wisdom entry: %w", err)
	}

	return entry, nil
}

// RecordOutcome annotates a logged entry with its result. The outcome must
// be "success", "failure", or "partial". Recording again overwrites the
// previous outcome.
func (s *Store) RecordOutcome(ctx context.Context, id, outcome, details string) error {
	if !validOutcomes[outcome] {
		return fmt.Errorf("%w (got %q)", ErrInvalidOutcome, outcome)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE wisdom SET outcome = ?, outcome_details = ? WHERE id = ?`,
		outcome, details, id)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	return checkFound(result)
}

// AttachFeedback records a user rating on an entry. Feedback does not
// require an outcome to have been recorded first; users may rate a decision
// before its result is known.
func (s *Store) AttachFeedback(ctx context.Context, id string, score int, notes string) error {
	if score < 1 || score > 5 {
		return ErrInvalidScore
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE wisdom SET feedback_score = ?, feedback_notes = ? WHERE id = ?`,
		score, notes, id)
	if err != nil {
		return fmt.Errorf("attach feedback: %w", err)
	}

	return checkFound(result)
}

// Get returns a single entry by ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, action_type, reasoning, outcome, outcome_details,
		       feedback_score, feedback_notes, tags, timestamp
		FROM wisdom WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return entry, err
}

// Search returns entries relevant to a query, scored by term overlap across
// action type, reasoning, outcome details, and tags. Entries with recorded
// outcomes rank above still-pending ones at equal term overlap, so the
// caller sees what actually happened, not just what was attempted.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action_type, reasoning, outcome, outcome_details,
		       feedback_score, feedback_notes, tags, timestamp
		FROM wisdom`)
	if err != nil {
		return nil, fmt.Errorf("search wisdom: %w", err)
	}
	defer rows.Close()

	var matched []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}

		score := matchScore(entry, terms)
		if score <= 0 {
			continue
		}
		if entry.Outcome != "" {
			score += 0.1
		}
		entry.Score = score
		matched = append(matched, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Score != matched[j].Score {
			return matched[i].Score > matched[j].Score
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Count returns the number of wisdom entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wisdom`).Scan(&count)
	return count, err
}

// matchScore is the fraction of query terms found in the entry's text
// fields and tags.
func matchScore(entry *Entry, terms []string) float64 {
	haystack := strings.ToLower(
		entry.ActionType + " " + entry.Reasoning + " " +
			entry.OutcomeDetails + " " + strings.Join(entry.Tags, " "))

	matched := 0
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// scanEntry scans an entry from a database row or rows.
func scanEntry(scanner interface{}) (*Entry, error) {
	var entry Entry
	var feedbackScore sql.NullInt64
	var tagsJSON string

	dest := []interface{}{
		&entry.ID,
		&entry.ActionType,
		&entry.Reasoning,
		&entry.Outcome,
		&entry.OutcomeDetails,
		&feedbackScore,
		&entry.FeedbackNotes,
		&tagsJSON,
		&entry.Timestamp,
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

	if feedbackScore.Valid {
		score := int(feedbackScore.Int64)
		entry.FeedbackScore = &score
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
			return nil, fmt.Errorf("parse tags: %w", err)
		}
	}

	return &entry, nil
}

// checkFound converts a zero-row UPDATE into ErrNotFound.
func checkFound(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
