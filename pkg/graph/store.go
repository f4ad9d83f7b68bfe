package graph

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = fmt.Errorf("graph: entity not found")

// Store persists entities and relationships in SQLite.
//
// The store shares the memory database so that a single file holds the whole
// state of an agent.
type Store struct {
	db   *sql.DB
	node *snowflake.Node
}

// NewStore creates a graph store on an existing database handle and
// initializes the schema.
func NewStore(db *sql.DB) (*Store, error) {
	node, err := snowflake.NewNode(2)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}

	s := &Store{db: db, node: node}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init graph schema: %w", err)
	}
	return s, nil
}

// initSchema creates the entity and relationship tables if needed.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		canonical_name TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		metadata TEXT,
		access_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE(entity_type, canonical_name)
	);

	CREATE TABLE IF NOT EXISTS relationships (
		id INTEGER PRIMARY KEY,
		subject_id INTEGER NOT NULL,
		predicate TEXT NOT NULL,
		object_id INTEGER,
		object_value TEXT NOT NULL DEFAULT '',
		valid_from DATETIME NOT NULL,
		valid_to DATETIME,
		confidence REAL NOT NULL DEFAULT 1.0,
		FOREIGN KEY (subject_id) REFERENCES entities(id)
	);

	CREATE INDEX IF NOT EXISTS idx_entities_canonical ON entities(entity_type, canonical_name);
	CREATE INDEX IF NOT EXISTS idx_relationships_subject ON relationships(subject_id, predicate, valid_to);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CanonicalName normalizes an entity name for identity comparison:
// lowercased, trimmed, inner whitespace collapsed to single spaces.
func CanonicalName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// UpsertEntity finds or creates an entity.
//
// Identity is (entity_type, canonical name), so "Dr. Smith" and "dr.  smith"
// resolve to the same entity. On a hit the stored display name is kept and
// any new metadata keys are merged in.
func (s *Store) UpsertEntity(ctx context.Context, name, entityType string, metadata map[string]interface{}) (*Entity, error) {
	canonical := CanonicalName(name)
	if canonical == "" {
		return nil, fmt.Errorf("graph: entity name is empty")
	}

	existing, err := s.findByCanonical(ctx, entityType, canonical)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if len(metadata) > 0 {
			if existing.Metadata == nil {
				existing.Metadata = make(map[string]interface{})
			}
			for k, v := range metadata {
				existing.Metadata[k] = v
			}
			if err := s.updateMetadata(ctx, existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	now := time.Now().UTC()
	entity := &Entity{
		ID:            s.node.Generate().Int64(),
		Name:          name,
		CanonicalName: canonical,
		EntityType:    entityType,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	metadataJSON, err := marshalMetadata(entity.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, name, canonical_name, entity_type, metadata, access_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		entity.ID, entity.Name, entity.CanonicalName, entity.EntityType,
		metadataJSON, entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		// A concurrent insert may have won the unique constraint race.
		if racing, ferr := s.findByCanonical(ctx, entityType, canonical); ferr == nil && racing != nil {
			return racing, nil
		}
		return nil, fmt.Errorf("insert entity: %w", err)
	}

	return entity, nil
}

// GetEntity returns an entity by ID and bumps its access count.
func (s *Store) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, canonical_name, entity_type, metadata, access_count, created_at, updated_at
		FROM entities WHERE id = ?`, id)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE entities SET access_count = access_count + 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("touch entity: %w", err)
	}
	entity.AccessCount++

	return entity, nil
}

// SearchEntities finds entities whose name contains the query
// (case-insensitive), optionally restricted to a type.
func (s *Store) SearchEntities(ctx context.Context, query, entityType string, limit int) ([]*Entity, error) {
	if limit <= 0 {
		limit = 20
	}

	sqlQuery := `
		SELECT id, name, canonical_name, entity_type, metadata, access_count, created_at, updated_at
		FROM entities WHERE canonical_name LIKE ?`
	args := []interface{}{"%" + CanonicalName(query) + "%"}

	if entityType != "" {
		sqlQuery += " AND entity_type = ?"
		args = append(args, entityType)
	}
	sqlQuery += " ORDER BY access_count DESC, id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// AddRelationship records a fact about a subject, versioning any previous
// value of the same predicate.
//
// If the subject already has a currently valid relationship with the same
// predicate and the same object, the call is a no-op and returns the
// existing relationship. If the object differs, the old relationship's
// validity interval is closed at now and a new open interval begins, so
// "favorite_coffee_shop: Blue Bottle" followed by "...: Sightglass" keeps
// both facts with disjoint validity windows.
func (s *Store) AddRelationship(ctx context.Context, subjectID int64, predicate string, objectID *int64, objectValue string, confidence float64) (*Relationship, error) {
	if predicate == "" {
		return nil, fmt.Errorf("graph: predicate is empty")
	}
	if confidence == 0 {
		confidence = 1.0
	}

	current, err := s.validRelationships(ctx, subjectID, predicate)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, rel := range current {
		if rel.SameObject(objectID, objectValue) {
			return rel, nil
		}
		// The predicate has a new value; close the old interval.
		_, err := s.db.ExecContext(ctx,
			`UPDATE relationships SET valid_to = ? WHERE id = ? AND valid_to IS NULL`,
			now, rel.ID)
		if err != nil {
			return nil, fmt.Errorf("close relationship: %w", err)
		}
	}

	rel := &Relationship{
		ID:          s.node.Generate().Int64(),
		SubjectID:   subjectID,
		Predicate:   predicate,
		ObjectID:    objectID,
		ObjectValue: objectValue,
		ValidFrom:   now,
		Confidence:  confidence,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO relationships (id, subject_id, predicate, object_id, object_value, valid_from, valid_to, confidence)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?)`,
		rel.ID, rel.SubjectID, rel.Predicate, objectIDArg(rel.ObjectID),
		rel.ObjectValue, rel.ValidFrom, rel.Confidence,
	)
	if err != nil {
		return nil, fmt.Errorf("insert relationship: %w", err)
	}

	return rel, nil
}

// History returns all relationships for a subject and predicate, newest
// first, including closed intervals.
func (s *Store) History(ctx context.Context, subjectID int64, predicate string) ([]*Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, predicate, object_id, object_value, valid_from, valid_to, confidence
		FROM relationships
		WHERE subject_id = ? AND predicate = ?
		ORDER BY valid_from DESC, id DESC`,
		subjectID, predicate)
	if err != nil {
		return nil, fmt.Errorf("relationship history: %w", err)
	}
	defer rows.Close()

	return scanRelationships(rows)
}

// Profile assembles an entity's profile: the entity itself, its currently
// valid relationships grouped by predicate, and the entities those
// relationships point at.
func (s *Store) Profile(ctx context.Context, id int64) (*Profile, error) {
	entity, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, predicate, object_id, object_value, valid_from, valid_to, confidence
		FROM relationships
		WHERE subject_id = ? AND valid_to IS NULL
		ORDER BY predicate ASC, valid_from DESC`,
		id)
	if err != nil {
		return nil, fmt.Errorf("profile relationships: %w", err)
	}
	defer rows.Close()

	relationships, err := scanRelationships(rows)
	if err != nil {
		return nil, err
	}

	profile := &Profile{
		Entity:        entity,
		Relationships: make(map[string][]*Relationship),
	}

	seen := make(map[int64]bool)
	for _, rel := range relationships {
		profile.Relationships[rel.Predicate] = append(profile.Relationships[rel.Predicate], rel)

		if rel.ObjectID == nil || seen[*rel.ObjectID] {
			continue
		}
		seen[*rel.ObjectID] = true

		related, err := s.getEntityNoTouch(ctx, *rel.ObjectID)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		profile.Related = append(profile.Related, related)
	}

	return profile, nil
}

// GraphBoost returns a connectivity score in [0, 1] for each given entity
// name: the count of currently valid relationships touching the entity,
// log-scaled. Names that resolve to no entity score 0.
func (s *Store) GraphBoost(ctx context.Context, names []string) (map[string]float64, error) {
	boost := make(map[string]float64, len(names))
	for _, name := range names {
		canonical := CanonicalName(name)
		if canonical == "" {
			continue
		}

		var count int
		err := s.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM relationships r
			JOIN entities e ON e.id = r.subject_id OR e.id = r.object_id
			WHERE e.canonical_name = ? AND r.valid_to IS NULL`,
			canonical).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("graph boost: %w", err)
		}

		boost[name] = connectivityScore(count)
	}
	return boost, nil
}

// CountEntities returns the number of entities.
func (s *Store) CountEntities(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&count)
	return count, err
}

// CountRelationships returns the number of relationships, closed intervals
// included.
func (s *Store) CountRelationships(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relationships`).Scan(&count)
	return count, err
}

// findByCanonical looks up an entity by its identity key.
func (s *Store) findByCanonical(ctx context.Context, entityType, canonical string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, canonical_name, entity_type, metadata, access_count, created_at, updated_at
		FROM entities WHERE entity_type = ? AND canonical_name = ?`,
		entityType, canonical)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entity, err
}

// getEntityNoTouch reads an entity without bumping its access count.
func (s *Store) getEntityNoTouch(ctx context.Context, id int64) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, canonical_name, entity_type, metadata, access_count, created_at, updated_at
		FROM entities WHERE id = ?`, id)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return entity, err
}

// updateMetadata persists merged metadata after an upsert hit.
func (s *Store) updateMetadata(ctx context.Context, entity *Entity) error {
	metadataJSON, err := marshalMetadata(entity.Metadata)
	if err != nil {
		return err
	}

	entity.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE entities SET metadata = ?, updated_at = ? WHERE id = ?`,
		metadataJSON, entity.UpdatedAt, entity.ID)
	if err != nil {
		return fmt.Errorf("update entity metadata: %w", err)
	}
	return nil
}

// validRelationships returns the currently valid relationships for a
// subject and predicate.
func (s *Store) validRelationships(ctx context.Context, subjectID int64, predicate string) ([]*Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, predicate, object_id, object_value, valid_from, valid_to, confidence
		FROM relationships
		WHERE subject_id = ? AND predicate = ? AND valid_to IS NULL`,
		subjectID, predicate)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	return scanRelationships(rows)
}
