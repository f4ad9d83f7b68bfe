package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/engramlabs/engram-go/pkg/contextpack"
	"github.com/engramlabs/engram-go/pkg/embedder"
	"github.com/engramlabs/engram-go/pkg/embedder/hash"
	openaiembedder "github.com/engramlabs/engram-go/pkg/embedder/openai"
	"github.com/engramlabs/engram-go/pkg/extraction"
	"github.com/engramlabs/engram-go/pkg/fusion"
	"github.com/engramlabs/engram-go/pkg/graph"
	"github.com/engramlabs/engram-go/pkg/intelligence"
	"github.com/engramlabs/engram-go/pkg/llm"
	openaillm "github.com/engramlabs/engram-go/pkg/llm/openai"
	"github.com/engramlabs/engram-go/pkg/storage"
	"github.com/engramlabs/engram-go/pkg/storage/mysql"
	"github.com/engramlabs/engram-go/pkg/storage/postgres"
	"github.com/engramlabs/engram-go/pkg/storage/sqlite"
	"github.com/engramlabs/engram-go/pkg/wisdom"
)

// Service is the Engram cognition service.
//
// It orchestrates the memory store, knowledge graph, wisdom log, embedding
// provider, and retrieval fusion behind one API. Create it with NewService
// and always Close it when done.
//
// Example:
//
//	service, err := core.NewService(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer service.Close()
//
//	result, err := service.Store(ctx, &core.StoreRequest{
//	    Content:  "User prefers oat milk in coffee",
//	    Category: core.CategoryPreference,
//	})
type Service struct {
	config *Config

	store    storage.MemoryStore
	graph    *graph.Store
	wisdom   *wisdom.Store
	embedder embedder.Provider
	llm      llm.Provider

	dedup      *intelligence.DedupManager
	decay      *intelligence.DecayModel
	importance *intelligence.ImportanceEvaluator
	fusion     *fusion.Engine
	assembler  *contextpack.Assembler
	extractor  *extraction.Extractor

	node *snowflake.Node

	// graphDB is the separately opened graph database, nil when the graph
	// shares the sqlite memory store's connection.
	graphDB *sql.DB

	startTime time.Time

	// mu guards the search latency counters.
	mu                sync.Mutex
	searchCount       int64
	totalSearchMillis float64
	maxSearchMillis   float64
}

// NewService creates a fully wired service from configuration.
func NewService(config *Config) (*Service, error) {
	if config == nil {
		return nil, NewServiceError("NewService", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := newMemoryStore(config)
	if err != nil {
		return nil, NewServiceError("NewService", err)
	}

	graphDB, ownedGraphDB, err := newGraphDB(config, store)
	if err != nil {
		store.Close()
		return nil, NewServiceError("NewService", err)
	}

	graphStore, err := graph.NewStore(graphDB)
	if err != nil {
		store.Close()
		return nil, NewServiceError("NewService", err)
	}

	wisdomStore, err := wisdom.NewStore(graphDB)
	if err != nil {
		store.Close()
		return nil, NewServiceError("NewService", err)
	}

	embedderProvider, err := newEmbedder(config)
	if err != nil {
		store.Close()
		return nil, NewServiceError("NewService", err)
	}

	var llmProvider llm.Provider
	if config.LLM != nil {
		llmProvider, err = openaillm.NewClient(&openaillm.Config{
			APIKey:  config.LLM.APIKey,
			Model:   config.LLM.Model,
			BaseURL: config.LLM.BaseURL,
		})
		if err != nil {
			store.Close()
			return nil, NewServiceError("NewService", err)
		}
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		store.Close()
		return nil, NewServiceError("NewService", err)
	}

	decay := intelligence.NewDecayModel(config.Search.DecayRate, config.Search.ReinforcementFactor)

	service := &Service{
		config:     config,
		store:      store,
		graph:      graphStore,
		wisdom:     wisdomStore,
		embedder:   embedderProvider,
		llm:        llmProvider,
		dedup:      intelligence.NewDedupManager(store, config.Search.DuplicateThreshold),
		decay:      decay,
		importance: intelligence.NewImportanceEvaluator(llmProvider),
		fusion:     fusion.NewEngine(config.Search.RRFK, decay, config.Search.DiversityThreshold),
		assembler:  contextpack.NewAssembler(0),
		node:       node,
		startTime:  time.Now(),
	}
	if ownedGraphDB {
		service.graphDB = graphDB
	}
	if llmProvider != nil {
		service.extractor = extraction.NewExtractor(llmProvider)
	}

	return service, nil
}

// newMemoryStore builds the configured memory store backend.
func newMemoryStore(config *Config) (storage.MemoryStore, error) {
	switch config.Database.Provider {
	case "postgres":
		return postgres.NewClient(&postgres.Config{
			Host:               config.Database.Host,
			Port:               config.Database.Port,
			User:               config.Database.User,
			Password:           config.Database.Password,
			DBName:             config.Database.DBName,
			EmbeddingModelDims: config.Embedder.Dimensions,
			SSLMode:            config.Database.SSLMode,
		})
	case "mysql":
		return mysql.NewClient(&mysql.Config{
			Host:     config.Database.Host,
			Port:     config.Database.Port,
			User:     config.Database.User,
			Password: config.Database.Password,
			DBName:   config.Database.DBName,
		})
	default:
		path := config.Database.Path
		if path == "" {
			path = "./engram.db"
		}
		return sqlite.NewClient(&sqlite.Config{DBPath: path})
	}
}

// newGraphDB returns the database the graph and wisdom stores live in.
// With the sqlite memory backend they share its connection; otherwise a
// dedicated SQLite file is opened and owned by the service.
func newGraphDB(config *Config, store storage.MemoryStore) (*sql.DB, bool, error) {
	if client, ok := store.(*sqlite.Client); ok && config.Database.GraphPath == "" {
		return client.DB(), false, nil
	}

	path := config.Database.GraphPath
	if path == "" {
		path = "./engram-graph.db"
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, false, err
	}
	return db, true, nil
}

// newEmbedder builds the configured embedding provider.
func newEmbedder(config *Config) (embedder.Provider, error) {
	switch config.Embedder.Provider {
	case "hash":
		return hash.NewClient(config.Embedder.Dimensions), nil
	default:
		return openaiembedder.NewClient(&openaiembedder.Config{
			APIKey:     config.Embedder.APIKey,
			Model:      config.Embedder.Model,
			BaseURL:    config.Embedder.BaseURL,
			Dimensions: config.Embedder.Dimensions,
		})
	}
}

// StoreRequest contains the input for a store operation.
type StoreRequest struct {
	// Content is the memory text (required).
	Content string `json:"content"`

	// Category classifies the memory. Defaults to CategoryContext.
	Category Category `json:"category,omitempty"`

	// Subject is an optional free-text subject.
	Subject string `json:"subject,omitempty"`

	// Source records where the memory came from. Defaults to "api".
	Source string `json:"source,omitempty"`

	// Confidence in [0,1]. Defaults to 1.0.
	Confidence float64 `json:"confidence,omitempty"`

	// Metadata contains additional structured information.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Store ingests a memory.
//
// Store is idempotent under near-duplication: when an existing memory's
// embedding is within the duplicate threshold of the new content, the
// existing memory is returned unchanged and nothing is written.
func (s *Service) Store(ctx context.Context, req *StoreRequest) (*StoreResult, error) {
	if req == nil || strings.TrimSpace(req.Content) == "" {
		return nil, NewServiceError("Store", fmt.Errorf("%w: content is empty", ErrInvalidInput))
	}

	category := req.Category
	if category == "" {
		category = CategoryContext
	}
	if !ValidCategory(category) {
		return nil, NewServiceError("Store", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, category))
	}

	confidence := req.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	if confidence < 0 || confidence > 1 {
		return nil, NewServiceError("Store", fmt.Errorf("%w: confidence out of range", ErrInvalidInput))
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	embedding, err := s.embedder.Embed(ctx, req.Content)
	if err != nil {
		return nil, NewServiceError("Store", fmt.Errorf("%w: %v", ErrEmbeddingFailed, err))
	}

	duplicate, err := s.dedup.FindDuplicate(ctx, embedding, string(category))
	if err != nil {
		return nil, NewServiceError("Store", err)
	}
	if duplicate != nil {
		return &StoreResult{Memory: fromStorageMemory(duplicate), Deduplicated: true}, nil
	}

	importance := s.importance.Evaluate(ctx, req.Content, string(category))

	now := time.Now()
	memory := &Memory{
		ID:                s.node.Generate().Int64(),
		Content:           req.Content,
		Category:          category,
		Subject:           req.Subject,
		Source:            source,
		Confidence:        confidence,
		Importance:        importance,
		RetentionStrength: 1.0,
		Embedding:         embedding,
		Metadata:          req.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.store.Insert(ctx, toStorageMemory(memory)); err != nil {
		return nil, NewServiceError("Store", err)
	}

	return &StoreResult{Memory: memory}, nil
}

// SearchRequest contains the input for a search operation.
type SearchRequest struct {
	// Query is the search query (required).
	Query string `json:"query"`

	// Category restricts results to one category (empty = all).
	Category Category `json:"category,omitempty"`

	// Subject restricts results to one subject (empty = all).
	Subject string `json:"subject,omitempty"`

	// Limit caps the number of results. Defaults to 10.
	Limit int `json:"limit,omitempty"`
}

// Search retrieves memories relevant to a query.
//
// Three relevance signals are computed independently (dense vector
// similarity, lexical term match, graph-connectivity boost), merged with
// reciprocal rank fusion, re-weighted by importance, retention, and access
// frequency, then filtered for diversity. Returned memories are touched:
// their access counts and retention strengths are reinforced.
func (s *Service) Search(ctx context.Context, req *SearchRequest) ([]*Memory, error) {
	results, err := s.search(ctx, req)
	if err != nil {
		return nil, err
	}
	return fromStorageMemories(results), nil
}

// search is the internal fusion pipeline over storage memories.
func (s *Service) search(ctx context.Context, req *SearchRequest) ([]*storage.Memory, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, NewServiceError("Search", fmt.Errorf("%w: query is empty", ErrInvalidInput))
	}
	if req.Category != "" && !ValidCategory(req.Category) {
		return nil, NewServiceError("Search", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, req.Category))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	candidateLimit := limit * 4
	if candidateLimit < 20 {
		candidateLimit = 20
	}

	started := time.Now()

	embedding, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, NewServiceError("Search", fmt.Errorf("%w: %v", ErrEmbeddingFailed, err))
	}

	vectorList, err := s.store.Search(ctx, embedding, &storage.SearchOptions{
		Category: string(req.Category),
		Subject:  req.Subject,
		Limit:    candidateLimit,
	})
	if err != nil {
		return nil, NewServiceError("Search", err)
	}

	terms := strings.Fields(strings.ToLower(req.Query))
	textList, err := s.store.SearchText(ctx, terms, &storage.TextSearchOptions{
		Category: string(req.Category),
		Subject:  req.Subject,
		Limit:    candidateLimit,
	})
	if err != nil {
		return nil, NewServiceError("Search", err)
	}

	graphList, err := s.graphRanked(ctx, vectorList, textList)
	if err != nil {
		return nil, NewServiceError("Search", err)
	}

	results := s.fusion.Rank(limit, vectorList, textList, graphList)

	for _, memory := range results {
		retention := s.decay.Reinforce(memory.RetentionStrength)
		if err := s.store.Touch(ctx, memory.ID, time.Now(), retention); err != nil {
			return nil, NewServiceError("Search", err)
		}
		memory.AccessCount++
		memory.RetentionStrength = retention
	}

	s.recordSearchLatency(time.Since(started))

	return results, nil
}

// graphRanked builds the graph-connectivity signal: the union of the other
// candidate lists, ranked by how connected each memory's subject is in the
// knowledge graph. Memories without a connected subject drop out.
func (s *Service) graphRanked(ctx context.Context, lists ...[]*storage.Memory) ([]*storage.Memory, error) {
	byID := make(map[int64]*storage.Memory)
	var subjects []string
	seenSubjects := make(map[string]bool)

	for _, list := range lists {
		for _, memory := range list {
			if _, ok := byID[memory.ID]; ok || memory.Subject == "" {
				continue
			}
			byID[memory.ID] = memory
			if !seenSubjects[memory.Subject] {
				seenSubjects[memory.Subject] = true
				subjects = append(subjects, memory.Subject)
			}
		}
	}
	if len(subjects) == 0 {
		return nil, nil
	}

	boost, err := s.graph.GraphBoost(ctx, subjects)
	if err != nil {
		return nil, err
	}

	type scored struct {
		memory *storage.Memory
		boost  float64
	}
	var ranked []scored
	for _, memory := range byID {
		b := boost[memory.Subject]
		if b > 0 {
			ranked = append(ranked, scored{memory: memory, boost: b})
		}
	}

	// Highest connectivity first; ID tiebreak keeps the order stable.
	for i := 0; i < len(ranked)-1; i++ {
		for j := 0; j < len(ranked)-i-1; j++ {
			if ranked[j].boost < ranked[j+1].boost ||
				(ranked[j].boost == ranked[j+1].boost && ranked[j].memory.ID > ranked[j+1].memory.ID) {
				ranked[j], ranked[j+1] = ranked[j+1], ranked[j]
			}
		}
	}

	list := make([]*storage.Memory, len(ranked))
	for i, r := range ranked {
		list[i] = r.memory
	}
	return list, nil
}

// Get retrieves a memory by ID. The read is recorded: access count and
// retention strength are reinforced.
func (s *Service) Get(ctx context.Context, id int64) (*Memory, error) {
	memory, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, NewServiceError("Get", ErrNotFound)
	}
	if err != nil {
		return nil, NewServiceError("Get", err)
	}

	retention := s.decay.Reinforce(memory.RetentionStrength)
	if err := s.store.Touch(ctx, id, time.Now(), retention); err != nil {
		return nil, NewServiceError("Get", err)
	}
	memory.AccessCount++
	memory.RetentionStrength = retention

	return fromStorageMemory(memory), nil
}

// Delete permanently removes a memory. There is no soft delete.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return NewServiceError("Delete", ErrNotFound)
	}
	return NewServiceError("Delete", err)
}

// Supersede links a successor memory to a predecessor. The predecessor is
// kept for history but excluded from search. A memory can be superseded at
// most once.
func (s *Service) Supersede(ctx context.Context, id, successorID int64) error {
	if id == successorID {
		return NewServiceError("Supersede", fmt.Errorf("%w: a memory cannot supersede itself", ErrInvalidInput))
	}

	// The successor must exist before the link is made.
	if _, err := s.store.Get(ctx, successorID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewServiceError("Supersede", fmt.Errorf("%w: successor %d", ErrNotFound, successorID))
		}
		return NewServiceError("Supersede", err)
	}

	err := s.store.MarkSuperseded(ctx, id, successorID)
	if errors.Is(err, storage.ErrNotFound) {
		return NewServiceError("Supersede", ErrNotFound)
	}
	if errors.Is(err, storage.ErrAlreadySuperseded) {
		return NewServiceError("Supersede", ErrAlreadySuperseded)
	}
	return NewServiceError("Supersede", err)
}

// Extract runs the extraction pipeline over conversation text and writes
// the results: facts become memories (deduplicated as usual), entities and
// relationships go into the knowledge graph unless skipGraph is set.
func (s *Service) Extract(ctx context.Context, text, source string, skipGraph bool) (*ExtractionResult, error) {
	if s.extractor == nil {
		return nil, NewServiceError("Extract", fmt.Errorf("%w: no LLM provider configured", ErrLLMOperation))
	}
	if source == "" {
		source = "extraction"
	}

	extracted, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, NewServiceError("Extract", fmt.Errorf("%w: %v", ErrLLMOperation, err))
	}

	result := &ExtractionResult{}

	entityTypes := make(map[string]string)
	for _, e := range extracted.Entities {
		entityTypes[graph.CanonicalName(e.Name)] = e.Type
	}

	for _, fact := range extracted.Facts {
		category := Category(fact.Category)
		if !ValidCategory(category) {
			category = CategoryContext
		}
		stored, err := s.Store(ctx, &StoreRequest{
			Content:    fact.Content,
			Category:   category,
			Subject:    fact.Subject,
			Source:     source,
			Confidence: fact.Confidence,
		})
		if err != nil {
			return nil, NewServiceError("Extract", err)
		}
		result.Memories = append(result.Memories, stored.Memory)
	}

	if skipGraph {
		return result, nil
	}

	for _, e := range extracted.Entities {
		entity, err := s.graph.UpsertEntity(ctx, e.Name, normalizeEntityType(e.Type), nil)
		if err != nil {
			return nil, NewServiceError("Extract", err)
		}
		result.Entities = append(result.Entities, fromGraphEntity(entity))
	}

	for _, rel := range extracted.Relationships {
		subjectType := normalizeEntityType(entityTypes[graph.CanonicalName(rel.Subject)])
		subject, err := s.graph.UpsertEntity(ctx, rel.Subject, subjectType, nil)
		if err != nil {
			return nil, NewServiceError("Extract", err)
		}

		var objectID *int64
		objectValue := rel.Value
		if rel.Object != "" {
			objectType := normalizeEntityType(entityTypes[graph.CanonicalName(rel.Object)])
			object, err := s.graph.UpsertEntity(ctx, rel.Object, objectType, nil)
			if err != nil {
				return nil, NewServiceError("Extract", err)
			}
			objectID = &object.ID
			objectValue = ""
		}

		added, err := s.graph.AddRelationship(ctx, subject.ID, rel.Predicate, objectID, objectValue, rel.Confidence)
		if err != nil {
			return nil, NewServiceError("Extract", err)
		}
		result.Relationships = append(result.Relationships, fromGraphRelationship(added))
	}

	return result, nil
}

// normalizeEntityType coerces free-form extracted types onto the known
// enum, falling back to "other".
func normalizeEntityType(t string) string {
	if ValidEntityType(EntityType(t)) {
		return t
	}
	switch t {
	case "organization", "company":
		return string(EntityOrg)
	case "location", "city":
		return string(EntityPlace)
	}
	return string(EntityOther)
}

// AssembleContext builds the tiered context blob for a query: identity,
// family, preference, and project memories first, then fused search results
// for the query itself. An empty query yields only the category tiers.
func (s *Service) AssembleContext(ctx context.Context, query string, limit int) (string, error) {
	tiered := make(map[string][]*storage.Memory)
	for _, tier := range []Category{CategoryIdentity, CategoryFamily, CategoryPreference, CategoryProject} {
		memories, err := s.store.List(ctx, &storage.ListOptions{
			Category: string(tier),
			Limit:    contextpack.DefaultPerTierLimit,
		})
		if err != nil {
			return "", NewServiceError("AssembleContext", err)
		}
		tiered[string(tier)] = memories
	}

	var relevant []*storage.Memory
	if strings.TrimSpace(query) != "" {
		var err error
		relevant, err = s.search(ctx, &SearchRequest{Query: query, Limit: limit})
		if err != nil {
			return "", err
		}
	}

	return s.assembler.Assemble(tiered, relevant), nil
}

// UpsertEntity finds or creates a knowledge graph entity.
func (s *Service) UpsertEntity(ctx context.Context, name string, entityType EntityType, metadata map[string]interface{}) (*Entity, error) {
	if strings.TrimSpace(name) == "" {
		return nil, NewServiceError("UpsertEntity", fmt.Errorf("%w: name is empty", ErrInvalidInput))
	}
	if !ValidEntityType(entityType) {
		return nil, NewServiceError("UpsertEntity", fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, entityType))
	}

	entity, err := s.graph.UpsertEntity(ctx, name, string(entityType), metadata)
	if err != nil {
		return nil, NewServiceError("UpsertEntity", err)
	}
	return fromGraphEntity(entity), nil
}

// SearchEntities finds entities by name substring, optionally restricted to
// a type.
func (s *Service) SearchEntities(ctx context.Context, query string, entityType EntityType, limit int) ([]*Entity, error) {
	if entityType != "" && !ValidEntityType(entityType) {
		return nil, NewServiceError("SearchEntities", fmt.Errorf("%w: unknown entity type %q", ErrInvalidInput, entityType))
	}

	entities, err := s.graph.SearchEntities(ctx, query, string(entityType), limit)
	if err != nil {
		return nil, NewServiceError("SearchEntities", err)
	}

	result := make([]*Entity, len(entities))
	for i, e := range entities {
		result[i] = fromGraphEntity(e)
	}
	return result, nil
}

// EntityProfile returns an entity with its currently valid relationships
// grouped by predicate and the entities they reach.
func (s *Service) EntityProfile(ctx context.Context, id int64) (*EntityProfile, error) {
	profile, err := s.graph.Profile(ctx, id)
	if errors.Is(err, graph.ErrNotFound) {
		return nil, NewServiceError("EntityProfile", ErrNotFound)
	}
	if err != nil {
		return nil, NewServiceError("EntityProfile", err)
	}
	return fromGraphProfile(profile), nil
}

// AddRelationship records a fact edge, temporally versioning any previous
// value of the same (subject, predicate).
func (s *Service) AddRelationship(ctx context.Context, subjectID int64, predicate string, objectID *int64, objectValue string, confidence float64) (*Relationship, error) {
	if strings.TrimSpace(predicate) == "" {
		return nil, NewServiceError("AddRelationship", fmt.Errorf("%w: predicate is empty", ErrInvalidInput))
	}
	if objectID == nil && objectValue == "" {
		return nil, NewServiceError("AddRelationship", fmt.Errorf("%w: relationship needs an object", ErrInvalidInput))
	}
	if objectID != nil && objectValue != "" {
		return nil, NewServiceError("AddRelationship", fmt.Errorf("%w: object and value are mutually exclusive", ErrInvalidInput))
	}

	rel, err := s.graph.AddRelationship(ctx, subjectID, predicate, objectID, objectValue, confidence)
	if err != nil {
		return nil, NewServiceError("AddRelationship", err)
	}
	return fromGraphRelationship(rel), nil
}

// LogWisdom records a decision before its outcome is known.
func (s *Service) LogWisdom(ctx context.Context, actionType, reasoning string, tags []string) (*WisdomEntry, error) {
	entry, err := s.wisdom.Log(ctx, actionType, reasoning, tags)
	if err != nil {
		return nil, NewServiceError("LogWisdom", fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	return fromWisdomEntry(entry), nil
}

// RecordOutcome attaches an outcome to a logged wisdom entry.
func (s *Service) RecordOutcome(ctx context.Context, id, outcome, details string) error {
	err := s.wisdom.RecordOutcome(ctx, id, outcome, details)
	if errors.Is(err, wisdom.ErrNotFound) {
		return NewServiceError("RecordOutcome", ErrNotFound)
	}
	if errors.Is(err, wisdom.ErrInvalidOutcome) {
		return NewServiceError("RecordOutcome", fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	return NewServiceError("RecordOutcome", err)
}

// AttachFeedback attaches a user rating to a wisdom entry. An outcome need
// not have been recorded first.
func (s *Service) AttachFeedback(ctx context.Context, id string, score int, notes string) error {
	err := s.wisdom.AttachFeedback(ctx, id, score, notes)
	if errors.Is(err, wisdom.ErrNotFound) {
		return NewServiceError("AttachFeedback", ErrNotFound)
	}
	if errors.Is(err, wisdom.ErrInvalidScore) {
		return NewServiceError("AttachFeedback", fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	return NewServiceError("AttachFeedback", err)
}

// SearchWisdom retrieves past decisions relevant to a query, each annotated
// with its outcome and feedback when present.
func (s *Service) SearchWisdom(ctx context.Context, query string, limit int) ([]*WisdomEntry, error) {
	entries, err := s.wisdom.Search(ctx, query, limit)
	if err != nil {
		return nil, NewServiceError("SearchWisdom", err)
	}

	result := make([]*WisdomEntry, len(entries))
	for i, entry := range entries {
		result[i] = fromWisdomEntry(entry)
	}
	return result, nil
}

// Stats returns a point-in-time snapshot of service counters.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	memoryCount, err := s.store.Count(ctx)
	if err != nil {
		return nil, NewServiceError("Stats", err)
	}
	entityCount, err := s.graph.CountEntities(ctx)
	if err != nil {
		return nil, NewServiceError("Stats", err)
	}
	relationshipCount, err := s.graph.CountRelationships(ctx)
	if err != nil {
		return nil, NewServiceError("Stats", err)
	}
	wisdomCount, err := s.wisdom.Count(ctx)
	if err != nil {
		return nil, NewServiceError("Stats", err)
	}

	s.mu.Lock()
	searchCount := s.searchCount
	var avg float64
	if searchCount > 0 {
		avg = s.totalSearchMillis / float64(searchCount)
	}
	max := s.maxSearchMillis
	s.mu.Unlock()

	return &Stats{
		MemoryCount:       memoryCount,
		EntityCount:       int64(entityCount),
		RelationshipCount: int64(relationshipCount),
		WisdomCount:       int64(wisdomCount),
		SearchCount:       searchCount,
		AvgSearchMillis:   avg,
		MaxSearchMillis:   max,
		LatencyBudgetMs:   s.config.Server.LatencyBudgetMs,
		UptimeSeconds:     int64(time.Since(s.startTime).Seconds()),
	}, nil
}

// Health verifies the storage layer is reachable.
func (s *Service) Health(ctx context.Context) error {
	if _, err := s.store.Count(ctx); err != nil {
		return NewServiceError("Health", fmt.Errorf("%w: %v", ErrStorageOperation, err))
	}
	return nil
}

// Close releases all resources held by the service.
func (s *Service) Close() error {
	var firstErr error

	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.graphDB != nil {
		if err := s.graphDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.llm != nil {
		if err := s.llm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return NewServiceError("Close", firstErr)
}

// recordSearchLatency folds one search duration into the latency counters.
func (s *Service) recordSearchLatency(elapsed time.Duration) {
	millis := float64(elapsed.Microseconds()) / 1000.0

	s.mu.Lock()
	s.searchCount++
	s.totalSearchMillis += millis
	if millis > s.maxSearchMillis {
		s.maxSearchMillis = millis
	}
	s.mu.Unlock()
}
