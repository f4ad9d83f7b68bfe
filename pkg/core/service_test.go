package core_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramlabs/engram-go/pkg/core"
)

func newTestService(t *testing.T) *core.Service {
	t.Helper()

	config := &core.Config{
		Database: core.DatabaseConfig{
			Provider: "sqlite",
			Path:     filepath.Join(t.TempDir(), "engram.db"),
		},
		Embedder: core.EmbedderConfig{
			Provider:   "hash",
			Dimensions: 128,
		},
		Server: core.ServerConfig{LatencyBudgetMs: 500},
	}

	service, err := core.NewService(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })
	return service
}

func TestStoreAndGet(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	result, err := service.Store(ctx, &core.StoreRequest{
		Content:  "User prefers oat milk in their coffee",
		Category: core.CategoryPreference,
		Subject:  "coffee",
	})
	require.NoError(t, err)
	require.False(t, result.Deduplicated)
	require.NotZero(t, result.Memory.ID)
	assert.Equal(t, 1.0, result.Memory.Confidence)
	assert.Equal(t, 1.0, result.Memory.RetentionStrength)
	assert.Greater(t, result.Memory.Importance, 0.0)

	got, err := service.Get(ctx, result.Memory.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Memory.Content, got.Content)
	assert.Equal(t, 1, got.AccessCount, "Get records the read")
}

func TestStoreIsIdempotent(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	req := &core.StoreRequest{
		Content:  "User's sister is named Maria",
		Category: core.CategoryFamily,
	}

	first, err := service.Store(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Deduplicated)

	second, err := service.Store(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.Memory.ID, second.Memory.ID, "Duplicate stores return the existing memory")

	stats, err := service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.MemoryCount, "No second record is created")
}

func TestStoreDedupScopedToCategory(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	first, err := service.Store(ctx, &core.StoreRequest{
		Content:  "Switched the household to a vegetarian diet",
		Category: core.CategoryPreference,
	})
	require.NoError(t, err)
	require.False(t, first.Deduplicated)

	// The same text under a different category carries different meaning
	// and is stored separately.
	second, err := service.Store(ctx, &core.StoreRequest{
		Content:  "Switched the household to a vegetarian diet",
		Category: core.CategoryDecision,
	})
	require.NoError(t, err)
	assert.False(t, second.Deduplicated)
	assert.NotEqual(t, first.Memory.ID, second.Memory.ID)
}

func TestStoreValidation(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Store(ctx, &core.StoreRequest{Content: "   "})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = service.Store(ctx, &core.StoreRequest{Content: "x", Category: "nonsense"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = service.Store(ctx, &core.StoreRequest{Content: "x", Confidence: 1.5})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestSearchFindsRelevantMemory(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	stored, err := service.Store(ctx, &core.StoreRequest{
		Content:  "User prefers oat milk in their coffee",
		Category: core.CategoryPreference,
	})
	require.NoError(t, err)

	_, err = service.Store(ctx, &core.StoreRequest{
		Content:  "User is rebuilding the garden shed this spring",
		Category: core.CategoryProject,
	})
	require.NoError(t, err)

	results, err := service.Search(ctx, &core.SearchRequest{Query: "oat milk coffee"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, stored.Memory.ID, results[0].ID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.Equal(t, 1, results[0].AccessCount, "Search touches returned memories")
}

func TestSearchRespectsLimit(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	contents := []string{
		"User drinks coffee every morning",
		"User bought a new coffee grinder",
		"User's favorite coffee shop is on Main Street",
		"User switched to decaf coffee after lunch",
		"User takes coffee breaks at three",
	}
	for _, content := range contents {
		_, err := service.Store(ctx, &core.StoreRequest{Content: content, Category: core.CategoryPreference})
		require.NoError(t, err)
	}

	results, err := service.Search(ctx, &core.SearchRequest{Query: "coffee", Limit: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestSupersede(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	old, err := service.Store(ctx, &core.StoreRequest{
		Content:  "User lives in Berlin near the river",
		Category: core.CategoryIdentity,
	})
	require.NoError(t, err)

	current, err := service.Store(ctx, &core.StoreRequest{
		Content:  "User lives in Munich since January",
		Category: core.CategoryIdentity,
	})
	require.NoError(t, err)

	require.NoError(t, service.Supersede(ctx, old.Memory.ID, current.Memory.ID))

	// Superseded memories stay out of search results.
	results, err := service.Search(ctx, &core.SearchRequest{Query: "lives"})
	require.NoError(t, err)
	for _, m := range results {
		assert.NotEqual(t, old.Memory.ID, m.ID)
	}

	// At most one successor.
	third, err := service.Store(ctx, &core.StoreRequest{
		Content:  "User moved to Hamburg for work",
		Category: core.CategoryIdentity,
	})
	require.NoError(t, err)
	err = service.Supersede(ctx, old.Memory.ID, third.Memory.ID)
	assert.ErrorIs(t, err, core.ErrAlreadySuperseded)
}

func TestSupersedeValidation(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	stored, err := service.Store(ctx, &core.StoreRequest{Content: "a fact", Category: core.CategoryContext})
	require.NoError(t, err)

	assert.ErrorIs(t, service.Supersede(ctx, stored.Memory.ID, stored.Memory.ID), core.ErrInvalidInput)
	assert.ErrorIs(t, service.Supersede(ctx, stored.Memory.ID, 999999), core.ErrNotFound)
	assert.ErrorIs(t, service.Supersede(ctx, 999999, stored.Memory.ID), core.ErrNotFound)
}

func TestDelete(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	stored, err := service.Store(ctx, &core.StoreRequest{Content: "temporary note", Category: core.CategoryContext})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, stored.Memory.ID))

	_, err = service.Get(ctx, stored.Memory.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.ErrorIs(t, service.Delete(ctx, stored.Memory.ID), core.ErrNotFound)
}

func TestAssembleContext(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	_, err := service.Store(ctx, &core.StoreRequest{Content: "User's name is Alex Rivera", Category: core.CategoryIdentity})
	require.NoError(t, err)
	_, err = service.Store(ctx, &core.StoreRequest{Content: "User prefers window seats on flights", Category: core.CategoryPreference})
	require.NoError(t, err)

	blob, err := service.AssembleContext(ctx, "", 5)
	require.NoError(t, err)

	assert.Contains(t, blob, "About the user")
	assert.Contains(t, blob, "Alex Rivera")
	assert.Contains(t, blob, "window seats")

	// Identity comes before preferences.
	assert.Less(t,
		strings.Index(blob, "Alex Rivera"),
		strings.Index(blob, "window seats"))
}

func TestGraphRoundTrip(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	entity, err := service.UpsertEntity(ctx, "Maria", core.EntityPerson, nil)
	require.NoError(t, err)

	_, err = service.AddRelationship(ctx, entity.ID, "lives_in", nil, "Lisbon", 1.0)
	require.NoError(t, err)

	profile, err := service.EntityProfile(ctx, entity.ID)
	require.NoError(t, err)
	assert.Len(t, profile.Relationships["lives_in"], 1)

	_, err = service.EntityProfile(ctx, 424242)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAddRelationshipValidation(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	entity, err := service.UpsertEntity(ctx, "Maria", core.EntityPerson, nil)
	require.NoError(t, err)

	_, err = service.AddRelationship(ctx, entity.ID, "", nil, "x", 1.0)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = service.AddRelationship(ctx, entity.ID, "likes", nil, "", 1.0)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	objectID := entity.ID
	_, err = service.AddRelationship(ctx, entity.ID, "likes", &objectID, "both", 1.0)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestWisdomLifecycle(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	entry, err := service.LogWisdom(ctx, "recommendation", "Suggested the espresso blend", []string{"coffee"})
	require.NoError(t, err)

	require.NoError(t, service.RecordOutcome(ctx, entry.ID, "success", "user loved it"))
	require.NoError(t, service.AttachFeedback(ctx, entry.ID, 5, "great"))

	results, err := service.SearchWisdom(ctx, "espresso", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "success", results[0].Outcome)
	require.NotNil(t, results[0].FeedbackScore)
	assert.Equal(t, 5, *results[0].FeedbackScore)

	assert.ErrorIs(t, service.RecordOutcome(ctx, "missing", "success", ""), core.ErrNotFound)
	assert.ErrorIs(t, service.RecordOutcome(ctx, entry.ID, "meh", ""), core.ErrInvalidInput)
	assert.ErrorIs(t, service.AttachFeedback(ctx, entry.ID, 9, ""), core.ErrInvalidInput)
}

func TestStatsAndHealth(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	require.NoError(t, service.Health(ctx))

	_, err := service.Store(ctx, &core.StoreRequest{Content: "User collects vinyl records", Category: core.CategoryPreference})
	require.NoError(t, err)
	_, err = service.Search(ctx, &core.SearchRequest{Query: "vinyl"})
	require.NoError(t, err)

	stats, err := service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.MemoryCount)
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.GreaterOrEqual(t, stats.MaxSearchMillis, stats.AvgSearchMillis)
	assert.Equal(t, 500, stats.LatencyBudgetMs)
}
