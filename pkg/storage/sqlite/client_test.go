package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramlabs/engram-go/pkg/storage"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(&Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testMemory(id int64, content, category string, embedding []float64) *storage.Memory {
	return &storage.Memory{
		ID:                id,
		Content:           content,
		Category:          category,
		Confidence:        1.0,
		Importance:        0.5,
		RetentionStrength: 1.0,
		Embedding:         embedding,
	}
}

func TestInsertAndGet(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	memory := testMemory(1, "User prefers dark roast coffee", "preference", []float64{0.1, 0.2, 0.3})
	memory.Subject = "coffee"
	memory.Metadata = map[string]interface{}{"origin": "test"}

	require.NoError(t, client.Insert(ctx, memory))

	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "User prefers dark roast coffee", got.Content)
	assert.Equal(t, "preference", got.Category)
	assert.Equal(t, "coffee", got.Subject)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, got.Embedding)
	assert.Equal(t, "test", got.Metadata["origin"])
	assert.Nil(t, got.SupersededBy)
	assert.Nil(t, got.LastAccessedAt)
}

func TestGetNotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Get(context.Background(), 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSearchRanksBySimilarity(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, testMemory(1, "about coffee", "preference", []float64{1, 0, 0})))
	require.NoError(t, client.Insert(ctx, testMemory(2, "about tea", "preference", []float64{0, 1, 0})))
	require.NoError(t, client.Insert(ctx, testMemory(3, "mixed", "preference", []float64{0.7, 0.7, 0})))

	results, err := client.Search(ctx, []float64{1, 0, 0}, &storage.SearchOptions{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, int64(1), results[0].ID)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearchCategoryFilter(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, testMemory(1, "a", "preference", []float64{1, 0})))
	require.NoError(t, client.Insert(ctx, testMemory(2, "b", "identity", []float64{1, 0})))

	results, err := client.Search(ctx, []float64{1, 0}, &storage.SearchOptions{Category: "identity"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
}

func TestSearchText(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, testMemory(1, "User prefers oat milk in coffee", "preference", []float64{1})))
	require.NoError(t, client.Insert(ctx, testMemory(2, "User works at a bakery", "project", []float64{1})))

	results, err := client.SearchText(ctx, []string{"coffee", "milk"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, 1.0, results[0].Score, "Both terms match")
}

func TestTouchReinforces(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, testMemory(1, "content", "context", []float64{1})))

	now := time.Now()
	require.NoError(t, client.Touch(ctx, 1, now, 0.8))

	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AccessCount)
	assert.Equal(t, 0.8, got.RetentionStrength)
	require.NotNil(t, got.LastAccessedAt)
}

func TestMarkSupersededOnce(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, testMemory(1, "old fact", "identity", []float64{1})))
	require.NoError(t, client.Insert(ctx, testMemory(2, "new fact", "identity", []float64{1})))
	require.NoError(t, client.Insert(ctx, testMemory(3, "newer fact", "identity", []float64{1})))

	require.NoError(t, client.MarkSuperseded(ctx, 1, 2))

	// A memory has at most one successor.
	err := client.MarkSuperseded(ctx, 1, 3)
	assert.ErrorIs(t, err, storage.ErrAlreadySuperseded)

	// Missing memories report not-found, not already-superseded.
	err = client.MarkSuperseded(ctx, 999, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.SupersededBy)
	assert.Equal(t, int64(2), *got.SupersededBy)
}

func TestSupersededExcludedFromSearch(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, testMemory(1, "User lives in Berlin", "identity", []float64{1, 0})))
	require.NoError(t, client.Insert(ctx, testMemory(2, "User lives in Munich", "identity", []float64{1, 0})))
	require.NoError(t, client.MarkSuperseded(ctx, 1, 2))

	results, err := client.Search(ctx, []float64{1, 0}, nil)
	require.NoError(t, err)
	for _, m := range results {
		assert.NotEqual(t, int64(1), m.ID, "Superseded memories stay out of search")
	}

	textResults, err := client.SearchText(ctx, []string{"lives"}, nil)
	require.NoError(t, err)
	for _, m := range textResults {
		assert.NotEqual(t, int64(1), m.ID)
	}

	// Opt-in includes them again.
	all, err := client.Search(ctx, []float64{1, 0}, &storage.SearchOptions{IncludeSuperseded: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDelete(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Insert(ctx, testMemory(1, "content", "context", []float64{1})))
	require.NoError(t, client.Delete(ctx, 1))

	_, err := client.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, client.Delete(ctx, 1), storage.ErrNotFound)
}

func TestListOrdersByImportance(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	low := testMemory(1, "low", "identity", []float64{1})
	low.Importance = 0.2
	high := testMemory(2, "high", "identity", []float64{1})
	high.Importance = 0.9

	require.NoError(t, client.Insert(ctx, low))
	require.NoError(t, client.Insert(ctx, high))

	results, err := client.List(ctx, &storage.ListOptions{Category: "identity"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].ID)
}

func TestCount(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	count, err := client.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, client.Insert(ctx, testMemory(1, "a", "context", []float64{1})))
	require.NoError(t, client.Insert(ctx, testMemory(2, "b", "context", []float64{1})))

	count, err = client.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
