package wisdom

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramlabs/engram-go/pkg/storage/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "wisdom.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func TestLogAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Log(ctx, "recommendation", "Suggested the espresso blend based on past orders", []string{"coffee"})
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "recommendation", got.ActionType)
	assert.Equal(t, []string{"coffee"}, got.Tags)
	assert.Empty(t, got.Outcome, "No outcome until one is recorded")
	assert.Nil(t, got.FeedbackScore)
}

func TestLogValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Log(ctx, "", "some reasoning", nil)
	assert.Error(t, err)

	_, err = store.Log(ctx, "recommendation", "", nil)
	assert.Error(t, err)
}

func TestRecordOutcome(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Log(ctx, "recommendation", "reasoning", nil)
	require.NoError(t, err)

	require.NoError(t, store.RecordOutcome(ctx, entry.ID, "success", "user accepted the suggestion"))

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "success", got.Outcome)
	assert.Equal(t, "user accepted the suggestion", got.OutcomeDetails)
}

func TestRecordOutcomeNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.RecordOutcome(context.Background(), "missing-id", "success", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordOutcomeInvalid(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Log(ctx, "recommendation", "reasoning", nil)
	require.NoError(t, err)

	err = store.RecordOutcome(ctx, entry.ID, "meh", "")
	assert.ErrorIs(t, err, ErrInvalidOutcome)
}

func TestFeedbackBeforeOutcome(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Log(ctx, "recommendation", "reasoning", nil)
	require.NoError(t, err)

	// Feedback does not require an outcome first.
	require.NoError(t, store.AttachFeedback(ctx, entry.ID, 4, "good call"))

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FeedbackScore)
	assert.Equal(t, 4, *got.FeedbackScore)
	assert.Empty(t, got.Outcome)
}

func TestFeedbackValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Log(ctx, "recommendation", "reasoning", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, store.AttachFeedback(ctx, entry.ID, 0, ""), ErrInvalidScore)
	assert.ErrorIs(t, store.AttachFeedback(ctx, entry.ID, 6, ""), ErrInvalidScore)
	assert.ErrorIs(t, store.AttachFeedback(ctx, "missing-id", 3, ""), ErrNotFound)
}

func TestSearchAnnotatesOutcome(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	resolved, err := store.Log(ctx, "scheduling", "Booked the dentist slot the user asked about", []string{"dentist"})
	require.NoError(t, err)
	require.NoError(t, store.RecordOutcome(ctx, resolved.ID, "success", "appointment confirmed"))

	_, err = store.Log(ctx, "scheduling", "Proposed a dentist reminder for next month", []string{"dentist"})
	require.NoError(t, err)

	results, err := store.Search(ctx, "dentist", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The entry with a recorded outcome ranks first at equal term overlap.
	assert.Equal(t, resolved.ID, results[0].ID)
	assert.Equal(t, "success", results[0].Outcome)
}

func TestSearchMatchesTags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tagged, err := store.Log(ctx, "recommendation", "Chose the quiet cafe", []string{"coffee", "noise"})
	require.NoError(t, err)
	_, err = store.Log(ctx, "recommendation", "Chose the library", []string{"books"})
	require.NoError(t, err)

	results, err := store.Search(ctx, "coffee", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, tagged.ID, results[0].ID)
}

func TestSearchEmptyQuery(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = store.Log(ctx, "a", "b", nil)
	require.NoError(t, err)

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
