package graph

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
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func TestCanonicalName(t *testing.T) {
	assert.Equal(t, "dr. smith", CanonicalName("Dr.  Smith"))
	assert.Equal(t, "blue bottle", CanonicalName("  Blue   Bottle  "))
	assert.Equal(t, "", CanonicalName("   "))
}

func TestUpsertEntityDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertEntity(ctx, "Dr. Smith", "person", nil)
	require.NoError(t, err)

	// Different surface form, same canonical identity.
	second, err := store.UpsertEntity(ctx, "dr.  smith", "person", nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Dr. Smith", second.Name, "The original display name is kept")

	// Same name, different type is a different entity.
	other, err := store.UpsertEntity(ctx, "Dr. Smith", "project", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestUpsertEntityMergesMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertEntity(ctx, "Acme", "org", map[string]interface{}{"industry": "robotics"})
	require.NoError(t, err)

	merged, err := store.UpsertEntity(ctx, "Acme", "org", map[string]interface{}{"hq": "Portland"})
	require.NoError(t, err)

	assert.Equal(t, "robotics", merged.Metadata["industry"])
	assert.Equal(t, "Portland", merged.Metadata["hq"])
}

func TestAddRelationshipVersioning(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.UpsertEntity(ctx, "User", "person", nil)
	require.NoError(t, err)

	first, err := store.AddRelationship(ctx, user.ID, "favorite_coffee_shop", nil, "Blue Bottle", 1.0)
	require.NoError(t, err)
	assert.Nil(t, first.ValidTo)

	// Same object: no-op returning the existing relationship.
	same, err := store.AddRelationship(ctx, user.ID, "favorite_coffee_shop", nil, "Blue Bottle", 1.0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, same.ID)

	// New object: old interval closes, new one opens.
	second, err := store.AddRelationship(ctx, user.ID, "favorite_coffee_shop", nil, "Sightglass", 1.0)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	history, err := store.History(ctx, user.ID, "favorite_coffee_shop")
	require.NoError(t, err)
	require.Len(t, history, 2)

	var open, closed int
	for _, rel := range history {
		if rel.ValidTo == nil {
			open++
			assert.Equal(t, "Sightglass", rel.ObjectValue)
		} else {
			closed++
			assert.Equal(t, "Blue Bottle", rel.ObjectValue)
		}
	}
	assert.Equal(t, 1, open, "Exactly one currently valid relationship per predicate value")
	assert.Equal(t, 1, closed)
}

func TestProfile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.UpsertEntity(ctx, "User", "person", nil)
	require.NoError(t, err)
	acme, err := store.UpsertEntity(ctx, "Acme", "org", nil)
	require.NoError(t, err)

	_, err = store.AddRelationship(ctx, user.ID, "works_at", &acme.ID, "", 1.0)
	require.NoError(t, err)
	_, err = store.AddRelationship(ctx, user.ID, "prefers_drink", nil, "tea", 1.0)
	require.NoError(t, err)

	profile, err := store.Profile(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, user.ID, profile.Entity.ID)
	assert.Len(t, profile.Relationships["works_at"], 1)
	assert.Len(t, profile.Relationships["prefers_drink"], 1)

	require.Len(t, profile.Related, 1)
	assert.Equal(t, acme.ID, profile.Related[0].ID)
}

func TestProfileExcludesClosedRelationships(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.UpsertEntity(ctx, "User", "person", nil)
	require.NoError(t, err)

	_, err = store.AddRelationship(ctx, user.ID, "lives_in", nil, "Berlin", 1.0)
	require.NoError(t, err)
	_, err = store.AddRelationship(ctx, user.ID, "lives_in", nil, "Munich", 1.0)
	require.NoError(t, err)

	profile, err := store.Profile(ctx, user.ID)
	require.NoError(t, err)

	rels := profile.Relationships["lives_in"]
	require.Len(t, rels, 1, "Only the currently valid relationship appears in the profile")
	assert.Equal(t, "Munich", rels[0].ObjectValue)
}

func TestGetEntityNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetEntity(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchEntities(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.UpsertEntity(ctx, "Blue Bottle", "org", nil)
	require.NoError(t, err)
	_, err = store.UpsertEntity(ctx, "Bluegrass Festival", "event", nil)
	require.NoError(t, err)

	all, err := store.SearchEntities(ctx, "blue", "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	orgs, err := store.SearchEntities(ctx, "blue", "org", 10)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Blue Bottle", orgs[0].Name)
}

func TestGraphBoost(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	hub, err := store.UpsertEntity(ctx, "Maria", "person", nil)
	require.NoError(t, err)
	_, err = store.UpsertEntity(ctx, "Nobody", "person", nil)
	require.NoError(t, err)

	for _, predicate := range []string{"sister_of", "lives_in", "works_at"} {
		_, err = store.AddRelationship(ctx, hub.ID, predicate, nil, predicate+"-value", 1.0)
		require.NoError(t, err)
	}

	boost, err := store.GraphBoost(ctx, []string{"Maria", "Nobody", "Unknown"})
	require.NoError(t, err)

	assert.Greater(t, boost["Maria"], 0.0, "Connected entities get a boost")
	assert.Equal(t, 0.0, boost["Nobody"], "Entities without relationships score zero")
	assert.Equal(t, 0.0, boost["Unknown"], "Unresolved names score zero")
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.UpsertEntity(ctx, "User", "person", nil)
	require.NoError(t, err)
	_, err = store.AddRelationship(ctx, user.ID, "likes", nil, "hiking", 1.0)
	require.NoError(t, err)

	entities, err := store.CountEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, entities)

	relationships, err := store.CountRelationships(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, relationships)
}
