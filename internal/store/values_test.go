package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/rideplanner/internal/domain"
	"github.com/pkordes/rideplanner/internal/store"
)

var commitAt = time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC)

func TestApply_ResolvesServerTimestampRecursively(t *testing.T) {
	got := store.Apply(nil, store.Fields{
		"createdAt": store.ServerTimestamp,
		"meta":      map[string]any{"at": store.ServerTimestamp},
	}, commitAt)

	assert.Equal(t, commitAt, got["createdAt"])
	assert.Equal(t, commitAt, got["meta"].(map[string]any)["at"])
}

func TestApply_AppendKeepsExistingAndOrder(t *testing.T) {
	current := store.Fields{"timelineUpdates": []any{map[string]any{"text": "left Delhi"}}}

	got := store.Apply(current, store.Fields{
		"timelineUpdates": store.Append(map[string]any{"text": "reached Chandigarh", "recordedAt": store.ServerTimestamp}),
	}, commitAt)

	list, ok := got["timelineUpdates"].([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "left Delhi", list[0].(map[string]any)["text"])
	assert.Equal(t, commitAt, list[1].(map[string]any)["recordedAt"])
	assert.Len(t, current["timelineUpdates"], 1, "current must not be modified")
}

func TestApply_AppendToMissingField(t *testing.T) {
	got := store.Apply(store.Fields{}, store.Fields{"tags": store.Append("a", "a")}, commitAt)

	assert.Equal(t, []any{"a", "a"}, got["tags"])
}

func TestApply_MergesTopLevelKeys(t *testing.T) {
	got := store.Apply(store.Fields{"title": "old", "status": "planned"}, store.Fields{"status": "ongoing"}, commitAt)

	assert.Equal(t, "old", got["title"])
	assert.Equal(t, "ongoing", got["status"])
}

func TestClone_DoesNotAlias(t *testing.T) {
	stops := []string{"Chandigarh"}
	f := store.CloneFields(store.Fields{"stops": stops})
	stops[0] = "Mandi"

	assert.Equal(t, []any{"Chandigarh"}, f["stops"])
}

func TestMatches(t *testing.T) {
	f := store.Fields{"ownerId": "u1"}

	assert.True(t, store.Matches(f, []store.Filter{{Field: "ownerId", Value: "u1"}}))
	assert.False(t, store.Matches(f, []store.Filter{{Field: "ownerId", Value: "u2"}}))
	assert.True(t, store.Matches(f, nil))
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, store.Compare(commitAt, commitAt.Add(time.Second)))
	assert.Equal(t, 1, store.Compare("b", "a"))
	assert.Equal(t, -1, store.Compare(nil, "a"))
	assert.Equal(t, 0, store.Compare("a", commitAt))
}

func TestSplit(t *testing.T) {
	coll, id, err := store.Split("rides/r1/content/c7")
	require.NoError(t, err)
	assert.Equal(t, "rides/r1/content", coll)
	assert.Equal(t, "c7", id)

	_, _, err = store.Split("rides")
	assert.Error(t, err)
	assert.Equal(t, "rides/r1", store.Doc("rides", "r1"))
}

func TestErrNotFound_MatchesDomain(t *testing.T) {
	assert.ErrorIs(t, store.ErrNotFound, domain.ErrNotFound)
}
