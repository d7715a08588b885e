package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-gigs/internal/models"
)

func TestApplyNestedPaths(t *testing.T) {
	doc := map[string]any{"audienceTracking": map[string]any{"totalJoins": 2.0}}

	err := Apply(doc, Fields{
		"audienceTracking.totalJoins":               Increment(1),
		"audienceTracking.joinedUsers.u1.isActive":  true,
		"audienceTracking.joinedUsers.u1.firstJoin": int64(1700000000000),
	})
	require.NoError(t, err)

	at := doc["audienceTracking"].(map[string]any)
	assert.Equal(t, 3.0, at["totalJoins"])
	user := at["joinedUsers"].(map[string]any)["u1"].(map[string]any)
	assert.Equal(t, true, user["isActive"])
	assert.Equal(t, 1.7e12, user["firstJoin"])
}

func TestApplyIncrementMissingStartsAtZero(t *testing.T) {
	doc := map[string]any{}
	require.NoError(t, Apply(doc, Fields{"votes.4": Increment(2)}))
	assert.Equal(t, 2.0, doc["votes"].(map[string]any)["4"])
}

func TestApplyIncrementRejectsNonNumber(t *testing.T) {
	doc := map[string]any{"votes": "lots"}
	assert.Error(t, Apply(doc, Fields{"votes": Increment(1)}))
}

func TestApplyArrayUnionAndRemove(t *testing.T) {
	doc := map[string]any{"playedSongs": []any{1.0, 2.0}}

	require.NoError(t, Apply(doc, Fields{"playedSongs": ArrayUnion(2, 3)}))
	assert.Equal(t, []any{1.0, 2.0, 3.0}, doc["playedSongs"])

	require.NoError(t, Apply(doc, Fields{"playedSongs": ArrayRemove(1)}))
	assert.Equal(t, []any{2.0, 3.0}, doc["playedSongs"])
}

func TestApplyStructValuesAreNormalized(t *testing.T) {
	doc := map[string]any{}
	songs := []models.Song{{ID: 1, Title: "Intro", Artist: "A"}}
	require.NoError(t, Apply(doc, Fields{"queuedSongs": songs, "endReason": DeleteField()}))

	q := doc["queuedSongs"].([]any)
	require.Len(t, q, 1)
	assert.Equal(t, "Intro", q[0].(map[string]any)["title"])
	_, present := doc["endReason"]
	assert.False(t, present)
}

func TestApplyRefusesRevision(t *testing.T) {
	assert.Error(t, Apply(map[string]any{}, Fields{RevisionField: 9}))
}

func TestMatchesRangeAndMissing(t *testing.T) {
	doc := map[string]any{"createdAtMs": 500.0, "status": "live"}

	ok, err := Matches(doc, []Filter{Where("createdAtMs", OpGTE, 500), Where("createdAtMs", OpLT, 501)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Matches(doc, []Filter{Where("artistId", OpEqual, "x")})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Matches(doc, []Filter{Where("status", OpIn, "live")})
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, Translate(nil, models.ErrGigNotFound))
	assert.ErrorIs(t, Translate(ErrNotFound, models.ErrGigNotFound), models.ErrGigNotFound)
	assert.ErrorIs(t, Translate(ErrRevisionMismatch, models.ErrGigNotFound), models.ErrConcurrencyConflict)
	assert.ErrorIs(t, Translate(fmt.Errorf("%w: dial tcp: refused", ErrUnavailable), models.ErrGigNotFound), models.ErrStoreUnavailable)

	domain := errors.New("song has already been played")
	assert.Equal(t, domain, Translate(domain, models.ErrGigNotFound))
}
