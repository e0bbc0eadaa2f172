package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyString(t *testing.T) {
	k := Key{ScopeID: "832767334904102982", SourceID: "99"}
	assert.Equal(t, "832767334904102982/99", k.String())
	assert.True(t, k.Valid())
	assert.False(t, Key{ScopeID: "a"}.Valid())
}

func TestModeRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeUpdateInPlace, ModeRepost} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMode("sideways")
	assert.Error(t, err)
}

func TestEventKindRoundTrip(t *testing.T) {
	for _, k := range []EventKind{KindCountChanged, KindSourceRemoved, KindNewActivity} {
		parsed, err := ParseEventKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestEventValidate(t *testing.T) {
	key := Key{ScopeID: "board", SourceID: "1"}

	assert.NoError(t, Event{Key: key, Kind: KindCountChanged, Count: 3}.Validate())
	assert.NoError(t, Event{Key: key, Kind: KindSourceRemoved}.Validate())
	assert.Error(t, Event{Key: key, Kind: KindCountChanged, Count: -1}.Validate())
	assert.Error(t, Event{Key: Key{SourceID: "1"}, Kind: KindNewActivity}.Validate())
	assert.Error(t, Event{Key: key}.Validate())
}

func TestCheckpointEntryConversion(t *testing.T) {
	e := TrackedEntry{
		Key:              Key{ScopeID: "c", SourceID: "c"},
		OwnerScopeID:     "g",
		Mode:             ModeRepost,
		PinnedText:       "read the rules",
		RepresentationID: "m1",
	}
	assert.Equal(t, e, e.Checkpoint().Entry())
	assert.True(t, e.HasRepresentation())
}
