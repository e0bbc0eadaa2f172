package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/husk/internal/model"
)

func TestCache_PutGetDelete(t *testing.T) {
	c := NewCache()
	key := model.Key{ScopeID: "board", SourceID: "msg-1"}

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Put(model.TrackedEntry{Key: key, RepresentationID: "r1"})
	got, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "r1", got.RepresentationID)

	c.Put(model.TrackedEntry{Key: key, RepresentationID: "r2"})
	got, _ = c.Get(key)
	assert.Equal(t, "r2", got.RepresentationID)
	assert.Equal(t, 1, c.Len())

	c.Delete(key)
	assert.Zero(t, c.Len())
}

func TestCache_SnapshotOrdered(t *testing.T) {
	c := NewCache()
	for _, src := range []string{"c", "a", "b"} {
		c.Put(model.TrackedEntry{Key: model.Key{ScopeID: "s", SourceID: src}})
	}

	snap := c.Snapshot()
	var got []string
	for _, e := range snap {
		got = append(got, e.Key.SourceID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
