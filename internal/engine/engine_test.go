package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/husk/internal/model"
	"github.com/roach88/husk/internal/store"
)

func TestEngine_New_Defaults(t *testing.T) {
	e := New(Config{Domain: "board"})

	assert.Equal(t, "board", e.Domain())
	assert.Equal(t, model.ModeUpdateInPlace, e.mode)
	assert.Equal(t, DefaultTimeout, e.timeout)
	assert.Nil(t, e.resolver)
	assert.NotNil(t, e.Locks())
}

func TestEngine_BelowThresholdIsNoOp(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	for count := 0; count < 4; count++ {
		res, err := te.Reconcile(ctx, countEvent("board", "msg-1", count))
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoOp, res.Outcome)
	}

	creates, _, _ := te.transport.counts()
	assert.Zero(t, creates)
	assert.Empty(t, checkpoints(t, te))
}

func TestEngine_CrossingThresholdCreates(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	res, err := te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "r1", res.RepresentationID)
	assert.Empty(t, res.PreviousID)

	content, ok := te.transport.content("r1")
	require.True(t, ok)
	assert.Equal(t, "count 4", content.Text)

	tag, err := model.DecodeTag(content.Tag)
	require.NoError(t, err)
	assert.True(t, tag.Matches("board", "msg-1"))

	entry, ok := te.Entry(model.Key{ScopeID: "board", SourceID: "msg-1"})
	require.True(t, ok)
	assert.Equal(t, "r1", entry.RepresentationID)
	assert.Equal(t, "guild", entry.OwnerScopeID)
	assert.Equal(t, model.Content{Text: "count 4"}.MustDigest(), entry.Digest)

	cps := checkpoints(t, te)
	require.Len(t, cps, 1)
	assert.Equal(t, entry.Checkpoint(), cps[0])
}

func TestEngine_Idempotent(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()
	ev := countEvent("board", "msg-1", 5)

	_, err := te.Reconcile(ctx, ev)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err := te.Reconcile(ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoOp, res.Outcome)
		assert.Equal(t, "r1", res.RepresentationID)
	}

	creates, updates, deletes := te.transport.counts()
	assert.Equal(t, 1, creates)
	assert.Zero(t, updates)
	assert.Zero(t, deletes)
}

func TestEngine_CountChangeUpdatesInPlace(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	_, err := te.Reconcile(ctx, countEvent("board", "msg-1", 5))
	require.NoError(t, err)

	res, err := te.Reconcile(ctx, countEvent("board", "msg-1", 6))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "r1", res.RepresentationID)

	content, _ := te.transport.content("r1")
	assert.Equal(t, "count 6", content.Text)
	assert.NotEmpty(t, content.Tag, "updates keep the identity tag")
}

func TestEngine_DroppingBelowThresholdDeletes(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	_, err := te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)

	res, err := te.Reconcile(ctx, countEvent("board", "msg-1", 3))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, res.Outcome)
	assert.Equal(t, "r1", res.PreviousID)
	assert.Zero(t, te.transport.live())

	cps := checkpoints(t, te)
	require.Len(t, cps, 1)
	assert.Empty(t, cps[0].RepresentationID)
	assert.Empty(t, cps[0].Digest)

	// Back over the threshold: a new representation.
	res, err = te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "r2", res.RepresentationID)
}

func TestEngine_SourceRemovedSkipsRenderer(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	_, err := te.Reconcile(ctx, countEvent("board", "msg-1", 9))
	require.NoError(t, err)

	te.renderer = RendererFunc(func(context.Context, SourceState) (model.Content, bool, error) {
		t.Fatal("renderer called for a removed source")
		return model.Content{}, false, nil
	})

	res, err := te.Reconcile(ctx, model.Event{
		Key:  model.Key{ScopeID: "board", SourceID: "msg-1"},
		Kind: model.KindSourceRemoved,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, res.Outcome)
	assert.Zero(t, te.transport.live())
}

func TestEngine_UpdateOfVanishedRepresentationRecreates(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	_, err := te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)
	require.NoError(t, te.transport.Delete(ctx, "board", "r1"))

	res, err := te.Reconcile(ctx, countEvent("board", "msg-1", 5))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "r2", res.RepresentationID)
	assert.Equal(t, "r1", res.PreviousID)
	assert.True(t, res.Replaced())
}

func TestEngine_DeleteOfVanishedRepresentationSucceeds(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	_, err := te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)
	require.NoError(t, te.transport.Delete(ctx, "board", "r1"))

	res, err := te.Reconcile(ctx, countEvent("board", "msg-1", 0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, res.Outcome)
}

func TestEngine_TransportFailureLeavesEntryUnchanged(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	_, err := te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)
	before, _ := te.Entry(model.Key{ScopeID: "board", SourceID: "msg-1"})

	te.transport.failUpdate = errors.New("gateway unavailable")
	res, err := te.Reconcile(ctx, countEvent("board", "msg-1", 5))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, IsTransportError(err))

	after, _ := te.Entry(model.Key{ScopeID: "board", SourceID: "msg-1"})
	assert.Equal(t, before, after)

	// The next event retries from the unchanged entry.
	res, err = te.Reconcile(ctx, countEvent("board", "msg-1", 5))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
}

func TestEngine_RenderFailure(t *testing.T) {
	te := newBoardEngine(t)
	te.renderer = RendererFunc(func(context.Context, SourceState) (model.Content, bool, error) {
		return model.Content{}, false, errors.New("source fetch failed")
	})

	res, err := te.Reconcile(context.Background(), countEvent("board", "msg-1", 4))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ErrCodeRender, ErrorCodeOf(err))
	assert.Zero(t, te.transport.live())
}

func TestEngine_InvalidEvent(t *testing.T) {
	te := newBoardEngine(t)

	res, err := te.Reconcile(context.Background(), countEvent("", "msg-1", 4))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, ErrCodeInvalidEvent, ErrorCodeOf(err))
}

func TestEngine_TimeoutWaitingForLock(t *testing.T) {
	te := newBoardEngine(t, WithTimeout(20*time.Millisecond))
	ev := countEvent("board", "msg-1", 4)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = te.Locks().With(context.Background(), ev.Key.String(), func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	res, err := te.Reconcile(context.Background(), ev)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, IsTimeout(err))

	_, ok := te.Entry(ev.Key)
	assert.False(t, ok)
}

func TestEngine_ConcurrentSameKeyCreatesOnce(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	outcomes := make([]Outcome, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := te.Reconcile(ctx, countEvent("board", "msg-1", 7))
			assert.NoError(t, err)
			outcomes[i] = res.Outcome
		}(i)
	}
	wg.Wait()

	created := 0
	for _, o := range outcomes {
		if o == OutcomeCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, te.transport.live())
	assert.Zero(t, te.Locks().Len(), "idle lock handles are reclaimed")
}

func TestEngine_ConcurrentDifferentKeys(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, src := range []string{"a", "b", "c", "d", "e", "f"} {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			res, err := te.Reconcile(ctx, countEvent("board", src, 4))
			assert.NoError(t, err)
			assert.Equal(t, OutcomeCreated, res.Outcome)
		}(src)
	}
	wg.Wait()

	assert.Equal(t, 6, te.transport.live())
	assert.Len(t, te.Entries(), 6)
}

func TestEngine_ColdCacheRecoveryFromCheckpoints(t *testing.T) {
	first := newBoardEngine(t)
	ctx := context.Background()

	_, err := first.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)

	// Restart without the resolver: only the checkpoint knows about r1.
	second := newTestEngine(t, "board", model.ModeUpdateInPlace, thresholdRenderer(4), first.transport, first.backend)
	n, err := second.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := second.Reconcile(ctx, countEvent("board", "msg-1", 5))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "r1", res.RepresentationID)
	assert.Equal(t, 1, first.transport.live())
}

func TestEngine_ColdCacheRecoveryFromResolver(t *testing.T) {
	first := newBoardEngine(t)
	ctx := context.Background()

	_, err := first.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)
	first.transport.post("board", "")
	first.transport.post("board", "not-a-tag")

	// Restart with an empty store: only the tag on r1 identifies it.
	second := newTestEngine(t, "board", model.ModeUpdateInPlace, thresholdRenderer(4),
		first.transport, store.NewMemory(), WithResolver(DefaultLookback))

	res, err := second.Reconcile(ctx, countEvent("board", "msg-1", 5))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "r1", res.RepresentationID)

	creates, _, _ := first.transport.counts()
	assert.Equal(t, 1, creates, "no duplicate representation")
}

func TestEngine_ResolverIgnoresOtherSources(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()

	_, err := te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)

	res, err := te.Reconcile(ctx, countEvent("board", "msg-2", 4))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "r2", res.RepresentationID)
}

func TestEngine_ResolverListFailure(t *testing.T) {
	te := newBoardEngine(t)
	te.transport.failList = errors.New("rate limited")

	res, err := te.Reconcile(context.Background(), countEvent("board", "msg-1", 4))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, IsTransportError(err))
	assert.Zero(t, te.transport.live())
}

func TestEngine_CheckpointFailureWithResolverRecovers(t *testing.T) {
	te := newBoardEngine(t)
	ctx := context.Background()
	key := model.Key{ScopeID: "board", SourceID: "msg-1"}

	te.backend.FailNext("upsert", 1)
	res, err := te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.Error(t, err)
	assert.True(t, IsCheckpointError(err))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "r1", res.RepresentationID, "the remote mutation is reported")

	_, ok := te.Entry(key)
	assert.False(t, ok, "cache must not run ahead of the checkpoint")
	assert.Empty(t, checkpoints(t, te))

	// Next event finds r1 by its tag instead of posting a duplicate.
	res, err = te.Reconcile(ctx, countEvent("board", "msg-1", 5))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, "r1", res.RepresentationID)
	assert.Equal(t, 1, te.transport.live())

	cps := checkpoints(t, te)
	require.Len(t, cps, 1)
	assert.Equal(t, "r1", cps[0].RepresentationID)
}

func TestEngine_CheckpointFailureWithoutResolverRestoresEntry(t *testing.T) {
	te := newStickyEngine(t)
	ctx := context.Background()
	key := model.Key{ScopeID: "chan", SourceID: "chan"}

	_, err := te.Configure(ctx, key, "guild", "be nice")
	require.NoError(t, err)
	res, err := te.Reconcile(ctx, activityEvent("chan", "u1"))
	require.NoError(t, err)
	require.Equal(t, "r1", res.RepresentationID)
	before, _ := te.Entry(key)

	te.backend.FailNext("upsert", 1)
	_, err = te.Reconcile(ctx, activityEvent("chan", "u2"))
	require.Error(t, err)
	assert.True(t, IsCheckpointError(err))

	after, ok := te.Entry(key)
	require.True(t, ok)
	assert.Equal(t, before, after)
}

func TestEngine_RepostMovesRepresentation(t *testing.T) {
	te := newStickyEngine(t)
	ctx := context.Background()
	key := model.Key{ScopeID: "chan", SourceID: "chan"}

	_, err := te.Configure(ctx, key, "guild", "be nice")
	require.NoError(t, err)

	res, err := te.Reconcile(ctx, activityEvent("chan", ""))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "r1", res.RepresentationID)

	te.transport.post("chan", "")
	res, err = te.Reconcile(ctx, activityEvent("chan", "u2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, "r3", res.RepresentationID)
	assert.Equal(t, "r1", res.PreviousID)
	assert.True(t, res.Replaced())

	recent, err := te.transport.ListRecent(ctx, "chan", 1)
	require.NoError(t, err)
	assert.Equal(t, "r3", recent[0].ID, "sticky is the newest message")
	assert.Equal(t, 2, te.transport.live())
}

func TestEngine_RepostIgnoresOwnRepresentation(t *testing.T) {
	te := newStickyEngine(t)
	ctx := context.Background()
	key := model.Key{ScopeID: "chan", SourceID: "chan"}

	_, err := te.Configure(ctx, key, "guild", "be nice")
	require.NoError(t, err)
	res, err := te.Reconcile(ctx, activityEvent("chan", ""))
	require.NoError(t, err)

	res, err = te.Reconcile(ctx, activityEvent("chan", res.RepresentationID))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, res.Outcome)
	assert.Equal(t, "r1", res.RepresentationID)

	creates, _, deletes := te.transport.counts()
	assert.Equal(t, 1, creates)
	assert.Zero(t, deletes)
}

func TestEngine_Configure_KeepsRepresentation(t *testing.T) {
	te := newStickyEngine(t)
	ctx := context.Background()
	key := model.Key{ScopeID: "chan", SourceID: "chan"}

	_, err := te.Configure(ctx, key, "guild", "v1")
	require.NoError(t, err)
	_, err = te.Reconcile(ctx, activityEvent("chan", ""))
	require.NoError(t, err)

	entry, err := te.Configure(ctx, key, "guild", "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", entry.PinnedText)
	assert.Equal(t, "r1", entry.RepresentationID)
	assert.Equal(t, model.ModeRepost, entry.Mode)

	cps := checkpoints(t, te)
	require.Len(t, cps, 1)
	assert.Equal(t, "v2", cps[0].PinnedText)
	assert.Equal(t, "r1", cps[0].RepresentationID)
}

func TestEngine_Configure_RejectsIncompleteKey(t *testing.T) {
	te := newStickyEngine(t)

	_, err := te.Configure(context.Background(), model.Key{ScopeID: "chan"}, "guild", "x")
	assert.Equal(t, ErrCodeInvalidEvent, ErrorCodeOf(err))
}

func TestEngine_Configure_CheckpointFailure(t *testing.T) {
	te := newStickyEngine(t)
	te.backend.FailNext("upsert", 1)

	_, err := te.Configure(context.Background(), model.Key{ScopeID: "chan", SourceID: "chan"}, "guild", "x")
	assert.True(t, IsCheckpointError(err))
	assert.Empty(t, te.Entries())
}

func TestEngine_Remove(t *testing.T) {
	te := newStickyEngine(t)
	ctx := context.Background()
	key := model.Key{ScopeID: "chan", SourceID: "chan"}

	_, err := te.Configure(ctx, key, "guild", "be nice")
	require.NoError(t, err)
	_, err = te.Reconcile(ctx, activityEvent("chan", ""))
	require.NoError(t, err)

	res, err := te.Remove(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeleted, res.Outcome)
	assert.Equal(t, "r1", res.PreviousID)
	assert.Zero(t, te.transport.live())
	assert.Empty(t, te.Entries())
	assert.Empty(t, checkpoints(t, te))

	// Removing an untracked key is a NoOp.
	res, err = te.Remove(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoOp, res.Outcome)
}

func TestEngine_Remove_CheckpointFailureKeepsEverything(t *testing.T) {
	te := newStickyEngine(t)
	ctx := context.Background()
	key := model.Key{ScopeID: "chan", SourceID: "chan"}

	_, err := te.Configure(ctx, key, "guild", "be nice")
	require.NoError(t, err)
	_, err = te.Reconcile(ctx, activityEvent("chan", ""))
	require.NoError(t, err)

	te.backend.FailNext("clear", 1)
	res, err := te.Remove(ctx, key)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, IsCheckpointError(err))
	assert.Equal(t, 1, te.transport.live())
	assert.Len(t, te.Entries(), 1)
}

func TestEngine_MetricsRecordOutcomes(t *testing.T) {
	locks := NewKeyLocks()
	m, err := NewMetrics(nil, locks)
	require.NoError(t, err)

	te := newBoardEngine(t, WithMetrics(m), WithKeyLocks(locks))
	ctx := context.Background()

	_, err = te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)
	_, err = te.Reconcile(ctx, countEvent("board", "msg-1", 4))
	require.NoError(t, err)

	assert.Equal(t, 1.0, counterValue(t, m.Outcomes, "board", "created"))
	assert.Equal(t, 1.0, counterValue(t, m.Outcomes, "board", "noop"))
	assert.Equal(t, 1.0, counterValue(t, m.ResolverScans, "board", "miss"))
}

// stallingTransport blocks create or update until the cycle's context ends.
type stallingTransport struct {
	*fakeTransport
	stallCreate bool
	stallUpdate bool
}

func (s *stallingTransport) Create(ctx context.Context, scopeID string, content model.Content) (string, error) {
	if s.stallCreate {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.fakeTransport.Create(ctx, scopeID, content)
}

func (s *stallingTransport) Update(ctx context.Context, scopeID, id string, content model.Content) error {
	if s.stallUpdate {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.fakeTransport.Update(ctx, scopeID, id, content)
}

// stallingCheckpoints blocks upserts until the cycle's context ends.
type stallingCheckpoints struct {
	Checkpointer
	stall bool
}

func (s *stallingCheckpoints) Upsert(ctx context.Context, cp model.Checkpoint) error {
	if s.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.Checkpointer.Upsert(ctx, cp)
}

func newStallingEngine(tr *stallingTransport, cps *stallingCheckpoints) *Engine {
	return New(Config{
		Domain:      "board",
		Mode:        model.ModeUpdateInPlace,
		Renderer:    thresholdRenderer(4),
		Transport:   tr,
		Checkpoints: cps,
	}, WithIDGenerator(NewFixedGenerator()), WithResolver(DefaultLookback), WithTimeout(20*time.Millisecond))
}

func TestEngine_TimeoutInsideCycle(t *testing.T) {
	ctx := context.Background()
	key := model.Key{ScopeID: "board", SourceID: "msg-1"}

	t.Run("create", func(t *testing.T) {
		tr := &stallingTransport{fakeTransport: newFakeTransport(), stallCreate: true}
		e := newStallingEngine(tr, &stallingCheckpoints{Checkpointer: store.NewMemory().Checkpoints("board")})

		res, err := e.Reconcile(ctx, countEvent("board", "msg-1", 4))
		require.Error(t, err)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.True(t, IsTimeout(err))

		_, ok := e.Entry(key)
		assert.False(t, ok)
		assert.Zero(t, e.Locks().Len())
	})

	t.Run("update", func(t *testing.T) {
		tr := &stallingTransport{fakeTransport: newFakeTransport()}
		e := newStallingEngine(tr, &stallingCheckpoints{Checkpointer: store.NewMemory().Checkpoints("board")})

		_, err := e.Reconcile(ctx, countEvent("board", "msg-1", 4))
		require.NoError(t, err)
		before, ok := e.Entry(key)
		require.True(t, ok)

		tr.stallUpdate = true
		res, err := e.Reconcile(ctx, countEvent("board", "msg-1", 6))
		require.Error(t, err)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.True(t, IsTimeout(err))

		after, ok := e.Entry(key)
		require.True(t, ok)
		assert.Equal(t, before, after)
		assert.Zero(t, e.Locks().Len())

		tr.stallUpdate = false
		res, err = e.Reconcile(ctx, countEvent("board", "msg-1", 6))
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, res.Outcome)
	})

	t.Run("checkpoint", func(t *testing.T) {
		tr := &stallingTransport{fakeTransport: newFakeTransport()}
		cps := &stallingCheckpoints{Checkpointer: store.NewMemory().Checkpoints("board"), stall: true}
		e := newStallingEngine(tr, cps)

		res, err := e.Reconcile(ctx, countEvent("board", "msg-1", 4))
		require.Error(t, err)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.True(t, IsTimeout(err))

		_, ok := e.Entry(key)
		assert.False(t, ok, "cache never runs ahead of the checkpoint store")
		assert.Zero(t, e.Locks().Len())

		// The resolver finds the representation created before the stall.
		cps.stall = false
		res, err = e.Reconcile(ctx, countEvent("board", "msg-1", 5))
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, res.Outcome)
		assert.Equal(t, 1, tr.live())
	})
}
