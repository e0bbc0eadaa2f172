package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/husk/internal/model"
)

// DefaultTimeout bounds one reconciliation cycle, lock wait included.
const DefaultTimeout = 10 * time.Second

// Renderer computes desired content for a source state.
// present=false means "no representation should exist".
type Renderer interface {
	Render(ctx context.Context, state SourceState) (content model.Content, present bool, err error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, state SourceState) (model.Content, bool, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, state SourceState) (model.Content, bool, error) {
	return f(ctx, state)
}

// SourceState is what a renderer sees: the triggering event and the
// tracked entry as of the start of the cycle.
type SourceState struct {
	Event model.Event
	Entry model.TrackedEntry
}

// Recent is one entry of a scope's recent representation listing.
type Recent struct {
	ID  string
	Tag string
}

// Transport performs side effects on representations.
//
// Delete must return an error wrapping ErrNotFound when the representation
// is already gone; Update should do the same. ListRecent returns newest
// first.
type Transport interface {
	Create(ctx context.Context, scopeID string, content model.Content) (id string, err error)
	Update(ctx context.Context, scopeID, id string, content model.Content) error
	Delete(ctx context.Context, scopeID, id string) error
	ListRecent(ctx context.Context, scopeID string, limit int) ([]Recent, error)
}

// Checkpointer is durable storage for tracked entries.
type Checkpointer interface {
	Load(ctx context.Context) ([]model.Checkpoint, error)
	Upsert(ctx context.Context, cp model.Checkpoint) error
	Clear(ctx context.Context, key model.Key) error
}

// Outcome is the result category of a reconciliation cycle.
type Outcome int

const (
	OutcomeNoOp Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeDeleted
	OutcomeFailed
)

// String returns the lower-case outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoOp:
		return "noop"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeDeleted:
		return "deleted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result describes what a reconciliation cycle did.
type Result struct {
	Outcome Outcome

	// RepresentationID is the live representation after the cycle, if any.
	RepresentationID string

	// PreviousID is the representation removed by this cycle: the deleted
	// one, or the one replaced by a repost.
	PreviousID string
}

// Replaced reports whether the cycle swapped one representation for another.
func (r Result) Replaced() bool {
	return r.Outcome == OutcomeCreated && r.PreviousID != ""
}

// Config holds the collaborators of an Engine.
type Config struct {
	// Domain names the tracked domain ("board", "sticky"). It labels logs
	// and metrics and is the kind encoded in identity tags.
	Domain string

	// Mode is assigned to entries first seen by this engine.
	Mode model.Mode

	Renderer    Renderer
	Transport   Transport
	Checkpoints Checkpointer
}

// Engine reconciles tracked entries of one domain.
//
// Thread-safety model:
//   - Reconcile, Configure, Remove: safe from any goroutine; serialized per key
//   - Load: call once at startup before events flow
type Engine struct {
	domain      string
	mode        model.Mode
	renderer    Renderer
	transport   Transport
	checkpoints Checkpointer

	cache    *Cache
	locks    *KeyLocks
	resolver *Resolver
	ids      IDGenerator
	metrics  *Metrics
	timeout  time.Duration
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithTimeout bounds every cycle. Default: DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithResolver enables the identity resolver with the given lookback
// window. Use it for domains where cache staleness must not produce
// duplicates (the board).
func WithResolver(lookback int) Option {
	return func(e *Engine) {
		e.resolver = NewResolver(e.transport, e.domain, lookback)
	}
}

// WithMetrics records outcomes and resolver scans.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithIDGenerator overrides the cycle id generator (tests).
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithKeyLocks shares a lock table between engines.
func WithKeyLocks(l *KeyLocks) Option {
	return func(e *Engine) {
		e.locks = l
	}
}

// New creates an Engine. Options are applied in order.
func New(cfg Config, opts ...Option) *Engine {
	mode := cfg.Mode
	if mode == 0 {
		mode = model.ModeUpdateInPlace
	}

	e := &Engine{
		domain:      cfg.Domain,
		mode:        mode,
		renderer:    cfg.Renderer,
		transport:   cfg.Transport,
		checkpoints: cfg.Checkpoints,
		cache:       NewCache(),
		locks:       NewKeyLocks(),
		ids:         UUIDv7Generator{},
		timeout:     DefaultTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.resolver != nil {
		e.resolver.metrics = e.metrics
	}
	return e
}

// Load fills the cache from the checkpoint store. Returns the number of
// entries loaded.
func (e *Engine) Load(ctx context.Context) (int, error) {
	records, err := e.checkpoints.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load checkpoints: %w", err)
	}
	for _, rec := range records {
		entry := rec.Entry()
		if entry.Mode == 0 {
			entry.Mode = e.mode
		}
		e.cache.Put(entry)
	}
	slog.Info("checkpoints loaded", "domain", e.domain, "count", len(records))
	return len(records), nil
}

// Entry returns the cached entry for key.
func (e *Engine) Entry(key model.Key) (model.TrackedEntry, bool) {
	return e.cache.Get(key)
}

// Entries returns all cached entries ordered by key.
func (e *Engine) Entries() []model.TrackedEntry {
	return e.cache.Snapshot()
}

// Domain returns the engine's domain name.
func (e *Engine) Domain() string {
	return e.domain
}

// Locks returns the engine's key lock table.
func (e *Engine) Locks() *KeyLocks {
	return e.locks
}

// Reconcile converges the representation of ev.Key to the state ev implies.
//
// The returned error is non-nil exactly when the outcome is OutcomeFailed;
// it is always a *ReconcileError. Failures never leave the cache ahead of
// the checkpoint store.
func (e *Engine) Reconcile(ctx context.Context, ev model.Event) (Result, error) {
	start := time.Now()
	cycle := e.ids.Generate()

	res, err := e.reconcile(ctx, ev)
	if err != nil {
		res.Outcome = OutcomeFailed
	}
	e.metrics.observeOutcome(e.domain, res.Outcome, time.Since(start))
	e.logCycle(cycle, ev, res, err)
	return res, err
}

func (e *Engine) reconcile(ctx context.Context, ev model.Event) (Result, error) {
	if err := ev.Validate(); err != nil {
		return Result{}, newError(ErrCodeInvalidEvent, ev.Key, "invalid event", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var res Result
	err := e.locks.With(ctx, ev.Key.String(), func() error {
		var err error
		res, err = e.reconcileLocked(ctx, ev)
		return err
	})
	if err != nil {
		var re *ReconcileError
		if !errors.As(err, &re) {
			err = newError(ErrCodeTimeout, ev.Key, "waiting for key lock", err)
		}
		return res, err
	}
	return res, nil
}

// reconcileLocked runs one cycle. Caller holds the key lock.
func (e *Engine) reconcileLocked(ctx context.Context, ev model.Event) (Result, error) {
	entry, cached := e.cache.Get(ev.Key)
	if !cached {
		entry = model.TrackedEntry{Key: ev.Key, Mode: e.mode}
		if e.resolver != nil {
			id, found, err := e.resolver.Resolve(ctx, ev.Key)
			if err != nil {
				return Result{}, newError(ErrCodeTransport, ev.Key, "resolve existing representation", err)
			}
			if found {
				entry.RepresentationID = id
				e.cache.Put(entry)
				cached = true
			}
		}
	}
	if entry.Mode == 0 {
		entry.Mode = e.mode
	}
	if ev.OwnerScopeID != "" {
		entry.OwnerScopeID = ev.OwnerScopeID
	}

	// Our own repost showing up as channel activity.
	if ev.Kind == model.KindNewActivity && ev.TriggerID != "" && ev.TriggerID == entry.RepresentationID {
		return Result{Outcome: OutcomeNoOp, RepresentationID: entry.RepresentationID}, nil
	}

	var (
		desired model.Content
		present bool
	)
	if ev.Kind != model.KindSourceRemoved {
		var err error
		desired, present, err = e.renderer.Render(ctx, SourceState{Event: ev, Entry: entry})
		if err != nil {
			return Result{}, newError(ErrCodeRender, ev.Key, "render desired state", err)
		}
	}

	c := cycleState{prev: entry, hadPrev: cached}
	switch {
	case !entry.HasRepresentation() && !present:
		return Result{Outcome: OutcomeNoOp}, nil
	case !entry.HasRepresentation():
		return e.create(ctx, c, entry, desired, "")
	case !present:
		return e.remove(ctx, c, entry)
	case entry.Mode == model.ModeRepost:
		return e.repost(ctx, c, entry, desired)
	default:
		return e.update(ctx, c, entry, desired)
	}
}

// cycleState remembers the cache state at the start of a cycle for rollback.
type cycleState struct {
	prev    model.TrackedEntry
	hadPrev bool
}

func (e *Engine) create(ctx context.Context, c cycleState, entry model.TrackedEntry, desired model.Content, previousID string) (Result, error) {
	digest, tagged, err := e.prepare(entry.Key, desired)
	if err != nil {
		return Result{}, err
	}

	id, err := e.transport.Create(ctx, entry.Key.ScopeID, tagged)
	if err != nil {
		return Result{}, newError(ErrCodeTransport, entry.Key, "create representation", err)
	}

	next := entry
	next.RepresentationID = id
	next.Digest = digest
	if err := e.commit(ctx, c, next); err != nil {
		return Result{RepresentationID: id, PreviousID: previousID}, err
	}
	return Result{Outcome: OutcomeCreated, RepresentationID: id, PreviousID: previousID}, nil
}

func (e *Engine) update(ctx context.Context, c cycleState, entry model.TrackedEntry, desired model.Content) (Result, error) {
	digest, tagged, err := e.prepare(entry.Key, desired)
	if err != nil {
		return Result{}, err
	}
	if digest == entry.Digest {
		return Result{Outcome: OutcomeNoOp, RepresentationID: entry.RepresentationID}, nil
	}

	err = e.transport.Update(ctx, entry.Key.ScopeID, entry.RepresentationID, tagged)
	if errors.Is(err, ErrNotFound) {
		slog.Warn("representation vanished, recreating",
			"domain", e.domain,
			"key", entry.Key,
			"representation_id", entry.RepresentationID,
		)
		gone := entry
		gone.RepresentationID = ""
		gone.Digest = ""
		return e.create(ctx, c, gone, desired, entry.RepresentationID)
	}
	if err != nil {
		return Result{}, newError(ErrCodeTransport, entry.Key, "update representation", err)
	}

	next := entry
	next.Digest = digest
	if err := e.commit(ctx, c, next); err != nil {
		return Result{RepresentationID: entry.RepresentationID}, err
	}
	return Result{Outcome: OutcomeUpdated, RepresentationID: entry.RepresentationID}, nil
}

// repost deletes then recreates so the representation reclaims the bottom
// of its scope. Editing in place cannot move a message.
func (e *Engine) repost(ctx context.Context, c cycleState, entry model.TrackedEntry, desired model.Content) (Result, error) {
	old := entry.RepresentationID
	e.deleteRemote(ctx, entry.Key, old)
	return e.create(ctx, c, entry, desired, old)
}

func (e *Engine) remove(ctx context.Context, c cycleState, entry model.TrackedEntry) (Result, error) {
	old := entry.RepresentationID
	e.deleteRemote(ctx, entry.Key, old)

	next := entry
	next.RepresentationID = ""
	next.Digest = ""
	if err := e.commit(ctx, c, next); err != nil {
		return Result{PreviousID: old}, err
	}
	return Result{Outcome: OutcomeDeleted, PreviousID: old}, nil
}

// deleteRemote deletes a representation. Failures are logged, never
// returned: the target may already be gone.
func (e *Engine) deleteRemote(ctx context.Context, key model.Key, id string) {
	err := e.transport.Delete(ctx, key.ScopeID, id)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		slog.Debug("representation already gone",
			"domain", e.domain,
			"key", key,
			"representation_id", id,
		)
	default:
		slog.Warn("delete representation failed, continuing",
			"domain", e.domain,
			"key", key,
			"representation_id", id,
			"error", err,
		)
	}
}

// prepare digests the content and attaches the identity tag.
func (e *Engine) prepare(key model.Key, desired model.Content) (string, model.Content, error) {
	digest, err := desired.Digest()
	if err != nil {
		return "", model.Content{}, newError(ErrCodeRender, key, "digest content", err)
	}
	tag, err := model.EncodeTag(e.domain, key.SourceID)
	if err != nil {
		return "", model.Content{}, newError(ErrCodeRender, key, "encode identity tag", err)
	}
	desired.Tag = tag
	return digest, desired, nil
}

// commit writes the checkpoint, then the cache. On checkpoint failure the
// cache is rolled back: evicted when a resolver can rescue the key, else
// restored to its pre-cycle entry.
func (e *Engine) commit(ctx context.Context, c cycleState, next model.TrackedEntry) error {
	if err := e.checkpoints.Upsert(ctx, next.Checkpoint()); err != nil {
		switch {
		case e.resolver != nil || !c.hadPrev:
			e.cache.Delete(next.Key)
		default:
			e.cache.Put(c.prev)
		}
		return newError(ErrCodeCheckpoint, next.Key, "write checkpoint", err)
	}
	e.cache.Put(next)
	return nil
}

// Configure sets the pinned text of key, keeping any existing
// representation id. The representation is not touched; callers follow
// with a Reconcile to publish the new text.
func (e *Engine) Configure(ctx context.Context, key model.Key, ownerScopeID, pinnedText string) (model.TrackedEntry, error) {
	if !key.Valid() {
		return model.TrackedEntry{}, newError(ErrCodeInvalidEvent, key, "configure", fmt.Errorf("key %q is incomplete", key))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var entry model.TrackedEntry
	err := e.locks.With(ctx, key.String(), func() error {
		var ok bool
		entry, ok = e.cache.Get(key)
		if !ok {
			entry = model.TrackedEntry{Key: key, Mode: e.mode}
		}
		entry.OwnerScopeID = ownerScopeID
		entry.PinnedText = pinnedText

		if err := e.checkpoints.Upsert(ctx, entry.Checkpoint()); err != nil {
			return newError(ErrCodeCheckpoint, key, "write configuration", err)
		}
		e.cache.Put(entry)
		return nil
	})
	if err != nil {
		var re *ReconcileError
		if !errors.As(err, &re) {
			err = newError(ErrCodeTimeout, key, "waiting for key lock", err)
		}
		return model.TrackedEntry{}, err
	}

	slog.Info("entry configured", "domain", e.domain, "key", key, "owner_scope_id", ownerScopeID)
	return entry, nil
}

// Remove stops tracking key: the checkpoint is cleared first, then the
// representation is deleted (non-fatal) and the cache entry dropped.
func (e *Engine) Remove(ctx context.Context, key model.Key) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var res Result
	err := e.locks.With(ctx, key.String(), func() error {
		if err := e.checkpoints.Clear(ctx, key); err != nil {
			return newError(ErrCodeCheckpoint, key, "clear checkpoint", err)
		}

		entry, ok := e.cache.Get(key)
		if ok && entry.HasRepresentation() {
			e.deleteRemote(ctx, key, entry.RepresentationID)
			res = Result{Outcome: OutcomeDeleted, PreviousID: entry.RepresentationID}
		}
		e.cache.Delete(key)
		return nil
	})
	if err != nil {
		var re *ReconcileError
		if !errors.As(err, &re) {
			err = newError(ErrCodeTimeout, key, "waiting for key lock", err)
		}
		return Result{Outcome: OutcomeFailed}, err
	}

	slog.Info("entry removed", "domain", e.domain, "key", key, "previous_id", res.PreviousID)
	return res, nil
}

// logCycle logs a finished cycle with full key context.
func (e *Engine) logCycle(cycle string, ev model.Event, res Result, err error) {
	attrs := []any{
		"domain", e.domain,
		"cycle", cycle,
		"key", ev.Key,
		"kind", ev.Kind,
		"seq", ev.Seq,
		"outcome", res.Outcome,
	}
	if res.RepresentationID != "" {
		attrs = append(attrs, "representation_id", res.RepresentationID)
	}
	if res.PreviousID != "" {
		attrs = append(attrs, "previous_id", res.PreviousID)
	}

	switch {
	case err != nil:
		slog.Error("reconcile failed", append(attrs, "code", ErrorCodeOf(err), "error", err)...)
	case res.Outcome == OutcomeNoOp:
		slog.Debug("reconciled", attrs...)
	default:
		slog.Info("reconciled", attrs...)
	}
}
