package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/roach88/husk/internal/model"
)

// Reconciler is the part of Engine the dispatcher drives.
type Reconciler interface {
	Reconcile(ctx context.Context, ev model.Event) (Result, error)
}

// OutcomeFunc receives the result of every dispatched event.
type OutcomeFunc func(ev model.Event, res Result, err error)

// Dispatcher decouples event delivery from reconciliation.
//
// Enqueue never blocks. Run drains the queue and stamps each event with the
// next logical seq. Events are then appended to their key's lane; one worker
// goroutine per busy key drains the lane in seq order, so same-key events
// reconcile in delivery order while different keys run in parallel.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Dispatcher struct {
	target    Reconciler
	queue     *eventQueue
	clock     *Clock
	onOutcome OutcomeFunc
	inflight  sync.WaitGroup

	// lanes holds the pending events of keys that have a running worker.
	// A lane is removed by its worker once empty.
	lanes *xsync.MapOf[string, *lane]
}

type lane struct {
	pending []model.Event
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithOutcomeFunc installs a callback for every finished event.
func WithOutcomeFunc(fn OutcomeFunc) DispatcherOption {
	return func(d *Dispatcher) {
		d.onOutcome = fn
	}
}

// WithClock sets the clock used to stamp events.
func WithClock(c *Clock) DispatcherOption {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// NewDispatcher creates a dispatcher for target.
func NewDispatcher(target Reconciler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		target: target,
		queue:  newEventQueue(),
		clock:  NewClock(),
		lanes:  xsync.NewMapOf[string, *lane](),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue submits an event. Returns false if the dispatcher has stopped.
func (d *Dispatcher) Enqueue(ev model.Event) bool {
	return d.queue.Enqueue(ev)
}

// QueueLen returns the number of events not yet picked up by Run.
func (d *Dispatcher) QueueLen() int {
	return d.queue.Len()
}

// Run processes events until ctx is cancelled or Stop is called, then
// waits for in-flight reconciliations to finish.
//
// ERROR HANDLING: failures are logged with key context and processing
// continues. There is no internal retry; the next event for the key
// re-attempts from the checkpointed state.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("dispatcher starting")
	defer d.inflight.Wait()

	for {
		if ev, ok := d.queue.TryDequeue(); ok {
			d.dispatch(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopping: context cancelled")
			d.queue.Close()
			return ctx.Err()

		case _, open := <-d.queue.Wait():
			// A closed signal channel fires immediately; keep draining until
			// the queue is empty.
			if !open && d.queue.Len() == 0 {
				slog.Info("dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once queued events are dispatched.
func (d *Dispatcher) Stop() {
	d.queue.Close()
}

// Lanes returns the number of keys with events queued or in flight.
func (d *Dispatcher) Lanes() int {
	return d.lanes.Size()
}

// dispatch stamps ev and appends it to its key's lane, starting a worker
// when the key has none. Called only from Run, so seq order and lane order
// agree.
func (d *Dispatcher) dispatch(ctx context.Context, ev model.Event) {
	ev.Seq = d.clock.Next()
	key := ev.Key.String()

	start := false
	d.lanes.Compute(key, func(l *lane, loaded bool) (*lane, bool) {
		if !loaded {
			l = &lane{}
			start = true
		}
		l.pending = append(l.pending, ev)
		return l, false
	})
	if !start {
		return
	}

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		for {
			next, ok := d.pop(key)
			if !ok {
				return
			}
			d.process(ctx, next)
		}
	}()
}

// pop takes the oldest event of a lane, removing the lane when it is empty.
func (d *Dispatcher) pop(key string) (model.Event, bool) {
	var (
		ev model.Event
		ok bool
	)
	d.lanes.Compute(key, func(l *lane, loaded bool) (*lane, bool) {
		if !loaded || len(l.pending) == 0 {
			return nil, true
		}
		ev, ok = l.pending[0], true
		l.pending = l.pending[1:]
		return l, false
	})
	return ev, ok
}

func (d *Dispatcher) process(ctx context.Context, ev model.Event) {
	res, err := d.target.Reconcile(ctx, ev)
	if err != nil {
		slog.Error("event processing failed",
			"error", err,
			"key", ev.Key,
			"kind", ev.Kind,
			"seq", ev.Seq,
		)
	}
	if d.onOutcome != nil {
		d.onOutcome(ev, res, err)
	}
}
