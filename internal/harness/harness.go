package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/husk/internal/app"
	"github.com/roach88/husk/internal/board"
	"github.com/roach88/husk/internal/config"
	"github.com/roach88/husk/internal/engine"
	"github.com/roach88/husk/internal/model"
	"github.com/roach88/husk/internal/sticky"
	"github.com/roach88/husk/internal/store"
	"github.com/roach88/husk/internal/transport"
)

// DefaultReactor is the user of reaction steps that do not name one.
const DefaultReactor = "reactor"

// Harness is the scenario execution engine. A Harness runs one scenario.
type Harness struct {
	scenario  *Scenario
	transport *transport.Memory
	store     *store.Memory
	clock     *engine.Clock

	sources  map[string]*source
	channels map[string]bool // scopes that may hold representations

	board       *engine.Engine
	boardEvents *board.Handler
	sticky      *engine.Engine
	stickies    *sticky.Manager

	pending []model.Event
	metrics *engine.Metrics
	config  config.Config
}

// Option configures a scenario run.
type Option func(*Harness)

// WithMetrics records the outcomes of both engines on m.
func WithMetrics(m *engine.Metrics) Option {
	return func(h *Harness) {
		h.metrics = m
	}
}

// WithConfig runs the engines with cfg's timeout, lookback and sticky
// settings. The scenario's board section replaces cfg.Board and the DSN is
// ignored: scenarios always run against the in-memory store.
func WithConfig(cfg config.Config) Option {
	return func(h *Harness) {
		h.config = cfg
	}
}

type source struct {
	board.Message
	deleted bool
}

// Run executes a scenario with a background context.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory transport and checkpoint
// store. The returned error reports a scenario that could not run;
// failed expectations and assertions are recorded in the result.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := newHarness(scenario)
	for _, opt := range opts {
		opt(h)
	}
	if err := h.start(ctx); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		before := len(result.Trace)
		if err := h.execute(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Do, err)
		}
		if step.Expect == "" {
			continue
		}
		got := "nothing"
		if len(result.Trace) > before {
			got = result.Trace[len(result.Trace)-1].Outcome
		}
		if got != step.Expect {
			result.AddError(fmt.Sprintf("step %d (%s): expected outcome %s, got %s", i+1, step.Do, step.Expect, got))
		}
	}

	if err := h.snapshot(ctx, result); err != nil {
		return nil, fmt.Errorf("snapshot final state: %w", err)
	}

	actx := &AssertionContext{Transport: h.transport, Store: h.store}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(s *Scenario) *Harness {
	h := &Harness{
		scenario:  s,
		transport: transport.NewMemory(),
		store:     store.NewMemory(),
		clock:     engine.NewClock(),
		sources:   make(map[string]*source, len(s.Sources)),
		channels:  map[string]bool{s.Board.ChannelID: true},
		config:    config.Default(),
	}
	byID := make(map[string]Source, len(s.Sources))
	for _, src := range s.Sources {
		byID[src.ID] = src
	}
	for _, src := range s.Sources {
		msg := board.Message{
			ID:        src.ID,
			ChannelID: src.Channel,
			GuildID:   s.Guild,
			URL:       messageURL(s.Guild, src.Channel, src.ID),
			AuthorID:  src.Author,
			AuthorTag: src.Author,
			Content:   src.Content,
		}
		for n := 0; n < src.Attachments; n++ {
			name := fmt.Sprintf("file%d.png", n+1)
			msg.Attachments = append(msg.Attachments, board.Attachment{
				Name:        name,
				URL:         "https://cdn.example/" + src.ID + "/" + name,
				ContentType: "image/png",
			})
		}
		if src.ReplyTo != "" {
			msg.ReferenceID = src.ReplyTo
			msg.ReferenceChannelID = byID[src.ReplyTo].Channel
		}
		h.sources[src.ID] = &source{Message: msg}
	}
	return h
}

func messageURL(guild, channel, id string) string {
	return "https://discord.com/channels/" + guild + "/" + channel + "/" + id
}

// start builds both engines over the current store and loads their
// checkpoints, as a process start does.
func (h *Harness) start(ctx context.Context) error {
	var opts []engine.Option
	if h.metrics != nil {
		opts = append(opts, engine.WithMetrics(h.metrics))
	}

	cfg := h.config
	cfg.Board = h.scenario.Board
	a, err := app.New(cfg, h.store, app.Deps{
		Transport: h.transport,
		Webhooks:  h.transport,
		Fetcher:   h,
	}, opts...)
	if err != nil {
		return err
	}
	if err := a.Load(ctx); err != nil {
		return err
	}

	h.board = a.Board
	h.boardEvents = a.BoardHandler(h, nil)
	h.sticky = a.Sticky
	h.stickies = a.Stickies
	return nil
}

// Enqueue collects board handler output for the current step.
func (h *Harness) Enqueue(ev model.Event) bool {
	h.pending = append(h.pending, ev)
	return true
}

// FetchMessage serves scenario sources to the board renderer.
func (h *Harness) FetchMessage(_ context.Context, channelID, messageID string) (board.Message, error) {
	src, ok := h.sources[messageID]
	if !ok || src.deleted || src.ChannelID != channelID {
		return board.Message{}, fmt.Errorf("message %s/%s: %w", channelID, messageID, engine.ErrNotFound)
	}
	return src.Message, nil
}

func (h *Harness) execute(ctx context.Context, n int, step Step, result *Result) error {
	switch step.Do {
	case DoStickySet, DoStickyDisable, DoMessage:
		if h.stickies == nil {
			return app.ErrStickyDisabled
		}
	}

	switch step.Do {
	case DoReact, DoUnreact:
		src := h.sources[step.Message]
		r := board.Reaction{
			GuildID:         h.scenario.Guild,
			ChannelID:       src.ChannelID,
			MessageID:       src.ID,
			UserID:          orDefault(step.User, DefaultReactor),
			Emoji:           orDefault(step.Emoji, h.scenario.Board.Emoji),
			Count:           step.Count,
			MessageAuthorID: src.AuthorID,
			MessageContent:  src.Content,
			AttachmentCount: len(src.Attachments),
		}
		if step.Do == DoReact {
			h.boardEvents.ReactionAdded(ctx, r)
		} else {
			h.boardEvents.ReactionRemoved(ctx, r)
		}
		h.drain(ctx, n, step, result)

	case DoClear:
		src := h.sources[step.Message]
		h.boardEvents.ReactionsCleared(ctx, src.ChannelID, src.ID)
		h.drain(ctx, n, step, result)

	case DoDelete:
		src := h.sources[step.Message]
		src.deleted = true
		h.boardEvents.MessageDeleted(ctx, src.ChannelID, src.ID)
		h.drain(ctx, n, step, result)

	case DoStickySet:
		h.channels[step.Channel] = true
		res, err := h.stickies.Set(ctx, h.scenario.Guild, step.Channel, step.Text)
		h.record(result, n, step, model.Event{Key: sticky.Key(step.Channel)}, res, err)

	case DoStickyDisable:
		res, err := h.stickies.Disable(ctx, step.Channel)
		h.record(result, n, step, model.Event{Key: sticky.Key(step.Channel)}, res, err)

	case DoMessage:
		h.channels[step.Channel] = true
		msg := sticky.Message{
			ID:        step.Message,
			GuildID:   h.scenario.Guild,
			ChannelID: step.Channel,
			AuthorBot: step.Bot,
		}
		if !step.Bot {
			msg.ID = h.transport.Post(step.Channel, orDefault(step.User, "user"), orDefault(step.Text, "hi"))
		}
		ev, ok := h.stickies.ActivityEvent(msg)
		if !ok {
			result.Trace = append(result.Trace, TraceEvent{Step: n, Do: step.Do, Outcome: OutcomeIgnored})
			return nil
		}
		ev.Seq = h.clock.Next()
		res, err := h.sticky.Reconcile(ctx, ev)
		h.record(result, n, step, ev, res, err)

	case DoVanish:
		if err := h.transport.Delete(ctx, step.Channel, step.Message); err != nil {
			return err
		}
		result.Trace = append(result.Trace, TraceEvent{Step: n, Do: step.Do, Outcome: OutcomeOK})

	case DoFail:
		times := max(step.Times, 1)
		if step.Target == TargetStore {
			h.store.FailNext(step.Op, times)
		} else {
			h.transport.FailNext(step.Op, times)
		}
		result.Trace = append(result.Trace, TraceEvent{Step: n, Do: step.Do, Outcome: OutcomeOK})

	case DoRestart:
		if step.LoseCheckpoints {
			h.store = store.NewMemory()
		}
		if err := h.start(ctx); err != nil {
			return err
		}
		result.Trace = append(result.Trace, TraceEvent{Step: n, Do: step.Do, Outcome: OutcomeOK})

	default:
		return fmt.Errorf("unknown step %q", step.Do)
	}
	return nil
}

// drain reconciles the board events a handler call produced. A call that
// produced none is recorded as ignored.
func (h *Harness) drain(ctx context.Context, n int, step Step, result *Result) {
	events := h.pending
	h.pending = nil
	if len(events) == 0 {
		result.Trace = append(result.Trace, TraceEvent{Step: n, Do: step.Do, Outcome: OutcomeIgnored})
		return
	}
	for _, ev := range events {
		ev.Seq = h.clock.Next()
		res, err := h.board.Reconcile(ctx, ev)
		h.record(result, n, step, ev, res, err)
	}
}

func (h *Harness) record(result *Result, n int, step Step, ev model.Event, res engine.Result, err error) {
	te := TraceEvent{
		Step:             n,
		Do:               step.Do,
		Key:              ev.Key.String(),
		Seq:              ev.Seq,
		Outcome:          res.Outcome.String(),
		RepresentationID: res.RepresentationID,
		PreviousID:       res.PreviousID,
	}
	if err != nil {
		te.Outcome = engine.OutcomeFailed.String()
		te.Code = string(engine.ErrorCodeOf(err))
	}
	result.Trace = append(result.Trace, te)
}

// snapshot records the stored checkpoints and the live representations.
func (h *Harness) snapshot(ctx context.Context, result *Result) error {
	for _, domain := range []string{board.Domain, sticky.Domain} {
		cps, err := h.store.Checkpoints(domain).Load(ctx)
		if err != nil {
			return err
		}
		for _, cp := range cps {
			result.Checkpoints = append(result.Checkpoints, Checkpoint{
				Domain:           domain,
				Key:              cp.Key.String(),
				RepresentationID: cp.RepresentationID,
				PinnedText:       cp.PinnedText,
			})
		}
	}

	channels := make([]string, 0, len(h.channels))
	for ch := range h.channels {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	for _, ch := range channels {
		for _, msg := range h.transport.Messages(ch) {
			if !isRepresentation(msg) {
				continue
			}
			result.Live = append(result.Live, LiveMessage{
				Channel: ch,
				ID:      msg.ID,
				Author:  msg.Username,
				Text:    msg.Content.Text,
			})
		}
	}
	return nil
}

// isRepresentation reports whether msg was sent by the bot or its webhook.
func isRepresentation(msg transport.Message) bool {
	return msg.Author == "" || strings.HasPrefix(msg.Author, "webhook:")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
