// Package sticky keeps a pinned message at the bottom of a channel.
//
// Every new message in a channel with a sticky makes the engine delete the
// previous copy and post a fresh one. Keys are (channel id, channel id);
// the engine runs in repost mode and the guild is the owner scope.
package sticky

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/husk/internal/engine"
	"github.com/roach88/husk/internal/model"
)

// Domain is the engine domain and identity tag kind of stickies.
const Domain = "sticky"

// Sticky is the configuration and state of one channel's sticky.
type Sticky struct {
	GuildID       string
	ChannelID     string
	Content       string
	LastMessageID string
}

// Message is a new message observed in a channel.
type Message struct {
	ID        string
	GuildID   string
	ChannelID string
	AuthorBot bool
}

// Deps are the collaborators of a sticky engine.
type Deps struct {
	Transport   engine.Transport
	Checkpoints engine.Checkpointer
}

// NewEngine assembles the sticky engine in repost mode.
func NewEngine(deps Deps, opts ...engine.Option) *engine.Engine {
	return engine.New(engine.Config{
		Domain:      Domain,
		Mode:        model.ModeRepost,
		Renderer:    engine.RendererFunc(render),
		Transport:   deps.Transport,
		Checkpoints: deps.Checkpoints,
	}, opts...)
}

// render publishes the pinned text. An entry without text has no
// representation.
func render(_ context.Context, s engine.SourceState) (model.Content, bool, error) {
	if s.Entry.PinnedText == "" {
		return model.Content{}, false, nil
	}
	return model.Content{Text: s.Entry.PinnedText}, true, nil
}

// Key returns the tracking key of a channel's sticky.
func Key(channelID string) model.Key {
	return model.Key{ScopeID: channelID, SourceID: channelID}
}

// Manager is the sticky command surface.
type Manager struct {
	engine *engine.Engine
}

// NewManager creates a manager over a sticky engine.
func NewManager(e *engine.Engine) *Manager {
	return &Manager{engine: e}
}

// Load restores stickies from checkpoints. Call once at startup.
func (m *Manager) Load(ctx context.Context) (int, error) {
	return m.engine.Load(ctx)
}

// Set configures the sticky of a channel and reposts it immediately.
func (m *Manager) Set(ctx context.Context, guildID, channelID, text string) (engine.Result, error) {
	if text == "" {
		return engine.Result{}, errors.New("sticky text is empty")
	}
	key := Key(channelID)
	if _, err := m.engine.Configure(ctx, key, guildID, text); err != nil {
		return engine.Result{}, fmt.Errorf("set sticky %s: %w", channelID, err)
	}
	return m.engine.Reconcile(ctx, model.Event{
		Key:          key,
		Kind:         model.KindNewActivity,
		OwnerScopeID: guildID,
	})
}

// Disable removes the sticky of a channel and deletes its last copy.
// Disabling a channel without a sticky is not an error.
func (m *Manager) Disable(ctx context.Context, channelID string) (engine.Result, error) {
	res, err := m.engine.Remove(ctx, Key(channelID))
	if err != nil {
		return res, fmt.Errorf("disable sticky %s: %w", channelID, err)
	}
	return res, nil
}

// Get returns the sticky of a channel.
func (m *Manager) Get(channelID string) (Sticky, bool) {
	entry, ok := m.engine.Entry(Key(channelID))
	if !ok {
		return Sticky{}, false
	}
	return Sticky{
		GuildID:       entry.OwnerScopeID,
		ChannelID:     channelID,
		Content:       entry.PinnedText,
		LastMessageID: entry.RepresentationID,
	}, true
}

// ActivityEvent returns the event a new message produces, or false when
// the message cannot affect any sticky: outside a guild, in a channel
// without a sticky, or the sticky's own latest copy.
func (m *Manager) ActivityEvent(msg Message) (model.Event, bool) {
	if msg.GuildID == "" {
		return model.Event{}, false
	}
	st, ok := m.Get(msg.ChannelID)
	if !ok {
		return model.Event{}, false
	}
	if msg.AuthorBot && msg.ID == st.LastMessageID {
		return model.Event{}, false
	}
	return model.Event{
		Key:       Key(msg.ChannelID),
		Kind:      model.KindNewActivity,
		TriggerID: msg.ID,
	}, true
}

// HandleMessage reposts the channel's sticky below msg.
func (m *Manager) HandleMessage(ctx context.Context, msg Message) (engine.Result, error) {
	ev, ok := m.ActivityEvent(msg)
	if !ok {
		return engine.Result{}, nil
	}
	return m.engine.Reconcile(ctx, ev)
}
