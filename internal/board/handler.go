package board

import (
	"context"
	"log/slog"

	"github.com/roach88/husk/internal/model"
)

// Reaction is a reaction add or remove notification, with the state of the
// reacted message after the change.
type Reaction struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string

	// Count is the message's current count for Emoji.
	Count int

	MessageAuthorID string
	MessageContent  string
	AttachmentCount int
}

// ReactionRemover removes one user's reaction from a message.
type ReactionRemover interface {
	RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error
}

// EventSink accepts events for reconciliation. engine.Dispatcher
// implements it.
type EventSink interface {
	Enqueue(ev model.Event) bool
}

// MirrorIndex finds the board entry a representation belongs to.
// store.Checkpoints implements it.
type MirrorIndex interface {
	FindByRepresentation(ctx context.Context, representationID string) (model.Checkpoint, bool, error)
}

// Handler filters platform notifications and forwards board events.
// Each method reports whether an event was forwarded.
type Handler struct {
	cfg     Config
	sink    EventSink
	remover ReactionRemover
	mirrors MirrorIndex
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMirrorIndex makes the handler ignore reactions on the board's own
// mirrors, which live in the board channel.
func WithMirrorIndex(idx MirrorIndex) HandlerOption {
	return func(h *Handler) {
		h.mirrors = idx
	}
}

// NewHandler creates a Handler. remover may be nil, in which case
// self-reactions are ignored but left in place.
func NewHandler(cfg Config, sink EventSink, remover ReactionRemover, opts ...HandlerOption) *Handler {
	h := &Handler{cfg: cfg, sink: sink, remover: remover}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ReactionAdded handles a new reaction.
func (h *Handler) ReactionAdded(ctx context.Context, r Reaction) bool {
	if !h.relevant(r) || h.isMirror(ctx, r) {
		return false
	}

	if r.UserID != "" && r.UserID == r.MessageAuthorID {
		if h.remover != nil {
			if err := h.remover.RemoveReaction(ctx, r.ChannelID, r.MessageID, r.Emoji, r.UserID); err != nil {
				slog.Warn("failed to remove self-reaction",
					"channel_id", r.ChannelID,
					"message_id", r.MessageID,
					"user_id", r.UserID,
					"error", err,
				)
			}
		}
		return false
	}

	if r.MessageContent == "" && r.AttachmentCount == 0 {
		return false
	}

	return h.forward(h.countEvent(r.ChannelID, r.MessageID, r.Count))
}

// ReactionRemoved handles a removed reaction.
func (h *Handler) ReactionRemoved(ctx context.Context, r Reaction) bool {
	if !h.relevant(r) || h.isMirror(ctx, r) {
		return false
	}
	return h.forward(h.countEvent(r.ChannelID, r.MessageID, r.Count))
}

// ReactionsCleared handles removal of every reaction from a message.
func (h *Handler) ReactionsCleared(_ context.Context, channelID, messageID string) bool {
	return h.forward(h.countEvent(channelID, messageID, 0))
}

// MessageDeleted handles deletion of a source message.
func (h *Handler) MessageDeleted(_ context.Context, channelID, messageID string) bool {
	return h.forward(model.Event{
		Key:          model.Key{ScopeID: h.cfg.ChannelID, SourceID: messageID},
		Kind:         model.KindSourceRemoved,
		OwnerScopeID: channelID,
	})
}

func (h *Handler) relevant(r Reaction) bool {
	if h.cfg.GuildID != "" && r.GuildID != h.cfg.GuildID {
		return false
	}
	return r.Emoji == h.cfg.Emoji
}

// isMirror reports whether r is on a board mirror. A failed lookup treats
// the message as a source.
func (h *Handler) isMirror(ctx context.Context, r Reaction) bool {
	if h.mirrors == nil || r.ChannelID != h.cfg.ChannelID {
		return false
	}
	cp, ok, err := h.mirrors.FindByRepresentation(ctx, r.MessageID)
	if err != nil {
		slog.Warn("mirror lookup failed",
			"channel_id", r.ChannelID,
			"message_id", r.MessageID,
			"error", err,
		)
		return false
	}
	if ok {
		slog.Debug("ignoring reaction on board mirror", "message_id", r.MessageID, "key", cp.Key)
	}
	return ok
}

func (h *Handler) countEvent(channelID, messageID string, count int) model.Event {
	return model.Event{
		Key:          model.Key{ScopeID: h.cfg.ChannelID, SourceID: messageID},
		Kind:         model.KindCountChanged,
		Count:        count,
		OwnerScopeID: channelID,
	}
}

func (h *Handler) forward(ev model.Event) bool {
	if !h.sink.Enqueue(ev) {
		slog.Warn("board event dropped: dispatcher stopped", "key", ev.Key, "kind", ev.Kind)
		return false
	}
	return true
}
