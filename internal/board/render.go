package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/husk/internal/engine"
	"github.com/roach88/husk/internal/model"
)

const (
	colorSource = 0xFFFFD2
	colorReply  = 0x000000
)

// Renderer computes board mirrors. It implements engine.Renderer.
type Renderer struct {
	cfg     Config
	fetcher SourceFetcher
}

var _ engine.Renderer = (*Renderer)(nil)

// NewRenderer creates a renderer that loads sources through fetcher.
func NewRenderer(cfg Config, fetcher SourceFetcher) *Renderer {
	return &Renderer{cfg: cfg, fetcher: fetcher}
}

// Render returns the mirror for the event's source, or present=false when
// the count is under the threshold or the source no longer exists.
func (r *Renderer) Render(ctx context.Context, state engine.SourceState) (model.Content, bool, error) {
	ev := state.Event
	if ev.Kind != model.KindCountChanged || ev.Count < r.cfg.MinStars {
		return model.Content{}, false, nil
	}

	channelID := ev.OwnerScopeID
	if channelID == "" {
		channelID = state.Entry.OwnerScopeID
	}
	msg, err := r.fetcher.FetchMessage(ctx, channelID, ev.Key.SourceID)
	if errors.Is(err, engine.ErrNotFound) {
		return model.Content{}, false, nil
	}
	if err != nil {
		return model.Content{}, false, fmt.Errorf("fetch source %s/%s: %w", channelID, ev.Key.SourceID, err)
	}

	content := model.Content{
		Text:       fmt.Sprintf("%s %d | <#%s>", r.cfg.SelectTier(ev.Count), ev.Count, msg.ChannelID),
		Components: []model.Component{{Label: "Jump", URL: msg.URL}},
		SendAs:     r.persona(msg),
	}

	if msg.IsReply() {
		refChannel := msg.ReferenceChannelID
		if refChannel == "" {
			refChannel = msg.ChannelID
		}
		ref, err := r.fetcher.FetchMessage(ctx, refChannel, msg.ReferenceID)
		if err != nil {
			// The mirror is still useful without the reply context.
			slog.Warn("failed to fetch referenced message",
				"source_id", msg.ID,
				"reference_id", msg.ReferenceID,
				"error", err,
			)
		} else {
			content.Embeds = append(content.Embeds, messageEmbed(ref, true))
			content.Components = append(content.Components, model.Component{
				Label: "Jump to referenced message",
				URL:   ref.URL,
			})
		}
	}
	content.Embeds = append(content.Embeds, messageEmbed(msg, false))

	return content, true, nil
}

func (r *Renderer) persona(msg Message) model.Persona {
	if msg.ChannelID == r.cfg.ChannelID {
		return model.Persona{Username: r.cfg.Username, AvatarURL: r.cfg.AvatarURL}
	}
	return model.Persona{Username: r.cfg.BotUsername, AvatarURL: r.cfg.BotAvatarURL}
}

// messageEmbed builds the embed of one message. The first image attachment
// becomes the embed image, falling back to the last image of the message's
// own embeds. Remaining attachments are listed as links.
func messageEmbed(msg Message, isReply bool) model.Embed {
	embed := model.Embed{
		Author:      msg.AuthorTag,
		AuthorIcon:  msg.AuthorAvatar,
		Description: msg.Content,
		Footer:      "ID: " + msg.ID,
		Color:       colorSource,
	}
	if isReply {
		embed.Author = "Replying to " + msg.AuthorTag
		embed.Color = colorReply
	}
	if !msg.CreatedAt.IsZero() {
		embed.Timestamp = msg.CreatedAt.UTC().Format(time.RFC3339)
	}

	for _, a := range msg.Attachments {
		if strings.HasPrefix(a.ContentType, "image") {
			embed.Image = a.URL
			break
		}
	}
	if embed.Image == "" {
		for _, img := range msg.EmbedImages {
			embed.Image = img
		}
	}

	var links strings.Builder
	for _, a := range msg.Attachments {
		if embed.Image == "" || a.URL != embed.Image {
			fmt.Fprintf(&links, "[%s](%s)\n", a.Name, a.URL)
		}
	}
	if links.Len() > 0 {
		embed.Fields = append(embed.Fields, model.Field{Name: "Attachments", Value: links.String()})
	}
	return embed
}
