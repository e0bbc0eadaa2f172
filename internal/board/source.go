package board

import (
	"context"
	"time"
)

// Message is the part of a chat message the board renders.
type Message struct {
	ID           string
	ChannelID    string
	GuildID      string
	URL          string
	AuthorID     string
	AuthorTag    string
	AuthorAvatar string
	Content      string
	CreatedAt    time.Time
	Attachments  []Attachment

	// EmbedImages are the image URLs of the message's own embeds.
	EmbedImages []string

	// ReferenceID is the id of the message this one replies to, in
	// ReferenceChannelID (the same channel when empty).
	ReferenceID        string
	ReferenceChannelID string
}

// Attachment is a file attached to a message.
type Attachment struct {
	Name        string
	URL         string
	ContentType string
}

// IsReply reports whether the message replies to another.
func (m Message) IsReply() bool {
	return m.ReferenceID != ""
}

// SourceFetcher loads messages from the platform. Implementations return
// an error wrapping engine.ErrNotFound for deleted messages.
type SourceFetcher interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (Message, error)
}
