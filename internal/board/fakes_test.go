package board

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/husk/internal/engine"
	"github.com/roach88/husk/internal/model"
)

type fakeFetcher struct {
	mu   sync.Mutex
	msgs map[string]Message
	err  error
}

func newFakeFetcher(msgs ...Message) *fakeFetcher {
	f := &fakeFetcher{msgs: make(map[string]Message)}
	for _, m := range msgs {
		f.put(m)
	}
	return f
}

func (f *fakeFetcher) put(m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs[m.ChannelID+"/"+m.ID] = m
}

func (f *fakeFetcher) remove(channelID, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.msgs, channelID+"/"+id)
}

func (f *fakeFetcher) FetchMessage(_ context.Context, channelID, messageID string) (Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Message{}, f.err
	}
	m, ok := f.msgs[channelID+"/"+messageID]
	if !ok {
		return Message{}, fmt.Errorf("message %s: %w", messageID, engine.ErrNotFound)
	}
	return m, nil
}

type recordingSink struct {
	events []model.Event
	closed bool
}

func (s *recordingSink) Enqueue(ev model.Event) bool {
	if s.closed {
		return false
	}
	s.events = append(s.events, ev)
	return true
}

type recordingRemover struct {
	calls []string
	err   error
}

func (r *recordingRemover) RemoveReaction(_ context.Context, channelID, messageID, emoji, userID string) error {
	r.calls = append(r.calls, channelID+"/"+messageID+"/"+emoji+"/"+userID)
	return r.err
}

func sourceMessage(channelID, id, text string) Message {
	return Message{
		ID:           id,
		ChannelID:    channelID,
		GuildID:      "guild",
		URL:          "https://discord.com/channels/guild/" + channelID + "/" + id,
		AuthorID:     "author-" + id,
		AuthorTag:    "husker#0001",
		AuthorAvatar: "https://cdn.example/avatar.png",
		Content:      text,
	}
}
