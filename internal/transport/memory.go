package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/roach88/husk/internal/engine"
	"github.com/roach88/husk/internal/model"
)

// ErrInjected is returned by operations armed with FailNext.
var ErrInjected = errors.New("injected transport failure")

// Message is one message held by Memory.
type Message struct {
	ID      string
	ScopeID string
	Content model.Content

	// Author is empty for messages sent by the bot itself, "webhook:<id>"
	// for webhook sends, and the given author for Post.
	Author    string
	Username  string
	AvatarURL string
	Edits     int
}

// Stats counts successful mutating calls.
type Stats struct {
	Creates  int
	Updates  int
	Deletes  int
	Lists    int
	Webhooks int
}

// Memory is an in-process Transport. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	next     int
	scopes   map[string][]*Message // oldest first
	byID     map[string]*Message
	webhooks map[string]string // channel id -> webhook id
	failOps  map[string]int
	stats    Stats
}

var _ engine.Transport = (*Memory)(nil)

// NewMemory creates an empty transport.
func NewMemory() *Memory {
	return &Memory{
		scopes:   make(map[string][]*Message),
		byID:     make(map[string]*Message),
		webhooks: make(map[string]string),
		failOps:  make(map[string]int),
	}
}

// FailNext makes the next n calls of op fail with ErrInjected. Ops:
// "create", "update", "delete", "list", "webhook", "execute".
func (m *Memory) FailNext(op string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOps[op] += n
}

// Create posts content as the bot.
func (m *Memory) Create(ctx context.Context, scopeID string, content model.Content) (string, error) {
	return m.send(ctx, "create", scopeID, content, "", "", "")
}

// Update edits a message in place.
func (m *Memory) Update(ctx context.Context, scopeID, id string, content model.Content) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("update"); err != nil {
		return err
	}

	msg, ok := m.byID[id]
	if !ok || msg.ScopeID != scopeID {
		return fmt.Errorf("update %s in %s: %w", id, scopeID, engine.ErrNotFound)
	}
	msg.Content = content
	msg.Edits++
	m.stats.Updates++
	return nil
}

// Delete removes a message.
func (m *Memory) Delete(ctx context.Context, scopeID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("delete"); err != nil {
		return err
	}

	msg, ok := m.byID[id]
	if !ok || msg.ScopeID != scopeID {
		return fmt.Errorf("delete %s in %s: %w", id, scopeID, engine.ErrNotFound)
	}
	delete(m.byID, id)
	m.scopes[scopeID] = slices.DeleteFunc(m.scopes[scopeID], func(x *Message) bool {
		return x.ID == id
	})
	m.stats.Deletes++
	return nil
}

// ListRecent returns up to limit messages of scopeID, newest first.
func (m *Memory) ListRecent(ctx context.Context, scopeID string, limit int) ([]engine.Recent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("list"); err != nil {
		return nil, err
	}
	m.stats.Lists++

	msgs := m.scopes[scopeID]
	out := make([]engine.Recent, 0, min(limit, len(msgs)))
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, engine.Recent{ID: msgs[i].ID, Tag: msgs[i].Content.Tag})
	}
	return out, nil
}

// Post adds a message by someone other than the bot, returning its id.
// Used to simulate channel activity.
func (m *Memory) Post(scopeID, author, text string) string {
	id, _ := m.send(context.Background(), "", scopeID, model.Content{Text: text}, author, "", "")
	return id
}

// EnsureWebhook returns the webhook of channelID, creating it on first use.
func (m *Memory) EnsureWebhook(ctx context.Context, channelID, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("webhook"); err != nil {
		return "", err
	}
	m.stats.Webhooks++

	if id, ok := m.webhooks[channelID]; ok {
		return id, nil
	}
	id := "w" + strconv.Itoa(len(m.webhooks)+1)
	m.webhooks[channelID] = id
	slog.Debug("webhook created", "channel_id", channelID, "webhook_id", id, "name", name)
	return id, nil
}

// ExecuteWebhook posts content through a webhook with an overridden
// identity.
func (m *Memory) ExecuteWebhook(ctx context.Context, webhookID, channelID string, content model.Content, username, avatarURL string) (string, error) {
	m.mu.Lock()
	owned := m.webhooks[channelID] == webhookID
	m.mu.Unlock()
	if !owned {
		return "", fmt.Errorf("webhook %s in %s: %w", webhookID, channelID, engine.ErrNotFound)
	}
	return m.send(ctx, "execute", channelID, content, "webhook:"+webhookID, username, avatarURL)
}

// Get returns a copy of the message with id.
func (m *Memory) Get(id string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.byID[id]
	if !ok {
		return Message{}, false
	}
	return *msg, true
}

// Messages returns copies of the messages of scopeID, oldest first.
func (m *Memory) Messages(scopeID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, 0, len(m.scopes[scopeID]))
	for _, msg := range m.scopes[scopeID] {
		out = append(out, *msg)
	}
	return out
}

// Stats returns call counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// send appends a message. An empty op skips fault injection and stats.
func (m *Memory) send(ctx context.Context, op, scopeID string, content model.Content, author, username, avatarURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if op != "" {
		if err := m.failLocked(op); err != nil {
			return "", err
		}
		m.stats.Creates++
	}

	m.next++
	msg := &Message{
		ID:        "m" + strconv.Itoa(m.next),
		ScopeID:   scopeID,
		Content:   content,
		Author:    author,
		Username:  username,
		AvatarURL: avatarURL,
	}
	m.scopes[scopeID] = append(m.scopes[scopeID], msg)
	m.byID[msg.ID] = msg
	return msg.ID, nil
}

// failLocked consumes one armed failure for op. Caller holds m.mu.
func (m *Memory) failLocked(op string) error {
	if m.failOps[op] > 0 {
		m.failOps[op]--
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}
