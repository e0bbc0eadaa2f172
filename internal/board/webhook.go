package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/husk/internal/engine"
	"github.com/roach88/husk/internal/model"
)

// DefaultWebhookCacheSize bounds the channel to webhook cache.
const DefaultWebhookCacheSize = 64

// WebhookAPI is the platform's webhook surface.
type WebhookAPI interface {
	// EnsureWebhook returns the bot-owned webhook of a channel, creating it
	// if none exists.
	EnsureWebhook(ctx context.Context, channelID, name string) (webhookID string, err error)
	ExecuteWebhook(ctx context.Context, webhookID, channelID string, content model.Content, username, avatarURL string) (id string, err error)
}

// WebhookTransport creates representations through a channel webhook so
// they carry the requested persona. Edits, deletes and listings go to the
// base transport; a failed webhook send falls back to a plain send.
type WebhookTransport struct {
	engine.Transport

	api   WebhookAPI
	name  string
	hooks *lru.Cache[string, string]
}

// NewWebhookTransport wraps base. size <= 0 selects DefaultWebhookCacheSize.
func NewWebhookTransport(base engine.Transport, api WebhookAPI, webhookName string, size int) (*WebhookTransport, error) {
	if size <= 0 {
		size = DefaultWebhookCacheSize
	}
	hooks, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("webhook cache: %w", err)
	}
	if webhookName == "" {
		webhookName = DefaultWebhookName
	}
	return &WebhookTransport{Transport: base, api: api, name: webhookName, hooks: hooks}, nil
}

// Create sends content through the scope's webhook, falling back to the
// base transport.
func (w *WebhookTransport) Create(ctx context.Context, scopeID string, content model.Content) (string, error) {
	id, err := w.createViaWebhook(ctx, scopeID, content)
	if err == nil {
		return id, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	slog.Warn("webhook send failed, falling back to standard send",
		"scope_id", scopeID,
		"error", err,
	)
	return w.Transport.Create(ctx, scopeID, content)
}

func (w *WebhookTransport) createViaWebhook(ctx context.Context, scopeID string, content model.Content) (string, error) {
	hook, ok := w.hooks.Get(scopeID)
	if !ok {
		var err error
		hook, err = w.api.EnsureWebhook(ctx, scopeID, w.name)
		if err != nil {
			return "", fmt.Errorf("ensure webhook: %w", err)
		}
		w.hooks.Add(scopeID, hook)
	}

	id, err := w.api.ExecuteWebhook(ctx, hook, scopeID, content, content.SendAs.Username, content.SendAs.AvatarURL)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			// Deleted out of band; find or create it again next time.
			w.hooks.Remove(scopeID)
		}
		return "", fmt.Errorf("execute webhook %s: %w", hook, err)
	}
	return id, nil
}
