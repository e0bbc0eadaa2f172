package board

import (
	"fmt"

	"github.com/roach88/husk/internal/engine"
	"github.com/roach88/husk/internal/model"
)

// Deps are the collaborators of a board engine.
type Deps struct {
	Transport   engine.Transport
	Webhooks    WebhookAPI // optional
	Fetcher     SourceFetcher
	Checkpoints engine.Checkpointer
}

// NewEngine assembles the board engine: update-in-place mode, identity
// resolver on, webhook persona when deps.Webhooks is set. opts are applied
// after the board defaults.
func NewEngine(cfg Config, deps Deps, opts ...engine.Option) (*engine.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("board config: %w", err)
	}

	transport := deps.Transport
	if deps.Webhooks != nil {
		wt, err := NewWebhookTransport(deps.Transport, deps.Webhooks, cfg.WebhookName, 0)
		if err != nil {
			return nil, err
		}
		transport = wt
	}

	e := engine.New(engine.Config{
		Domain:      Domain,
		Mode:        model.ModeUpdateInPlace,
		Renderer:    NewRenderer(cfg, deps.Fetcher),
		Transport:   transport,
		Checkpoints: deps.Checkpoints,
	}, append([]engine.Option{engine.WithResolver(engine.DefaultLookback)}, opts...)...)
	return e, nil
}
