// Package app assembles the board and sticky engines from a loaded
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/husk/internal/board"
	"github.com/roach88/husk/internal/config"
	"github.com/roach88/husk/internal/engine"
	"github.com/roach88/husk/internal/sticky"
	"github.com/roach88/husk/internal/store"
)

// Deps are the platform collaborators shared by both domains.
type Deps struct {
	Transport engine.Transport
	Webhooks  board.WebhookAPI // optional
	Fetcher   board.SourceFetcher
}

// App holds the engines of one process.
type App struct {
	Config  config.Config
	Backend store.Backend
	Board   *engine.Engine

	// Sticky and Stickies are nil when the sticky domain is disabled.
	Sticky   *engine.Engine
	Stickies *sticky.Manager
}

// Open opens the checkpoint backend named by cfg.DSN and builds the
// engines over it.
func Open(cfg config.Config, deps Deps, opts ...engine.Option) (*App, error) {
	backend, err := store.Open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open checkpoints: %w", err)
	}
	a, err := New(cfg, backend, deps, opts...)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return a, nil
}

// New builds the engines over backend. Every engine is bounded by
// cfg.Timeout and the board resolver scans cfg.Lookback messages. opts are
// applied after the configured options.
func New(cfg config.Config, backend store.Backend, deps Deps, opts ...engine.Option) (*App, error) {
	common := append([]engine.Option{engine.WithTimeout(cfg.Timeout.Std())}, opts...)

	boardEngine, err := board.NewEngine(cfg.Board, board.Deps{
		Transport:   deps.Transport,
		Webhooks:    deps.Webhooks,
		Fetcher:     deps.Fetcher,
		Checkpoints: backend.Checkpoints(board.Domain),
	}, append([]engine.Option{engine.WithResolver(cfg.Lookback)}, common...)...)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Backend: backend, Board: boardEngine}
	if cfg.Sticky.Enabled {
		a.Sticky = sticky.NewEngine(sticky.Deps{
			Transport:   deps.Transport,
			Checkpoints: backend.Checkpoints(sticky.Domain),
		}, common...)
		a.Stickies = sticky.NewManager(a.Sticky)
	}
	return a, nil
}

// Load restores both domains from their checkpoints.
func (a *App) Load(ctx context.Context) error {
	if _, err := a.Board.Load(ctx); err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	if a.Stickies != nil {
		if _, err := a.Stickies.Load(ctx); err != nil {
			return fmt.Errorf("load stickies: %w", err)
		}
	}
	return nil
}

// BoardHandler returns the board's notification filter. Reactions on the
// board's own mirrors are ignored.
func (a *App) BoardHandler(sink board.EventSink, remover board.ReactionRemover) *board.Handler {
	return board.NewHandler(a.Config.Board, sink, remover,
		board.WithMirrorIndex(a.Backend.Checkpoints(board.Domain)))
}

// Close releases the checkpoint backend.
func (a *App) Close() error {
	if a.Backend == nil {
		return nil
	}
	return a.Backend.Close()
}

// ErrStickyDisabled is returned by sticky operations when the domain is
// turned off.
var ErrStickyDisabled = errors.New("sticky domain is disabled")

// StickyManager returns the sticky manager or ErrStickyDisabled.
func (a *App) StickyManager() (*sticky.Manager, error) {
	if a.Stickies == nil {
		return nil, ErrStickyDisabled
	}
	return a.Stickies, nil
}
