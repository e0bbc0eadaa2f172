package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/husk/internal/model"
)

// DefaultLookback is the number of recent representations scanned by the
// resolver. Matches the platform's maximum single-page message fetch.
const DefaultLookback = 100

// Resolver re-associates an existing representation with its key by
// scanning a bounded window of recent representations in the scope for a
// matching identity tag.
//
// Used when the cache has no entry: cold start, rollback after a failed
// checkpoint write, or multi-process deployments.
type Resolver struct {
	transport Transport
	kind      string
	lookback  int
	metrics   *Metrics
}

// NewResolver creates a resolver for tags of the given kind.
// A non-positive lookback selects DefaultLookback.
func NewResolver(t Transport, kind string, lookback int) *Resolver {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Resolver{transport: t, kind: kind, lookback: lookback}
}

// Resolve returns the id of the representation tagged with key.SourceID.
// A miss returns found=false and a nil error: callers treat it as "no
// existing representation". Only a failed listing is an error.
func (r *Resolver) Resolve(ctx context.Context, key model.Key) (id string, found bool, err error) {
	recent, err := r.transport.ListRecent(ctx, key.ScopeID, r.lookback)
	if err != nil {
		r.metrics.observeScan(r.kind, "error")
		return "", false, fmt.Errorf("list recent in %s: %w", key.ScopeID, err)
	}

	// The transport may return more than asked for; the window stays bounded.
	if len(recent) > r.lookback {
		recent = recent[:r.lookback]
	}

	for _, rep := range recent {
		tag, err := model.DecodeTag(rep.Tag)
		if err != nil {
			continue
		}
		if tag.Matches(r.kind, key.SourceID) {
			slog.Debug("resolver matched representation",
				"key", key,
				"representation_id", rep.ID,
			)
			r.metrics.observeScan(r.kind, "hit")
			return rep.ID, true, nil
		}
	}

	r.metrics.observeScan(r.kind, "miss")
	return "", false, nil
}
