package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/husk/internal/model"
)

// Checkpoints is the checkpoint contract of one domain. Satisfies
// engine.Checkpointer.
type Checkpoints interface {
	Load(ctx context.Context) ([]model.Checkpoint, error)
	Upsert(ctx context.Context, cp model.Checkpoint) error
	Clear(ctx context.Context, key model.Key) error
	FindByRepresentation(ctx context.Context, representationID string) (model.Checkpoint, bool, error)
}

type sqliteCheckpoints struct {
	db     *sql.DB
	domain string
}

// Load returns every checkpoint of the domain ordered by key.
func (c *sqliteCheckpoints) Load(ctx context.Context) ([]model.Checkpoint, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT scope_id, source_id, owner_scope_id, mode, content, digest, representation_id
		FROM checkpoints
		WHERE domain = ?
		ORDER BY scope_id ASC, source_id ASC
	`, c.domain)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	var out []model.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("load checkpoints: %w", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces the checkpoint for cp.Key.
func (c *sqliteCheckpoints) Upsert(ctx context.Context, cp model.Checkpoint) error {
	if !cp.Key.Valid() {
		return fmt.Errorf("upsert checkpoint: incomplete key %q", cp.Key)
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO checkpoints
		(domain, scope_id, source_id, owner_scope_id, mode, content, digest, representation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, scope_id, source_id) DO UPDATE SET
			owner_scope_id = excluded.owner_scope_id,
			mode = excluded.mode,
			content = excluded.content,
			digest = excluded.digest,
			representation_id = excluded.representation_id
	`,
		c.domain,
		cp.Key.ScopeID,
		cp.Key.SourceID,
		cp.OwnerScopeID,
		modeName(cp.Mode),
		cp.PinnedText,
		cp.Digest,
		nullString(cp.RepresentationID),
	)
	if err != nil {
		return fmt.Errorf("upsert checkpoint %s: %w", cp.Key, err)
	}
	return nil
}

// Clear deletes the checkpoint for key. Clearing a missing key is a no-op.
func (c *sqliteCheckpoints) Clear(ctx context.Context, key model.Key) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM checkpoints WHERE domain = ? AND scope_id = ? AND source_id = ?
	`, c.domain, key.ScopeID, key.SourceID)
	if err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", key, err)
	}
	return nil
}

// FindByRepresentation returns the checkpoint currently pointing at
// representationID.
func (c *sqliteCheckpoints) FindByRepresentation(ctx context.Context, representationID string) (model.Checkpoint, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT scope_id, source_id, owner_scope_id, mode, content, digest, representation_id
		FROM checkpoints
		WHERE domain = ? AND representation_id = ?
	`, c.domain, representationID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Checkpoint{}, false, nil
	}
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("find checkpoint by representation: %w", err)
	}
	return cp, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(r rowScanner) (model.Checkpoint, error) {
	var (
		cp   model.Checkpoint
		mode string
		rep  sql.NullString
	)
	if err := r.Scan(&cp.Key.ScopeID, &cp.Key.SourceID, &cp.OwnerScopeID, &mode, &cp.PinnedText, &cp.Digest, &rep); err != nil {
		return model.Checkpoint{}, err
	}
	m, err := model.ParseMode(mode)
	if err != nil {
		return model.Checkpoint{}, fmt.Errorf("checkpoint %s: %w", cp.Key, err)
	}
	cp.Mode = m
	cp.RepresentationID = rep.String
	return cp, nil
}

// modeName persists a mode, defaulting unset modes to update-in-place.
func modeName(m model.Mode) string {
	if m == 0 {
		return model.ModeUpdateInPlace.String()
	}
	return m.String()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
