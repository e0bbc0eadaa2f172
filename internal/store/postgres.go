package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/roach88/husk/internal/model"
)

const (
	postgresTableName        = "husk_checkpoints"
	postgresOperationTimeout = 5 * time.Second
)

// ErrInvalidDSN is returned for empty or unusable DSNs.
var ErrInvalidDSN = errors.New("invalid checkpoint DSN")

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

type migrateFunc func(ctx context.Context, db *sql.DB) error

// Postgres is the checkpoint backend for deployments where several bot
// processes share state. The table is created lazily on first use; a
// failed initialization is retried by the next operation.
type Postgres struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc
	migrate   migrateFunc

	mu sync.Mutex
	db *sql.DB // non-nil once the table exists
}

// NewPostgres creates a Postgres backend. No connection is made until the
// first operation.
func NewPostgres(dsn string) (*Postgres, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidDSN
	}
	p := &Postgres{
		dsn:       dsn,
		tableName: postgresTableName,
		openDB:    sql.Open,
	}
	p.migrate = p.createTable
	return p, nil
}

// Checkpoints returns the checkpointer for one domain.
func (p *Postgres) Checkpoints(domain string) Checkpoints {
	return &postgresCheckpoints{p: p, domain: domain}
}

// Close closes the connection pool if one was opened.
func (p *Postgres) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// ensureReady opens the pool and creates the table on first use. The DDL
// runs detached from the caller's cancellation under its own timeout, so a
// cancelled first operation does not fail initialization.
func (p *Postgres) ensureReady(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}

	db, err := p.openDB("postgres", p.dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postgresOperationTimeout)
	defer cancel()
	if err := p.migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create checkpoint table: %w", err)
	}
	p.db = db
	return db, nil
}

func (p *Postgres) createTable(ctx context.Context, db *sql.DB) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			domain TEXT NOT NULL,
			scope_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			owner_scope_id TEXT NOT NULL DEFAULT '',
			mode TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			digest TEXT NOT NULL DEFAULT '',
			representation_id TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (domain, scope_id, source_id)
		)`, postgresQuoteIdentifier(p.tableName))
	_, err := db.ExecContext(ctx, query)
	return err
}

type postgresCheckpoints struct {
	p      *Postgres
	domain string
}

func (c *postgresCheckpoints) Load(ctx context.Context) ([]model.Checkpoint, error) {
	db, err := c.p.ensureReady(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT scope_id, source_id, owner_scope_id, mode, content, digest, representation_id
		FROM %s WHERE domain = $1
		ORDER BY scope_id ASC, source_id ASC`, postgresQuoteIdentifier(c.p.tableName))
	rows, err := db.QueryContext(ctx, query, c.domain)
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

func (c *postgresCheckpoints) Upsert(ctx context.Context, cp model.Checkpoint) error {
	if !cp.Key.Valid() {
		return fmt.Errorf("upsert checkpoint: incomplete key %q", cp.Key)
	}
	db, err := c.p.ensureReady(ctx)
	if err != nil {
		return fmt.Errorf("upsert checkpoint %s: %w", cp.Key, err)
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (domain, scope_id, source_id, owner_scope_id, mode, content, digest, representation_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (domain, scope_id, source_id)
		DO UPDATE SET
			owner_scope_id = EXCLUDED.owner_scope_id,
			mode = EXCLUDED.mode,
			content = EXCLUDED.content,
			digest = EXCLUDED.digest,
			representation_id = EXCLUDED.representation_id,
			updated_at = NOW()`, postgresQuoteIdentifier(c.p.tableName))
	_, err = db.ExecContext(ctx, query,
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

func (c *postgresCheckpoints) Clear(ctx context.Context, key model.Key) error {
	db, err := c.p.ensureReady(ctx)
	if err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE domain = $1 AND scope_id = $2 AND source_id = $3`,
		postgresQuoteIdentifier(c.p.tableName))
	if _, err := db.ExecContext(ctx, query, c.domain, key.ScopeID, key.SourceID); err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", key, err)
	}
	return nil
}

func (c *postgresCheckpoints) FindByRepresentation(ctx context.Context, representationID string) (model.Checkpoint, bool, error) {
	db, err := c.p.ensureReady(ctx)
	if err != nil {
		return model.Checkpoint{}, false, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT scope_id, source_id, owner_scope_id, mode, content, digest, representation_id
		FROM %s WHERE domain = $1 AND representation_id = $2`, postgresQuoteIdentifier(c.p.tableName))
	cp, err := scanCheckpoint(db.QueryRowContext(ctx, query, c.domain, representationID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Checkpoint{}, false, nil
	}
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("find checkpoint by representation: %w", err)
	}
	return cp, true, nil
}

func postgresQuoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
