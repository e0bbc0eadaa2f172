// Package store provides durable checkpoint storage for the husk
// reconciliation core.
//
// A checkpoint maps a reconciliation key (scope id, source id) of one
// domain to the last known representation id, plus the owner scope, mode,
// pinned text and content digest. Backends:
//
//   - Store: SQLite (mattn/go-sqlite3), the default
//   - Postgres: lib/pq, for deployments with several bot processes
//   - Memory: in-process, for tests and simulation
//
// Open selects a backend from a DSN. Every backend hands out
// domain-scoped Checkpoints values via Checkpoints(domain), so the board
// and sticky domains share one database without colliding.
//
// # Critical Patterns
//
// Upserts are idempotent (ON CONFLICT DO UPDATE); writing the same record
// twice leaves one row. Clear of a missing key is not an error.
//
// Load returns rows ordered by (scope_id, source_id) so startup is
// deterministic.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
