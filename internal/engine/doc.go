// Package engine implements the husk reconciliation core.
//
// The engine keeps exactly one externally visible representation (a posted
// message) in step with a logically continuous piece of state, across
// process restarts, duplicate and out-of-order events, and concurrent
// triggers.
//
// ARCHITECTURE:
//
// Per-Key Serialization:
// Every reconciliation for a key runs under that key's lock (KeyLocks) for
// the full cycle. Different keys proceed fully in parallel. This removes
// the lost-update race where two events both observe "no representation"
// and both create one.
//
// Reconciliation Cycle:
//  1. Acquire the key lock (bounded by the cycle timeout)
//  2. Load the tracked entry from the Cache; on a miss, ask the Resolver
//     (when configured) to find a tagged representation in the scope
//  3. Render desired state: content, or absent
//  4. Converge: create, update in place, repost (delete then create),
//     delete, or do nothing
//  5. Write the checkpoint, then the cache. Never the other way around.
//
// Failure Model:
// Remote delete failures are non-fatal. Create/update failures leave the
// entry untouched so the next event retries from the pre-failure state.
// A failed checkpoint write after a successful remote mutation rolls the
// cache back; with a resolver configured the entry is evicted so the next
// event rescues the orphaned representation by its identity tag instead of
// creating a duplicate.
//
// Dispatch:
// Dispatcher accepts events without blocking, stamps them with the logical
// Clock and queues them on a per-key lane. Each lane is drained by one
// goroutine in seq order; different keys run in parallel.
package engine
