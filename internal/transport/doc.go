// Package transport provides an in-process representation transport.
//
// Memory behaves like a chat platform as far as the reconciliation core
// can observe: messages live in channels (scopes), get sequential ids
// (m1, m2, ...), can be edited and deleted, and are listed newest first.
// Deleting or editing a missing message returns an error wrapping
// engine.ErrNotFound. It also hosts channel webhooks so the board's
// send-as path can be exercised without a real client.
//
// Memory is used by tests, the scenario harness and `husk simulate`.
package transport
