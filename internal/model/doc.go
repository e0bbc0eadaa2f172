// Package model provides the shared data model for the husk reconciliation core.
//
// This package contains value types only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - A Key is immutable once created and unique per tracked artifact
//   - An empty RepresentationID means "no representation exists"
//   - Content is opaque to the engine beyond its Digest
//   - Identity tags are structured and versioned, never free-text substrings
//   - Event ordering uses the logical Seq only, never wall-clock timestamps
package model
