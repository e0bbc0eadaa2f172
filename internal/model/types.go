package model

import "fmt"

// Key identifies one tracked entity.
//
// ScopeID is the channel/surface where the representation lives.
// SourceID is the logical entity being tracked: a source message id for
// the board, or the channel id itself for stickies.
type Key struct {
	ScopeID  string `json:"scope_id" yaml:"scope_id"`
	SourceID string `json:"source_id" yaml:"source_id"`
}

// String renders the key as "scope/source". Used as the map key for the
// lock table and cache.
func (k Key) String() string {
	return k.ScopeID + "/" + k.SourceID
}

// Valid reports whether both halves of the key are set.
func (k Key) Valid() bool {
	return k.ScopeID != "" && k.SourceID != ""
}

// Mode selects how an existing representation converges to new content.
type Mode int

const (
	// ModeUpdateInPlace edits the existing representation. Order in the
	// scope does not matter (board).
	ModeUpdateInPlace Mode = iota + 1

	// ModeRepost deletes and recreates the representation so that it
	// reclaims the bottom-of-scope position (sticky).
	ModeRepost
)

// String returns the persisted name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeUpdateInPlace:
		return "update_in_place"
	case ModeRepost:
		return "repost"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "update_in_place":
		return ModeUpdateInPlace, nil
	case "repost":
		return ModeRepost, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// TrackedEntry is the in-memory state of one key.
// Mutated only by the reconciliation engine.
type TrackedEntry struct {
	Key          Key    `json:"key"`
	OwnerScopeID string `json:"owner_scope_id,omitempty"`
	Mode         Mode   `json:"mode"`

	// PinnedText is the configured content for repost entries. Empty for
	// board entries, whose content is derived from the source.
	PinnedText string `json:"pinned_text,omitempty"`

	// Digest is the digest of the content last written to the
	// representation. Empty when unknown (e.g. resolved after a cold start).
	Digest string `json:"digest,omitempty"`

	RepresentationID string `json:"representation_id,omitempty"`
}

// HasRepresentation reports whether a live representation is recorded.
func (e TrackedEntry) HasRepresentation() bool {
	return e.RepresentationID != ""
}

// Checkpoint converts the entry to its durable counterpart.
func (e TrackedEntry) Checkpoint() Checkpoint {
	return Checkpoint(e)
}

// Checkpoint is the durable record of the last known representation per key.
// Field-for-field identical to TrackedEntry so the two always agree after a
// successful reconciliation.
type Checkpoint struct {
	Key              Key    `json:"key"`
	OwnerScopeID     string `json:"owner_scope_id,omitempty"`
	Mode             Mode   `json:"mode"`
	PinnedText       string `json:"pinned_text,omitempty"`
	Digest           string `json:"digest,omitempty"`
	RepresentationID string `json:"representation_id,omitempty"`
}

// Entry converts the checkpoint back into a cache entry.
func (c Checkpoint) Entry() TrackedEntry {
	return TrackedEntry(c)
}

// EventKind distinguishes event kinds.
type EventKind int

const (
	// KindCountChanged reports a new reaction count on a source message.
	KindCountChanged EventKind = iota + 1
	// KindSourceRemoved reports that the source entity is gone.
	KindSourceRemoved
	// KindNewActivity reports a new message posted in the scope.
	KindNewActivity
)

// String returns the snake_case event kind name.
func (k EventKind) String() string {
	switch k {
	case KindCountChanged:
		return "count_changed"
	case KindSourceRemoved:
		return "source_removed"
	case KindNewActivity:
		return "new_activity"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "count_changed":
		return KindCountChanged, nil
	case "source_removed":
		return KindSourceRemoved, nil
	case "new_activity":
		return KindNewActivity, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// Event is a read-only notification from the event source.
type Event struct {
	Key  Key       `json:"key"`
	Kind EventKind `json:"kind"`

	// Count is the current reaction count (KindCountChanged).
	Count int `json:"count,omitempty"`

	// TriggerID is the id of the message that caused KindNewActivity.
	TriggerID string `json:"trigger_id,omitempty"`

	// OwnerScopeID is the scope the source lives in (the source channel
	// for the board, the guild for stickies).
	OwnerScopeID string `json:"owner_scope_id,omitempty"`

	// Seq is stamped by the dispatcher's logical clock.
	Seq int64 `json:"seq,omitempty"`
}

// Validate checks the event is well-formed.
func (e Event) Validate() error {
	if !e.Key.Valid() {
		return fmt.Errorf("event key %q is incomplete", e.Key)
	}
	switch e.Kind {
	case KindCountChanged:
		if e.Count < 0 {
			return fmt.Errorf("negative count %d", e.Count)
		}
	case KindSourceRemoved, KindNewActivity:
	default:
		return fmt.Errorf("unknown event kind %d", e.Kind)
	}
	return nil
}
