package model

// Version constants for persisted formats.
const (
	// TagVersion is the identity tag payload version.
	TagVersion = 1

	// SchemaVersion is the checkpoint record layout version.
	SchemaVersion = "1"
)
