package model

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// TagPrefix marks a string as a husk identity tag.
const TagPrefix = "husk1."

// ErrNotATag is returned by DecodeTag for strings that are not identity tags.
// Resolvers treat it as "no match", never as a failure.
var ErrNotATag = errors.New("not an identity tag")

// Tag is the decoded identity embedded in a representation.
type Tag struct {
	Version  int    `cbor:"1,keyasint"`
	Kind     string `cbor:"2,keyasint"`
	SourceID string `cbor:"3,keyasint"`
}

// tagEncMode uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// identity always yields the same tag string.
var tagEncMode cbor.EncMode

var tagDecMode cbor.DecMode

func init() {
	var err error
	tagEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("model: CBOR encoder initialization failed: " + err.Error())
	}
	tagDecMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("model: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeTag builds the identity tag for a source entity of the given kind
// (e.g. "board"). Kind keeps tags from different domains sharing a channel
// from matching each other.
func EncodeTag(kind, sourceID string) (string, error) {
	if kind == "" || sourceID == "" {
		return "", fmt.Errorf("encode tag: kind and source id are required")
	}
	payload, err := tagEncMode.Marshal(Tag{Version: TagVersion, Kind: kind, SourceID: sourceID})
	if err != nil {
		return "", fmt.Errorf("encode tag: %w", err)
	}
	return TagPrefix + base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeTag parses an identity tag. Any string that is not a well-formed
// tag of a known version yields an error wrapping ErrNotATag.
func DecodeTag(s string) (Tag, error) {
	encoded, ok := strings.CutPrefix(strings.TrimSpace(s), TagPrefix)
	if !ok {
		return Tag{}, ErrNotATag
	}
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Tag{}, fmt.Errorf("%w: bad encoding: %v", ErrNotATag, err)
	}
	var tag Tag
	if err := tagDecMode.Unmarshal(payload, &tag); err != nil {
		return Tag{}, fmt.Errorf("%w: bad payload: %v", ErrNotATag, err)
	}
	if tag.Version != TagVersion {
		return Tag{}, fmt.Errorf("%w: unsupported version %d", ErrNotATag, tag.Version)
	}
	if tag.Kind == "" || tag.SourceID == "" {
		return Tag{}, fmt.Errorf("%w: incomplete payload", ErrNotATag)
	}
	return tag, nil
}

// Matches reports whether the tag identifies the given source of the given kind.
func (t Tag) Matches(kind, sourceID string) bool {
	return t.Kind == kind && t.SourceID == sourceID
}
