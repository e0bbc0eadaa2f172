package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainContent is the domain prefix for content digests.
// The version suffix enables future algorithm migration.
const DomainContent = "husk/content/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the change digest of rendered content. The identity tag
// is excluded: two renders of the same state always agree.
func (c Content) Digest() (string, error) {
	canonical, err := MarshalCanonical(c.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("content digest: %w", err)
	}
	return hashWithDomain(DomainContent, canonical), nil
}

// MustDigest is like Digest but panics on error.
// Use only in tests or when the content is known to be valid.
func (c Content) MustDigest() string {
	d, err := c.Digest()
	if err != nil {
		panic(err)
	}
	return d
}
