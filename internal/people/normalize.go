// Package people resolves participant mentions into canonical person records
// and merges duplicates.
package people

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeName trims and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NameHash is the identity hash of a name: sha256 of the lower-cased,
// whitespace-collapsed form.
func NameHash(name string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(NormalizeName(name))))
	return hex.EncodeToString(sum[:])
}

// NormalizeKey lower-cases and trims company names and emails. Empty means
// absent.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ParseFullName splits a display name on its first space: "Mary Jane Watson"
// becomes Mary / Jane Watson. A single word has no last name.
func ParseFullName(name string) (first, last string) {
	name = NormalizeName(name)
	if name == "" {
		return "", ""
	}
	first, last, _ = strings.Cut(name, " ")
	return first, last
}

func strPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
