// Package identity normalizes contributor identities for policy comparisons.
//
// Ownership is authoritative case-insensitively: "Alice" and "alice" are the
// same owner. Identities may also arrive in different Unicode normalization
// forms depending on the platform that produced the commit, so every
// comparison goes through NFC normalization before case folding.
package identity

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical form of an identity: trimmed, NFC
// normalized, and lowercased. The canonical form is what gets persisted in
// the registry so that saved owners compare stably across runs.
func Normalize(id string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(id)))
}

// Equal reports whether two identities refer to the same contributor.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Known reports whether an identity is usable for authorization decisions.
// Empty or whitespace-only identities never match anything.
func Known(id string) bool {
	return Normalize(id) != ""
}
