// Package digest computes content fingerprints for policy decisions.
//
// A fingerprint is the hex-encoded SHA-256 of a file's bytes. Two files are
// "identical content" iff their fingerprints are equal; the engine relies on
// this both for integrity snapshots and for recovering moves that the
// version-control layer reported as a delete plus an add.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Bytes returns the fingerprint of an in-memory byte slice.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// File returns the fingerprint of the file at path, streaming its contents
// so large files do not need to fit in memory.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
