// Package digest computes and validates the content-addressing hashes
// used throughout branchback's object store.
package digest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Size is the length in hex characters of a digest.
const Size = 40

// Of returns the hex-encoded SHA-1 digest of data.
func Of(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s has the shape of a digest: exactly Size
// lowercase hex characters. It does not check that any object with
// that digest exists.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// Normalize lowercases a hex string so digests compare and index
// consistently regardless of how a caller typed them.
func Normalize(s string) string {
	return strings.ToLower(s)
}

// Shard splits a digest into the two-level fan-out path components used
// by the object store: a two-character directory and the remaining
// thirty-eight characters as the file name.
func Shard(d string) (dir, name string, err error) {
	if !Valid(d) {
		return "", "", fmt.Errorf("digest: malformed digest %q", d)
	}
	return d[:2], d[2:], nil
}
