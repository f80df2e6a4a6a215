// Package sha256 provides content hashing for extracted pages.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex SHA-256 digest of the input. Recorded alongside
// extraction results so callers can detect unchanged content across crawls.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
