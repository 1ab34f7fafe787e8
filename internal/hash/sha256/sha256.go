// Package sha256 fingerprints published pages and API payloads.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ETag formats the digest of data as a strong entity tag.
func ETag(data []byte) string {
	return `"` + Sum(data)[:32] + `"`
}
