package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex-encoded SHA-256 digest of data. File cache entries
// use it to derive filesystem-safe names from arbitrary keys.
func Hash(data []byte) string {
	d := sha256.Sum256(data)
	return hex.EncodeToString(d[:])
}
