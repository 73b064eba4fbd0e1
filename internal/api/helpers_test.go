package api_test

import (
	"crypto/sha256"
	"encoding/hex"
)

// sha256Hex mirrors how the server hashes anon tokens before storing them.
func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
