package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserID returns a stable one-way digest of a user identifier so raw IDs
// never end up in permanent storage. sha256 keeps the digest identical across
// processes and restarts.
func HashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}
