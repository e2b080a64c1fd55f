package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashRefreshToken returns the hex SHA-256 digest of a refresh token string.
// Stores keep the digest instead of the raw token.
func HashRefreshToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// RefreshTokenHashEqual compares a candidate digest with the stored digest in constant time.
// An empty stored digest never matches, not even an empty candidate.
func RefreshTokenHashEqual(candidateHash, storedHash string) bool {
	if storedHash == "" || candidateHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidateHash), []byte(storedHash)) == 1
}
