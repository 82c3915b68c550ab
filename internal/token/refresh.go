package token

import (
	"crypto/rand"
	"encoding/hex"
)

// refreshTokenBytes is the entropy of an opaque refresh token. 40 random
// bytes encode to an 80-character hex string.
const refreshTokenBytes = 40

// NewRefreshToken generates a cryptographically random opaque token. Refresh
// tokens carry no embedded claims: they are pure lookup keys into the token
// store.
func NewRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
