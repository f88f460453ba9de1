package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// newSecureToken returns 32 random bytes hex-encoded; used for invite and
// email-verification tokens. Only the sha256 of invite tokens is stored.
func newSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
