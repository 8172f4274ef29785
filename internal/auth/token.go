package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of a session token. 32 bytes encodes to 64
// lowercase hex characters in the cookie.
const tokenBytes = 32

// NewSessionToken generates a new random session token.
func NewSessionToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewCSRFToken generates a per-session anti-forgery secret. Same shape as a
// session token but never leaves the server except embedded in pages.
func NewCSRFToken() (string, error) {
	return NewSessionToken()
}

// ValidTokenFormat reports whether a cookie value looks like a token we
// issued. Rejecting malformed values up front keeps junk out of store
// lookups.
func ValidTokenFormat(token string) bool {
	if len(token) != tokenBytes*2 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
