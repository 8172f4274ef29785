package models

import (
	"time"

	"github.com/google/uuid"
)

// Session represents a user's authenticated session.
// Token is the only value stored in the cookie; all session data lives
// server-side. Validity requires both the sliding window (LastActivity within
// the configured timeout) and the absolute cap (ExpiresAt).
type Session struct {
	Token  string    // 256-bit hex bearer token, rotated periodically
	UserID uuid.UUID // Who is logged in

	// Denormalized display attributes, refreshed from the users row on every
	// validate so out-of-band role changes take effect immediately.
	Username string
	Role     string

	CSRFToken string // per-session anti-forgery secret

	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	RotatedAt    time.Time

	// Optional audit metadata
	UserAgent string
	IPAddress string
}

// IsExpired reports whether the session is past its sliding window or its
// absolute cutoff at the given instant.
func (s *Session) IsExpired(now time.Time, timeout time.Duration) bool {
	if now.Sub(s.LastActivity) > timeout {
		return true
	}
	return now.After(s.ExpiresAt)
}
