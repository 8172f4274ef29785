package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/loveconnect/loveconnect/internal/models"
)

// Errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrRotationLost    = errors.New("session rotation lost to concurrent request")
)

// SessionStore manages server-side session records. The session layer in
// internal/auth is the only writer of last_activity and rotation; page
// handlers read joined user attributes through Get.
type SessionStore interface {
	// Create persists a new session row.
	Create(ctx context.Context, session *models.Session) error

	// Get retrieves a session by bearer token, joined with the owning
	// user's current username and role. Returns ErrSessionNotFound for an
	// unknown token and ErrSessionExpired past either expiry bound.
	Get(ctx context.Context, token string, timeout time.Duration) (*models.Session, error)

	// Touch sets last_activity to now for the given token.
	Touch(ctx context.Context, token string) error

	// Rotate atomically replaces oldToken with newToken and stamps
	// rotated_at. Returns ErrRotationLost when the old token no longer
	// exists, which happens when a concurrent request won the rotation.
	Rotate(ctx context.Context, oldToken, newToken string) error

	// Delete removes a session by token. Deleting an absent token is not an
	// error; destroy must be idempotent.
	Delete(ctx context.Context, token string) error

	// DeleteByUser removes all sessions for a user (logout everywhere).
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// PruneUserSessions keeps the `keep` most recently active sessions for
	// the user and deletes the rest. Returns the number deleted.
	PruneUserSessions(ctx context.Context, userID uuid.UUID, keep int) (int, error)

	// DeleteExpired removes sessions idle longer than timeout or past their
	// absolute cutoff. Only strictly-expired rows are touched, so the sweep
	// is safe to run concurrently with creation and validation.
	DeleteExpired(ctx context.Context, timeout time.Duration) (int, error)

	// CountActive returns the number of live sessions for a user.
	CountActive(ctx context.Context, userID uuid.UUID, timeout time.Duration) (int, error)
}
