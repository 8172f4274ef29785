package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
	"github.com/rs/zerolog/log"
)

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new PostgreSQL-backed session store.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{
		pool: pool,
	}
}

// Create creates a new session in the database.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (
			session_id, user_id, csrf_token,
			created_at, last_activity, expires_at, rotated_at,
			user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9::inet
		)
	`

	// Convert empty IP address to nil for proper INET handling
	var ipAddress any
	if session.IPAddress == "" {
		ipAddress = nil
	} else {
		ipAddress = session.IPAddress
	}

	_, err := s.pool.Exec(ctx, query,
		session.Token,
		session.UserID,
		session.CSRFToken,
		session.CreatedAt,
		session.LastActivity,
		session.ExpiresAt,
		session.RotatedAt,
		session.UserAgent,
		ipAddress,
	)

	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to create session: %w", err))
	}

	log.Debug().
		Str("user_id", session.UserID.String()).
		Msg("Created session")

	return nil
}

// Get retrieves a session by bearer token, joined with the owning user's
// current username and role. Expiry is evaluated here rather than in SQL so
// a stale-but-present row comes back as ErrSessionExpired, not not-found.
func (s *SessionStore) Get(ctx context.Context, token string, timeout time.Duration) (*models.Session, error) {
	query := `
		SELECT
			s.session_id, s.user_id, s.csrf_token,
			s.created_at, s.last_activity, s.expires_at, s.rotated_at,
			s.user_agent, s.ip_address,
			u.username, u.role
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.session_id = $1
	`

	var session models.Session
	var ipAddress any
	err := s.pool.QueryRow(ctx, query, token).Scan(
		&session.Token,
		&session.UserID,
		&session.CSRFToken,
		&session.CreatedAt,
		&session.LastActivity,
		&session.ExpiresAt,
		&session.RotatedAt,
		&session.UserAgent,
		&ipAddress,
		&session.Username,
		&session.Role,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, mapPostgresError(fmt.Errorf("failed to get session: %w", err))
	}

	// Convert INET to string
	if ipAddress != nil {
		session.IPAddress = fmt.Sprintf("%v", ipAddress)
	}

	if session.IsExpired(time.Now(), timeout) {
		return nil, store.ErrSessionExpired
	}

	return &session, nil
}

// Touch updates the last_activity timestamp for a session.
func (s *SessionStore) Touch(ctx context.Context, token string) error {
	query := `
		UPDATE sessions
		SET last_activity = $2
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, token, time.Now())
	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to touch session: %w", err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}

	return nil
}

// Rotate replaces oldToken with newToken in a single conditional update.
// Two concurrent requests can both decide to rotate; the WHERE clause makes
// sure only one wins, and the loser gets ErrRotationLost.
func (s *SessionStore) Rotate(ctx context.Context, oldToken, newToken string) error {
	query := `
		UPDATE sessions
		SET session_id = $2, rotated_at = $3, last_activity = $3
		WHERE session_id = $1
	`

	result, err := s.pool.Exec(ctx, query, oldToken, newToken, time.Now())
	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to rotate session: %w", err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrRotationLost
	}

	log.Debug().Msg("Rotated session token")

	return nil
}

// Delete deletes a session by token (logout). Deleting an absent token is
// not an error.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	query := `DELETE FROM sessions WHERE session_id = $1`

	result, err := s.pool.Exec(ctx, query, token)
	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to delete session: %w", err))
	}

	if result.RowsAffected() > 0 {
		log.Debug().Msg("Deleted session")
	}

	return nil
}

// DeleteByUser deletes all sessions for a user (logout everywhere).
func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `DELETE FROM sessions WHERE user_id = $1`

	result, err := s.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, mapPostgresError(fmt.Errorf("failed to delete sessions by user: %w", err))
	}

	count := int(result.RowsAffected())

	log.Info().
		Str("user_id", userID.String()).
		Int("count", count).
		Msg("Deleted all sessions for user")

	return count, nil
}

// PruneUserSessions keeps the `keep` most recently active sessions for the
// user and deletes the rest.
func (s *SessionStore) PruneUserSessions(ctx context.Context, userID uuid.UUID, keep int) (int, error) {
	query := `
		DELETE FROM sessions
		WHERE user_id = $1
		AND session_id NOT IN (
			SELECT session_id FROM sessions
			WHERE user_id = $1
			ORDER BY last_activity DESC
			LIMIT $2
		)
	`

	result, err := s.pool.Exec(ctx, query, userID, keep)
	if err != nil {
		return 0, mapPostgresError(fmt.Errorf("failed to prune user sessions: %w", err))
	}

	count := int(result.RowsAffected())

	if count > 0 {
		log.Info().
			Str("user_id", userID.String()).
			Int("count", count).
			Msg("Pruned old sessions for user")
	}

	return count, nil
}

// DeleteExpired deletes all sessions past either expiry bound (cleanup job).
func (s *SessionStore) DeleteExpired(ctx context.Context, timeout time.Duration) (int, error) {
	query := `
		DELETE FROM sessions
		WHERE last_activity < $1 OR expires_at < $2
	`

	now := time.Now()
	result, err := s.pool.Exec(ctx, query, now.Add(-timeout), now)
	if err != nil {
		return 0, mapPostgresError(fmt.Errorf("failed to delete expired sessions: %w", err))
	}

	count := int(result.RowsAffected())

	if count > 0 {
		log.Info().
			Int("count", count).
			Msg("Deleted expired sessions")
	}

	return count, nil
}

// CountActive returns the number of live sessions for a user.
func (s *SessionStore) CountActive(ctx context.Context, userID uuid.UUID, timeout time.Duration) (int, error) {
	query := `
		SELECT COUNT(*) FROM sessions
		WHERE user_id = $1
		AND last_activity >= $2
		AND expires_at >= $3
	`

	now := time.Now()
	var count int
	err := s.pool.QueryRow(ctx, query, userID, now.Add(-timeout), now).Scan(&count)
	if err != nil {
		return 0, mapPostgresError(fmt.Errorf("failed to count active sessions: %w", err))
	}

	return count, nil
}
