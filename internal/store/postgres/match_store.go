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

// MatchStore implements store.MatchStore using PostgreSQL.
type MatchStore struct {
	pool *pgxpool.Pool
}

// NewMatchStore creates a new PostgreSQL-backed match store.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{
		pool: pool,
	}
}

// Like records a like and promotes both rows to "matched" when the target
// has already liked the user back. The insert and the promotion run in one
// transaction so a mutual match is never half applied.
func (s *MatchStore) Like(ctx context.Context, userID, targetID uuid.UUID) (*store.RateResult, error) {
	score, err := s.overlapScore(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate match id: %w", err)
	}

	query := `
		INSERT INTO matches (id, user_id, matched_user_id, status, match_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = tx.Exec(ctx, query, id, userID, targetID, models.MatchStatusLiked, score, time.Now())
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to record like: %w", err))
	}

	// Mutual like: promote both directed rows.
	promote := `
		UPDATE matches
		SET status = $3
		WHERE ((user_id = $1 AND matched_user_id = $2) OR (user_id = $2 AND matched_user_id = $1))
		AND EXISTS (
			SELECT 1 FROM matches
			WHERE user_id = $2 AND matched_user_id = $1 AND status IN ($4, $3)
		)
	`

	result, err := tx.Exec(ctx, promote, userID, targetID, models.MatchStatusMatched, models.MatchStatusLiked)
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to promote mutual match: %w", err))
	}

	mutual := result.RowsAffected() == 2

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to commit rating: %w", err))
	}

	if mutual {
		log.Info().
			Str("user_id", userID.String()).
			Str("target_id", targetID.String()).
			Msg("Mutual match created")
	}

	return &store.RateResult{Mutual: mutual, Score: score}, nil
}

// Pass records a pass from userID to targetID.
func (s *MatchStore) Pass(ctx context.Context, userID, targetID uuid.UUID) (*store.RateResult, error) {
	score, err := s.overlapScore(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate match id: %w", err)
	}

	query := `
		INSERT INTO matches (id, user_id, matched_user_id, status, match_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query, id, userID, targetID, models.MatchStatusPassed, score, time.Now())
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to record pass: %w", err))
	}

	return &store.RateResult{Mutual: false, Score: score}, nil
}

// ListMatches returns the user's mutual matches, most recent first.
func (s *MatchStore) ListMatches(ctx context.Context, userID uuid.UUID) ([]*models.MatchProfile, error) {
	query := `
		SELECT
			m.id, m.status, m.created_at,
			u.id, u.username, u.bio, u.gender, u.age, u.location,
			u.interests, u.profile_image, u.last_active
		FROM matches m
		JOIN users u ON u.id = m.matched_user_id
		WHERE m.user_id = $1 AND m.status = $2
		ORDER BY m.created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, userID, models.MatchStatusMatched)
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to query matches: %w", err))
	}
	defer rows.Close()

	var profiles []*models.MatchProfile
	for rows.Next() {
		var p models.MatchProfile
		err := rows.Scan(
			&p.MatchID,
			&p.Status,
			&p.MatchedAt,
			&p.User.ID,
			&p.User.Username,
			&p.User.Bio,
			&p.User.Gender,
			&p.User.Age,
			&p.User.Location,
			&p.User.Interests,
			&p.User.ProfileImage,
			&p.User.LastActive,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		profiles = append(profiles, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to read matches: %w", err))
	}

	return profiles, nil
}

// Get returns the match row between two users, if any.
func (s *MatchStore) Get(ctx context.Context, userID, targetID uuid.UUID) (*models.Match, error) {
	query := `
		SELECT id, user_id, matched_user_id, status, match_score, created_at
		FROM matches
		WHERE user_id = $1 AND matched_user_id = $2
	`

	var m models.Match
	err := s.pool.QueryRow(ctx, query, userID, targetID).Scan(
		&m.ID,
		&m.UserID,
		&m.MatchedUserID,
		&m.Status,
		&m.Score,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMatchNotFound
		}
		return nil, mapPostgresError(fmt.Errorf("failed to get match: %w", err))
	}

	return &m, nil
}

// overlapScore loads both users' interests and computes the shared-interest
// ratio used as the match score.
func (s *MatchStore) overlapScore(ctx context.Context, userID, targetID uuid.UUID) (float64, error) {
	query := `SELECT interests FROM users WHERE id = $1`

	var mine, theirs []string
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&mine); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrUserNotFound
		}
		return 0, mapPostgresError(fmt.Errorf("failed to load interests: %w", err))
	}
	if err := s.pool.QueryRow(ctx, query, targetID).Scan(&theirs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrUserNotFound
		}
		return 0, mapPostgresError(fmt.Errorf("failed to load interests: %w", err))
	}

	return store.OverlapScore(mine, theirs), nil
}
