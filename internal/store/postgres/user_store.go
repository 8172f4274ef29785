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

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{
		pool: pool,
	}
}

const userColumns = `
	id, username, email, password_hash, role,
	bio, gender, age, location, interests, profile_image,
	looking_for, age_min, age_max, max_distance,
	dark_mode, is_active, last_active, created_at, updated_at
`

// Create creates a new user in the database.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			id, username, email, password_hash, role,
			bio, gender, age, location, interests, profile_image,
			looking_for, age_min, age_max, max_distance,
			dark_mode, is_active, last_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18, $19, $20
		)
	`

	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Bio,
		user.Gender,
		user.Age,
		user.Location,
		user.Interests,
		user.ProfileImage,
		user.LookingFor,
		user.AgeMin,
		user.AgeMax,
		user.MaxDistance,
		user.DarkMode,
		user.IsActive,
		user.LastActive,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to create user: %w", err))
	}

	log.Debug().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("Created user")

	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Bio,
		&user.Gender,
		&user.Age,
		&user.Location,
		&user.Interests,
		&user.ProfileImage,
		&user.LookingFor,
		&user.AgeMin,
		&user.AgeMax,
		&user.MaxDistance,
		&user.DarkMode,
		&user.IsActive,
		&user.LastActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, mapPostgresError(fmt.Errorf("failed to get user: %w", err))
	}

	return user, nil
}

// GetByUsername retrieves a user by username, including the password hash.
// The lookup is case-insensitive, matching the uniqueness rule.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`

	user, err := scanUser(s.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, mapPostgresError(fmt.Errorf("failed to get user by username: %w", err))
	}

	return user, nil
}

// GetByEmail retrieves a user by email address, case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	user, err := scanUser(s.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, mapPostgresError(fmt.Errorf("failed to get user by email: %w", err))
	}

	return user, nil
}

// UpdateProfile updates the profile fields for a user.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, update store.ProfileUpdate) error {
	query := `
		UPDATE users
		SET bio = $2, gender = $3, age = $4, location = $5, interests = $6,
			updated_at = $7
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		id,
		update.Bio,
		update.Gender,
		update.Age,
		update.Location,
		update.Interests,
		time.Now(),
	)
	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to update profile: %w", err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

// UpdatePreferences updates the dating preferences for a user.
func (s *UserStore) UpdatePreferences(ctx context.Context, id uuid.UUID, update store.PreferencesUpdate) error {
	query := `
		UPDATE users
		SET looking_for = $2, age_min = $3, age_max = $4, max_distance = $5,
			updated_at = $6
		WHERE id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		id,
		update.LookingFor,
		update.AgeMin,
		update.AgeMax,
		update.MaxDistance,
		time.Now(),
	)
	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to update preferences: %w", err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

// UpdateTheme updates the dark mode flag for a user.
func (s *UserStore) UpdateTheme(ctx context.Context, id uuid.UUID, darkMode bool) error {
	query := `UPDATE users SET dark_mode = $2, updated_at = $3 WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id, darkMode, time.Now())
	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to update theme: %w", err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id, passwordHash, time.Now())
	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to update password: %w", err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

// TouchLastActive updates the last_active timestamp.
func (s *UserStore) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET last_active = $2 WHERE id = $1`

	result, err := s.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return mapPostgresError(fmt.Errorf("failed to touch last_active: %w", err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	return nil
}

// Discover returns active profiles matching the filter that the viewer has
// not yet rated, in random order. Profiles inactive for more than 30 days
// are excluded.
func (s *UserStore) Discover(ctx context.Context, filter models.DiscoverFilter) ([]*models.User, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id != $1
		AND is_active = TRUE
		AND last_active > now() - INTERVAL '30 days'
		AND age BETWEEN $2 AND $3
		AND ($4::text[] IS NULL OR gender = ANY($4))
		AND id NOT IN (
			SELECT matched_user_id FROM matches WHERE user_id = $1
		)
		ORDER BY random()
		LIMIT $5
	`

	var genders []string
	if len(filter.Genders) > 0 {
		genders = filter.Genders
	}

	rows, err := s.pool.Query(ctx, query,
		filter.ViewerID,
		filter.AgeMin,
		filter.AgeMax,
		genders,
		limit,
	)
	if err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to query discover feed: %w", err))
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, mapPostgresError(fmt.Errorf("failed to read discover feed: %w", err))
	}

	return users, nil
}
