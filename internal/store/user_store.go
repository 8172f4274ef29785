package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/loveconnect/loveconnect/internal/models"
)

// Errors
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Bio       string
	Gender    string
	Age       int
	Location  string
	Interests []string
}

// PreferencesUpdate carries the editable dating preferences.
type PreferencesUpdate struct {
	LookingFor  []string
	AgeMin      int
	AgeMax      int
	MaxDistance int
}

// UserStore manages user accounts and profiles.
type UserStore interface {
	// Create creates a new user. Returns ErrUserExists if the username or
	// email is already taken.
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByUsername retrieves a user by username, including the password
	// hash. Only the login handler should call this.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetByEmail retrieves a user by email address.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateProfile updates the profile fields for a user.
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) error

	// UpdatePreferences updates the dating preferences for a user.
	UpdatePreferences(ctx context.Context, id uuid.UUID, update PreferencesUpdate) error

	// UpdateTheme updates the dark mode flag for a user.
	UpdateTheme(ctx context.Context, id uuid.UUID, darkMode bool) error

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// TouchLastActive updates the last_active timestamp.
	TouchLastActive(ctx context.Context, id uuid.UUID) error

	// Discover returns active profiles matching the filter that the viewer
	// has not yet rated, in random order.
	Discover(ctx context.Context, filter models.DiscoverFilter) ([]*models.User, error)
}
