package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

// UserStore implements store.UserStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type UserStore struct {
	mu sync.RWMutex

	users      map[uuid.UUID]*models.User
	byUsername map[string]uuid.UUID
	byEmail    map[string]uuid.UUID

	// rated reports whether the viewer already rated the target; wired to
	// the match store via SetRatedLookup.
	rated func(viewerID, targetID uuid.UUID) bool
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[uuid.UUID]*models.User),
		byUsername: make(map[string]uuid.UUID),
		byEmail:    make(map[string]uuid.UUID),
	}
}

// Create creates a new user in memory.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[strings.ToLower(user.Username)]; exists {
		return store.ErrUserExists
	}
	if _, exists := s.byEmail[strings.ToLower(user.Email)]; exists {
		return store.ErrUserExists
	}

	clone := cloneUser(user)
	s.users[user.ID] = clone
	s.byUsername[strings.ToLower(user.Username)] = user.ID
	s.byEmail[strings.ToLower(user.Email)] = user.ID

	return nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, store.ErrUserNotFound
	}
	return cloneUser(user), nil
}

// GetByUsername retrieves a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byUsername[strings.ToLower(username)]
	if !exists {
		return nil, store.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

// GetByEmail retrieves a user by email address.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byEmail[strings.ToLower(email)]
	if !exists {
		return nil, store.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

// UpdateProfile updates the profile fields for a user.
func (s *UserStore) UpdateProfile(ctx context.Context, id uuid.UUID, update store.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return store.ErrUserNotFound
	}

	user.Bio = update.Bio
	user.Gender = update.Gender
	user.Age = update.Age
	user.Location = update.Location
	user.Interests = append([]string(nil), update.Interests...)
	user.UpdatedAt = time.Now()
	return nil
}

// UpdatePreferences updates the dating preferences for a user.
func (s *UserStore) UpdatePreferences(ctx context.Context, id uuid.UUID, update store.PreferencesUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return store.ErrUserNotFound
	}

	user.LookingFor = append([]string(nil), update.LookingFor...)
	user.AgeMin = update.AgeMin
	user.AgeMax = update.AgeMax
	user.MaxDistance = update.MaxDistance
	user.UpdatedAt = time.Now()
	return nil
}

// UpdateTheme updates the dark mode flag for a user.
func (s *UserStore) UpdateTheme(ctx context.Context, id uuid.UUID, darkMode bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return store.ErrUserNotFound
	}

	user.DarkMode = darkMode
	user.UpdatedAt = time.Now()
	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return store.ErrUserNotFound
	}

	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	return nil
}

// TouchLastActive updates the last_active timestamp.
func (s *UserStore) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return store.ErrUserNotFound
	}

	user.LastActive = time.Now()
	return nil
}

// Discover returns active profiles matching the filter that the viewer has
// not yet rated, in random order. Rated profiles are excluded by the caller
// wiring in SetRatedLookup.
func (s *UserStore) Discover(ctx context.Context, filter models.DiscoverFilter) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().AddDate(0, 0, -30)

	var results []*models.User
	for _, user := range s.users {
		if user.ID == filter.ViewerID || !user.IsActive {
			continue
		}
		if user.LastActive.Before(cutoff) {
			continue
		}
		if filter.AgeMin > 0 && user.Age < filter.AgeMin {
			continue
		}
		if filter.AgeMax > 0 && user.Age > filter.AgeMax {
			continue
		}
		if len(filter.Genders) > 0 && !containsFold(filter.Genders, user.Gender) {
			continue
		}
		if s.rated != nil && s.rated(filter.ViewerID, user.ID) {
			continue
		}
		results = append(results, cloneUser(user))
	}

	rand.Shuffle(len(results), func(i, j int) {
		results[i], results[j] = results[j], results[i]
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SetRatedLookup wires the discover feed's already-rated exclusion to the
// match store. Only needed for the memory implementation; Postgres does this
// with a NOT IN subquery.
func (s *UserStore) SetRatedLookup(fn func(viewerID, targetID uuid.UUID) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rated = fn
}

func containsFold(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if strings.EqualFold(candidate, needle) {
			return true
		}
	}
	return false
}

func cloneUser(user *models.User) *models.User {
	clone := *user
	clone.Interests = append([]string(nil), user.Interests...)
	clone.LookingFor = append([]string(nil), user.LookingFor...)
	return &clone
}
