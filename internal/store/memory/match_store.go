package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

type pairKey struct {
	userID   uuid.UUID
	targetID uuid.UUID
}

// MatchStore implements store.MatchStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type MatchStore struct {
	mu sync.RWMutex

	matches map[pairKey]*models.Match
	users   *UserStore // supplies interests for scoring and match profiles
}

// NewMatchStore creates a new in-memory match store backed by the given user
// store for scoring and profile joins.
func NewMatchStore(users *UserStore) *MatchStore {
	return &MatchStore{
		matches: make(map[pairKey]*models.Match),
		users:   users,
	}
}

// Like records a like and promotes both rows to "matched" when mutual.
func (s *MatchStore) Like(ctx context.Context, userID, targetID uuid.UUID) (*store.RateResult, error) {
	return s.rate(ctx, userID, targetID, models.MatchStatusLiked)
}

// Pass records a pass.
func (s *MatchStore) Pass(ctx context.Context, userID, targetID uuid.UUID) (*store.RateResult, error) {
	return s.rate(ctx, userID, targetID, models.MatchStatusPassed)
}

func (s *MatchStore) rate(ctx context.Context, userID, targetID uuid.UUID, status models.MatchStatus) (*store.RateResult, error) {
	if _, err := s.users.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	score := s.scoreFor(ctx, userID, targetID)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{userID, targetID}
	if _, exists := s.matches[key]; exists {
		return nil, store.ErrAlreadyRated
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	match := &models.Match{
		ID:            id,
		UserID:        userID,
		MatchedUserID: targetID,
		Status:        status,
		Score:         score,
		CreatedAt:     time.Now(),
	}
	s.matches[key] = match

	result := &store.RateResult{Score: score}

	if status == models.MatchStatusLiked {
		reverse, exists := s.matches[pairKey{targetID, userID}]
		if exists && reverse.Status == models.MatchStatusLiked {
			match.Status = models.MatchStatusMatched
			reverse.Status = models.MatchStatusMatched
			result.Mutual = true
		}
	}

	return result, nil
}

// ListMatches returns the user's mutual matches, most recent first.
func (s *MatchStore) ListMatches(ctx context.Context, userID uuid.UUID) ([]*models.MatchProfile, error) {
	s.mu.RLock()
	matched := make([]*models.Match, 0)
	for key, match := range s.matches {
		if key.userID == userID && match.Status == models.MatchStatusMatched {
			clone := *match
			matched = append(matched, &clone)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	profiles := make([]*models.MatchProfile, 0, len(matched))
	for _, match := range matched {
		user, err := s.users.GetByID(ctx, match.MatchedUserID)
		if err != nil {
			continue
		}
		profiles = append(profiles, &models.MatchProfile{
			User:      *user,
			MatchID:   match.ID,
			Status:    match.Status,
			MatchedAt: match.CreatedAt,
		})
	}
	return profiles, nil
}

// Get returns the match row between two users, if any.
func (s *MatchStore) Get(ctx context.Context, userID, targetID uuid.UUID) (*models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, exists := s.matches[pairKey{userID, targetID}]
	if !exists {
		return nil, store.ErrMatchNotFound
	}
	clone := *match
	return &clone, nil
}

// HasRated reports whether the viewer already rated the target. Used by the
// memory user store's discover feed.
func (s *MatchStore) HasRated(viewerID, targetID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.matches[pairKey{viewerID, targetID}]
	return exists
}

// participants returns both sides of a match row by ID.
func (s *MatchStore) participants(matchID uuid.UUID) (uuid.UUID, uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, match := range s.matches {
		if match.ID == matchID {
			return key.userID, key.targetID, true
		}
	}
	return uuid.Nil, uuid.Nil, false
}

func (s *MatchStore) scoreFor(ctx context.Context, userID, targetID uuid.UUID) float64 {
	rater, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0.5
	}
	rated, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return 0.5
	}
	return store.OverlapScore(rater.Interests, rated.Interests)
}
