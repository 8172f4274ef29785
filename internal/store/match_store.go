package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/loveconnect/loveconnect/internal/models"
)

// Errors
var (
	ErrAlreadyRated  = errors.New("user already rated")
	ErrMatchNotFound = errors.New("match not found")
)

// RateResult reports the outcome of a like or pass.
type RateResult struct {
	Mutual bool    // true when a like completed a mutual match
	Score  float64 // interest-overlap score recorded with the rating
}

// MatchStore manages directed ratings and mutual matches.
type MatchStore interface {
	// Like records a like from userID to targetID, computes the
	// interest-overlap score, and promotes both rows to "matched" when the
	// like is mutual. Returns ErrAlreadyRated on a duplicate rating.
	Like(ctx context.Context, userID, targetID uuid.UUID) (*RateResult, error)

	// Pass records a pass from userID to targetID.
	// Returns ErrAlreadyRated on a duplicate rating.
	Pass(ctx context.Context, userID, targetID uuid.UUID) (*RateResult, error)

	// ListMatches returns the user's mutual matches, most recent first.
	ListMatches(ctx context.Context, userID uuid.UUID) ([]*models.MatchProfile, error)

	// Get returns the match row between two users, if any.
	Get(ctx context.Context, userID, targetID uuid.UUID) (*models.Match, error)
}
