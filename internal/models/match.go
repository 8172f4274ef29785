package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchStatus is the state of a directed rating from one user to another.
type MatchStatus string

const (
	MatchStatusLiked     MatchStatus = "liked"
	MatchStatusPassed    MatchStatus = "passed"
	MatchStatusMatched   MatchStatus = "matched"
	MatchStatusUnmatched MatchStatus = "unmatched"
)

// Match is a directed rating row. A mutual pair of "liked" rows is promoted
// to "matched" on both sides.
type Match struct {
	ID            uuid.UUID
	UserID        uuid.UUID // who rated
	MatchedUserID uuid.UUID // who was rated
	Status        MatchStatus
	Score         float64 // interest-overlap score at rating time
	CreatedAt     time.Time
}

// MatchProfile is a matched partner joined with their profile fields, as
// shown on the matches page.
type MatchProfile struct {
	User      User
	MatchID   uuid.UUID
	Status    MatchStatus
	MatchedAt time.Time
}
