package models

import (
	"time"

	"github.com/google/uuid"
)

// Role names stored on the users table.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered member.
// PasswordHash is only ever read by the login handler; the session layer
// consumes id, username and role and never sees password material.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	Role         string

	// Profile fields
	Bio          string
	Gender       string
	Age          int
	Location     string
	Interests    []string
	ProfileImage string

	// Dating preferences
	LookingFor  []string
	AgeMin      int
	AgeMax      int
	MaxDistance int

	DarkMode   bool
	IsActive   bool
	LastActive time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DiscoverFilter narrows the profile feed for a viewer.
type DiscoverFilter struct {
	ViewerID uuid.UUID
	Genders  []string // empty means any
	AgeMin   int
	AgeMax   int
	Limit    int
}
