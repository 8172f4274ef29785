package web

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/loveconnect/loveconnect/internal/store"
)

// Profile field limits.
const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 8
	maxBioLen      = 500
	minAge         = 18
	maxAge         = 120
	maxInterests   = 10
	minDistance    = 1
	maxDistance    = 500
	maxMessageLen  = 2000
)

// validateUsername enforces the account name rules: at least three
// characters, letters, digits and underscores only.
func validateUsername(username string) error {
	if len(username) < minUsernameLen {
		return fmt.Errorf("username must be at least %d characters", minUsernameLen)
	}
	if len(username) > maxUsernameLen {
		return fmt.Errorf("username must be at most %d characters", maxUsernameLen)
	}
	for _, c := range username {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
			return fmt.Errorf("username may only contain letters, numbers and underscores")
		}
	}
	return nil
}

// validatePassword requires a minimum length plus upper, lower and digit
// character classes.
func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password must contain an uppercase letter, a lowercase letter and a number")
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// parseInterests splits a comma-separated interests field, trimming blanks.
func parseInterests(raw string) []string {
	var interests []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			interests = append(interests, trimmed)
		}
	}
	return interests
}

func validateProfile(update store.ProfileUpdate) error {
	if len(update.Bio) > maxBioLen {
		return fmt.Errorf("bio must be at most %d characters", maxBioLen)
	}
	if update.Age < minAge || update.Age > maxAge {
		return fmt.Errorf("age must be between %d and %d", minAge, maxAge)
	}
	if len(update.Interests) > maxInterests {
		return fmt.Errorf("at most %d interests are allowed", maxInterests)
	}
	return nil
}

func validatePreferences(update store.PreferencesUpdate) error {
	if update.AgeMin < minAge {
		return fmt.Errorf("minimum age must be at least %d", minAge)
	}
	if update.AgeMax > maxAge {
		return fmt.Errorf("maximum age must be at most %d", maxAge)
	}
	if update.AgeMin > update.AgeMax {
		return fmt.Errorf("minimum age cannot exceed maximum age")
	}
	if update.MaxDistance < minDistance || update.MaxDistance > maxDistance {
		return fmt.Errorf("distance must be between %d and %d", minDistance, maxDistance)
	}
	return nil
}
