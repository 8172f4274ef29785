package web

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/loveconnect/loveconnect/internal/auth"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

type profilePage struct {
	User         *models.User
	InterestsCSV string
}

type preferencesPage struct {
	User           *models.User
	WantsFemale    bool
	WantsMale      bool
	WantsNonBinary bool
}

// ProfileForm renders the profile editor.
func (h *Handlers) ProfileForm(w http.ResponseWriter, r *http.Request) {
	h.renderProfile(w, r, "", "")
}

// UpdateProfile saves the profile fields after validation.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	if !h.sessions.VerifyCSRF(session, r.PostFormValue("csrf_token")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	age, _ := strconv.Atoi(r.PostFormValue("age"))
	update := store.ProfileUpdate{
		Bio:       strings.TrimSpace(r.PostFormValue("bio")),
		Gender:    r.PostFormValue("gender"),
		Age:       age,
		Location:  strings.TrimSpace(r.PostFormValue("location")),
		Interests: parseInterests(r.PostFormValue("interests")),
	}

	if err := validateProfile(update); err != nil {
		h.renderProfile(w, r, err.Error(), "")
		return
	}

	if err := h.users.UpdateProfile(ctx, session.UserID, update); err != nil {
		log.Error().Err(err).Msg("Failed to update profile")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.renderProfile(w, r, "", "Profile saved.")
}

// UpdateTheme toggles dark mode.
func (h *Handlers) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	if !h.sessions.VerifyCSRF(session, r.PostFormValue("csrf_token")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	darkMode := r.PostFormValue("dark_mode") != ""
	if err := h.users.UpdateTheme(ctx, session.UserID, darkMode); err != nil {
		log.Error().Err(err).Msg("Failed to update theme")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/profile", http.StatusFound)
}

// ChangePassword replaces the account password. All sessions are revoked
// and a fresh one issued, so a stolen cookie dies with the old password.
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	if !h.sessions.VerifyCSRF(session, r.PostFormValue("csrf_token")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	user, err := h.users.GetByID(ctx, session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load user for password change")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	current := r.PostFormValue("current_password")
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)) != nil {
		h.renderProfile(w, r, "Current password is incorrect.", "")
		return
	}

	newPassword := r.PostFormValue("new_password")
	if err := validatePassword(newPassword); err != nil {
		h.renderProfile(w, r, err.Error(), "")
		return
	}
	if newPassword != r.PostFormValue("confirm_password") {
		h.renderProfile(w, r, "Passwords do not match.", "")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := h.users.UpdatePassword(ctx, session.UserID, string(hash)); err != nil {
		log.Error().Err(err).Msg("Failed to update password")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if _, err := h.sessions.DestroyAll(ctx, session.UserID); err != nil {
		log.Error().Err(err).Msg("Failed to revoke sessions after password change")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if _, err := h.sessions.CreateSession(ctx, w, r, user); err != nil {
		// The password changed but re-login failed; send them to the form.
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/profile", http.StatusFound)
}

// PreferencesForm renders the dating preferences editor.
func (h *Handlers) PreferencesForm(w http.ResponseWriter, r *http.Request) {
	h.renderPreferences(w, r, "", "")
}

// UpdatePreferences saves the dating preferences after validation.
func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	if !h.sessions.VerifyCSRF(session, r.PostFormValue("csrf_token")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ageMin, _ := strconv.Atoi(r.PostFormValue("age_min"))
	ageMax, _ := strconv.Atoi(r.PostFormValue("age_max"))
	maxDist, _ := strconv.Atoi(r.PostFormValue("max_distance"))

	update := store.PreferencesUpdate{
		LookingFor:  r.PostForm["looking_for"],
		AgeMin:      ageMin,
		AgeMax:      ageMax,
		MaxDistance: maxDist,
	}

	if err := validatePreferences(update); err != nil {
		h.renderPreferences(w, r, err.Error(), "")
		return
	}

	if err := h.users.UpdatePreferences(ctx, session.UserID, update); err != nil {
		log.Error().Err(err).Msg("Failed to update preferences")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.renderPreferences(w, r, "", "Preferences saved.")
}

func (h *Handlers) renderProfile(w http.ResponseWriter, r *http.Request, errMsg, flash string) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	user, err := h.users.GetByID(ctx, session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load profile")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.render(w, "profile.html", pageData{
		Title:     "Profile",
		Session:   session,
		CSRFToken: session.CSRFToken,
		Error:     errMsg,
		Flash:     flash,
		Data: profilePage{
			User:         user,
			InterestsCSV: strings.Join(user.Interests, ", "),
		},
	})
}

func (h *Handlers) renderPreferences(w http.ResponseWriter, r *http.Request, errMsg, flash string) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	user, err := h.users.GetByID(ctx, session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load preferences")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.render(w, "preferences.html", pageData{
		Title:     "Preferences",
		Session:   session,
		CSRFToken: session.CSRFToken,
		Error:     errMsg,
		Flash:     flash,
		Data: preferencesPage{
			User:           user,
			WantsFemale:    slices.Contains(user.LookingFor, "female"),
			WantsMale:      slices.Contains(user.LookingFor, "male"),
			WantsNonBinary: slices.Contains(user.LookingFor, "non-binary"),
		},
	})
}
