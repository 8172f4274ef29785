package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/loveconnect/loveconnect/internal/auth"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

type discoverPage struct {
	Profiles []*models.User
}

type matchesPage struct {
	Matches []*models.MatchProfile
}

// Discover renders the profile feed filtered by the viewer's preferences.
func (h *Handlers) Discover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	viewer, err := h.users.GetByID(ctx, session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load viewer profile")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	profiles, err := h.users.Discover(ctx, models.DiscoverFilter{
		ViewerID: viewer.ID,
		Genders:  viewer.LookingFor,
		AgeMin:   viewer.AgeMin,
		AgeMax:   viewer.AgeMax,
		Limit:    20,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to load discover feed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.render(w, "discover.html", pageData{
		Title:     "Discover",
		Session:   session,
		CSRFToken: session.CSRFToken,
		Data:      discoverPage{Profiles: profiles},
	})
}

// Rate records a like or pass on a profile. Browser form posts get a
// redirect back to the feed; fetch() calls asking for JSON get the outcome
// so the page can show a match banner without reloading.
func (h *Handlers) Rate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	if !h.sessions.VerifyCSRF(session, r.PostFormValue("csrf_token")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	targetID, err := uuid.Parse(r.PostFormValue("target_id"))
	if err != nil || targetID == session.UserID {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	action := r.PostFormValue("action")

	var result *store.RateResult
	switch action {
	case "like":
		result, err = h.matches.Like(ctx, session.UserID, targetID)
	case "pass":
		result, err = h.matches.Pass(ctx, session.UserID, targetID)
	default:
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err != nil {
		if errors.Is(err, store.ErrAlreadyRated) {
			http.Error(w, "Already rated", http.StatusConflict)
			return
		}
		if errors.Is(err, store.ErrUserNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("action", action).Msg("Failed to record rating")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"mutual": result.Mutual,
			"score":  result.Score,
		})
		return
	}

	http.Redirect(w, r, "/discover", http.StatusFound)
}

// Matches renders the viewer's mutual matches.
func (h *Handlers) Matches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	matches, err := h.matches.ListMatches(ctx, session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load matches")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.render(w, "matches.html", pageData{
		Title:     "Matches",
		Session:   session,
		CSRFToken: session.CSRFToken,
		Data:      matchesPage{Matches: matches},
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
