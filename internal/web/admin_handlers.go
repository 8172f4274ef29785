package web

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/loveconnect/loveconnect/internal/auth"
)

type adminPage struct {
	Timeout          time.Duration
	TTL              time.Duration
	RotationInterval time.Duration
	MaxSessions      int
	ActiveSessions   int
}

// Admin renders the session administration page.
func (h *Handlers) Admin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	cfg := h.sessions.Config()

	active, err := h.sessions.CountActive(ctx, session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to count active sessions")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	h.render(w, "admin.html", pageData{
		Title:     "Administration",
		Session:   session,
		CSRFToken: session.CSRFToken,
		Data: adminPage{
			Timeout:          cfg.Timeout,
			TTL:              cfg.TTL,
			RotationInterval: cfg.RotationInterval,
			MaxSessions:      cfg.MaxSessions,
			ActiveSessions:   active,
		},
	})
}

// LogoutEverywhere destroys every session belonging to the admin, including
// the current one.
func (h *Handlers) LogoutEverywhere(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, _ := auth.SessionFromContext(ctx)

	if !h.sessions.VerifyCSRF(session, r.PostFormValue("csrf_token")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	count, err := h.sessions.DestroyAll(ctx, session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to destroy sessions")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	log.Info().Int("count", count).Str("user_id", session.UserID.String()).Msg("Logged out everywhere")

	http.Redirect(w, r, "/login", http.StatusFound)
}
