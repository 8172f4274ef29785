package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	httpx "github.com/loveconnect/loveconnect/internal/http"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

// ErrUnauthenticated is returned when a request carries no valid session.
var ErrUnauthenticated = errors.New("unauthenticated")

type contextKey string

const sessionContextKey contextKey = "session"

// Config holds session lifecycle settings.
type Config struct {
	// CookieName is the session cookie name.
	CookieName string

	// Timeout is the sliding inactivity window. A session idle longer than
	// this is expired regardless of its absolute TTL.
	Timeout time.Duration

	// TTL is the absolute session lifetime measured from creation. Rotation
	// never extends it.
	TTL time.Duration

	// RotationInterval is how often the bearer token is replaced.
	RotationInterval time.Duration

	// MaxSessions caps concurrent sessions per user; the oldest are pruned
	// at login.
	MaxSessions int

	// SecureCookies controls the Secure flag on issued cookies. Disable for
	// plain-HTTP local development only.
	SecureCookies bool
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.CookieName == "" {
		c.CookieName = "_session"
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Minute
	}
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.RotationInterval == 0 {
		c.RotationInterval = 30 * time.Minute
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = 4
	}
}

// Manager is the single authority for session state. Handlers never touch
// the session store or the cookie directly; everything goes through here.
type Manager struct {
	sessions store.SessionStore
	users    store.UserStore
	cfg      Config
}

// NewManager creates a session manager backed by the given stores.
func NewManager(sessions store.SessionStore, users store.UserStore, cfg Config) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		sessions: sessions,
		users:    users,
		cfg:      cfg,
	}
}

// Config returns the effective session configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// CreateSession establishes a fresh session for the user and sets the
// session cookie. Older sessions beyond the per-user cap are pruned first,
// so the new session is always within the cap.
func (m *Manager) CreateSession(ctx context.Context, w http.ResponseWriter, r *http.Request, user *models.User) (*models.Session, error) {
	if _, err := m.sessions.PruneUserSessions(ctx, user.ID, m.cfg.MaxSessions-1); err != nil {
		return nil, fmt.Errorf("failed to prune old sessions: %w", err)
	}

	token, err := NewSessionToken()
	if err != nil {
		return nil, err
	}

	csrfToken, err := NewCSRFToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &models.Session{
		Token:        token,
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
		CSRFToken:    csrfToken,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.cfg.TTL),
		RotatedAt:    now,
		UserAgent:    r.UserAgent(),
		IPAddress:    clientIP(r),
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.setCookie(w, token)

	log.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("Session created")

	return session, nil
}

// Validate resolves the request's session cookie to a live session. It does
// not touch activity; callers that want the sliding window refreshed use
// Touch or the RequireAuth middleware.
func (m *Manager) Validate(ctx context.Context, r *http.Request) (*models.Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	if !ValidTokenFormat(cookie.Value) {
		log.Debug().Msg("Session cookie has invalid format")
		return nil, ErrUnauthenticated
	}

	session, err := m.sessions.Get(ctx, cookie.Value, m.cfg.Timeout)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrSessionNotFound):
			return nil, ErrUnauthenticated
		case errors.Is(err, store.ErrSessionExpired):
			return nil, store.ErrSessionExpired
		}
		// Storage trouble fails closed.
		log.Error().Err(err).Msg("Session lookup failed")
		return nil, ErrUnauthenticated
	}

	return session, nil
}

// Touch refreshes the sliding window and rotates the bearer token when the
// rotation interval has elapsed. Rotation replaces the cookie; losing a
// rotation race to a concurrent request is not an error because the winner
// already rotated on the user's behalf.
func (m *Manager) Touch(ctx context.Context, w http.ResponseWriter, session *models.Session) error {
	now := time.Now()

	if now.Sub(session.RotatedAt) >= m.cfg.RotationInterval {
		newToken, err := NewSessionToken()
		if err != nil {
			return err
		}

		err = m.sessions.Rotate(ctx, session.Token, newToken)
		switch {
		case err == nil:
			session.Token = newToken
			session.RotatedAt = now
			session.LastActivity = now
			m.setCookie(w, newToken)
			log.Debug().Str("user_id", session.UserID.String()).Msg("Session token rotated")
			return nil
		case errors.Is(err, store.ErrRotationLost):
			log.Debug().Str("user_id", session.UserID.String()).Msg("Lost rotation race to concurrent request")
			return nil
		default:
			return fmt.Errorf("failed to rotate session: %w", err)
		}
	}

	if err := m.sessions.Touch(ctx, session.Token); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			// Rotated away by a concurrent request between Get and Touch.
			return nil
		}
		return fmt.Errorf("failed to touch session: %w", err)
	}
	session.LastActivity = now

	return nil
}

// Destroy removes the request's session, if any, and clears the cookie.
// Destroying an absent or already-destroyed session succeeds.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer m.clearCookie(w)

	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || !ValidTokenFormat(cookie.Value) {
		return nil
	}

	if err := m.sessions.Delete(ctx, cookie.Value); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// DestroyAll removes every session for the user (logout everywhere).
func (m *Manager) DestroyAll(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.sessions.DeleteByUser(ctx, userID)
}

// CountActive returns the number of live sessions for the user.
func (m *Manager) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	return m.sessions.CountActive(ctx, userID, m.cfg.Timeout)
}

// VerifyCSRF checks a submitted anti-forgery token against the session's in
// constant time. Empty submissions always fail.
func (m *Manager) VerifyCSRF(session *models.Session, submitted string) bool {
	if session == nil || submitted == "" || session.CSRFToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(session.CSRFToken), []byte(submitted)) == 1
}

// RequireAuth is a middleware that protects routes by requiring a valid
// session. On success it refreshes activity, rotates the token when due, and
// adds the session to the request context. Otherwise it redirects to
// loginPath with an error_code and the original path in next.
func (m *Manager) RequireAuth(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			session, err := m.Validate(ctx, r)
			if err != nil {
				errorCode := "invalid"
				if errors.Is(err, store.ErrSessionExpired) {
					errorCode = "expired"
					log.Debug().Str("path", r.URL.Path).Msg("Session expired, redirecting to login")
				} else {
					log.Debug().Str("path", r.URL.Path).Msg("No valid session, redirecting to login")
				}

				m.clearCookie(w)

				q := url.Values{}
				q.Set("error_code", errorCode)
				q.Set("next", r.URL.RequestURI())
				http.Redirect(w, r, loginPath+"?"+q.Encode(), http.StatusFound)
				return
			}

			if err := m.Touch(ctx, w, session); err != nil {
				log.Error().Err(err).Msg("Failed to refresh session activity")
			}

			if err := m.users.TouchLastActive(ctx, session.UserID); err != nil {
				log.Error().Err(err).Msg("Failed to update user last_active")
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionContextKey, session)))
		})
	}
}

// RequireRole is a middleware for role-gated routes. It must be applied
// inside RequireAuth. Requests without the role get 403.
func (m *Manager) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok || session.Role != role {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext extracts the session from the request context. This
// should be called from handlers protected by RequireAuth middleware.
func SessionFromContext(ctx context.Context) (*models.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*models.Session)
	return session, ok
}

// setCookie issues the session cookie. No Max-Age: the cookie lives for the
// browser session only, and the server-side expiry bounds govern validity.
func (m *Manager) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// clientIP prefers the value resolved by ClientIPMiddleware and falls back
// to extracting it directly for requests outside that middleware.
func clientIP(r *http.Request) string {
	if ip := httpx.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return httpx.ExtractClientIP(r)
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
