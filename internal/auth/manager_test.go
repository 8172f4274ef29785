package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
	"github.com/loveconnect/loveconnect/internal/store/memory"
)

func newTestManager(t *testing.T) (*Manager, *memory.SessionStore, *models.User) {
	t.Helper()

	users := memory.NewUserStore()
	sessions := memory.NewSessionStore(users)

	user := &models.User{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
		Role:     models.RoleUser,
		IsActive: true,
	}
	require.NoError(t, users.Create(context.Background(), user))

	manager := NewManager(sessions, users, Config{
		Timeout:          30 * time.Minute,
		TTL:              24 * time.Hour,
		RotationInterval: 30 * time.Minute,
		MaxSessions:      4,
	})

	return manager, sessions, user
}

func login(t *testing.T, manager *Manager, user *models.User) (*models.Session, *http.Cookie) {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	session, err := manager.CreateSession(context.Background(), w, r, user)
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	return session, cookies[0]
}

func requestWithCookie(cookie *http.Cookie, path string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.AddCookie(cookie)
	return r
}

func TestCreateSession(t *testing.T) {
	manager, _, user := newTestManager(t)

	session, cookie := login(t, manager, user)

	require.True(t, ValidTokenFormat(session.Token))
	require.Equal(t, session.Token, cookie.Value)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	require.Zero(t, cookie.MaxAge, "session cookie must not be persistent")
	require.Equal(t, "alice", session.Username)
	require.NotEmpty(t, session.CSRFToken)
	require.NotEqual(t, session.Token, session.CSRFToken)
}

func TestCreateSessionPrunesOldSessions(t *testing.T) {
	manager, sessions, user := newTestManager(t)
	ctx := context.Background()

	var cookies []*http.Cookie
	for range 6 {
		_, cookie := login(t, manager, user)
		cookies = append(cookies, cookie)
	}

	count, err := sessions.CountActive(ctx, user.ID, manager.Config().Timeout)
	require.NoError(t, err)
	require.Equal(t, 4, count)

	// The two oldest sessions no longer validate.
	for _, cookie := range cookies[:2] {
		_, err := manager.Validate(ctx, requestWithCookie(cookie, "/matches"))
		require.ErrorIs(t, err, ErrUnauthenticated)
	}
	for _, cookie := range cookies[2:] {
		_, err := manager.Validate(ctx, requestWithCookie(cookie, "/matches"))
		require.NoError(t, err)
	}
}

func TestValidate(t *testing.T) {
	manager, sessions, user := newTestManager(t)
	ctx := context.Background()

	t.Run("no cookie", func(t *testing.T) {
		_, err := manager.Validate(ctx, httptest.NewRequest(http.MethodGet, "/matches", nil))
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("malformed cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/matches", nil)
		r.AddCookie(&http.Cookie{Name: "_session", Value: "not-a-token"})
		_, err := manager.Validate(ctx, r)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("unknown token", func(t *testing.T) {
		token, err := NewSessionToken()
		require.NoError(t, err)
		r := httptest.NewRequest(http.MethodGet, "/matches", nil)
		r.AddCookie(&http.Cookie{Name: "_session", Value: token})
		_, err = manager.Validate(ctx, r)
		require.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("valid session", func(t *testing.T) {
		_, cookie := login(t, manager, user)
		got, err := manager.Validate(ctx, requestWithCookie(cookie, "/matches"))
		require.NoError(t, err)
		require.Equal(t, user.ID, got.UserID)
	})

	t.Run("idle past the sliding window", func(t *testing.T) {
		token, err := NewSessionToken()
		require.NoError(t, err)
		now := time.Now()
		require.NoError(t, sessions.Create(ctx, &models.Session{
			Token:        token,
			UserID:       user.ID,
			CreatedAt:    now.Add(-2 * time.Hour),
			LastActivity: now.Add(-31 * time.Minute),
			ExpiresAt:    now.Add(22 * time.Hour),
			RotatedAt:    now.Add(-2 * time.Hour),
		}))

		r := httptest.NewRequest(http.MethodGet, "/matches", nil)
		r.AddCookie(&http.Cookie{Name: "_session", Value: token})
		_, err = manager.Validate(ctx, r)
		require.ErrorIs(t, err, store.ErrSessionExpired)
	})

	t.Run("past the absolute cutoff despite recent activity", func(t *testing.T) {
		token, err := NewSessionToken()
		require.NoError(t, err)
		now := time.Now()
		require.NoError(t, sessions.Create(ctx, &models.Session{
			Token:        token,
			UserID:       user.ID,
			CreatedAt:    now.Add(-25 * time.Hour),
			LastActivity: now.Add(-time.Minute),
			ExpiresAt:    now.Add(-time.Hour),
			RotatedAt:    now.Add(-time.Minute),
		}))

		r := httptest.NewRequest(http.MethodGet, "/matches", nil)
		r.AddCookie(&http.Cookie{Name: "_session", Value: token})
		_, err = manager.Validate(ctx, r)
		require.ErrorIs(t, err, store.ErrSessionExpired)
	})
}

func TestTouchRotation(t *testing.T) {
	manager, _, user := newTestManager(t)
	ctx := context.Background()

	t.Run("rotates when interval elapsed", func(t *testing.T) {
		session, _ := login(t, manager, user)
		oldToken := session.Token
		session.RotatedAt = time.Now().Add(-31 * time.Minute)

		w := httptest.NewRecorder()
		require.NoError(t, manager.Touch(ctx, w, session))
		require.NotEqual(t, oldToken, session.Token)

		// Cookie carries the new token.
		cookies := w.Result().Cookies()
		require.NotEmpty(t, cookies)
		require.Equal(t, session.Token, cookies[0].Value)

		// Old token is gone, new token validates.
		_, err := manager.Validate(ctx, requestWithCookie(&http.Cookie{Name: "_session", Value: oldToken}, "/"))
		require.ErrorIs(t, err, ErrUnauthenticated)
		_, err = manager.Validate(ctx, requestWithCookie(cookies[0], "/"))
		require.NoError(t, err)
	})

	t.Run("losing the rotation race is not an error", func(t *testing.T) {
		session, _ := login(t, manager, user)
		stale := *session
		session.RotatedAt = time.Now().Add(-31 * time.Minute)
		stale.RotatedAt = session.RotatedAt

		// First request wins the rotation.
		require.NoError(t, manager.Touch(ctx, httptest.NewRecorder(), session))

		// Second request holds the stale token; its rotation loses quietly.
		w := httptest.NewRecorder()
		require.NoError(t, manager.Touch(ctx, w, &stale))
		require.Empty(t, w.Result().Cookies())
	})

	t.Run("touch without rotation keeps token", func(t *testing.T) {
		session, _ := login(t, manager, user)
		token := session.Token

		w := httptest.NewRecorder()
		require.NoError(t, manager.Touch(ctx, w, session))
		require.Equal(t, token, session.Token)
		require.Empty(t, w.Result().Cookies())
	})
}

func TestTouchSlidesInactivityWindow(t *testing.T) {
	manager, sessions, user := newTestManager(t)
	ctx := context.Background()

	sessionIdleFor := func(t *testing.T, idle time.Duration) (*models.Session, *http.Cookie) {
		t.Helper()
		token, err := NewSessionToken()
		require.NoError(t, err)
		now := time.Now()
		session := &models.Session{
			Token:        token,
			UserID:       user.ID,
			Username:     user.Username,
			Role:         user.Role,
			CreatedAt:    now.Add(-2 * time.Hour),
			LastActivity: now.Add(-idle),
			ExpiresAt:    now.Add(22 * time.Hour),
			RotatedAt:    now,
		}
		require.NoError(t, sessions.Create(ctx, session))
		return session, &http.Cookie{Name: "_session", Value: token}
	}

	t.Run("touch resets the idle clock", func(t *testing.T) {
		// Nearly idled out, then a request arrives.
		session, cookie := sessionIdleFor(t, 25*time.Minute)

		got, err := manager.Validate(ctx, requestWithCookie(cookie, "/discover"))
		require.NoError(t, err)
		require.NoError(t, manager.Touch(ctx, httptest.NewRecorder(), got))

		refreshed, err := sessions.Get(ctx, session.Token, manager.Config().Timeout)
		require.NoError(t, err)
		require.WithinDuration(t, time.Now(), refreshed.LastActivity, time.Minute)
	})

	t.Run("a lapsed session stays expired across repeated requests", func(t *testing.T) {
		_, cookie := sessionIdleFor(t, 31*time.Minute)

		handler := manager.RequireAuth("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("expired session must not reach the handler")
		}))

		// Requests after the window lapses never refresh activity, so the
		// session cannot come back to life.
		for range 3 {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestWithCookie(cookie, "/discover"))
			require.Equal(t, http.StatusFound, w.Code)
			loc, err := w.Result().Location()
			require.NoError(t, err)
			require.Equal(t, "expired", loc.Query().Get("error_code"))
		}
	})
}

func TestDestroy(t *testing.T) {
	manager, _, user := newTestManager(t)
	ctx := context.Background()

	_, cookie := login(t, manager, user)

	w := httptest.NewRecorder()
	require.NoError(t, manager.Destroy(ctx, w, requestWithCookie(cookie, "/logout")))

	// Cookie is cleared.
	cleared := w.Result().Cookies()
	require.NotEmpty(t, cleared)
	require.Empty(t, cleared[0].Value)
	require.Negative(t, cleared[0].MaxAge)

	// Session no longer validates.
	_, err := manager.Validate(ctx, requestWithCookie(cookie, "/matches"))
	require.ErrorIs(t, err, ErrUnauthenticated)

	// Destroying again succeeds.
	require.NoError(t, manager.Destroy(ctx, httptest.NewRecorder(), requestWithCookie(cookie, "/logout")))

	// No cookie at all also succeeds.
	require.NoError(t, manager.Destroy(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/logout", nil)))
}

func TestVerifyCSRF(t *testing.T) {
	manager, _, user := newTestManager(t)

	session, _ := login(t, manager, user)

	require.True(t, manager.VerifyCSRF(session, session.CSRFToken))
	require.False(t, manager.VerifyCSRF(session, ""))
	require.False(t, manager.VerifyCSRF(session, "wrong"))
	require.False(t, manager.VerifyCSRF(nil, session.CSRFToken))

	// Same length as the real token, one character off.
	offByOne := []byte(session.CSRFToken)
	if offByOne[0] == 'a' {
		offByOne[0] = 'b'
	} else {
		offByOne[0] = 'a'
	}
	require.False(t, manager.VerifyCSRF(session, string(offByOne)))

	blank := *session
	blank.CSRFToken = ""
	require.False(t, manager.VerifyCSRF(&blank, ""))
}

func TestRequireAuth(t *testing.T) {
	manager, _, user := newTestManager(t)

	var gotSession *models.Session
	handler := manager.RequireAuth("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("unauthenticated redirects with next", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/matches?tab=new", nil))

		require.Equal(t, http.StatusFound, w.Code)
		loc, err := w.Result().Location()
		require.NoError(t, err)
		require.Equal(t, "/login", loc.Path)
		require.Equal(t, "invalid", loc.Query().Get("error_code"))
		require.Equal(t, "/matches?tab=new", loc.Query().Get("next"))
	})

	t.Run("valid session passes through", func(t *testing.T) {
		_, cookie := login(t, manager, user)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithCookie(cookie, "/matches"))

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, gotSession)
		require.Equal(t, user.ID, gotSession.UserID)
	})
}

func TestRequireRole(t *testing.T) {
	manager, _, user := newTestManager(t)

	handler := manager.RequireAuth("/login")(
		manager.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	t.Run("plain user forbidden", func(t *testing.T) {
		_, cookie := login(t, manager, user)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestWithCookie(cookie, "/admin"))
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin allowed", func(t *testing.T) {
		admin := &models.User{
			ID:       uuid.New(),
			Username: "root",
			Email:    "root@example.com",
			Role:     models.RoleAdmin,
			IsActive: true,
		}
		users := memory.NewUserStore()
		sessions := memory.NewSessionStore(users)
		require.NoError(t, users.Create(context.Background(), admin))

		adminManager := NewManager(sessions, users, Config{})
		adminHandler := adminManager.RequireAuth("/login")(
			adminManager.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})),
		)

		_, cookie := login(t, adminManager, admin)

		w := httptest.NewRecorder()
		adminHandler.ServeHTTP(w, requestWithCookie(cookie, "/admin"))
		require.Equal(t, http.StatusOK, w.Code)
	})
}
