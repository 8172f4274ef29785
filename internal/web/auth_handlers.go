package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	httpx "github.com/loveconnect/loveconnect/internal/http"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

// loginErrorMessages maps the error_code query parameter set by the auth
// middleware to user-facing text.
var loginErrorMessages = map[string]string{
	"expired": "Your session expired. Please log in again.",
	"invalid": "Please log in to continue.",
}

type loginPage struct {
	Next string
}

type registerPage struct {
	Username string
	Email    string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login.html", pageData{
		Title: "Log in",
		Error: loginErrorMessages[r.URL.Query().Get("error_code")],
		Data:  loginPage{Next: safeNext(r.URL.Query().Get("next"))},
	})
}

// Login authenticates the user and establishes a session. A fresh session
// and CSRF secret are issued on every successful login; any session carried
// into the login page is destroyed first.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ip := httpx.ExtractClientIP(r)
	if !h.loginLimiter.Allow(ip) {
		log.Warn().Str("addr", ip).Msg("Login rate limit exceeded")
		h.renderLoginError(w, fmt.Sprintf("Too many login attempts. Try again in %s.", retryHint(h.loginLimiter.RetryAfter(ip))), http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderLoginError(w, "Invalid form submission.", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			log.Error().Err(err).Msg("Login lookup failed")
		}
		// Burn a comparison on a dummy hash so unknown usernames cost the
		// same as wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		h.renderLoginError(w, "Invalid username or password.", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Debug().Str("username", username).Msg("Password mismatch")
		h.renderLoginError(w, "Invalid username or password.", http.StatusUnauthorized)
		return
	}

	if !user.IsActive {
		h.renderLoginError(w, "This account has been deactivated.", http.StatusForbidden)
		return
	}

	// A login on top of an existing session replaces it.
	if err := h.sessions.Destroy(ctx, w, r); err != nil {
		log.Error().Err(err).Msg("Failed to destroy previous session")
	}

	if _, err := h.sessions.CreateSession(ctx, w, r, user); err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		h.renderLoginError(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	if err := h.users.TouchLastActive(ctx, user.ID); err != nil {
		log.Error().Err(err).Msg("Failed to update last_active")
	}

	http.Redirect(w, r, safeNext(r.PostFormValue("next")), http.StatusFound)
}

// RegisterForm renders the signup page.
func (h *Handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, "register.html", pageData{
		Title: "Sign up",
		Data:  registerPage{},
	})
}

// Register creates an account and logs the new user straight in.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ip := httpx.ExtractClientIP(r)
	if !h.registerLimiter.Allow(ip) {
		log.Warn().Str("addr", ip).Msg("Register rate limit exceeded")
		h.renderRegisterError(w, registerPage{}, fmt.Sprintf("Too many signup attempts. Try again in %s.", retryHint(h.registerLimiter.RetryAfter(ip))), http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderRegisterError(w, registerPage{}, "Invalid form submission.", http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	confirm := r.PostFormValue("confirm_password")

	page := registerPage{Username: username, Email: email}

	if err := validateUsername(username); err != nil {
		h.renderRegisterError(w, page, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateEmail(email); err != nil {
		h.renderRegisterError(w, page, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validatePassword(password); err != nil {
		h.renderRegisterError(w, page, err.Error(), http.StatusBadRequest)
		return
	}
	if password != confirm {
		h.renderRegisterError(w, page, "Passwords do not match.", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("Failed to hash password")
		h.renderRegisterError(w, page, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		LookingFor:   []string{"female", "male", "non-binary"},
		AgeMin:       18,
		AgeMax:       100,
		MaxDistance:  50,
		IsActive:     true,
		LastActive:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			h.renderRegisterError(w, page, "That username or email is already taken.", http.StatusConflict)
			return
		}
		log.Error().Err(err).Msg("Failed to create user")
		h.renderRegisterError(w, page, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	log.Info().Str("username", username).Msg("Account created")

	if _, err := h.sessions.CreateSession(ctx, w, r, user); err != nil {
		log.Error().Err(err).Msg("Failed to create session after signup")
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/profile", http.StatusFound)
}

type resetPage struct {
	Email string
}

// PasswordResetForm renders the reset request page.
func (h *Handlers) PasswordResetForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, "password_reset.html", pageData{
		Title: "Reset password",
		Data:  resetPage{},
	})
}

// PasswordReset accepts an email address and starts a reset. The response is
// identical whether or not the address has an account, so the form cannot be
// used to enumerate members. Delivery of the reset email is left to the
// operator's mail pipeline; the request is logged with the account involved.
func (h *Handlers) PasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ip := httpx.ExtractClientIP(r)
	if !h.resetLimiter.Allow(ip) {
		log.Warn().Str("addr", ip).Msg("Password reset rate limit exceeded")
		h.renderResetError(w, resetPage{}, fmt.Sprintf("Too many reset requests. Try again in %s.", retryHint(h.resetLimiter.RetryAfter(ip))), http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderResetError(w, resetPage{}, "Invalid form submission.", http.StatusBadRequest)
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	if err := validateEmail(email); err != nil {
		h.renderResetError(w, resetPage{Email: email}, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		log.Info().
			Str("user_id", user.ID.String()).
			Str("username", user.Username).
			Msg("Password reset requested")
	case errors.Is(err, store.ErrUserNotFound):
		log.Debug().Msg("Password reset requested for unknown email")
	default:
		log.Error().Err(err).Msg("Password reset lookup failed")
		h.renderResetError(w, resetPage{}, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	h.render(w, "password_reset.html", pageData{
		Title: "Reset password",
		Flash: "If an account with that email exists, password reset instructions have been sent.",
		Data:  resetPage{},
	})
}

// Logout destroys the current session. Requires a valid CSRF token so a
// cross-site form cannot log users out.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.sessions.Validate(ctx, r)
	if err == nil {
		if !h.sessions.VerifyCSRF(session, r.PostFormValue("csrf_token")) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	if err := h.sessions.Destroy(ctx, w, r); err != nil {
		log.Error().Err(err).Msg("Failed to destroy session")
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handlers) renderLoginError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	h.render(w, "login.html", pageData{
		Title: "Log in",
		Error: msg,
		Data:  loginPage{},
	})
}

func (h *Handlers) renderRegisterError(w http.ResponseWriter, page registerPage, msg string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	h.render(w, "register.html", pageData{
		Title: "Sign up",
		Error: msg,
		Data:  page,
	})
}

func (h *Handlers) renderResetError(w http.ResponseWriter, page resetPage, msg string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	h.render(w, "password_reset.html", pageData{
		Title: "Reset password",
		Error: msg,
		Data:  page,
	})
}

// retryHint formats how long a limited client must wait, never under one
// second so the message stays sensible at window rollover.
func retryHint(d time.Duration) string {
	if d < time.Second {
		d = time.Second
	}
	return d.Round(time.Second).String()
}

// dummyHash keeps login timing consistent for unknown usernames.
var dummyHash = func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
}()

// safeNext only allows same-site relative redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/discover"
	}
	return next
}
