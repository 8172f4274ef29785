package web

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/loveconnect/loveconnect/internal/auth"
	"github.com/loveconnect/loveconnect/internal/models"
	"github.com/loveconnect/loveconnect/internal/store"
)

// Handlers serves the server-rendered site. All session state flows through
// the auth.Manager; handlers never read the session cookie themselves.
type Handlers struct {
	sessions *auth.Manager
	users    store.UserStore
	matches  store.MatchStore
	messages store.MessageStore

	loginLimiter    *auth.RateLimiter
	registerLimiter *auth.RateLimiter
	resetLimiter    *auth.RateLimiter

	templates *template.Template
}

// Config wires the handler dependencies.
type Config struct {
	Sessions *auth.Manager
	Users    store.UserStore
	Matches  store.MatchStore
	Messages store.MessageStore

	LoginLimiter    *auth.RateLimiter
	RegisterLimiter *auth.RateLimiter
	ResetLimiter    *auth.RateLimiter
}

// New creates the site handlers.
func New(cfg Config) (*Handlers, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	return &Handlers{
		sessions:        cfg.Sessions,
		users:           cfg.Users,
		matches:         cfg.Matches,
		messages:        cfg.Messages,
		loginLimiter:    cfg.LoginLimiter,
		registerLimiter: cfg.RegisterLimiter,
		resetLimiter:    cfg.ResetLimiter,
		templates:       tmpl,
	}, nil
}

// Routes registers all site routes on the mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	requireAuth := h.sessions.RequireAuth("/login")
	requireAdmin := h.sessions.RequireRole(models.RoleAdmin)

	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("GET /register", h.RegisterForm)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /password-reset", h.PasswordResetForm)
	mux.HandleFunc("POST /password-reset", h.PasswordReset)

	mux.Handle("GET /discover", requireAuth(http.HandlerFunc(h.Discover)))
	mux.Handle("POST /discover/rate", requireAuth(http.HandlerFunc(h.Rate)))
	mux.Handle("GET /matches", requireAuth(http.HandlerFunc(h.Matches)))
	mux.Handle("GET /messages", requireAuth(http.HandlerFunc(h.Conversations)))
	mux.Handle("GET /messages/{id}", requireAuth(http.HandlerFunc(h.Thread)))
	mux.Handle("POST /messages/{id}", requireAuth(http.HandlerFunc(h.SendMessage)))

	mux.Handle("GET /profile", requireAuth(http.HandlerFunc(h.ProfileForm)))
	mux.Handle("POST /profile", requireAuth(http.HandlerFunc(h.UpdateProfile)))
	mux.Handle("POST /profile/theme", requireAuth(http.HandlerFunc(h.UpdateTheme)))
	mux.Handle("POST /profile/password", requireAuth(http.HandlerFunc(h.ChangePassword)))
	mux.Handle("GET /preferences", requireAuth(http.HandlerFunc(h.PreferencesForm)))
	mux.Handle("POST /preferences", requireAuth(http.HandlerFunc(h.UpdatePreferences)))

	mux.Handle("GET /admin", requireAuth(requireAdmin(http.HandlerFunc(h.Admin))))
	mux.Handle("POST /admin/logout-everywhere", requireAuth(requireAdmin(http.HandlerFunc(h.LogoutEverywhere))))
}

// Index renders the landing page for both anonymous and signed-in visitors.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Validate(r.Context(), r)

	data := pageData{Title: "Welcome", Session: session}
	if session != nil {
		data.CSRFToken = session.CSRFToken
	}
	h.render(w, "index.html", data)
}

// Health is a liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}
