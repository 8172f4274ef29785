package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"filippo.io/csrf"

	"github.com/loveconnect/loveconnect/internal/auth"
	httpmiddleware "github.com/loveconnect/loveconnect/internal/http"
	"github.com/loveconnect/loveconnect/internal/logger"
	"github.com/loveconnect/loveconnect/internal/store"
	memorystore "github.com/loveconnect/loveconnect/internal/store/memory"
	postgresstore "github.com/loveconnect/loveconnect/internal/store/postgres"
	"github.com/loveconnect/loveconnect/internal/web"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"LOVECONNECT_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"LOVECONNECT_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"LOVECONNECT_TLS_KEY"`

	// Session configuration
	CookieName       string        `help:"session cookie name" default:"_session" env:"LOVECONNECT_COOKIE_NAME"`
	SessionTimeout   time.Duration `help:"sliding inactivity window" default:"30m" env:"LOVECONNECT_SESSION_TIMEOUT"`
	SessionTTL       time.Duration `help:"absolute session lifetime" default:"24h" env:"LOVECONNECT_SESSION_TTL"`
	RotationInterval time.Duration `help:"how often session tokens are rotated" default:"30m" env:"LOVECONNECT_ROTATION_INTERVAL"`
	MaxSessions      int           `help:"max concurrent sessions per user" default:"4" env:"LOVECONNECT_MAX_SESSIONS"`
	SweepInterval    time.Duration `help:"how often expired sessions are purged" default:"5m" env:"LOVECONNECT_SWEEP_INTERVAL"`
	InsecureCookies  bool          `help:"omit the Secure flag on cookies (plain-HTTP local development only)" default:"false" env:"LOVECONNECT_INSECURE_COOKIES"`

	// Abuse limits
	LoginAttempts    int           `help:"login attempts allowed per IP per window" default:"5" env:"LOVECONNECT_LOGIN_ATTEMPTS"`
	RegisterAttempts int           `help:"registrations allowed per IP per window" default:"3" env:"LOVECONNECT_REGISTER_ATTEMPTS"`
	ResetAttempts    int           `help:"password reset requests allowed per IP per window" default:"3" env:"LOVECONNECT_RESET_ATTEMPTS"`
	RateWindow       time.Duration `help:"rate limit window" default:"5m" env:"LOVECONNECT_RATE_WINDOW"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"LOVECONNECT_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"LOVECONNECT_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	var (
		users    store.UserStore
		sessions store.SessionStore
		matches  store.MatchStore
		messages store.MessageStore
	)

	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return fmt.Errorf("failed to validate postgres flags: %w", err)
		}

		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		users = postgresstore.NewUserStore(pool)
		sessions = postgresstore.NewSessionStore(pool)
		matches = postgresstore.NewMatchStore(pool)
		messages = postgresstore.NewMessageStore(pool)
		log.Info().Msg("Using PostgreSQL stores")

	default:
		memUsers := memorystore.NewUserStore()
		memMatches := memorystore.NewMatchStore(memUsers)
		memUsers.SetRatedLookup(memMatches.HasRated)

		users = memUsers
		sessions = memorystore.NewSessionStore(memUsers)
		matches = memMatches
		messages = memorystore.NewMessageStore(memUsers, memMatches)
		log.Warn().Msg("Using in-memory stores, all data is lost on restart")
	}

	manager := auth.NewManager(sessions, users, auth.Config{
		CookieName:       c.CookieName,
		Timeout:          c.SessionTimeout,
		TTL:              c.SessionTTL,
		RotationInterval: c.RotationInterval,
		MaxSessions:      c.MaxSessions,
		SecureCookies:    !c.InsecureCookies,
	})

	loginLimiter := auth.NewRateLimiter(c.LoginAttempts, c.RateWindow)
	registerLimiter := auth.NewRateLimiter(c.RegisterAttempts, c.RateWindow)
	resetLimiter := auth.NewRateLimiter(c.ResetAttempts, c.RateWindow)

	sweeper := auth.NewSweeper(ctx, sessions, c.SessionTimeout, c.SweepInterval, loginLimiter, registerLimiter, resetLimiter)
	defer sweeper.Stop()

	handlers, err := web.New(web.Config{
		Sessions:        manager,
		Users:           users,
		Matches:         matches,
		Messages:        messages,
		LoginLimiter:    loginLimiter,
		RegisterLimiter: registerLimiter,
		ResetLimiter:    resetLimiter,
	})
	if err != nil {
		return fmt.Errorf("failed to create site handlers: %w", err)
	}

	mux := http.NewServeMux()
	handlers.Routes(mux)
	mux.Handle("/public/", http.StripPrefix("/public/", http.FileServer(http.Dir("public"))))

	// Every page is server-rendered HTML, so the whole mux sits behind
	// cross-origin request protection.
	protection := csrf.New()
	handler := protection.Handler(mux)
	handler = logger.Requests(log)(handler)
	handler = httpmiddleware.ClientIPMiddleware()(handler)

	srv := configureHTTPServer(c.Listen, handler)

	if c.Cert != "" || c.Key != "" {
		if _, err := os.Stat(c.Cert); err != nil {
			return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
		}
		if _, err := os.Stat(c.Key); err != nil {
			return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
		}
		log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
		return srv.ListenAndServeTLS(c.Cert, c.Key)
	}

	log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
	return srv.ListenAndServe()
}
