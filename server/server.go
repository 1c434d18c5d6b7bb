// Package server exposes the HTTP surface of websso: the protected
// application routes, the login/callback/logout routes of the authorization
// code flow, and the access-gate middleware that classifies requests as
// requiring or forbidding an authenticated session.
package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"

	"github.com/webb-auth/websso/oidc"
	"github.com/webb-auth/websso/session"
)

const (
	loginPath    = "/auth/login"
	callbackPath = "/auth/callback"
	logoutPath   = "/auth/logout"

	// cookieName is the single browser cookie.  It carries only opaque
	// identifiers (session id, pending login state), never claims.
	cookieName = "websso"

	keySessionID = "sid"
	keyLogin     = "login"
	keyReturnTo  = "return_to"
)

// DefaultLoginExpiry bounds how long a login attempt may sit between the
// redirect to the provider and the callback.
const DefaultLoginExpiry = 2 * time.Minute

// Config wires a Server's collaborators.
type Config struct {
	// Provider is the discovered OIDC provider, created once at startup.
	Provider *oidc.Provider

	// Sessions establishes and resolves authenticated sessions.
	Sessions *session.Manager

	// CookieSecret signs the browser cookie.  Required.
	CookieSecret string

	// SecureCookies marks the browser cookie Secure.  Leave false only for
	// local development over plain http.
	SecureCookies bool

	// LoginExpiry overrides DefaultLoginExpiry when greater than zero.
	LoginExpiry time.Duration

	// Logger is optional; a null logger is used when unset.
	Logger hclog.Logger
}

// Server handles the application's HTTP routes.  It holds no per-request
// state; the session store and the pending-login cache are the only shared
// mutable state behind it.
type Server struct {
	provider    *oidc.Provider
	sessions    *session.Manager
	cookies     *sessions.CookieStore
	logins      *loginCache
	loginExpiry time.Duration
	logger      hclog.Logger
	router      chi.Router
}

// New creates a Server and mounts its routes.
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Provider == nil:
		return nil, errors.New("server: provider is nil")
	case cfg.Sessions == nil:
		return nil, errors.New("server: session manager is nil")
	case cfg.CookieSecret == "":
		return nil, errors.New("server: cookie secret is empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	loginExpiry := cfg.LoginExpiry
	if loginExpiry <= 0 {
		loginExpiry = DefaultLoginExpiry
	}

	cookies := sessions.NewCookieStore([]byte(cfg.CookieSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.Sessions.Lifetime() / time.Second),
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		provider:    cfg.Provider,
		sessions:    cfg.Sessions,
		cookies:     cookies,
		logins:      newLoginCache(),
		loginExpiry: loginExpiry,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.With(s.requireSession).Get("/", s.handleIndex)
	r.With(s.requireAnonymous).Get(loginPath, s.handleLogin)
	r.With(s.requireAnonymous).Get(callbackPath, s.handleCallback)
	r.Get(logoutPath, s.handleLogout)
	s.router = r

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// browserSession returns the signed cookie session for the request.  A
// missing or undecodable cookie yields a fresh empty session rather than an
// error; a tampered cookie is indistinguishable from no cookie.
func (s *Server) browserSession(r *http.Request) *sessions.Session {
	sess, err := s.cookies.Get(r, cookieName)
	if err != nil {
		s.logger.Debug("discarding undecodable browser cookie", "error", err)
	}
	return sess
}

// currentClaims resolves the request's session cookie to claims, when the
// referenced session exists and has not expired.
func (s *Server) currentClaims(r *http.Request) (oidc.Claims, bool) {
	sess := s.browserSession(r)
	id, _ := sess.Values[keySessionID].(string)
	return s.sessions.Resolve(r.Context(), id)
}

// externalOrigin derives the externally visible origin (scheme://host) from
// the inbound request rather than static configuration, so redirect URIs
// stay correct behind proxies and on non-default ports.  The Host header
// keeps its port; a reverse proxy announces the client-facing scheme via
// X-Forwarded-Proto.
func externalOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// loginCache holds the pending authorization Request for each in-flight
// login attempt, keyed by the attempt's state.  The browser cookie points at
// the single attempt considered valid for that browser; starting a new
// attempt overwrites the pointer, so older cache entries just age out.
type loginCache struct {
	mu      sync.Mutex
	pending map[string]*oidc.Request
}

func newLoginCache() *loginCache {
	return &loginCache{
		pending: map[string]*oidc.Request{},
	}
}

// Add stores an attempt, sweeping out any expired ones while it holds the
// lock.
func (c *loginCache) Add(r *oidc.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for state, pending := range c.pending {
		if pending.IsExpired() {
			delete(c.pending, state)
		}
	}
	c.pending[r.State()] = r
}

// Take removes and returns the attempt for the given state.  Attempts are
// single use: a second Take for the same state misses, as does an expired
// attempt.
func (c *loginCache) Take(state string) (*oidc.Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.pending[state]
	if !ok {
		return nil, false
	}
	delete(c.pending, state)
	if r.IsExpired() {
		return nil, false
	}
	return r, true
}
