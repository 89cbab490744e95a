package server

import (
	"crypto/rand"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/jrsteele09/recovery-portal/idp"
	"github.com/jrsteele09/recovery-portal/internal/config"
	"github.com/jrsteele09/recovery-portal/server/loginsession"
	"github.com/jrsteele09/recovery-portal/sessions"
	"github.com/jrsteele09/recovery-portal/storage"
	"github.com/jrsteele09/recovery-portal/users"
	"github.com/rs/zerolog/log"
)

const secretLength = 32

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	provider  *idp.Provider
	directory *users.Directory
	browsers  loginsession.Repo
	templates map[string]*template.Template

	local   storage.Storage // survives reloads: the encrypted token record
	session storage.Storage // pending redirect and CSRF state

	cookieSecret   []byte
	tokenKeySecret []byte
	controllerOpts []sessions.Option
}

type Option func(*Server)

// WithBrowserRepo replaces the idle-evicting browser registry.
func WithBrowserRepo(repo loginsession.Repo) Option {
	return func(s *Server) {
		s.browsers = repo
	}
}

// WithControllerOptions is passed to every session controller (primarily for testing)
func WithControllerOptions(options ...sessions.Option) Option {
	return func(s *Server) {
		s.controllerOpts = append(s.controllerOpts, options...)
	}
}

func New(config config.Config, provider *idp.Provider, directory *users.Directory, local, session storage.Storage, options ...Option) (*Server, error) {
	s := &Server{
		env:       config.GetEnv(),
		mux:       http.NewServeMux(),
		config:    config,
		provider:  provider,
		directory: directory,
		local:     local,
		session:   session,
	}

	var err error
	if s.cookieSecret, err = secretOrRandom(config.GetCookieSecret(), "COOKIE_SECRET"); err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}
	if s.tokenKeySecret, err = secretOrRandom(config.GetTokenKeySecret(), "TOKEN_KEY_SECRET"); err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}

	for _, opt := range options {
		opt(s)
	}
	if s.browsers == nil {
		s.browsers = loginsession.NewTTLRepo(config.GetBrowserIdleTimeout(), s.newBrowserSession)
	}

	if s.templates, err = loadTemplates(); err != nil {
		return nil, fmt.Errorf("[Server New] %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

// secretOrRandom falls back to a random secret, which does not survive a restart.
func secretOrRandom(secret, name string) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}
	log.Warn().Msgf("%s is not set, using a random secret: sessions will not survive a restart", name)
	b := make([]byte, secretLength)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate %s: %w", name, err)
	}
	return b, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close tears down every browser session.
func (s *Server) Close() {
	s.browsers.Close()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
