package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// LoginHandler starts the authorization code flow (GET /auth/login?next=/path).
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := browserFrom(r)

		currentPath := RouteLanding
		if next := r.URL.Query().Get("next"); next != "" {
			currentPath = localPath(next)
		}

		if err := session.Controller.Login(r.Context(), currentPath); err != nil {
			log.Err(err).Str("browser", session.BrowserID).Msg("Failed to start login")
		}
		if s.followNavigation(w, r, session) {
			return
		}
		redirectSuccess(w, r, RouteLanding)
	}
}

// LogoutHandler ends the session of the requesting browser (GET|POST /auth/logout).
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := browserFrom(r)
		session.Controller.Logout(r.Context())
		expireLegacyTokenCookie(w, r)

		if s.followNavigation(w, r, session) {
			return
		}
		redirectSuccess(w, r, RouteLanding)
	}
}
