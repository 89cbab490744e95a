package server

import (
	"net/http"
)

// OAuthCallbackHandler completes the code flow; the session controller checks
// the state, exchanges the code and decides where the browser goes next.
func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := browserFrom(r)
		session.Controller.Start(r.Context(), r.URL)

		if s.followNavigation(w, r, session) {
			return
		}
		redirectSuccess(w, r, RouteLanding)
	}
}
