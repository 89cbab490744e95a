package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/recovery-portal/auth"
	"github.com/jrsteele09/recovery-portal/server/loginsession"
	"github.com/jrsteele09/recovery-portal/users"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyBrowser stores the *loginsession.Session of the requesting browser
const ContextKeyBrowser ContextKey = "browser"

func browserFrom(r *http.Request) *loginsession.Session {
	s, _ := r.Context().Value(ContextKeyBrowser).(*loginsession.Session)
	return s
}

// BrowserMiddleware identifies the browser and attaches its session to the request.
func (s *Server) BrowserMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.browserID(w, r)
		if err != nil {
			log.Err(err).Msg("Failed to identify browser")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		session, err := s.browsers.GetOrCreate(id, r.UserAgent())
		if err != nil {
			log.Err(err).Str("browser", id).Msg("Failed to create browser session")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyBrowser, session)
		next(w, r.WithContext(ctx))
	}
}

// PageLoadMiddleware treats every page request as an application load followed
// by a navigation to the requested path.
func (s *Server) PageLoadMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := browserFrom(r)
		ctx := r.Context()

		session.Controller.Start(ctx, r.URL)
		session.Controller.OnReload(ctx, r.URL.Path)
		session.Controller.OnNavigate(ctx, r.URL.Path)

		if s.followNavigation(w, r, session) {
			return
		}
		next(w, r)
	}
}

// followNavigation answers with the navigation the session controller buffered,
// if any, and reports whether it did.
func (s *Server) followNavigation(w http.ResponseWriter, r *http.Request, session *loginsession.Session) bool {
	target := session.Navigation.Take()
	if target == "" || target == r.URL.Path {
		return false
	}
	redirectSuccess(w, r, target)
	return true
}

// RequireRole applies the route guard; no roles means any authenticated role.
func (s *Server) RequireRole(allowed ...users.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			session := browserFrom(r)
			decision := auth.Evaluate(session.Controller.Snapshot().View(), r.URL.Path, allowed)

			switch decision.Outcome {
			case auth.Wait:
				s.renderPage(w, "waiting.html", http.StatusOK, PageData{
					AppName: s.config.GetAppName(),
					Refresh: localPath(r.URL.RequestURI()),
				})
			case auth.Transition:
				s.renderPage(w, "transition.html", http.StatusOK, PageData{
					AppName: s.config.GetAppName(),
					Refresh: RouteLanding,
				})
			case auth.RedirectLogin:
				if err := session.Flow.RememberRedirect(r.Context(), decision.Remember); err != nil {
					log.Err(err).Msg("Failed to remember pending redirect")
				}
				redirectSuccess(w, r, decision.Target)
			case auth.RedirectUnauthorized:
				redirectSuccess(w, r, decision.Target)
			default:
				next(w, r)
			}
		}
	}
}
