package server

import (
	"net/http"

	"github.com/jrsteele09/recovery-portal/auth"
	"github.com/jrsteele09/recovery-portal/internal/utils"
)

// pageData fills the page model from the browser's session state.
func (s *Server) pageData(r *http.Request, title string) PageData {
	data := PageData{AppName: s.config.GetAppName(), Title: title}
	session := browserFrom(r)
	if session == nil {
		return data
	}

	st := session.Controller.Snapshot()
	data.Error = st.Error
	data.IsAuthenticated = st.IsAuthenticated
	if st.IsAuthenticated {
		profile := utils.Value(st.Profile)
		data.Name = profile.Name
		data.Email = profile.Email
		data.Role = string(profile.Role)
		data.DocumentNumber = profile.DocumentNumber
		data.Dashboard = auth.DashboardFor(profile.Role)
		if data.Name == "" && st.User != nil {
			data.Name = st.User.Name
		}
	}
	return data
}

// LandingHandler renders the public landing page, showing the last session error if any.
func (s *Server) LandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, "landing.html", http.StatusOK, s.pageData(r, ""))
	}
}

func (s *Server) PublicPageHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, "public.html", http.StatusOK, s.pageData(r, title))
	}
}

func (s *Server) UnauthorizedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, "unauthorized.html", http.StatusForbidden, s.pageData(r, "Acceso no autorizado"))
	}
}

// DashboardHandler sends an authenticated user to the dashboard of their role.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := browserFrom(r).Controller.Snapshot()
		role := utils.Value(st.Profile).Role
		redirectSuccess(w, r, auth.DashboardFor(role))
	}
}

// RoleDashboardHandler renders the application shell of a role dashboard.
func (s *Server) RoleDashboardHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, "dashboard.html", http.StatusOK, s.pageData(r, title))
	}
}
