package server

import (
	"github.com/jrsteele09/recovery-portal/users"
)

func (s *Server) initRoutes() {
	// Public pages
	s.RegisterRouteHandler("GET "+RouteLanding+"{$}", ChainMiddleware(s.LandingHandler(), s.PageMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LandingHandler(), s.PageMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.PublicPageHandler("Registro"), s.PageMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteContact, ChainMiddleware(s.PublicPageHandler("Contacto"), s.PageMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAbout, ChainMiddleware(s.PublicPageHandler("Acerca de"), s.PageMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteUnauthorized, ChainMiddleware(s.UnauthorizedHandler(), s.PageMiddleware()...))

	// AUTH
	s.RegisterRouteHandler("GET "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.OAuthCallbackHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	// Protected pages
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.PageMiddleware(s.RequireRole())...))
	s.registerDashboard(RouteStudent, "Panel del estudiante", users.RoleStudent)
	s.registerDashboard(RouteTeacher, "Panel docente", users.RoleTeacher)
	s.registerDashboard(RouteTreasury, "Tesorería", users.RoleTreasury)
	s.registerDashboard(RouteWelfare, "Bienestar", users.RoleWelfare)
	s.registerDashboard(RouteSecretary, "Secretaría académica", users.RoleSecretariat)

	s.RegisterRouteHandler("GET /static/", FileServerHandler())

	// API routes
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionAPIHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteAPISession, ChainMiddleware(s.SessionAPIHandler(), s.APIMiddleware()...))
}

// registerDashboard guards a role dashboard and everything below it.
func (s *Server) registerDashboard(path, title string, roles ...users.Role) {
	handler := ChainMiddleware(s.RoleDashboardHandler(title), s.PageMiddleware(s.RequireRole(roles...))...)
	s.RegisterRouteHandler("GET "+path, handler)
	s.RegisterRouteHandler("GET "+path+"/", handler)
}
