package server

import "github.com/jrsteele09/recovery-portal/auth"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Public pages
	RouteLanding      = auth.RouteLanding
	RouteLogin        = auth.RouteLogin
	RouteUnauthorized = auth.RouteUnauthorized
	RouteRegister     = auth.RouteRegister
	RouteContact      = auth.RouteContact
	RouteAbout        = auth.RouteAbout

	// Auth Routes
	RouteAuthLogin  = "/auth/login"
	RouteAuthLogout = "/auth/logout"
	RouteCallback   = auth.RouteCallback

	// Protected pages
	RouteDashboard = auth.RouteDashboard
	RouteStudent   = "/student"
	RouteTeacher   = "/teacher"
	RouteTreasury  = "/treasury"
	RouteWelfare   = "/welfare"
	RouteSecretary = "/secretary"

	// API Routes
	RouteAPISession = "/api/session"
)
