// Package auth decides what a page request may see given the session state.
package auth

import "strings"

// Route paths the auth core knows about.
const (
	RouteLanding      = "/"
	RouteLogin        = "/login"
	RouteCallback     = "/auth/callback"
	RouteUnauthorized = "/unauthorized"
	RouteRegister     = "/register"
	RouteContact      = "/contact"
	RouteAbout        = "/about"
	RouteDashboard    = "/dashboard"
)

var publicRoutes = []string{
	RouteLanding,
	RouteLogin,
	RouteCallback,
	RouteUnauthorized,
	RouteRegister,
	RouteContact,
	RouteAbout,
}

// IsPublicPath reports whether path is an allow-listed route or nested below one.
// The landing page only matches exactly, otherwise every path would be public.
func IsPublicPath(path string) bool {
	for _, route := range publicRoutes {
		if path == route {
			return true
		}
		if route != RouteLanding && strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}
