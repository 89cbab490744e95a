package auth

import "github.com/jrsteele09/recovery-portal/users"

// SessionView is the part of the session state the guard reads.
type SessionView struct {
	Loading         bool
	LoggingOut      bool
	IsAuthenticated bool
	Role            users.Role
}

type Outcome int

const (
	// Wait renders a neutral waiting indicator while the session resolves.
	Wait Outcome = iota
	// Transition renders a neutral indicator while logging out.
	Transition
	// RedirectLogin remembers the path and sends the user to the landing page.
	RedirectLogin
	RedirectUnauthorized
	Render
)

func (o Outcome) String() string {
	switch o {
	case Wait:
		return "wait"
	case Transition:
		return "transition"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	case Render:
		return "render"
	}
	return "unknown"
}

// Decision is what the HTTP layer must do with a guarded request.
type Decision struct {
	Outcome Outcome
	// Target is the redirect location, empty unless Outcome redirects.
	Target string
	// Remember is the path to persist as pending redirect.
	Remember string
}

// Evaluate applies the guard rules in order. An empty allowed set admits any role.
func Evaluate(view SessionView, path string, allowed []users.Role) Decision {
	switch {
	case view.Loading:
		return Decision{Outcome: Wait}
	case view.LoggingOut:
		return Decision{Outcome: Transition}
	case !view.IsAuthenticated:
		return Decision{Outcome: RedirectLogin, Target: RouteLanding, Remember: path}
	case !view.Role.In(allowed...):
		return Decision{Outcome: RedirectUnauthorized, Target: RouteUnauthorized}
	}
	return Decision{Outcome: Render}
}

var dashboards = map[users.Role]string{
	users.RoleStudent:     "/student",
	users.RoleTeacher:     "/teacher",
	users.RoleTreasury:    "/treasury",
	users.RoleWelfare:     "/welfare",
	users.RoleSecretariat: "/secretary",
}

// DashboardFor returns the home route of role, or the unauthorized page for an unknown role.
func DashboardFor(role users.Role) string {
	if path, ok := dashboards[role]; ok {
		return path
	}
	return RouteUnauthorized
}
