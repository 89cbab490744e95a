package auth_test

import (
	"testing"

	"github.com/jrsteele09/recovery-portal/auth"
	"github.com/jrsteele09/recovery-portal/users"
	"github.com/stretchr/testify/require"
)

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		path   string
		public bool
	}{
		{"/", true},
		{"/login", true},
		{"/auth/callback", true},
		{"/unauthorized", true},
		{"/register", true},
		{"/register/step-2", true},
		{"/contact", true},
		{"/about", true},
		{"/about/team", true},
		{"/aboutus", false},
		{"/dashboard", false},
		{"/student", false},
		{"/student/payments", false},
		{"/auth/logout", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.public, auth.IsPublicPath(tt.path))
		})
	}
}

func TestEvaluate(t *testing.T) {
	student := auth.SessionView{IsAuthenticated: true, Role: users.RoleStudent}

	t.Run("loading waits", func(t *testing.T) {
		d := auth.Evaluate(auth.SessionView{Loading: true}, "/student", nil)
		require.Equal(t, auth.Decision{Outcome: auth.Wait}, d)
	})

	t.Run("logging out shows transition before checking auth", func(t *testing.T) {
		d := auth.Evaluate(auth.SessionView{LoggingOut: true, IsAuthenticated: true, Role: users.RoleStudent}, "/teacher", []users.Role{users.RoleTeacher})
		require.Equal(t, auth.Transition, d.Outcome)
	})

	t.Run("unauthenticated redirects to landing and remembers path", func(t *testing.T) {
		d := auth.Evaluate(auth.SessionView{}, "/treasury/reports", []users.Role{users.RoleTreasury})
		require.Equal(t, auth.RedirectLogin, d.Outcome)
		require.Equal(t, auth.RouteLanding, d.Target)
		require.Equal(t, "/treasury/reports", d.Remember)
	})

	t.Run("wrong role goes to unauthorized", func(t *testing.T) {
		d := auth.Evaluate(student, "/teacher", []users.Role{users.RoleTeacher})
		require.Equal(t, auth.RedirectUnauthorized, d.Outcome)
		require.Equal(t, auth.RouteUnauthorized, d.Target)
		require.Empty(t, d.Remember)
	})

	t.Run("any role when none required", func(t *testing.T) {
		require.Equal(t, auth.Render, auth.Evaluate(student, "/dashboard", nil).Outcome)
	})

	t.Run("allowed role renders", func(t *testing.T) {
		d := auth.Evaluate(student, "/student", []users.Role{users.RoleStudent, users.RoleTeacher})
		require.Equal(t, auth.Render, d.Outcome)
		require.Equal(t, "render", d.Outcome.String())
	})
}

func TestDashboardFor(t *testing.T) {
	require.Equal(t, "/student", auth.DashboardFor(users.RoleStudent))
	require.Equal(t, "/teacher", auth.DashboardFor(users.RoleTeacher))
	require.Equal(t, "/treasury", auth.DashboardFor(users.RoleTreasury))
	require.Equal(t, "/welfare", auth.DashboardFor(users.RoleWelfare))
	require.Equal(t, "/secretary", auth.DashboardFor(users.RoleSecretariat))
	require.Equal(t, auth.RouteUnauthorized, auth.DashboardFor("janitor"))
}
