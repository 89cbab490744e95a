package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/recovery-portal/auth"
	"github.com/jrsteele09/recovery-portal/idp"
	"github.com/jrsteele09/recovery-portal/internal/utils"
	"github.com/jrsteele09/recovery-portal/sessions"
	"github.com/jrsteele09/recovery-portal/users"
)

// SessionResponse is the session state as exposed to the SPA. Tokens never leave the server.
type SessionResponse struct {
	Phase           sessions.Phase `json:"phase"`
	IsAuthenticated bool           `json:"is_authenticated"`
	Loading         bool           `json:"loading"`
	IsLoggingOut    bool           `json:"is_logging_out"`
	Error           string         `json:"error,omitempty"`
	User            *idp.UserInfo  `json:"user,omitempty"`
	Profile         *users.Profile `json:"profile,omitempty"`
	Dashboard       string         `json:"dashboard,omitempty"`
	Scope           []string       `json:"scope,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
}

func newSessionResponse(st sessions.State) SessionResponse {
	resp := SessionResponse{
		Phase:           st.Phase,
		IsAuthenticated: st.IsAuthenticated,
		Loading:         st.Loading,
		IsLoggingOut:    st.IsLoggingOut,
		Error:           st.Error,
	}
	if !st.IsAuthenticated {
		return resp
	}
	resp.User = st.User
	resp.Profile = st.Profile
	resp.Dashboard = auth.DashboardFor(st.Profile.Role)
	resp.Scope = st.Tokens.Scope
	resp.ExpiresAt = utils.Ptr(st.Tokens.ExpiresAt().UTC())
	return resp
}

// SessionAPIHandler returns the browser's session state (GET /api/session). The
// session is resolved first if no page load did so yet.
func (s *Server) SessionAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := browserFrom(r)
		session.Controller.Start(r.Context(), &url.URL{Path: r.URL.Path})
		writeJSON(w, http.StatusOK, newSessionResponse(session.Controller.Snapshot()))
	}
}
