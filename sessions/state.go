package sessions

import (
	"github.com/jrsteele09/recovery-portal/auth"
	"github.com/jrsteele09/recovery-portal/idp"
	"github.com/jrsteele09/recovery-portal/token"
	"github.com/jrsteele09/recovery-portal/users"
)

type Phase string

const (
	PhaseInitializing    Phase = "initializing"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticated   Phase = "authenticated"
	// PhaseRefreshing is a silent background refresh; Loading stays false.
	PhaseRefreshing Phase = "refreshing"
	PhaseLoggingOut Phase = "logging_out"
)

// State is what views observe. IsAuthenticated is true only when User, Profile
// and Tokens are all present.
type State struct {
	Phase           Phase
	User            *idp.UserInfo
	Profile         *users.Profile
	Tokens          *token.Record
	Loading         bool
	Error           string
	IsAuthenticated bool
	IsLoggingOut    bool
}

func initialState() State {
	return State{Phase: PhaseInitializing, Loading: true}
}

func unauthenticatedState(errMsg string) State {
	return State{Phase: PhaseUnauthenticated, Error: errMsg}
}

func authenticatedState(user *idp.UserInfo, profile *users.Profile, rec *token.Record) State {
	if user == nil || profile == nil || rec == nil || rec.AccessToken == "" {
		return unauthenticatedState("")
	}
	return State{
		Phase:           PhaseAuthenticated,
		User:            user,
		Profile:         profile,
		Tokens:          rec,
		IsAuthenticated: true,
	}
}

// View projects the state onto what the route guard needs.
func (s State) View() auth.SessionView {
	v := auth.SessionView{
		Loading:         s.Loading,
		LoggingOut:      s.IsLoggingOut,
		IsAuthenticated: s.IsAuthenticated,
	}
	if s.Profile != nil {
		v.Role = s.Profile.Role
	}
	return v
}

func (s State) clone() State {
	c := s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	c.Profile = s.Profile.Clone()
	c.Tokens = s.Tokens.Clone()
	return c
}
