// Package idptest provides an in-process identity provider for tests.
package idptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/recovery-portal/idp"
	"github.com/jrsteele09/recovery-portal/oauth2"
)

const (
	ClientID     = "recovery-units-test"
	ClientSecret = "test-secret"
	RedirectURL  = "http://portal.test/auth/callback"
	HostedDomain = "vallegrande.edu.pe"
	GrantedScope = "openid email profile"
)

// Server answers the token, tokeninfo, userinfo and revoke endpoints. Every
// issued access token is valid until Invalidate is called for it.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	expiresIn      int64
	email          string
	rejectExchange bool
	rejectRefresh  bool
	withoutRefresh bool
	issued         int
	valid          map[string]bool
	refreshTokens  map[string]bool
	revoked        []string
	forms          []map[string]string
	exchanges      int
	refreshes      int
}

func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		expiresIn:     3600,
		email:         "jane.doe@" + HostedDomain,
		valid:         map[string]bool{},
		refreshTokens: map[string]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", s.tokenHandler)
	mux.HandleFunc("GET /tokeninfo", s.tokenInfoHandler)
	mux.HandleFunc("GET /userinfo", s.userInfoHandler)
	mux.HandleFunc("POST /revoke", s.revokeHandler)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Settings points an idp.Provider at this server.
func (s *Server) Settings() idp.Settings {
	return idp.Settings{
		ClientID:     ClientID,
		ClientSecret: ClientSecret,
		RedirectURL:  RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		HostedDomain: HostedDomain,
		Endpoints: idp.Endpoints{
			IssuerURL:    s.URL,
			AuthURL:      s.URL + "/auth",
			TokenURL:     s.URL + "/token",
			TokenInfoURL: s.URL + "/tokeninfo",
			UserInfoURL:  s.URL + "/userinfo",
			RevokeURL:    s.URL + "/revoke",
		},
	}
}

func (s *Server) SetExpiresIn(seconds int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresIn = seconds
}

func (s *Server) SetEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
}

func (s *Server) RejectExchange(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectExchange = reject
}

func (s *Server) RejectRefresh(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectRefresh = reject
}

// OmitRefreshToken makes the code exchange return no refresh token.
func (s *Server) OmitRefreshToken(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withoutRefresh = omit
}

// Invalidate makes introspection and user info reject accessToken.
func (s *Server) Invalidate(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.valid, accessToken)
}

// AddRefreshToken registers a refresh token the server accepts.
func (s *Server) AddRefreshToken(refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshTokens[refreshToken] = true
}

func (s *Server) Revoked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.revoked...)
}

// LastForm returns the last form posted to the token endpoint.
func (s *Server) LastForm() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.forms) == 0 {
		return nil
	}
	return s.forms[len(s.forms)-1]
}

func (s *Server) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

func (s *Server) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms = append(s.forms, form)

	if form["client_id"] != ClientID || form["client_secret"] != ClientSecret {
		writeError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	resp := oauth2.TokenResponse{TokenType: "Bearer", ExpiresIn: s.expiresIn, Scope: GrantedScope}
	switch oauth2.GrantType(form["grant_type"]) {
	case oauth2.AuthorizationCodeGrant:
		s.exchanges++
		if s.rejectExchange || form["code"] == "" || form["redirect_uri"] != RedirectURL {
			writeError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		if !s.withoutRefresh {
			resp.RefreshToken = fmt.Sprintf("rt-%d", s.issued+1)
			s.refreshTokens[resp.RefreshToken] = true
		}
	case oauth2.RefreshTokenGrant:
		s.refreshes++
		if s.rejectRefresh || !s.refreshTokens[form["refresh_token"]] {
			writeError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	s.issued++
	resp.AccessToken = fmt.Sprintf("at-%d", s.issued)
	s.valid[resp.AccessToken] = true
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) tokenInfoHandler(w http.ResponseWriter, r *http.Request) {
	at := r.URL.Query().Get("access_token")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid[at] {
		writeJSON(w, http.StatusBadRequest, oauth2.TokenInfo{Error: "invalid_token", ErrorDescription: "Invalid Value"})
		return
	}
	writeJSON(w, http.StatusOK, oauth2.TokenInfo{IssuedTo: ClientID, Audience: ClientID, Scope: GrantedScope, ExpiresIn: s.expiresIn, Email: s.email})
}

func (s *Server) userInfoHandler(w http.ResponseWriter, r *http.Request) {
	at := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid[at] {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sub":            "1099",
		"email":          s.email,
		"email_verified": true,
		"name":           "Jane Doe",
		"given_name":     "Jane",
		"family_name":    "Doe",
		"hd":             HostedDomain,
	})
}

func (s *Server) revokeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := r.PostForm.Get("token")
	s.revoked = append(s.revoked, tok)
	delete(s.valid, tok)
	w.WriteHeader(http.StatusOK)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, oauth2.ErrorResponse{Error: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
