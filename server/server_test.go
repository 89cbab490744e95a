package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/recovery-portal/idp"
	"github.com/jrsteele09/recovery-portal/idp/idptest"
	"github.com/jrsteele09/recovery-portal/internal/config"
	"github.com/jrsteele09/recovery-portal/server"
	"github.com/jrsteele09/recovery-portal/storage"
	"github.com/jrsteele09/recovery-portal/users"
	"github.com/stretchr/testify/require"
)

const spaOrigin = "http://spa.test"

type backend struct {
	mu   sync.Mutex
	role users.Role
}

func (b *backend) setRole(role users.Role) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.role = role
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	role := b.role
	b.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{
		"role":            role,
		"document_number": "70112233",
		"name":            "Jane Doe",
		"email":           r.URL.Query().Get("email"),
	})
}

type testFixture struct {
	provider *idptest.Server
	backend  *backend
	server   *server.Server
	http     *httptest.Server
	client   *http.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("BASE_URL", "http://portal.test")
	t.Setenv("COOKIE_SECRET", "cookie-secret")
	t.Setenv("TOKEN_KEY_SECRET", "token-key-secret")
	t.Setenv("ALLOWED_ORIGINS", spaOrigin)

	fake := idptest.NewServer(t)
	provider := idp.NewProvider(context.Background(), fake.Settings(), idp.WithHTTPClient(fake.Client()))

	be := &backend{role: users.RoleStudent}
	beSrv := httptest.NewServer(be)
	t.Cleanup(beSrv.Close)
	directory := users.NewDirectory(beSrv.URL, users.WithHTTPClient(beSrv.Client()))

	local := storage.NewMemory(time.Hour)
	session := storage.NewMemory(time.Hour)
	t.Cleanup(func() {
		_ = local.Close()
		_ = session.Close()
	})

	srv, err := server.New(config.New(), provider, directory, local, session)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	httpSrv := httptest.NewServer(srv)
	t.Cleanup(httpSrv.Close)

	return &testFixture{
		provider: fake,
		backend:  be,
		server:   srv,
		http:     httpSrv,
		client:   newBrowser(t),
	}
}

// newBrowser returns a client that keeps cookies and does not follow redirects.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *testFixture) do(t *testing.T, method, path string, mutate ...func(*http.Request)) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, nil)
	require.NoError(t, err)
	for _, m := range mutate {
		m(req)
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func requireRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, location, resp.Header.Get("Location"))
}

// login runs /auth/login and the provider callback, returning the callback response.
func (f *testFixture) login(t *testing.T) *http.Response {
	t.Helper()
	resp, _ := f.do(t, http.MethodGet, server.RouteAuthLogin)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	authURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(authURL.String(), f.provider.URL+"/auth"))

	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	resp, _ = f.do(t, http.MethodGet, server.RouteCallback+"?code=abc&state="+url.QueryEscape(state))
	return resp
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestServer_BrowserCookieIssuedOnce(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.do(t, http.MethodGet, server.RouteLanding)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := cookieNamed(resp, "rup_browser")
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)

	resp, _ = f.do(t, http.MethodGet, server.RouteLanding)
	require.Nil(t, cookieNamed(resp, "rup_browser"))
}

func TestServer_ForgedBrowserCookieReplaced(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.do(t, http.MethodGet, server.RouteLanding, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "rup_browser", Value: "not-a-jwt"})
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, cookieNamed(resp, "rup_browser"))
}

func TestServer_ProtectedPathWithoutSession(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.do(t, http.MethodGet, server.RouteStudent+"/units")
	requireRedirect(t, resp, server.RouteLanding)

	resp, body := f.do(t, http.MethodGet, server.RouteLanding)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "/auth/login")
}

func TestServer_PublicPagesRender(t *testing.T) {
	f := setupTestFixture(t)

	for _, path := range []string{server.RouteLanding, server.RouteLogin, server.RouteRegister, server.RouteContact, server.RouteAbout} {
		resp, _ := f.do(t, http.MethodGet, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Equal(t, "no-store", resp.Header.Get("Cache-Control"), path)
	}

	resp, _ := f.do(t, http.MethodGet, server.RouteUnauthorized)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_LoginFlowReturnsToRememberedPath(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.do(t, http.MethodGet, server.RouteStudent)
	requireRedirect(t, resp, server.RouteLanding)

	resp = f.login(t)
	requireRedirect(t, resp, server.RouteStudent)

	resp, body := f.do(t, http.MethodGet, server.RouteStudent)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Jane Doe")
	require.Contains(t, body, "70112233")

	resp, _ = f.do(t, http.MethodGet, server.RouteDashboard)
	requireRedirect(t, resp, server.RouteStudent)
}

func TestServer_LoginFlowDefaultsToDashboard(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.login(t)
	requireRedirect(t, resp, server.RouteDashboard)

	resp, _ = f.do(t, http.MethodGet, server.RouteDashboard)
	requireRedirect(t, resp, server.RouteStudent)

	resp, body := f.do(t, http.MethodGet, server.RouteLanding)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, server.RouteStudent)
}

func TestServer_LoginNextParameter(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.do(t, http.MethodGet, server.RouteAuthLogin+"?next="+url.QueryEscape(server.RouteStudent))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	authURL, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	resp, _ = f.do(t, http.MethodGet, server.RouteCallback+"?code=abc&state="+url.QueryEscape(authURL.Query().Get("state")))
	requireRedirect(t, resp, server.RouteStudent)
}

func TestServer_CallbackWithWrongState(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.do(t, http.MethodGet, server.RouteAuthLogin)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, server.RouteCallback+"?code=abc&state=forged")
	requireRedirect(t, resp, server.RouteLanding)
	require.Zero(t, f.provider.Exchanges())

	resp, body := f.do(t, http.MethodGet, server.RouteLanding)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `class="error"`)
}

func TestServer_WrongRoleIsUnauthorized(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.setRole(users.RoleTeacher)

	resp := f.login(t)
	requireRedirect(t, resp, server.RouteDashboard)

	resp, _ = f.do(t, http.MethodGet, server.RouteStudent)
	requireRedirect(t, resp, server.RouteUnauthorized)

	resp, body := f.do(t, http.MethodGet, server.RouteUnauthorized)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Contains(t, body, server.RouteTeacher)

	resp, _ = f.do(t, http.MethodGet, server.RouteTeacher)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_LogoutRevokesAndExpiresLegacyCookie(t *testing.T) {
	f := setupTestFixture(t)
	requireRedirect(t, f.login(t), server.RouteDashboard)

	resp, _ := f.do(t, http.MethodPost, server.RouteAuthLogout, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "google_token", Value: "stale"})
	})
	requireRedirect(t, resp, server.RouteLanding)

	legacy := cookieNamed(resp, "google_token")
	require.NotNil(t, legacy)
	require.Equal(t, -1, legacy.MaxAge)
	require.Equal(t, []string{"at-1"}, f.provider.Revoked())

	resp, _ = f.do(t, http.MethodGet, server.RouteStudent)
	requireRedirect(t, resp, server.RouteLanding)
}

func TestServer_LogoutWithoutSession(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.do(t, http.MethodGet, server.RouteAuthLogout)
	requireRedirect(t, resp, server.RouteLanding)
	require.Nil(t, cookieNamed(resp, "google_token"))
	require.Empty(t, f.provider.Revoked())
}

func TestServer_SessionsAreIsolatedPerBrowser(t *testing.T) {
	f := setupTestFixture(t)
	requireRedirect(t, f.login(t), server.RouteDashboard)

	f.client = newBrowser(t)
	resp, _ := f.do(t, http.MethodGet, server.RouteStudent)
	requireRedirect(t, resp, server.RouteLanding)
}

func TestServer_SessionAPI(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.do(t, http.MethodGet, server.RouteAPISession)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var anonymous server.SessionResponse
	require.NoError(t, json.Unmarshal([]byte(body), &anonymous))
	require.False(t, anonymous.IsAuthenticated)
	require.False(t, anonymous.Loading)
	require.Nil(t, anonymous.Profile)

	requireRedirect(t, f.login(t), server.RouteDashboard)

	resp, body = f.do(t, http.MethodGet, server.RouteAPISession)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	require.NotContains(t, body, "at-1")
	require.NotContains(t, body, "rt-2")

	var authenticated server.SessionResponse
	require.NoError(t, json.Unmarshal([]byte(body), &authenticated))
	require.True(t, authenticated.IsAuthenticated)
	require.Equal(t, server.RouteStudent, authenticated.Dashboard)
	require.Equal(t, users.RoleStudent, authenticated.Profile.Role)
	require.Equal(t, "jane.doe@vallegrande.edu.pe", authenticated.User.Email)
	require.NotNil(t, authenticated.ExpiresAt)
	require.ElementsMatch(t, []string{"openid", "email", "profile"}, authenticated.Scope)
}

func TestServer_CORSPreflight(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.do(t, http.MethodOptions, server.RouteAPISession, func(r *http.Request) {
		r.Header.Set("Origin", spaOrigin)
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, spaOrigin, resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	resp, _ = f.do(t, http.MethodOptions, server.RouteAPISession, func(r *http.Request) {
		r.Header.Set("Origin", "http://evil.test")
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServer_RecoverRendersDiagnosticPage(t *testing.T) {
	f := setupTestFixture(t)
	f.server.RegisterRouteHandler("GET /boom", server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("template exploded")
	}, f.server.HTMLMiddleWare()...))
	f.server.RegisterRouteHandler("GET /api/boom", server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}, f.server.APIMiddleware()...))

	resp, body := f.do(t, http.MethodGet, "/boom")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Contains(t, body, "template exploded")
	require.Contains(t, body, `href="/boom"`)

	resp, body = f.do(t, http.MethodGet, "/api/boom")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.JSONEq(t, `{"error":"internal_error"}`, body)
}

func TestServer_GuardWaitsForUnresolvedSession(t *testing.T) {
	f := setupTestFixture(t)
	// No page load: the session has not been resolved yet.
	f.server.RegisterRouteHandler("GET /probe", server.ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}, f.server.HTMLMiddleWare(f.server.RequireRole())...))

	resp, body := f.do(t, http.MethodGet, "/probe")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `http-equiv="refresh"`)
	require.Contains(t, body, "/probe")
}

func TestServer_StaticFiles(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.do(t, http.MethodGet, "/static/portal.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "header")
}
