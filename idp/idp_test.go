package idp_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/recovery-portal/authflow"
	"github.com/jrsteele09/recovery-portal/idp"
	"github.com/jrsteele09/recovery-portal/idp/idptest"
	"github.com/jrsteele09/recovery-portal/internal/errors"
	"github.com/jrsteele09/recovery-portal/storage"
	"github.com/jrsteele09/recovery-portal/token"
	"github.com/stretchr/testify/require"
)

type recordingNavigator struct {
	targets []string
}

func (n *recordingNavigator) Navigate(target string) {
	n.targets = append(n.targets, target)
}

type testFixture struct {
	ctx      context.Context
	now      time.Time
	provider *idptest.Server
	tokens   *token.Store
	flow     *authflow.Store
	nav      *recordingNavigator
	client   *idp.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	fake := idptest.NewServer(t)
	provider := idp.NewProvider(ctx, fake.Settings(),
		idp.WithHTTPClient(fake.Client()),
		idp.WithNowFunc(func() time.Time { return now }),
	)

	mem := storage.NewMemory(time.Hour)
	t.Cleanup(func() { _ = mem.Close() })
	c, err := token.NewCipher([]byte("token-key-secret"), "http://portal.test", "browser-1")
	require.NoError(t, err)

	tokens := token.NewStore(storage.Scope(mem, "local"), c)
	flow := authflow.New(storage.Scope(mem, "session"))
	nav := &recordingNavigator{}

	return &testFixture{
		ctx:      ctx,
		now:      now,
		provider: fake,
		tokens:   tokens,
		flow:     flow,
		nav:      nav,
		client:   idp.NewClient(provider, tokens, flow, nav),
	}
}

func TestStartAuthorizationRedirect(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.client.StartAuthorizationRedirect(f.ctx, "/student/payments"))
	require.Len(t, f.nav.targets, 1)

	u, err := url.Parse(f.nav.targets[0])
	require.NoError(t, err)
	require.Equal(t, f.provider.URL+"/auth", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, idptest.ClientID, q.Get("client_id"))
	require.Equal(t, idptest.RedirectURL, q.Get("redirect_uri"))
	require.Equal(t, "openid email profile", q.Get("scope"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.Equal(t, "false", q.Get("include_granted_scopes"))
	require.Equal(t, idptest.HostedDomain, q.Get("hd"))
	require.Len(t, q.Get("state"), 43)

	pending, err := f.flow.PendingRedirect(f.ctx)
	require.NoError(t, err)
	require.Equal(t, "/student/payments", pending)

	require.NoError(t, f.client.VerifyState(f.ctx, q.Get("state")))
}

func TestStartAuthorizationRedirect_PublicPathNotRemembered(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.client.StartAuthorizationRedirect(f.ctx, "/"))

	pending, err := f.flow.PendingRedirect(f.ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestExchangeCodeForTokens(t *testing.T) {
	f := setupTestFixture(t)

	rec, err := f.client.ExchangeCodeForTokens(f.ctx, "abc")
	require.NoError(t, err)

	form := f.provider.LastForm()
	require.Equal(t, "abc", form["code"])
	require.Equal(t, "authorization_code", form["grant_type"])
	require.Equal(t, idptest.RedirectURL, form["redirect_uri"])
	require.Equal(t, idptest.ClientSecret, form["client_secret"])

	require.Equal(t, "at-1", rec.AccessToken)
	require.Equal(t, "rt-1", rec.RefreshToken)
	require.Equal(t, "Bearer", rec.TokenType)
	require.Equal(t, f.now.UnixMilli(), rec.IssuedAt)
	require.Equal(t, f.now.UnixMilli()+3600*1000, rec.Expiry)
	require.Equal(t, []string{"openid", "email", "profile"}, rec.Scope)
	require.NotEmpty(t, rec.SessionID)

	stored, err := f.tokens.Load(f.ctx)
	require.NoError(t, err)
	require.Equal(t, rec, stored)
}

func TestExchangeCodeForTokens_Rejected(t *testing.T) {
	f := setupTestFixture(t)
	f.provider.RejectExchange(true)

	rec, err := f.client.ExchangeCodeForTokens(f.ctx, "abc")
	require.ErrorIs(t, err, errors.ErrAuthExchange)
	require.Nil(t, rec)

	stored, err := f.tokens.Load(f.ctx)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestExchangeCodeForTokens_MissingCode(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.ExchangeCodeForTokens(f.ctx, "")
	require.ErrorIs(t, err, errors.ErrAuthExchange)
	require.Zero(t, f.provider.Exchanges())
}

func TestRefreshAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	f.provider.AddRefreshToken("rt-original")
	f.provider.SetExpiresIn(1800)

	rec, err := f.client.RefreshAccessToken(f.ctx, "rt-original")
	require.NoError(t, err)

	form := f.provider.LastForm()
	require.Equal(t, "refresh_token", form["grant_type"])
	require.Equal(t, "rt-original", form["refresh_token"])

	require.Equal(t, "at-1", rec.AccessToken)
	require.Empty(t, rec.RefreshToken)
	require.Empty(t, rec.SessionID)
	require.Equal(t, f.now.UnixMilli()+1800*1000, rec.Expiry)

	// Refreshing never touches the store.
	stored, err := f.tokens.Load(f.ctx)
	require.NoError(t, err)
	require.Nil(t, stored)
}

func TestRefreshAccessToken_Failures(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.client.RefreshAccessToken(f.ctx, "")
	require.ErrorIs(t, err, errors.ErrTokenRefresh)
	require.Zero(t, f.provider.Refreshes())

	_, err = f.client.RefreshAccessToken(f.ctx, "rt-unknown")
	require.ErrorIs(t, err, errors.ErrTokenRefresh)
	require.Equal(t, 1, f.provider.Refreshes())
}

func TestIntrospect(t *testing.T) {
	f := setupTestFixture(t)

	rec, err := f.client.ExchangeCodeForTokens(f.ctx, "abc")
	require.NoError(t, err)
	require.NoError(t, f.client.Introspect(f.ctx, rec.AccessToken))

	f.provider.Invalidate(rec.AccessToken)
	require.ErrorIs(t, f.client.Introspect(f.ctx, rec.AccessToken), errors.ErrTokenInvalid)
	require.ErrorIs(t, f.client.Introspect(f.ctx, ""), errors.ErrTokenInvalid)
}

func TestUserInfo(t *testing.T) {
	f := setupTestFixture(t)

	rec, err := f.client.ExchangeCodeForTokens(f.ctx, "abc")
	require.NoError(t, err)

	info, err := f.client.UserInfo(f.ctx, rec.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "1099", info.Subject)
	require.Equal(t, "jane.doe@vallegrande.edu.pe", info.Email)
	require.True(t, info.EmailVerified)
	require.Equal(t, "Jane Doe", info.Name)
	require.Equal(t, idptest.HostedDomain, info.HostedDomain)

	_, err = f.client.UserInfo(f.ctx, "at-unknown")
	require.ErrorIs(t, err, errors.ErrProfileFetch)
}

func TestRevoke(t *testing.T) {
	f := setupTestFixture(t)

	rec, err := f.client.ExchangeCodeForTokens(f.ctx, "abc")
	require.NoError(t, err)

	f.client.Revoke(f.ctx, rec.AccessToken)
	f.client.Revoke(f.ctx, "")
	require.Equal(t, []string{rec.AccessToken}, f.provider.Revoked())
	require.ErrorIs(t, f.client.Introspect(f.ctx, rec.AccessToken), errors.ErrTokenInvalid)
}

func TestRevoke_UnreachableProviderIsIgnored(t *testing.T) {
	settings := idptest.NewServer(t).Settings()
	settings.Endpoints.RevokeURL = "http://127.0.0.1:1/revoke"
	provider := idp.NewProvider(context.Background(), settings)

	require.NotPanics(t, func() { provider.Revoke(context.Background(), "at-1") })
}
