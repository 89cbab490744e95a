// Package idp talks to the external OAuth2/OpenID Connect identity provider:
// authorization redirect, code exchange, refresh, introspection, user info and
// revocation.
package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/recovery-portal/internal/config"
	"github.com/jrsteele09/recovery-portal/internal/errors"
	"github.com/jrsteele09/recovery-portal/internal/utils"
	"github.com/jrsteele09/recovery-portal/oauth2"
	"github.com/jrsteele09/recovery-portal/token"
	"github.com/rs/zerolog/log"
	xoauth2 "golang.org/x/oauth2"
)

type Endpoints struct {
	IssuerURL    string
	AuthURL      string
	TokenURL     string
	TokenInfoURL string
	UserInfoURL  string
	RevokeURL    string
}

type Settings struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	HostedDomain string
	Endpoints    Endpoints
}

// SettingsFromConfig collects the provider settings from the environment configuration.
func SettingsFromConfig(c config.OAuthConfig) Settings {
	return Settings{
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURL:  c.GetRedirectURL(),
		Scopes:       c.GetScopes(),
		HostedDomain: c.GetHostedDomain(),
		Endpoints: Endpoints{
			IssuerURL:    c.GetIssuerURL(),
			AuthURL:      c.GetAuthURL(),
			TokenURL:     c.GetTokenURL(),
			TokenInfoURL: c.GetTokenInfoURL(),
			UserInfoURL:  c.GetUserInfoURL(),
			RevokeURL:    c.GetRevokeURL(),
		},
	}
}

// UserInfo is the provider's basic identity for the signed-in account.
type UserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	GivenName     string `json:"given_name,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	HostedDomain  string `json:"hd,omitempty"`
}

// Provider holds what is shared by every browser: client credentials, endpoints
// and the HTTP client. It keeps no per-user state.
type Provider struct {
	settings   Settings
	oauth      *xoauth2.Config
	oidc       *oidc.Provider
	httpClient *http.Client
	nowFunc    func() time.Time
}

type ProviderOption func(*Provider)

func WithHTTPClient(c *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithNowFunc sets the clock used to stamp issued tokens (primarily for testing)
func WithNowFunc(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.nowFunc = now
	}
}

func NewProvider(ctx context.Context, settings Settings, options ...ProviderOption) *Provider {
	p := &Provider{
		settings:   settings,
		httpClient: http.DefaultClient,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(p)
	}

	p.oauth = &xoauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURL:  settings.RedirectURL,
		Scopes:       settings.Scopes,
		Endpoint: xoauth2.Endpoint{
			AuthURL:   settings.Endpoints.AuthURL,
			TokenURL:  settings.Endpoints.TokenURL,
			AuthStyle: xoauth2.AuthStyleInParams,
		},
	}

	// Endpoints are configured explicitly so start-up does not depend on discovery.
	providerConfig := &oidc.ProviderConfig{
		IssuerURL:   settings.Endpoints.IssuerURL,
		AuthURL:     settings.Endpoints.AuthURL,
		TokenURL:    settings.Endpoints.TokenURL,
		UserInfoURL: settings.Endpoints.UserInfoURL,
	}
	p.oidc = providerConfig.NewProvider(oidc.ClientContext(ctx, p.httpClient))

	return p
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, xoauth2.HTTPClient, p.httpClient)
	return oidc.ClientContext(ctx, p.httpClient)
}

// AuthCodeURL builds the authorization redirect for the given CSRF state.
func (p *Provider) AuthCodeURL(state string) string {
	opts := []xoauth2.AuthCodeOption{
		xoauth2.SetAuthURLParam(oauth2.ParamAccessType, oauth2.AccessTypeOffline),
		xoauth2.SetAuthURLParam(oauth2.ParamPrompt, oauth2.PromptConsent),
		xoauth2.SetAuthURLParam(oauth2.ParamIncludeGrantedScopes, "false"),
	}
	if p.settings.HostedDomain != "" {
		opts = append(opts, xoauth2.SetAuthURLParam(oauth2.ParamHostedDomain, p.settings.HostedDomain))
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a new token record (not persisted).
func (p *Provider) Exchange(ctx context.Context, code string) (*token.Record, error) {
	if code == "" {
		return nil, errors.Wrapf(errors.ErrAuthExchange, "[idp Exchange] missing code")
	}
	issuedAt := p.nowFunc()
	tok, err := p.oauth.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, errors.Join(errors.ErrAuthExchange, err)
	}

	rec := p.recordFrom(tok, issuedAt)
	rec.RefreshToken = tok.RefreshToken
	rec.SessionID = uuid.NewString()
	return rec, nil
}

// Refresh obtains a new access token. The returned record never carries a
// refresh token or session id; the caller keeps its originals.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*token.Record, error) {
	if refreshToken == "" {
		return nil, errors.Wrapf(errors.ErrTokenRefresh, "[idp Refresh] no refresh token")
	}
	issuedAt := p.nowFunc()
	src := p.oauth.TokenSource(p.clientContext(ctx), &xoauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, errors.Join(errors.ErrTokenRefresh, err)
	}
	return p.recordFrom(tok, issuedAt), nil
}

func (p *Provider) recordFrom(tok *xoauth2.Token, issuedAt time.Time) *token.Record {
	rec := &token.Record{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		IssuedAt:    issuedAt.UnixMilli(),
		Expiry:      token.ExpiryFrom(issuedAt, expiresIn(tok, issuedAt)),
		StoredAt:    issuedAt.UnixMilli(),
	}
	switch scope := tok.Extra("scope").(type) {
	case string:
		rec.Scope = oauth2.ParseScope(scope)
	case []any:
		rec.Scope = utils.ToStringSlice(scope)
	}
	return rec
}

// expiresIn reads the wire "expires_in"; x/oauth2 only exposes it through Extra.
func expiresIn(tok *xoauth2.Token, now time.Time) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	if !tok.Expiry.IsZero() {
		return int64(tok.Expiry.Sub(now).Round(time.Second) / time.Second)
	}
	return 0
}

// Introspect asks the provider whether accessToken is still valid.
func (p *Provider) Introspect(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return errors.Wrapf(errors.ErrTokenInvalid, "[idp Introspect] empty token")
	}
	u := p.settings.Endpoints.TokenInfoURL + "?" + url.Values{"access_token": {accessToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Join(errors.ErrTokenInvalid, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Join(errors.ErrTokenInvalid, err)
	}
	defer resp.Body.Close()

	var info oauth2.TokenInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil && resp.StatusCode == http.StatusOK {
		return errors.Join(errors.ErrTokenInvalid, err)
	}
	if resp.StatusCode != http.StatusOK || info.Error != "" {
		return errors.Wrapf(errors.ErrTokenInvalid, "[idp Introspect] status %d %s", resp.StatusCode, info.Error)
	}
	return nil
}

// UserInfo fetches the basic identity of the token's owner.
func (p *Provider) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	src := xoauth2.StaticTokenSource(&xoauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	info, err := p.oidc.UserInfo(p.clientContext(ctx), src)
	if err != nil {
		return nil, errors.Join(errors.ErrProfileFetch, err)
	}

	user := UserInfo{}
	if err := info.Claims(&user); err != nil {
		return nil, errors.Join(errors.ErrProfileFetch, err)
	}
	user.Subject = info.Subject
	user.Email = info.Email
	user.EmailVerified = info.EmailVerified
	return &user, nil
}

// Revoke is best effort: failures are logged and never returned.
func (p *Provider) Revoke(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.Endpoints.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.Err(err).Msg("Failed to build revoke request")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		log.Err(err).Msg("Failed to revoke token")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg(fmt.Sprintf("Token revocation rejected by %s", p.settings.Endpoints.RevokeURL))
	}
}
