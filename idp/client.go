package idp

import (
	"context"

	"github.com/jrsteele09/recovery-portal/auth"
	"github.com/jrsteele09/recovery-portal/authflow"
	"github.com/jrsteele09/recovery-portal/internal/errors"
	"github.com/jrsteele09/recovery-portal/token"
)

// Navigator sends the browser somewhere else. Implementations buffer the target
// until the current request can answer with a redirect.
type Navigator interface {
	Navigate(target string)
}

// Client is the identity provider as seen by one browser: it shares the
// Provider and owns that browser's token store and login round-trip values.
type Client struct {
	provider *Provider
	tokens   *token.Store
	flow     *authflow.Store
	nav      Navigator
}

func NewClient(provider *Provider, tokens *token.Store, flow *authflow.Store, nav Navigator) *Client {
	return &Client{
		provider: provider,
		tokens:   tokens,
		flow:     flow,
		nav:      nav,
	}
}

// StartAuthorizationRedirect records where to come back to, creates a CSRF state
// and navigates the browser to the provider's consent screen.
func (c *Client) StartAuthorizationRedirect(ctx context.Context, currentPath string) error {
	if currentPath != "" && !auth.IsPublicPath(currentPath) {
		if err := c.flow.RememberRedirect(ctx, currentPath); err != nil {
			return errors.Wrapf(err, "[idp StartAuthorizationRedirect]")
		}
	}
	state, err := c.flow.NewState(ctx)
	if err != nil {
		return errors.Wrapf(err, "[idp StartAuthorizationRedirect]")
	}
	c.nav.Navigate(c.provider.AuthCodeURL(state))
	return nil
}

// VerifyState checks and consumes the CSRF state returned on the callback.
func (c *Client) VerifyState(ctx context.Context, state string) error {
	return c.flow.VerifyState(ctx, state)
}

// ExchangeCodeForTokens trades the authorization code and persists the new record,
// replacing whatever was stored before.
func (c *Client) ExchangeCodeForTokens(ctx context.Context, code string) (*token.Record, error) {
	rec, err := c.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.Save(ctx, rec); err != nil {
		return nil, errors.Join(errors.ErrAuthExchange, err)
	}
	return rec, nil
}

// RefreshAccessToken returns the provider's new access token data. Persisting the
// merged record is left to the caller.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*token.Record, error) {
	return c.provider.Refresh(ctx, refreshToken)
}

func (c *Client) Introspect(ctx context.Context, accessToken string) error {
	return c.provider.Introspect(ctx, accessToken)
}

func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	return c.provider.UserInfo(ctx, accessToken)
}

func (c *Client) Revoke(ctx context.Context, accessToken string) {
	c.provider.Revoke(ctx, accessToken)
}
