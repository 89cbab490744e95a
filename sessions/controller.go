// Package sessions owns the per-browser session lifecycle: startup, callback
// handling, verification, proactive refresh, login and logout.
package sessions

import (
	"context"
	"net/url"
	"sync"

	"github.com/jrsteele09/recovery-portal/auth"
	"github.com/jrsteele09/recovery-portal/idp"
	"github.com/jrsteele09/recovery-portal/internal/errors"
	"github.com/jrsteele09/recovery-portal/oauth2"
	"github.com/jrsteele09/recovery-portal/token"
	"github.com/jrsteele09/recovery-portal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IdentityProvider is the per-browser identity provider client.
type IdentityProvider interface {
	StartAuthorizationRedirect(ctx context.Context, currentPath string) error
	VerifyState(ctx context.Context, state string) error
	ExchangeCodeForTokens(ctx context.Context, code string) (*token.Record, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*token.Record, error)
	Introspect(ctx context.Context, accessToken string) error
	UserInfo(ctx context.Context, accessToken string) (*idp.UserInfo, error)
	Revoke(ctx context.Context, accessToken string)
}

type TokenStore interface {
	Save(ctx context.Context, rec *token.Record) error
	Load(ctx context.Context) (*token.Record, error)
	Clear(ctx context.Context) error
}

type PendingRedirects interface {
	RememberRedirect(ctx context.Context, path string) error
	ConsumeRedirect(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

type ProfileDirectory interface {
	LookupByEmail(ctx context.Context, accessToken, email string) (*users.Profile, error)
}

var (
	_ IdentityProvider = (*idp.Client)(nil)
	_ TokenStore       = (*token.Store)(nil)
	_ ProfileDirectory = (*users.Directory)(nil)
)

// Controller is the session state machine of one browser. Operations are
// serialised; Snapshot never waits for an operation, so Loading is observable
// while a network call is in flight.
type Controller struct {
	provider IdentityProvider
	tokens   TokenStore
	flow     PendingRedirects
	profiles ProfileDirectory
	nav      idp.Navigator
	clock    Clock
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	opMu sync.Mutex

	mu          sync.RWMutex
	state       State
	started     bool
	closed      bool
	timer       Timer
	generation  uint64
	subscribers map[int]func(State)
	nextSubID   int
}

type Option func(*Controller)

// WithClock replaces the wall clock (primarily for testing)
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithBrowserID tags log lines with the browser the controller belongs to.
func WithBrowserID(id string) Option {
	return func(c *Controller) {
		c.logger = log.With().Str("browser", id).Logger()
	}
}

func New(provider IdentityProvider, tokens TokenStore, flow PendingRedirects, profiles ProfileDirectory, nav idp.Navigator, options ...Option) *Controller {
	c := &Controller{
		provider:    provider,
		tokens:      tokens,
		flow:        flow,
		profiles:    profiles,
		nav:         nav,
		clock:       realClock{},
		logger:      log.Logger,
		state:       initialState(),
		subscribers: map[int]func(State){},
	}
	for _, opt := range options {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Subscribe registers fn to receive every state change. Subscribers run while
// the triggering operation is still in progress and must not call back into
// any operation other than Snapshot.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subscribers, id)
	}
}

// Started reports whether the session has been resolved since creation or the last Login.
func (c *Controller) Started() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.started
}

// Close tears the controller down: the refresh timer is cancelled, in-flight
// operations see a cancelled context and no state changes after it returns.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.subscribers = nil
	c.mu.Unlock()
	c.cancel()
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// opContext is cancelled when either ctx or the controller is done.
func (c *Controller) opContext(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = s
	snapshot := s.clone()
	subs := make([]func(State), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot.clone())
	}
}

func (c *Controller) updateState(mutate func(*State)) {
	c.mu.RLock()
	s := c.state
	c.mu.RUnlock()
	mutate(&s)
	c.setState(s)
}

// Start resolves the session on a (re)load of the application. A callback URL is
// always processed; any other URL only triggers the stored-token check once.
func (c *Controller) Start(ctx context.Context, current *url.URL) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	isCallback := current != nil && current.Path == auth.RouteCallback
	c.mu.Lock()
	if c.closed || (c.started && !isCallback) {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	ctx, done := c.opContext(ctx)
	defer done()

	c.updateState(func(s *State) {
		s.Loading = true
		s.Error = ""
	})

	if isCallback {
		c.handleCallback(ctx, current.Query())
		return
	}

	rec, err := c.tokens.Load(ctx)
	if err != nil {
		c.logger.Err(err).Msg("Failed to load stored token")
	}
	if rec == nil {
		c.setState(unauthenticatedState(""))
		return
	}
	c.verify(ctx, rec)
}

func (c *Controller) handleCallback(ctx context.Context, query url.Values) {
	if providerErr := query.Get(oauth2.ParamError); providerErr != "" {
		err := errors.Wrapf(errors.ErrProviderDenied, "[sessions Start] %s", providerErr)
		if err := c.flow.Clear(ctx); err != nil {
			c.logger.Err(err).Msg("Failed to clear login state")
		}
		c.fail(ctx, err)
		c.nav.Navigate(auth.RouteLanding)
		return
	}

	if err := c.provider.VerifyState(ctx, query.Get(oauth2.ParamState)); err != nil {
		c.fail(ctx, err)
		c.nav.Navigate(auth.RouteLanding)
		return
	}

	rec, err := c.provider.ExchangeCodeForTokens(ctx, query.Get(oauth2.ParamCode))
	if err != nil {
		c.fail(ctx, err)
		c.nav.Navigate(auth.RouteLanding)
		return
	}
	c.scheduleRefresh(rec)

	if !c.fetchProfile(ctx, rec) {
		c.nav.Navigate(auth.RouteLanding)
		return
	}

	target, err := c.flow.ConsumeRedirect(ctx)
	if err != nil {
		c.logger.Err(err).Msg("Failed to read pending redirect")
	}
	c.nav.Navigate(target)
}

// verify probes a stored record, refreshing it once when the probe fails.
func (c *Controller) verify(ctx context.Context, rec *token.Record) {
	err := c.provider.Introspect(ctx, rec.AccessToken)
	if err == nil {
		c.scheduleRefresh(rec)
		c.fetchProfile(ctx, rec)
		return
	}
	if rec.RefreshToken == "" {
		c.fail(ctx, err)
		return
	}

	refreshed, err := c.refresh(ctx, rec)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	c.scheduleRefresh(refreshed)
	c.fetchProfile(ctx, refreshed)
}

// refresh obtains a new access token, merges it into rec keeping the refresh
// token and session id, and persists the result.
func (c *Controller) refresh(ctx context.Context, rec *token.Record) (*token.Record, error) {
	fresh, err := c.provider.RefreshAccessToken(ctx, rec.RefreshToken)
	if err != nil {
		return nil, err
	}

	merged := rec.Clone()
	merged.AccessToken = fresh.AccessToken
	merged.IssuedAt = fresh.IssuedAt
	merged.Expiry = fresh.Expiry
	merged.StoredAt = c.clock.Now().UnixMilli()
	if fresh.TokenType != "" {
		merged.TokenType = fresh.TokenType
	}
	if len(fresh.Scope) > 0 {
		merged.Scope = fresh.Scope
	}

	if c.Closed() {
		return nil, errors.Wrapf(context.Canceled, "[sessions refresh] controller closed")
	}
	if err := c.tokens.Save(ctx, merged); err != nil {
		return nil, errors.Join(errors.ErrTokenRefresh, err)
	}
	return merged, nil
}

// fetchProfile loads the identity and backend profile for a valid record and
// marks the session authenticated. It reports whether that succeeded.
func (c *Controller) fetchProfile(ctx context.Context, rec *token.Record) bool {
	info, err := c.provider.UserInfo(ctx, rec.AccessToken)
	if err != nil {
		c.fail(ctx, err)
		return false
	}
	profile, err := c.profiles.LookupByEmail(ctx, rec.AccessToken, info.Email)
	if err != nil {
		c.fail(ctx, err)
		return false
	}

	c.setState(authenticatedState(info, profile, rec.Clone()))
	c.logger.Info().Str("role", string(profile.Role)).Msg("Session authenticated")
	return true
}

// fail resolves any failure into an unauthenticated state without tokens.
func (c *Controller) fail(ctx context.Context, err error) {
	if c.Closed() {
		return
	}
	if ctx.Err() != nil {
		// The request went away mid-operation; resolve again on the next load.
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		c.logger.Debug().Err(err).Msg("Session operation abandoned")
		return
	}

	c.logger.Warn().Err(err).Msg("Session resolved as unauthenticated")
	c.cancelRefresh()
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Err(err).Msg("Failed to clear tokens")
	}
	c.setState(unauthenticatedState(errors.UserMessage(err)))
}

// OnNavigate reacts to a route change: an unauthenticated, resolved session
// visiting a protected path remembers it and is sent to the landing page.
func (c *Controller) OnNavigate(ctx context.Context, path string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if auth.IsPublicPath(path) || c.Closed() {
		return
	}
	s := c.Snapshot()
	if s.Loading || s.IsLoggingOut || s.IsAuthenticated || s.Phase == PhaseInitializing {
		return
	}

	if err := c.flow.RememberRedirect(ctx, path); err != nil {
		c.logger.Err(err).Msg("Failed to remember pending redirect")
	}
	c.nav.Navigate(auth.RouteLanding)
}

// OnReload guards a full (re)load of a protected path before the session resolves.
func (c *Controller) OnReload(ctx context.Context, path string) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if auth.IsPublicPath(path) || c.Closed() {
		return
	}
	rec, err := c.tokens.Load(ctx)
	if err != nil {
		c.logger.Err(err).Msg("Failed to load stored token")
	}
	if rec == nil {
		c.nav.Navigate(auth.RouteLanding)
	}
}

// Login drops any previous session and sends the browser to the identity provider.
func (c *Controller) Login(ctx context.Context, currentPath string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Closed() {
		return errors.Wrapf(errors.ErrNoSession, "[sessions Login] controller closed")
	}
	ctx, done := c.opContext(ctx)
	defer done()

	c.cancelRefresh()
	c.setState(initialState())
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Err(err).Msg("Failed to clear tokens")
	}

	c.mu.Lock()
	c.started = false
	c.mu.Unlock()

	if err := c.provider.StartAuthorizationRedirect(ctx, currentPath); err != nil {
		c.setState(unauthenticatedState(errors.UserMessage(err)))
		return errors.Wrapf(err, "[sessions Login]")
	}
	return nil
}

// Logout revokes and clears the session and returns to the landing page. It is
// safe to call in any state.
func (c *Controller) Logout(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Closed() {
		return
	}
	ctx, done := c.opContext(ctx)
	defer done()

	c.logout(ctx, "")
}

func (c *Controller) logout(ctx context.Context, errMsg string) {
	c.updateState(func(s *State) {
		s.Phase = PhaseLoggingOut
		s.IsLoggingOut = true
	})

	rec := c.Snapshot().Tokens
	if rec == nil {
		stored, err := c.tokens.Load(ctx)
		if err != nil {
			c.logger.Err(err).Msg("Failed to load stored token")
		}
		rec = stored
	}
	if rec != nil {
		c.provider.Revoke(ctx, rec.AccessToken)
	}

	c.cancelRefresh()
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Err(err).Msg("Failed to clear tokens")
	}
	if err := c.flow.Clear(ctx); err != nil {
		c.logger.Err(err).Msg("Failed to clear login state")
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	c.setState(unauthenticatedState(errMsg))
	c.nav.Navigate(auth.RouteLanding)
}
