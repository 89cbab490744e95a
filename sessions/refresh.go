package sessions

import (
	"github.com/jrsteele09/recovery-portal/internal/errors"
	"github.com/jrsteele09/recovery-portal/token"
)

// scheduleRefresh replaces any pending refresh with one for rec.
func (c *Controller) scheduleRefresh(rec *token.Record) {
	delay := RefreshDelay(rec.ExpiresAt(), c.clock.Now())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopTimerLocked()
	c.generation++
	gen := c.generation
	c.timer = c.clock.AfterFunc(delay, func() { c.onRefreshDue(gen) })
	c.logger.Debug().Dur("delay", delay).Msg("Refresh scheduled")
}

func (c *Controller) cancelRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

// stopTimerLocked stops the pending timer and invalidates it should it already
// be firing. c.mu must be held.
func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
}

// PendingRefresh reports whether a proactive refresh is scheduled.
func (c *Controller) PendingRefresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timer != nil
}

// onRefreshDue runs when the timer of generation gen fires. One refresh attempt
// is made; failure forces a logout.
func (c *Controller) onRefreshDue(gen uint64) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	current := c.state.clone()
	c.mu.Unlock()

	if !current.IsAuthenticated || current.Tokens == nil {
		return
	}

	ctx, done := c.opContext(c.ctx)
	defer done()

	c.updateState(func(s *State) { s.Phase = PhaseRefreshing })

	var err error
	var refreshed *token.Record
	if current.Tokens.RefreshToken == "" {
		err = errors.Wrapf(errors.ErrTokenRefresh, "[sessions onRefreshDue] no refresh token")
	} else {
		refreshed, err = c.refresh(ctx, current.Tokens)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn().Err(err).Msg("Scheduled refresh failed, logging out")
		c.logout(ctx, errors.UserMessage(err))
		return
	}

	c.updateState(func(s *State) {
		s.Phase = PhaseAuthenticated
		s.Tokens = refreshed.Clone()
	})
	c.scheduleRefresh(refreshed)
}
