package sessions

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Clock schedules the proactive refresh.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

const (
	RefreshMargin   = 5 * time.Minute
	MinRefreshDelay = 30 * time.Second
	MaxRefreshDelay = 60 * time.Minute
)

// RefreshDelay is how long to wait before refreshing a token expiring at expiry:
// RefreshMargin ahead of expiry, clamped to [MinRefreshDelay, MaxRefreshDelay].
func RefreshDelay(expiry, now time.Time) time.Duration {
	d := expiry.Sub(now) - RefreshMargin
	return min(max(d, MinRefreshDelay), MaxRefreshDelay)
}
