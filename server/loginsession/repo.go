// Package loginsession keeps the live session of every browser the server has seen.
package loginsession

import (
	"sync"

	"github.com/jrsteele09/recovery-portal/authflow"
	"github.com/jrsteele09/recovery-portal/sessions"
)

// Session is what the server holds for one browser between requests.
type Session struct {
	BrowserID  string
	UserAgent  string
	Controller *sessions.Controller
	Flow       *authflow.Store
	Navigation *Navigation
}

// Factory builds the session of a browser seen for the first time.
type Factory func(browserID, userAgent string) (*Session, error)

type Repo interface {
	GetOrCreate(browserID, userAgent string) (*Session, error)
	Delete(browserID string)
	Len() int
	Close()
}

// Navigation buffers the latest navigation requested for a browser until a
// request can answer it with a redirect.
type Navigation struct {
	mu     sync.Mutex
	target string
}

func (n *Navigation) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.target = target
}

// Take returns and clears the buffered target.
func (n *Navigation) Take() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	target := n.target
	n.target = ""
	return target
}
