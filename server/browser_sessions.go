package server

import (
	"fmt"

	"github.com/jrsteele09/recovery-portal/authflow"
	"github.com/jrsteele09/recovery-portal/idp"
	"github.com/jrsteele09/recovery-portal/server/loginsession"
	"github.com/jrsteele09/recovery-portal/sessions"
	"github.com/jrsteele09/recovery-portal/storage"
	"github.com/jrsteele09/recovery-portal/token"
)

// newBrowserSession wires the session controller of a browser seen for the first
// time. The token key is bound to the browser id and user agent.
func (s *Server) newBrowserSession(browserID, userAgent string) (*loginsession.Session, error) {
	cipher, err := token.NewCipher(s.tokenKeySecret, s.config.GetBaseURL(), browserID+"|"+userAgent)
	if err != nil {
		return nil, fmt.Errorf("[server newBrowserSession] %w", err)
	}

	local := storage.Scope(s.local, browserID)
	session := storage.Scope(s.session, browserID)
	tokens := token.NewStore(local, cipher,
		token.WithLegacyLocation(local, token.LegacyStorageKey),
		token.WithLegacyLocation(session, token.LegacyStorageKey),
	)
	flow := authflow.New(session)
	nav := &loginsession.Navigation{}

	options := append([]sessions.Option{sessions.WithBrowserID(browserID)}, s.controllerOpts...)
	controller := sessions.New(idp.NewClient(s.provider, tokens, flow, nav), tokens, flow, s.directory, nav, options...)

	return &loginsession.Session{
		BrowserID:  browserID,
		UserAgent:  userAgent,
		Controller: controller,
		Flow:       flow,
		Navigation: nav,
	}, nil
}
