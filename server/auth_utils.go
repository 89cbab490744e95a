package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/recovery-portal/token"
	"github.com/rs/zerolog/log"
)

const (
	// browserCookieName is the signed cookie identifying a browser
	browserCookieName   = "rup_browser"
	browserCookieMaxAge = 365 * 24 * 60 * 60

	// legacyTokenCookieName is the plaintext token cookie of earlier releases, expired on logout
	legacyTokenCookieName = token.LegacyStorageKey
)

func (s *Server) signBrowserID(browserID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:   s.config.GetBaseURL(),
		Subject:  browserID,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cookieSecret)
	if err != nil {
		return "", fmt.Errorf("[server signBrowserID] %w", err)
	}
	return signed, nil
}

func (s *Server) parseBrowserID(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims,
		func(*jwt.Token) (any, error) { return s.cookieSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.GetBaseURL()),
	)
	if err != nil {
		return "", fmt.Errorf("[server parseBrowserID] %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("[server parseBrowserID] missing subject")
	}
	return claims.Subject, nil
}

// browserID returns the id carried by the browser cookie, issuing a new one when
// the cookie is missing or was not signed by this server.
func (s *Server) browserID(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(browserCookieName); err == nil && cookie.Value != "" {
		id, err := s.parseBrowserID(cookie.Value)
		if err == nil {
			return id, nil
		}
		log.Debug().Err(err).Msg("Ignoring invalid browser cookie")
	}

	id := uuid.NewString()
	signed, err := s.signBrowserID(id)
	if err != nil {
		return "", err
	}
	s.SetBrowserCookie(w, r, signed, browserCookieMaxAge)
	return id, nil
}

func (s *Server) SetBrowserCookie(w http.ResponseWriter, r *http.Request, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     browserCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// expireLegacyTokenCookie removes the token cookie older releases wrote.
func expireLegacyTokenCookie(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(legacyTokenCookieName); err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:   legacyTokenCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// redirectSuccess sends a 303 so the browser always follows with a GET
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// localPath accepts only same-origin absolute paths, falling back to "/".
func localPath(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return RouteLanding
	}
	return path
}
