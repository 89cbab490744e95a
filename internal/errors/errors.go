package errors

import (
	"errors"
	"fmt"
)

// Authentication/session failures. None of these reach a view: the session
// controller resolves them into an unauthenticated state plus UserMessage(err).
var (
	// ErrProviderDenied: the user declined consent or the provider returned an error parameter.
	ErrProviderDenied = errors.New("provider denied authorization")
	// ErrCSRFMismatch: the callback state does not match the one this browser issued.
	ErrCSRFMismatch = errors.New("csrf state mismatch")
	ErrAuthExchange = errors.New("authorization code exchange failed")
	ErrTokenRefresh = errors.New("token refresh failed")
	ErrTokenInvalid = errors.New("access token invalid or expired")
	ErrProfileFetch = errors.New("profile fetch failed")
	// ErrDecryption is never surfaced; a token that cannot be decrypted is treated as absent.
	ErrDecryption = errors.New("stored token could not be decrypted")

	ErrInvalidRecord = errors.New("invalid token record")
	ErrNoSession     = errors.New("no session")
	ErrNotFound      = errors.New("not found")
)

var userMessages = []struct {
	err error
	msg string
}{
	{ErrProviderDenied, "Authentication was cancelled or denied by the identity provider"},
	{ErrCSRFMismatch, "Security error during authentication, please sign in again"},
	{ErrAuthExchange, "Could not complete the authentication, please sign in again"},
	{ErrTokenRefresh, "Your session expired, please sign in again"},
	{ErrTokenInvalid, "Your session expired, please sign in again"},
	{ErrProfileFetch, "Could not load your profile, please sign in again"},
}

// UserMessage maps an error to the human-readable string exposed in session state.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Authentication error, please sign in again"
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Join wraps cause under the sentinel kind so that both match errors.Is.
func Join(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
