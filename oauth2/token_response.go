package oauth2

import "strings"

// TokenResponse represents the response from the provider's token endpoint (RFC 6749 §5.1).
// Returned for both the authorization_code and refresh_token grants.
type TokenResponse struct {
	// AccessToken is the bearer credential for the provider APIs and the recovery units backend.
	// Usage: Authorization: Bearer <access_token>
	// Lifespan: Short-lived (one hour for Google)
	AccessToken string `json:"access_token"`

	// TokenType indicates how to use the access token ("Bearer").
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token, relative to the time of issue.
	// The absolute expiry is computed by the client as issued_at + expires_in*1000.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// RefreshToken is a long-lived credential used to obtain new access tokens.
	// Only present: on the code exchange, when access_type=offline was requested.
	// Absent: on refresh responses, the caller must keep the original.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-separated list of scopes actually granted.
	// Example: "openid https://www.googleapis.com/auth/userinfo.email"
	Scope string `json:"scope,omitempty"`

	// IDToken is the OpenID Connect ID token, present when "openid" was granted.
	IDToken string `json:"id_token,omitempty"`
}

// TokenInfo represents the provider's token introspection response.
// A response without Error describes a valid token.
type TokenInfo struct {
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	IssuedTo         string `json:"issued_to,omitempty"`
	Audience         string `json:"audience,omitempty"`
	Scope            string `json:"scope,omitempty"`
	ExpiresIn        int64  `json:"expires_in,omitempty"`
	Email            string `json:"email,omitempty"`
}

// ErrorResponse is the error body of the token and revocation endpoints (RFC 6749 §5.2).
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ParseScope splits a space-delimited scope string, preserving order.
func ParseScope(scope string) []string {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
