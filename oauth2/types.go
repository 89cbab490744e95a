package oauth2

// ResponseType represents the OAuth 2.0 response type requested at the authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// The provider redirects back with ?code=...&state=... which is exchanged at the token endpoint.
	CodeResponseType ResponseType = "code"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, client_secret, redirect_uri
	// Returns: access_token, refresh_token (when offline access was granted), expires_in, scope
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for a new access token.
	// Token request includes: refresh_token, client_id, client_secret
	// Returns: access_token, expires_in, scope (the refresh token is NOT rotated by the provider)
	RefreshTokenGrant GrantType = "refresh_token"
)

// Authorization request parameters beyond the RFC 6749 core set.
const (
	// ParamAccessType with AccessTypeOffline asks the provider for a refresh token.
	ParamAccessType   = "access_type"
	AccessTypeOffline = "offline"

	// ParamPrompt with PromptConsent forces the consent screen so a refresh token is always issued.
	ParamPrompt   = "prompt"
	PromptConsent = "consent"

	// ParamIncludeGrantedScopes disables incremental authorization.
	ParamIncludeGrantedScopes = "include_granted_scopes"

	// ParamHostedDomain restricts the account chooser to the organisation's domain.
	ParamHostedDomain = "hd"
)

// Callback query parameters.
const (
	ParamCode             = "code"
	ParamState            = "state"
	ParamError            = "error"
	ParamErrorDescription = "error_description"
)
