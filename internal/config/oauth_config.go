package config

// Default endpoints of the institution's identity provider (Google).
const (
	defaultAuthURL      = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL     = "https://oauth2.googleapis.com/token"
	defaultTokenInfoURL = "https://www.googleapis.com/oauth2/v1/tokeninfo"
	defaultUserInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
	defaultRevokeURL    = "https://oauth2.googleapis.com/revoke"
	defaultIssuerURL    = "https://accounts.google.com"
	defaultHostedDomain = "vallegrande.edu.pe"
)

var defaultScopes = []string{
	"openid",
	"profile",
	"email",
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/gmail.send",
}

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetIssuerURL() string
	GetAuthURL() string
	GetTokenURL() string
	GetTokenInfoURL() string
	GetUserInfoURL() string
	GetRevokeURL() string
	GetScopes() []string
	GetHostedDomain() string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (OAuth) GetClientSecret() string {
	return GetEnv("OAUTH_CLIENT_SECRET", "")
}

// GetRedirectURL is the callback registered with the provider: BASE_URL + /auth/callback.
func (OAuth) GetRedirectURL() string {
	return EnvVars{}.GetBaseURL() + "/auth/callback"
}

func (OAuth) GetIssuerURL() string {
	return GetEnv("OAUTH_ISSUER_URL", defaultIssuerURL)
}

func (OAuth) GetAuthURL() string {
	return GetEnv("OAUTH_AUTH_URL", defaultAuthURL)
}

func (OAuth) GetTokenURL() string {
	return GetEnv("OAUTH_TOKEN_URL", defaultTokenURL)
}

func (OAuth) GetTokenInfoURL() string {
	return GetEnv("OAUTH_TOKENINFO_URL", defaultTokenInfoURL)
}

func (OAuth) GetUserInfoURL() string {
	return GetEnv("OAUTH_USERINFO_URL", defaultUserInfoURL)
}

func (OAuth) GetRevokeURL() string {
	return GetEnv("OAUTH_REVOKE_URL", defaultRevokeURL)
}

func (OAuth) GetScopes() []string {
	return GetEnvList("OAUTH_SCOPES", defaultScopes)
}

func (OAuth) GetHostedDomain() string {
	return GetEnv("OAUTH_HOSTED_DOMAIN", defaultHostedDomain)
}
