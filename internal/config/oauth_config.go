package config

import "time"

// OAuthConfig is the client identity registered with the authorization server.
type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
	GetScopes() []string
	GetAuthURL() string
	GetTokenURL() string
	GetIssuerURL() string
	GetTokenExpiryMargin() time.Duration
}

type OAuth struct {
	ClientID     string   `env:"OAUTH_CLIENT_ID"`
	ClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	RedirectURL  string   `env:"OAUTH_REDIRECT_URI" envDefault:"http://localhost:5000/auth/callback"`
	Scopes       []string `env:"OAUTH_SCOPES" envSeparator:" " envDefault:"streaming user-read-private user-read-email user-read-playback-state user-modify-playback-state"`
	AuthURL      string   `env:"OAUTH_AUTH_URL" envDefault:"https://accounts.spotify.com/authorize"`
	TokenURL     string   `env:"OAUTH_TOKEN_URL" envDefault:"https://accounts.spotify.com/api/token"`

	// IssuerURL switches endpoint resolution to OIDC discovery when set.
	IssuerURL string `env:"OAUTH_ISSUER_URL"`

	// ExpiryMargin treats a token as expired this long before the upstream would.
	ExpiryMargin time.Duration `env:"TOKEN_EXPIRY_MARGIN" envDefault:"0s"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetRedirectURL() string {
	return o.RedirectURL
}

func (o OAuth) GetScopes() []string {
	return o.Scopes
}

func (o OAuth) GetAuthURL() string {
	return o.AuthURL
}

func (o OAuth) GetTokenURL() string {
	return o.TokenURL
}

func (o OAuth) GetIssuerURL() string {
	return o.IssuerURL
}

func (o OAuth) GetTokenExpiryMargin() time.Duration {
	return o.ExpiryMargin
}
