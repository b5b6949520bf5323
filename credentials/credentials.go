package credentials

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-oauth-proxy/internal/config"
	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"golang.org/x/oauth2"
)

// Credentials identify this application to the authorization server.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
}

// Store hands out the client credentials. Read-only at runtime.
type Store interface {
	Get(ctx context.Context) (Credentials, error)
}

// Validate checks that everything needed for the token endpoint is present.
func (c Credentials) Validate() error {
	switch {
	case c.ClientID == "":
		return fmt.Errorf("%w: client id is required", apperrors.ErrInvalidCredentials)
	case c.ClientSecret == "":
		return fmt.Errorf("%w: client secret is required", apperrors.ErrInvalidCredentials)
	case c.RedirectURL == "":
		return fmt.Errorf("%w: redirect url is required", apperrors.ErrInvalidCredentials)
	case c.TokenURL == "":
		return fmt.Errorf("%w: token url is required", apperrors.ErrInvalidCredentials)
	}
	return nil
}

// OAuth2Config builds the x/oauth2 configuration. Client authentication is always HTTP Basic.
func (c Credentials) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       append([]string(nil), c.Scopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// FromConfig copies the configured client identity.
func FromConfig(cfg config.OAuthConfig) Credentials {
	return Credentials{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		RedirectURL:  cfg.GetRedirectURL(),
		Scopes:       cfg.GetScopes(),
		AuthURL:      cfg.GetAuthURL(),
		TokenURL:     cfg.GetTokenURL(),
	}
}

type staticStore struct {
	creds Credentials
}

// NewStaticStore returns a Store serving fixed credentials.
func NewStaticStore(creds Credentials) (Store, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return staticStore{creds: creds}, nil
}

func (s staticStore) Get(context.Context) (Credentials, error) {
	return s.creds, nil
}

// DiscoveryStore resolves the authorize and token endpoints from the issuer's OIDC discovery
// document the first time they are needed and caches them.
type DiscoveryStore struct {
	issuer string
	base   Credentials

	mu       sync.RWMutex
	resolved *Credentials
}

// NewDiscoveryStore returns a Store that fills AuthURL and TokenURL from issuer discovery.
func NewDiscoveryStore(issuer string, base Credentials) *DiscoveryStore {
	return &DiscoveryStore{
		issuer: issuer,
		base:   base,
	}
}

func (d *DiscoveryStore) Get(ctx context.Context) (Credentials, error) {
	d.mu.RLock()
	resolved := d.resolved
	d.mu.RUnlock()
	if resolved != nil {
		return *resolved, nil
	}

	provider, err := oidc.NewProvider(ctx, d.issuer)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	creds := d.base
	endpoint := provider.Endpoint()
	creds.AuthURL = endpoint.AuthURL
	creds.TokenURL = endpoint.TokenURL
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}

	d.mu.Lock()
	d.resolved = &creds
	d.mu.Unlock()

	return creds, nil
}

// New picks the discovery store when an issuer is configured, the static store otherwise.
func New(cfg config.OAuthConfig) (Store, error) {
	if issuer := cfg.GetIssuerURL(); issuer != "" {
		return NewDiscoveryStore(issuer, FromConfig(cfg)), nil
	}
	return NewStaticStore(FromConfig(cfg))
}
