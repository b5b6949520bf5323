package credentials_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-oauth-proxy/credentials"
	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func validCredentials() credentials.Credentials {
	return credentials.Credentials{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURL:  "http://localhost:5000/auth/callback",
		Scopes:       []string{"user-read-email"},
		AuthURL:      "https://accounts.example.com/authorize",
		TokenURL:     "https://accounts.example.com/api/token",
	}
}

func TestStaticStore(t *testing.T) {
	store, err := credentials.NewStaticStore(validCredentials())
	require.NoError(t, err)

	creds, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, validCredentials(), creds)
}

func TestStaticStore_RejectsIncompleteCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*credentials.Credentials)
	}{
		{"missing client id", func(c *credentials.Credentials) { c.ClientID = "" }},
		{"missing client secret", func(c *credentials.Credentials) { c.ClientSecret = "" }},
		{"missing redirect", func(c *credentials.Credentials) { c.RedirectURL = "" }},
		{"missing token url", func(c *credentials.Credentials) { c.TokenURL = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := validCredentials()
			tt.mutate(&creds)

			_, err := credentials.NewStaticStore(creds)
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		})
	}
}

func TestOAuth2Config_UsesBasicAuth(t *testing.T) {
	cfg := validCredentials().OAuth2Config()

	require.Equal(t, oauth2.AuthStyleInHeader, cfg.Endpoint.AuthStyle)
	require.Equal(t, "client-1", cfg.ClientID)
	require.Equal(t, "https://accounts.example.com/api/token", cfg.Endpoint.TokenURL)
	require.Equal(t, []string{"user-read-email"}, cfg.Scopes)
}

func TestDiscoveryStore_ResolvesEndpointsOnce(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/oauth2/authorize",
			"token_endpoint":         srv.URL + "/oauth2/token",
			"jwks_uri":               srv.URL + "/.well-known/jwks.json",
		})
	}))
	defer srv.Close()

	base := validCredentials()
	base.AuthURL, base.TokenURL = "", ""
	store := credentials.NewDiscoveryStore(srv.URL, base)

	for i := 0; i < 3; i++ {
		creds, err := store.Get(context.Background())
		require.NoError(t, err)
		require.Equal(t, srv.URL+"/oauth2/authorize", creds.AuthURL)
		require.Equal(t, srv.URL+"/oauth2/token", creds.TokenURL)
		require.Equal(t, "client-1", creds.ClientID)
	}
	require.Equal(t, int32(1), hits.Load())
}

func TestDiscoveryStore_IssuerUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	store := credentials.NewDiscoveryStore(srv.URL, validCredentials())
	_, err := store.Get(context.Background())
	require.Error(t, err)
}
