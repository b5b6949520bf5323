package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-proxy/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, ":5000", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "https://api.spotify.com", c.GetAPIBaseURL())
	require.Equal(t, 15*time.Second, c.GetUpstreamTimeout())
	require.Equal(t, config.SessionStoreMemory, c.GetSessionStore())
	require.Equal(t, time.Duration(0), c.GetTokenExpiryMargin())
	require.Contains(t, c.GetScopes(), "user-read-playback-state")
}

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("OAUTH_CLIENT_ID", "client-1")
	t.Setenv("OAUTH_CLIENT_SECRET", "secret-1")
	t.Setenv("OAUTH_SCOPES", "a b")
	t.Setenv("API_BASE_URL", "http://upstream.local/")
	t.Setenv("UPSTREAM_TIMEOUT", "2s")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FRONTEND_URL", "https://app.example/")

	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, "client-1", c.GetClientID())
	require.Equal(t, "secret-1", c.GetClientSecret())
	require.Equal(t, []string{"a", "b"}, c.GetScopes())
	require.Equal(t, "http://upstream.local", c.GetAPIBaseURL())
	require.Equal(t, 2*time.Second, c.GetUpstreamTimeout())
	require.Equal(t, config.SessionStoreRedis, c.GetSessionStore())
	require.Equal(t, 3, c.GetRedisDB())
	require.Equal(t, "https://app.example", c.GetFrontendURL())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("https://c.example"))
}

func TestNew_InvalidDuration(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")

	_, err := config.New()
	require.Error(t, err)
}
