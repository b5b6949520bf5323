package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-oauth-proxy/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.Refresh(true, metrics.RefreshSucceeded)
		m.Login(metrics.LoginFailed)
		m.ProxyRequest(metrics.OutcomeSuccess)
		m.ProxyRetry()
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	m := metrics.New()
	m.Refresh(false, metrics.RefreshSucceeded)
	m.Refresh(true, metrics.RefreshFailed)
	m.ProxyRetry()

	count, err := testutil.GatherAndCount(m.Registry(), "oauthproxy_token_refreshes_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `oauthproxy_token_refreshes_total{outcome="failed",trigger="forced"} 1`)
	require.Contains(t, string(body), "oauthproxy_proxy_auth_retries_total 1")
}
