package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes.
const (
	RefreshSucceeded = "succeeded"
	RefreshFailed    = "failed"
	RefreshSkipped   = "skipped" // another caller already refreshed
)

// Login outcomes.
const (
	LoginSucceeded           = "succeeded"
	LoginFailed              = "failed"
	LoginMissingRefreshToken = "missing_refresh_token"
)

// Proxy outcomes.
const (
	OutcomeSuccess         = "success"
	OutcomeNoContent       = "no_content"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeUpstreamError   = "upstream_error"
	OutcomeInvalidRequest  = "invalid_request"
)

// Metrics holds the collectors for the token lifecycle and the proxy. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	refreshes     *prometheus.CounterVec
	logins        *prometheus.CounterVec
	proxyRequests *prometheus.CounterVec
	proxyRetries  prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oauthproxy",
			Name:      "token_refreshes_total",
			Help:      "Refresh token exchanges by outcome and trigger.",
		}, []string{"trigger", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oauthproxy",
			Name:      "logins_total",
			Help:      "Authorization code exchanges by outcome.",
		}, []string{"outcome"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oauthproxy",
			Name:      "proxy_requests_total",
			Help:      "Proxied API calls by outcome.",
		}, []string{"outcome"}),
		proxyRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oauthproxy",
			Name:      "proxy_auth_retries_total",
			Help:      "Proxied calls retried after the upstream rejected the access token.",
		}),
	}
	m.registry.MustRegister(m.refreshes, m.logins, m.proxyRequests, m.proxyRetries)
	return m
}

func (m *Metrics) Refresh(forced bool, outcome string) {
	if m == nil {
		return
	}
	trigger := "expired"
	if forced {
		trigger = "forced"
	}
	m.refreshes.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ProxyRequest(outcome string) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ProxyRetry() {
	if m == nil {
		return
	}
	m.proxyRetries.Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
