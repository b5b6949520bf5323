package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL          = "https://api.spotify.com"
	DefaultTimeout          = 15 * time.Second
	DefaultMaxResponseBytes = 10 << 20
)

// TokenSource is the part of token.Manager the proxy depends on.
type TokenSource interface {
	EnsureValidToken(ctx context.Context, sessionID string) (string, error)
	ForceRefresh(ctx context.Context, sessionID, rejected string) (string, error)
}

// Request describes one resource API call. Method defaults to GET. Path is relative to the
// configured base URL and may carry a query string.
type Request struct {
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Response is a successful upstream answer, passed through untouched.
type Response struct {
	Status      int
	Body        []byte
	ContentType string
}

// NoContent reports a 2xx answer without a body (204, or a 200 with no bytes).
func (r *Response) NoContent() bool {
	return r.Status >= 200 && r.Status < 300 && len(r.Body) == 0
}

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

type state int

const (
	stateDirect state = iota
	stateRefreshing
	stateRetried
)

func (s state) String() string {
	switch s {
	case stateDirect:
		return "direct"
	case stateRefreshing:
		return "refreshing"
	case stateRetried:
		return "retried"
	}
	return "unknown"
}

// Proxy forwards calls to the resource API with the session's bearer token. When the API
// rejects the token it forces one refresh and retries once; it never retries twice.
type Proxy struct {
	tokens           TokenSource
	baseURL          string
	httpClient       *http.Client
	maxResponseBytes int64
	metrics          *metrics.Metrics
}

type Option func(*Proxy)

// WithHTTPClient sets the client used for upstream calls. Its Timeout bounds each attempt.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Proxy) {
		p.httpClient = client
	}
}

func WithMaxResponseBytes(n int64) Option {
	return func(p *Proxy) {
		p.maxResponseBytes = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Proxy) {
		p.metrics = m
	}
}

func New(tokens TokenSource, baseURL string, options ...Option) *Proxy {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &Proxy{
		tokens:  tokens,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if p.maxResponseBytes <= 0 {
		p.maxResponseBytes = DefaultMaxResponseBytes
	}
	return p
}

// Forward performs req for the session. It fails with ErrUnauthenticated when no usable token
// exists or the API rejects a freshly refreshed one, with *UpstreamError for any other failed
// call and with ErrInvalidRequest for a malformed req.
func (p *Proxy) Forward(ctx context.Context, sessionID string, req Request) (*Response, error) {
	method, target, err := p.prepare(req)
	if err != nil {
		p.metrics.ProxyRequest(metrics.OutcomeInvalidRequest)
		return nil, err
	}

	accessToken, err := p.tokens.EnsureValidToken(ctx, sessionID)
	if err != nil {
		return nil, p.unauthenticated(err)
	}

	st := stateDirect
	for {
		switch st {
		case stateDirect, stateRetried:
			resp, err := p.send(ctx, method, target, req.Body, accessToken)
			if err != nil {
				p.metrics.ProxyRequest(metrics.OutcomeUpstreamError)
				return nil, err
			}

			switch {
			case resp.Status == http.StatusUnauthorized && st == stateDirect:
				log.Debug().Str("method", method).Str("path", req.Path).Msg("Upstream rejected access token, refreshing")
				st = stateRefreshing
			case resp.Status == http.StatusUnauthorized:
				return nil, p.unauthenticated(fmt.Errorf("upstream rejected the refreshed access token"))
			case resp.Status < 200 || resp.Status >= 300:
				p.metrics.ProxyRequest(metrics.OutcomeUpstreamError)
				return nil, &apperrors.UpstreamError{Status: resp.Status, Body: resp.Body}
			case resp.NoContent():
				p.metrics.ProxyRequest(metrics.OutcomeNoContent)
				return resp, nil
			default:
				p.metrics.ProxyRequest(metrics.OutcomeSuccess)
				return resp, nil
			}

		case stateRefreshing:
			p.metrics.ProxyRetry()
			accessToken, err = p.tokens.ForceRefresh(ctx, sessionID, accessToken)
			if err != nil {
				return nil, p.unauthenticated(err)
			}
			st = stateRetried

		default:
			return nil, fmt.Errorf("proxy reached unknown state %s", st)
		}
	}
}

// prepare validates req and resolves the upstream URL. Only relative paths are accepted so a
// caller can never point the bearer token at another host.
func (p *Proxy) prepare(req Request) (string, string, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !allowedMethods[method] {
		return "", "", fmt.Errorf("%w: unsupported method %q", apperrors.ErrInvalidRequest, req.Method)
	}

	if !strings.HasPrefix(req.Path, "/") || strings.HasPrefix(req.Path, "//") {
		return "", "", fmt.Errorf("%w: path must start with a single '/'", apperrors.ErrInvalidRequest)
	}
	u, err := url.Parse(req.Path)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid path: %w", apperrors.ErrInvalidRequest, err)
	}
	if u.Scheme != "" || u.Host != "" {
		return "", "", fmt.Errorf("%w: path must not carry a host", apperrors.ErrInvalidRequest)
	}

	return method, p.baseURL + req.Path, nil
}

func (p *Proxy) send(ctx context.Context, method, target string, body json.RawMessage, accessToken string) (*Response, error) {
	var reader io.Reader
	if hasBody(body) {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	if reader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		log.Warn().Err(err).Str("method", method).Msg("Upstream request failed")
		return nil, &apperrors.UpstreamError{Body: []byte(err.Error()), Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, p.maxResponseBytes+1))
	if err != nil {
		return nil, &apperrors.UpstreamError{Body: []byte(err.Error()), Err: err}
	}
	if int64(len(data)) > p.maxResponseBytes {
		err := fmt.Errorf("response body exceeds %d bytes", p.maxResponseBytes)
		return nil, &apperrors.UpstreamError{Body: []byte(err.Error()), Err: err}
	}

	return &Response{
		Status:      httpResp.StatusCode,
		Body:        data,
		ContentType: httpResp.Header.Get("Content-Type"),
	}, nil
}

func (p *Proxy) unauthenticated(err error) error {
	p.metrics.ProxyRequest(metrics.OutcomeUnauthenticated)
	if apperrors.Is(err, apperrors.ErrUnauthenticated) {
		return err
	}
	return fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
}

func hasBody(body json.RawMessage) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
