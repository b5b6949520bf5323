package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-oauth-proxy/credentials"
	"github.com/jrsteele09/go-oauth-proxy/internal/config"
	"github.com/jrsteele09/go-oauth-proxy/internal/metrics"
	"github.com/jrsteele09/go-oauth-proxy/proxy"
	"github.com/jrsteele09/go-oauth-proxy/server/authflowrepo"
	"github.com/jrsteele09/go-oauth-proxy/server/sessioncookie"
	"github.com/jrsteele09/go-oauth-proxy/token"
	"github.com/rs/zerolog/log"
)

// Tokens is the token lifecycle as the HTTP surface uses it. *token.Manager implements it.
type Tokens interface {
	CompleteLogin(ctx context.Context, sessionID, code string) error
	EnsureValidRecord(ctx context.Context, sessionID string) (token.Record, error)
	ForceRefresh(ctx context.Context, sessionID, rejected string) (string, error)
	Session(ctx context.Context, sessionID string) (token.Record, error)
	EndSession(ctx context.Context, sessionID string) error
}

// Forwarder performs resource API calls for a session. *proxy.Proxy implements it.
type Forwarder interface {
	Forward(ctx context.Context, sessionID string, req proxy.Request) (*proxy.Response, error)
}

// Services are the collaborators the handlers delegate to.
type Services struct {
	Tokens      Tokens
	Proxy       Forwarder
	Credentials credentials.Store
	AuthState   authflowrepo.Repo
	Cookies     *sessioncookie.Codec
	Metrics     *metrics.Metrics
}

type Server struct {
	env         string // Environment (e.g., "DEV", "PROD")
	mux         *http.ServeMux
	routes      []string
	config      config.Config
	frontendURL string

	tokens      Tokens
	proxy       Forwarder
	credentials credentials.Store
	authState   authflowrepo.Repo
	cookies     *sessioncookie.Codec
	metrics     *metrics.Metrics
	nowFunc     func() time.Time
}

func New(config config.Config, services Services) (*Server, error) {
	switch {
	case services.Tokens == nil:
		return nil, errors.New("[Server New] token manager is required")
	case services.Proxy == nil:
		return nil, errors.New("[Server New] proxy is required")
	case services.Credentials == nil:
		return nil, errors.New("[Server New] credentials store is required")
	case services.Cookies == nil:
		return nil, errors.New("[Server New] session cookie codec is required")
	}

	s := &Server{
		env:         config.GetEnv(),
		mux:         http.NewServeMux(),
		config:      config,
		frontendURL: config.GetFrontendURL(),
		tokens:      services.Tokens,
		proxy:       services.Proxy,
		credentials: services.Credentials,
		authState:   services.AuthState,
		cookies:     services.Cookies,
		metrics:     services.Metrics,
		nowFunc:     time.Now,
	}
	if s.authState == nil {
		s.authState = authflowrepo.NewInMemoryRepo()
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
