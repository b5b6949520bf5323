package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/go-oauth-proxy/credentials"
	"github.com/jrsteele09/go-oauth-proxy/internal/config"
	"github.com/jrsteele09/go-oauth-proxy/internal/metrics"
	"github.com/jrsteele09/go-oauth-proxy/proxy"
	"github.com/jrsteele09/go-oauth-proxy/server"
	"github.com/jrsteele09/go-oauth-proxy/server/authflowrepo"
	"github.com/jrsteele09/go-oauth-proxy/server/sessioncookie"
	"github.com/jrsteele09/go-oauth-proxy/sessions"
	"github.com/jrsteele09/go-oauth-proxy/sessions/redisrepo"
	"github.com/jrsteele09/go-oauth-proxy/token"
	"github.com/rs/zerolog/log"
)

const generatedSecretBytes = 32

type application struct {
	server  *server.Server
	closers []io.Closer
}

func (a *application) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}

// wire builds the object graph: credentials, session store, exchanger, manager, proxy, server.
func wire(ctx context.Context, c config.Config) (*application, error) {
	app := &application{}

	creds, err := credentials.New(c)
	if err != nil {
		return nil, fmt.Errorf("[wire] credentials: %w", err)
	}

	repo, err := newSessionRepo(ctx, c, app)
	if err != nil {
		return nil, err
	}

	secret, err := sessionSecret(c)
	if err != nil {
		app.Close()
		return nil, err
	}
	cookies, err := sessioncookie.New(secret, c.GetMaxSessionAge())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("[wire] session cookie: %w", err)
	}

	m := metrics.New()
	httpClient := &http.Client{Timeout: c.GetUpstreamTimeout()}

	exchanger := token.NewExchanger(creds, token.WithHTTPClient(httpClient))
	manager := token.NewManager(repo, exchanger,
		token.WithExpiryMargin(c.GetTokenExpiryMargin()),
		token.WithMetrics(m),
	)
	forwarder := proxy.New(manager, c.GetAPIBaseURL(),
		proxy.WithHTTPClient(httpClient),
		proxy.WithMaxResponseBytes(c.GetMaxResponseBytes()),
		proxy.WithMetrics(m),
	)

	app.server, err = server.New(c, server.Services{
		Tokens:      manager,
		Proxy:       forwarder,
		Credentials: creds,
		AuthState:   authflowrepo.NewInMemoryRepo(),
		Cookies:     cookies,
		Metrics:     m,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func newSessionRepo(ctx context.Context, c config.SessionConfig, app *application) (token.SessionRepo, error) {
	switch c.GetSessionStore() {
	case config.SessionStoreRedis:
		repo, err := redisrepo.New(ctx, redisrepo.Config{
			Addr:      c.GetRedisAddr(),
			Password:  c.GetRedisPassword(),
			DB:        c.GetRedisDB(),
			KeyPrefix: c.GetRedisKeyPrefix(),
			TTL:       c.GetMaxSessionAge(),
		})
		if err != nil {
			return nil, fmt.Errorf("[wire] redis session store: %w", err)
		}
		app.closers = append(app.closers, repo)
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis session store")
		return repo, nil
	case config.SessionStoreMemory, "":
		log.Info().Msg("Using in-memory session store")
		return sessions.NewInMemoryRepo(sessions.WithTTL(c.GetMaxSessionAge())), nil
	default:
		return nil, fmt.Errorf("[wire] unknown session store %q", c.GetSessionStore())
	}
}

// sessionSecret falls back to a random secret, which invalidates every cookie on restart.
func sessionSecret(c config.SessionConfig) ([]byte, error) {
	if secret := c.GetSessionSecret(); secret != "" {
		return []byte(secret), nil
	}
	log.Warn().Msg("SESSION_SECRET is not set, generating a random one")
	secret := make([]byte, generatedSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("[wire] generate session secret: %w", err)
	}
	return secret, nil
}
