package token

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-oauth-proxy/credentials"
	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout bounds every call to the token endpoint.
const DefaultHTTPTimeout = 15 * time.Second

// Exchanger performs the two token producing grants against the authorization server.
// It never touches session state.
type Exchanger interface {
	// ExchangeCode trades a one-time authorization code for a Record. Fails with
	// ErrExchangeFailed, or ErrMissingRefreshToken when the response has no refresh token.
	ExchangeCode(ctx context.Context, code string) (Record, error)

	// ExchangeRefresh trades a refresh token for a new Record. The returned Record carries the
	// rotated refresh token if the server sent one, the supplied one otherwise.
	// Fails with ErrRefreshFailed.
	ExchangeRefresh(ctx context.Context, refreshToken string) (Record, error)
}

// OAuth2Exchanger is the golang.org/x/oauth2 backed Exchanger.
type OAuth2Exchanger struct {
	creds      credentials.Store
	httpClient *http.Client
	nowFunc    func() time.Time
}

var _ Exchanger = (*OAuth2Exchanger)(nil)

type ExchangerOption func(*OAuth2Exchanger)

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(client *http.Client) ExchangerOption {
	return func(e *OAuth2Exchanger) {
		e.httpClient = client
	}
}

// WithExchangeTime sets the clock used to compute ExpiresAt.
func WithExchangeTime(now func() time.Time) ExchangerOption {
	return func(e *OAuth2Exchanger) {
		e.nowFunc = now
	}
}

func NewExchanger(creds credentials.Store, options ...ExchangerOption) *OAuth2Exchanger {
	e := &OAuth2Exchanger{
		creds: creds,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.httpClient == nil {
		e.httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if e.nowFunc == nil {
		e.nowFunc = time.Now
	}
	return e
}

func (e *OAuth2Exchanger) ExchangeCode(ctx context.Context, code string) (Record, error) {
	if code == "" {
		return Record{}, fmt.Errorf("%w: empty authorization code", apperrors.ErrExchangeFailed)
	}

	cfg, err := e.oauth2Config(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", apperrors.ErrExchangeFailed, err)
	}

	issuedAt := e.nowFunc()
	tok, err := cfg.Exchange(e.clientContext(ctx), code)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", apperrors.ErrExchangeFailed, err)
	}
	if tok.RefreshToken == "" {
		return Record{}, apperrors.ErrMissingRefreshToken
	}

	return recordFromToken(tok, issuedAt), nil
}

func (e *OAuth2Exchanger) ExchangeRefresh(ctx context.Context, refreshToken string) (Record, error) {
	if refreshToken == "" {
		return Record{}, fmt.Errorf("%w: empty refresh token", apperrors.ErrRefreshFailed)
	}

	cfg, err := e.oauth2Config(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", apperrors.ErrRefreshFailed, err)
	}

	issuedAt := e.nowFunc()
	// An empty access token is never valid, so the source goes straight to the token endpoint.
	tok, err := cfg.TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", apperrors.ErrRefreshFailed, err)
	}

	record := recordFromToken(tok, issuedAt)
	if record.RefreshToken == "" {
		record.RefreshToken = refreshToken
	}
	return record, nil
}

func (e *OAuth2Exchanger) oauth2Config(ctx context.Context) (*oauth2.Config, error) {
	creds, err := e.creds.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load client credentials: %w", err)
	}
	return creds.OAuth2Config(), nil
}

func (e *OAuth2Exchanger) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// recordFromToken derives ExpiresAt from the server reported lifetime at issuedAt. A response
// without any lifetime gives a zero ExpiresAt, which the manager treats as expired.
func recordFromToken(tok *oauth2.Token, issuedAt time.Time) Record {
	record := Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	switch {
	case tok.ExpiresIn > 0:
		record.ExpiresAt = issuedAt.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		record.ExpiresAt = tok.Expiry
	}
	return record
}
