package sessioncookie

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the browser cookie carrying the signed session id.
const CookieName = "sid"

const issuer = "oauth-proxy"

var ErrNoSession = errors.New("no valid session cookie")

// Codec signs session ids into an HS256 JWT kept in the sid cookie. The token only identifies
// the session; access and refresh tokens stay on the server.
type Codec struct {
	secret  []byte
	maxAge  time.Duration
	nowFunc func() time.Time
}

type Option func(*Codec)

// WithNowFunc sets the clock used for issuing and verifying cookies.
func WithNowFunc(now func() time.Time) Option {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func New(secret []byte, maxAge time.Duration, options ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("session max age must be positive, got %s", maxAge)
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		maxAge: maxAge,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c, nil
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Encode signs sessionID.
func (c *Codec) Encode(sessionID string) (string, error) {
	now := c.nowFunc()
	claims := jwtlib.RegisteredClaims{
		Issuer:    issuer,
		Subject:   sessionID,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(c.maxAge)),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return signed, nil
}

// Decode verifies raw and returns the session id it carries.
func (c *Codec) Decode(raw string) (string, error) {
	claims := &jwtlib.RegisteredClaims{}
	parsed, err := jwtlib.ParseWithClaims(raw, claims, func(*jwtlib.Token) (any, error) {
		return c.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(c.nowFunc),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", ErrNoSession)
	}
	return claims.Subject, nil
}

// SessionID reads the session id from the request's cookie.
func (c *Codec) SessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", ErrNoSession
	}
	return c.Decode(cookie.Value)
}

// Set writes the session cookie. secure should be true when the browser talks https.
func (c *Codec) Set(w http.ResponseWriter, sessionID string, secure bool) error {
	value, err := c.Encode(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.maxAge.Seconds()),
	})
	return nil
}

// Clear expires the session cookie in the browser.
func (c *Codec) Clear(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
