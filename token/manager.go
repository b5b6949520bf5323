package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Manager hands out currently valid access tokens for sessions. It is the only writer of the
// session token cache apart from EndSession.
type Manager struct {
	repo      SessionRepo
	exchanger Exchanger
	metrics   *metrics.Metrics
	margin    time.Duration
	nowFunc   func() time.Time

	// refreshes serializes refresh token exchanges per session id.
	refreshes singleflight.Group

	guardsMu sync.Mutex
	guards   map[string]*sessionGuard
}

// sessionGuard orders refresh writes against EndSession for one session. It lives only while a
// refresh or EndSession holds a reference to it.
type sessionGuard struct {
	mu    sync.Mutex
	ended bool
	refs  int
}

type ManagerOption func(*Manager)

// WithNowFunc sets the clock used for expiry checks.
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithExpiryMargin treats tokens as expired margin before their reported expiry.
func WithExpiryMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.margin = margin
	}
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = mt
	}
}

func NewManager(repo SessionRepo, exchanger Exchanger, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:      repo,
		exchanger: exchanger,
		guards:    make(map[string]*sessionGuard),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// CompleteLogin exchanges the authorization code and stores the resulting Record for the
// session. Nothing is written when the exchange fails.
func (m *Manager) CompleteLogin(ctx context.Context, sessionID, code string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: empty session id", apperrors.ErrInvalidRequest)
	}

	record, err := m.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrMissingRefreshToken) {
			m.metrics.Login(metrics.LoginMissingRefreshToken)
		} else {
			m.metrics.Login(metrics.LoginFailed)
		}
		log.Warn().Err(err).Str("session", shortID(sessionID)).Msg("Authorization code exchange failed")
		return err
	}

	if err := m.repo.Upsert(ctx, sessionID, record); err != nil {
		m.metrics.Login(metrics.LoginFailed)
		return fmt.Errorf("%w: failed to store token: %w", apperrors.ErrExchangeFailed, err)
	}

	m.metrics.Login(metrics.LoginSucceeded)
	log.Debug().Str("session", shortID(sessionID)).Time("expires_at", record.ExpiresAt).Msg("Session logged in")
	return nil
}

// EnsureValidToken returns an access token that has not expired, refreshing it first when
// needed. Fails with ErrUnauthenticated whenever the user has to log in again.
func (m *Manager) EnsureValidToken(ctx context.Context, sessionID string) (string, error) {
	record, err := m.EnsureValidRecord(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return record.AccessToken, nil
}

// EnsureValidRecord is EnsureValidToken returning the whole Record.
func (m *Manager) EnsureValidRecord(ctx context.Context, sessionID string) (Record, error) {
	record, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}
	if record == nil {
		return Record{}, apperrors.ErrUnauthenticated
	}

	if !record.Expired(m.nowFunc(), m.margin) {
		return *record, nil
	}

	if record.RefreshToken == "" {
		return Record{}, fmt.Errorf("%w: session has no refresh token", apperrors.ErrUnauthenticated)
	}

	return m.refresh(ctx, sessionID, record.AccessToken, false)
}

// ForceRefresh replaces rejected, an access token the resource API refused, even though it
// has not expired yet. If another caller already replaced it the newer token is returned
// without a second exchange.
func (m *Manager) ForceRefresh(ctx context.Context, sessionID, rejected string) (string, error) {
	record, err := m.refresh(ctx, sessionID, rejected, true)
	if err != nil {
		return "", err
	}
	return record.AccessToken, nil
}

// Session returns the stored Record without validating it, or ErrSessionNotFound.
func (m *Manager) Session(ctx context.Context, sessionID string) (Record, error) {
	record, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}
	if record == nil {
		return Record{}, apperrors.ErrSessionNotFound
	}
	return *record, nil
}

// EndSession forgets the session's token. A refresh still in flight for the session does not
// write its result back. Calling it again is a no-op.
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	guard := m.acquireGuard(sessionID)
	defer m.releaseGuard(sessionID, guard)

	guard.mu.Lock()
	defer guard.mu.Unlock()
	guard.ended = true

	m.refreshes.Forget(sessionID)
	if err := m.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	log.Debug().Str("session", shortID(sessionID)).Msg("Session ended")
	return nil
}

// refresh runs at most one exchange per session at a time. Callers arriving while one is in
// flight share its result. A caller that got a result it cannot use (a token it observed as
// stale, or the leader's cancellation) tries once more on its own.
func (m *Manager) refresh(ctx context.Context, sessionID, observed string, forced bool) (Record, error) {
	for attempt := 0; ; attempt++ {
		flight := m.refreshes.DoChan(sessionID, func() (any, error) {
			return m.doRefresh(ctx, sessionID, observed, forced)
		})

		var result singleflight.Result
		select {
		case result = <-flight:
		case <-ctx.Done():
			return Record{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, ctx.Err())
		}

		retry := result.Shared && attempt == 0
		if err := result.Err; err != nil {
			if retry && ctx.Err() == nil && (apperrors.Is(err, context.Canceled) || apperrors.Is(err, context.DeadlineExceeded)) {
				continue
			}
			return Record{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
		}

		record := result.Val.(Record)
		if retry && forced && record.AccessToken == observed {
			continue
		}
		return record, nil
	}
}

func (m *Manager) doRefresh(ctx context.Context, sessionID, observed string, forced bool) (Record, error) {
	guard := m.acquireGuard(sessionID)
	defer m.releaseGuard(sessionID, guard)

	current, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return Record{}, err
	}
	if current == nil {
		return Record{}, apperrors.ErrSessionNotFound
	}

	if current.AccessToken != observed && !current.Expired(m.nowFunc(), m.margin) {
		m.metrics.Refresh(forced, metrics.RefreshSkipped)
		return *current, nil
	}
	if current.RefreshToken == "" {
		return Record{}, fmt.Errorf("%w: session has no refresh token", apperrors.ErrRefreshFailed)
	}

	fresh, err := m.exchanger.ExchangeRefresh(ctx, current.RefreshToken)
	if err != nil {
		m.metrics.Refresh(forced, metrics.RefreshFailed)
		log.Warn().Err(err).Str("session", shortID(sessionID)).Bool("forced", forced).Msg("Token refresh failed")
		return Record{}, err
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = current.RefreshToken
	}

	guard.mu.Lock()
	defer guard.mu.Unlock()
	if guard.ended {
		log.Debug().Str("session", shortID(sessionID)).Msg("Session ended during refresh, dropping token")
		return Record{}, apperrors.ErrSessionNotFound
	}

	// The exchange may have rotated the refresh token, so the write must not be abandoned
	// half way if the caller goes away now.
	if err := m.repo.Upsert(context.WithoutCancel(ctx), sessionID, fresh); err != nil {
		m.metrics.Refresh(forced, metrics.RefreshFailed)
		return Record{}, fmt.Errorf("failed to store refreshed token: %w", err)
	}

	m.metrics.Refresh(forced, metrics.RefreshSucceeded)
	log.Debug().Str("session", shortID(sessionID)).Bool("forced", forced).Time("expires_at", fresh.ExpiresAt).Msg("Access token refreshed")
	return fresh, nil
}

func (m *Manager) acquireGuard(sessionID string) *sessionGuard {
	m.guardsMu.Lock()
	defer m.guardsMu.Unlock()

	guard, ok := m.guards[sessionID]
	if !ok {
		guard = &sessionGuard{}
		m.guards[sessionID] = guard
	}
	guard.refs++
	return guard
}

func (m *Manager) releaseGuard(sessionID string, guard *sessionGuard) {
	m.guardsMu.Lock()
	defer m.guardsMu.Unlock()

	guard.refs--
	if guard.refs == 0 {
		delete(m.guards, sessionID)
	}
}

// shortID keeps session ids out of the logs in full.
func shortID(sessionID string) string {
	if len(sessionID) <= 8 {
		return sessionID
	}
	return sessionID[:8]
}
