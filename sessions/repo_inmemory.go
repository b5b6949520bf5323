package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/token"
)

var _ token.SessionRepo = (*InMemoryRepo)(nil)

type entry struct {
	record    token.Record
	expiresAt time.Time // zero when the repo has no TTL
}

// InMemoryRepo keeps session tokens in a map guarded by a RWMutex. Records are copied on the
// way in and out so callers never share one. With a TTL, a record not written for that long
// is treated as absent and purged on the next write.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]entry // sessionID -> Record
	ttl      time.Duration
	nowFunc  func() time.Time
}

type Option func(*InMemoryRepo)

// WithTTL expires a session's Record ttl after it was last written. Zero keeps records forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *InMemoryRepo) {
		r.ttl = ttl
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(r *InMemoryRepo) {
		r.nowFunc = now
	}
}

// NewInMemoryRepo creates an empty in-memory session token repository
func NewInMemoryRepo(options ...Option) *InMemoryRepo {
	r := &InMemoryRepo{
		sessions: make(map[string]entry),
	}
	for _, opt := range options {
		opt(r)
	}
	if r.nowFunc == nil {
		r.nowFunc = time.Now
	}
	return r
}

// Get returns the session's Record, or nil when it has none
func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (*token.Record, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: sessionID is required", apperrors.ErrInvalidRequest)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[sessionID]
	if !ok || e.expired(r.nowFunc()) {
		return nil, nil
	}
	record := e.record
	return &record, nil
}

// Upsert replaces the session's Record wholesale
func (r *InMemoryRepo) Upsert(_ context.Context, sessionID string, record token.Record) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionID is required", apperrors.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	r.purgeExpired(now)

	e := entry{record: record}
	if r.ttl > 0 {
		e.expiresAt = now.Add(r.ttl)
	}
	r.sessions[sessionID] = e
	return nil
}

// Delete removes the session's Record. Deleting an unknown session is not an error.
func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: sessionID is required", apperrors.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}

// Count returns the number of sessions holding a live token.
func (r *InMemoryRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.nowFunc()
	count := 0
	for _, e := range r.sessions {
		if !e.expired(now) {
			count++
		}
	}
	return count
}

// Len counts stored records, expired ones included until they are purged.
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// purgeExpired must be called with the write lock held.
func (r *InMemoryRepo) purgeExpired(now time.Time) {
	for sessionID, e := range r.sessions {
		if e.expired(now) {
			delete(r.sessions, sessionID)
		}
	}
}
