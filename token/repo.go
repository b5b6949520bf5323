package token

import "context"

// SessionRepo is the per-session token cache. Get returns nil, nil when the session holds no
// token. Writes must be visible to the next Get for the same session. Delete is idempotent.
//
// Only the Manager writes to it, and it serializes refreshes per session.
type SessionRepo interface {
	Get(ctx context.Context, sessionID string) (*Record, error)
	Upsert(ctx context.Context, sessionID string, record Record) error
	Delete(ctx context.Context, sessionID string) error
}
