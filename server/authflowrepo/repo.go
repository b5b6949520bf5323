package authflowrepo

import (
	"errors"
	"time"
)

// DefaultTTL is how long a user has to come back from the authorization server.
const DefaultTTL = 60 * time.Second

var (
	ErrStateNotFound = errors.New("state not found")
	ErrStateExpired  = errors.New("state expired")
)

// AuthFlowState links the state sent to the authorization server with the session that
// started the login.
type AuthFlowState struct {
	SessionID string
	ReturnURL string
	CreatedAt time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
}
