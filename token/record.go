package token

import "time"

// Record is the authentication state held for one session.
type Record struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token should no longer be used at now. A token expiring
// at T is invalid at T. margin moves the boundary earlier. A zero ExpiresAt counts as expired.
func (r Record) Expired(now time.Time, margin time.Duration) bool {
	if r.ExpiresAt.IsZero() {
		return true
	}
	return !now.Before(r.ExpiresAt.Add(-margin))
}

// ExpiresIn is the remaining lifetime, never negative.
func (r Record) ExpiresIn(now time.Time) time.Duration {
	if r.ExpiresAt.IsZero() || !now.Before(r.ExpiresAt) {
		return 0
	}
	return r.ExpiresAt.Sub(now)
}
