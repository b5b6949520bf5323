package token_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-proxy/token"
	"github.com/stretchr/testify/require"
)

func TestRecord_Expired(t *testing.T) {
	expiresAt := fixedNow.Add(time.Hour)
	record := token.Record{AccessToken: "A1", RefreshToken: "R1", ExpiresAt: expiresAt}

	tests := []struct {
		name   string
		now    time.Time
		margin time.Duration
		want   bool
	}{
		{"well before expiry", fixedNow, 0, false},
		{"one second before expiry", expiresAt.Add(-time.Second), 0, false},
		{"at expiry", expiresAt, 0, true},
		{"after expiry", expiresAt.Add(time.Second), 0, true},
		{"inside margin", expiresAt.Add(-30 * time.Second), time.Minute, true},
		{"outside margin", expiresAt.Add(-2 * time.Minute), time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, record.Expired(tt.now, tt.margin))
		})
	}
}

func TestRecord_ZeroExpiryIsExpired(t *testing.T) {
	require.True(t, token.Record{AccessToken: "A1"}.Expired(fixedNow, 0))
}

func TestRecord_ExpiresIn(t *testing.T) {
	record := token.Record{ExpiresAt: fixedNow.Add(90 * time.Second)}

	require.Equal(t, 90*time.Second, record.ExpiresIn(fixedNow))
	require.Zero(t, record.ExpiresIn(fixedNow.Add(2*time.Minute)))
}
