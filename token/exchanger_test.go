package token_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-proxy/credentials"
	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/token"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID     = "client-1"
	testClientSecret = "secret-1"
	testRedirectURI  = "http://localhost:5000/auth/callback"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// tokenServer is a fake token endpoint. It rejects requests without the expected client Basic
// credentials and answers with whatever respond returns for the posted form.
type tokenServer struct {
	*httptest.Server
	calls atomic.Int32
}

func newTokenServer(t *testing.T, respond func(form map[string]string) (int, map[string]any)) *tokenServer {
	t.Helper()

	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)

		user, pass, ok := r.BasicAuth()
		if !ok || user != testClientID || pass != testClientSecret {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
			return
		}

		form := make(map[string]string)
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		status, body := respond(form)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestExchanger(t *testing.T, tokenURL string) *token.OAuth2Exchanger {
	t.Helper()

	store, err := credentials.NewStaticStore(credentials.Credentials{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRedirectURI,
		AuthURL:      "https://accounts.example.com/authorize",
		TokenURL:     tokenURL,
	})
	require.NoError(t, err)

	return token.NewExchanger(store, token.WithExchangeTime(func() time.Time { return fixedNow }))
}

func TestExchangeCode(t *testing.T) {
	ts := newTokenServer(t, func(form map[string]string) (int, map[string]any) {
		if form["grant_type"] != "authorization_code" || form["code"] != "C1" || form["redirect_uri"] != testRedirectURI {
			return http.StatusBadRequest, map[string]any{"error": "invalid_grant"}
		}
		return http.StatusOK, map[string]any{
			"access_token":  "A1",
			"refresh_token": "R1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		}
	})
	exchanger := newTestExchanger(t, ts.URL)

	record, err := exchanger.ExchangeCode(context.Background(), "C1")
	require.NoError(t, err)
	require.Equal(t, "A1", record.AccessToken)
	require.Equal(t, "R1", record.RefreshToken)
	require.Equal(t, fixedNow.Add(time.Hour), record.ExpiresAt)
}

func TestExchangeCode_MissingRefreshToken(t *testing.T) {
	ts := newTokenServer(t, func(map[string]string) (int, map[string]any) {
		return http.StatusOK, map[string]any{
			"access_token": "A1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})
	exchanger := newTestExchanger(t, ts.URL)

	_, err := exchanger.ExchangeCode(context.Background(), "C1")
	require.ErrorIs(t, err, apperrors.ErrMissingRefreshToken)
}

func TestExchangeCode_Rejected(t *testing.T) {
	ts := newTokenServer(t, func(map[string]string) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{"error": "invalid_grant"}
	})
	exchanger := newTestExchanger(t, ts.URL)

	_, err := exchanger.ExchangeCode(context.Background(), "C1")
	require.ErrorIs(t, err, apperrors.ErrExchangeFailed)

	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	require.Equal(t, http.StatusBadRequest, retrieveErr.Response.StatusCode)
}

func TestExchangeCode_EmptyCode(t *testing.T) {
	ts := newTokenServer(t, func(map[string]string) (int, map[string]any) {
		return http.StatusOK, map[string]any{}
	})
	exchanger := newTestExchanger(t, ts.URL)

	_, err := exchanger.ExchangeCode(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrExchangeFailed)
	require.Zero(t, ts.calls.Load())
}

func TestExchangeRefresh_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	ts := newTokenServer(t, func(form map[string]string) (int, map[string]any) {
		if form["grant_type"] != "refresh_token" || form["refresh_token"] != "R1" {
			return http.StatusBadRequest, map[string]any{"error": "invalid_grant"}
		}
		return http.StatusOK, map[string]any{
			"access_token": "A2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
	})
	exchanger := newTestExchanger(t, ts.URL)

	record, err := exchanger.ExchangeRefresh(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, "A2", record.AccessToken)
	require.Equal(t, "R1", record.RefreshToken)
	require.Equal(t, fixedNow.Add(time.Hour), record.ExpiresAt)
}

func TestExchangeRefresh_RotatedRefreshToken(t *testing.T) {
	ts := newTokenServer(t, func(map[string]string) (int, map[string]any) {
		return http.StatusOK, map[string]any{
			"access_token":  "A2",
			"refresh_token": "R2",
			"token_type":    "Bearer",
			"expires_in":    1800,
		}
	})
	exchanger := newTestExchanger(t, ts.URL)

	record, err := exchanger.ExchangeRefresh(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, "R2", record.RefreshToken)
	require.Equal(t, fixedNow.Add(30*time.Minute), record.ExpiresAt)
}

func TestExchangeRefresh_Rejected(t *testing.T) {
	ts := newTokenServer(t, func(map[string]string) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{"error": "invalid_grant"}
	})
	exchanger := newTestExchanger(t, ts.URL)

	_, err := exchanger.ExchangeRefresh(context.Background(), "R1")
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
}

func TestExchange_WrongClientSecret(t *testing.T) {
	ts := newTokenServer(t, func(map[string]string) (int, map[string]any) {
		return http.StatusOK, map[string]any{"access_token": "A1", "refresh_token": "R1"}
	})

	store, err := credentials.NewStaticStore(credentials.Credentials{
		ClientID:     testClientID,
		ClientSecret: "wrong",
		RedirectURL:  testRedirectURI,
		TokenURL:     ts.URL,
	})
	require.NoError(t, err)
	exchanger := token.NewExchanger(store)

	_, err = exchanger.ExchangeCode(context.Background(), "C1")
	require.ErrorIs(t, err, apperrors.ErrExchangeFailed)
}
