package server

import (
	"net/http"
	"time"

	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/server/authflowrepo"
	"github.com/jrsteele09/go-oauth-proxy/server/sessioncookie"
	"github.com/rs/zerolog"
)

const stateLength = 32

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login sends the browser to the authorization server. A browser whose session already holds
// a token goes straight back to the frontend.
func (s *Server) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)

		if sessionID, err := s.cookies.SessionID(r); err == nil {
			if _, err := s.tokens.Session(ctx, sessionID); err == nil {
				s.redirectToFrontend(w, r, "")
				return
			}
		}

		creds, err := s.credentials.Get(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load client credentials")
			writeJSONError(w, "authorization server unavailable", http.StatusInternalServerError)
			return
		}

		state, err := generateRandomString(stateLength)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to generate state")
			writeJSONError(w, "failed to start login", http.StatusInternalServerError)
			return
		}

		// A fresh session id on every login; it only reaches the browser once the callback succeeds.
		flow := &authflowrepo.AuthFlowState{
			SessionID: sessioncookie.NewSessionID(),
			ReturnURL: returnPath(r.URL.Query().Get("return_to")),
			CreatedAt: s.nowFunc(),
		}
		if err := s.authState.Upsert(state, flow); err != nil {
			logger.Error().Err(err).Msg("Failed to store auth flow state")
			writeJSONError(w, "failed to start login", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, creds.OAuth2Config().AuthCodeURL(state), http.StatusFound)
	}
}

// Callback completes the authorization code flow and sets the session cookie.
func (s *Server) Callback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)

		query := r.URL.Query()
		state := query.Get("state")
		code := query.Get("code")

		if errorParam := query.Get("error"); errorParam != "" {
			logger.Info().Str("error", errorParam).Msg("Authorization denied")
			s.redirectToFrontend(w, r, RouteFrontendLogin)
			return
		}
		if code == "" || state == "" {
			logger.Info().Msg("Callback without code or state")
			s.redirectToFrontend(w, r, RouteFrontendLogin)
			return
		}

		flow, err := s.authState.Get(state)
		if err != nil {
			writeJSONError(w, "invalid state parameter", http.StatusBadRequest)
			return
		}
		// The state is single use whatever happens next.
		if err := s.authState.Delete(state); err != nil {
			logger.Warn().Err(err).Msg("Failed to delete auth flow state")
		}

		if err := s.tokens.CompleteLogin(ctx, flow.SessionID, code); err != nil {
			if apperrors.Is(err, apperrors.ErrMissingRefreshToken) {
				writeJSONError(w, "authorization server returned no refresh token", http.StatusInternalServerError)
				return
			}
			writeJSONError(w, "authorization code exchange failed", http.StatusBadGateway)
			return
		}

		if err := s.cookies.Set(w, flow.SessionID, isSecure(r)); err != nil {
			logger.Error().Err(err).Msg("Failed to set session cookie")
			writeJSONError(w, "failed to create session", http.StatusInternalServerError)
			return
		}

		s.redirectToFrontend(w, r, flow.ReturnURL)
	}
}

// GetToken returns a currently valid access token for the session, refreshing it if needed.
func (s *Server) GetToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := s.requireSession(w, r)
		if !ok {
			return
		}

		record, err := s.tokens.EnsureValidRecord(r.Context(), sessionID)
		if err != nil {
			writeUnauthenticated(w)
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: record.AccessToken,
			ExpiresIn:   int64(record.ExpiresIn(s.nowFunc()) / time.Second),
		})
	}
}

// Refresh replaces the session's access token even if it has not expired.
func (s *Server) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID, ok := s.requireSession(w, r)
		if !ok {
			return
		}

		current, err := s.tokens.Session(ctx, sessionID)
		if err != nil {
			writeUnauthenticated(w)
			return
		}
		if _, err := s.tokens.ForceRefresh(ctx, sessionID, current.AccessToken); err != nil {
			zerolog.Ctx(ctx).Info().Err(err).Msg("Forced refresh failed")
			writeUnauthenticated(w)
			return
		}

		refreshed, err := s.tokens.Session(ctx, sessionID)
		if err != nil {
			writeUnauthenticated(w)
			return
		}
		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: refreshed.AccessToken,
			ExpiresIn:   int64(refreshed.ExpiresIn(s.nowFunc()) / time.Second),
		})
	}
}

// Logout forgets the session's tokens and expires the cookie. Logging out twice is fine.
func (s *Server) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessionID, err := s.cookies.SessionID(r); err == nil {
			if err := s.tokens.EndSession(r.Context(), sessionID); err != nil {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to end session")
				writeJSONError(w, "failed to log out", http.StatusInternalServerError)
				return
			}
		}

		s.cookies.Clear(w, isSecure(r))
		writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
	}
}

// requireSession answers 401 and returns false when the request carries no valid session cookie.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID, err := s.cookies.SessionID(r)
	if err != nil {
		writeUnauthenticated(w)
		return "", false
	}
	return sessionID, true
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSONError(w, "unauthenticated", http.StatusUnauthorized)
}
