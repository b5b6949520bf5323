package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/proxy"
	"github.com/rs/zerolog"
)

// Proxy forwards {"method","path","body"} to the resource API on behalf of the session.
func (s *Server) Proxy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := s.requireSession(w, r)
		if !ok {
			return
		}

		var req proxy.Request
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err := decoder.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Details: err.Error()})
			return
		}

		resp, err := s.proxy.Forward(r.Context(), sessionID, req)
		s.writeProxyResult(w, r, resp, err)
	}
}

// CurrentTrack is a shortcut for GET /v1/me/player/currently-playing.
func (s *Server) CurrentTrack() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := s.requireSession(w, r)
		if !ok {
			return
		}

		resp, err := s.proxy.Forward(r.Context(), sessionID, proxy.Request{
			Method: http.MethodGet,
			Path:   upstreamCurrentTrack,
		})
		s.writeProxyResult(w, r, resp, err)
	}
}

func (s *Server) writeProxyResult(w http.ResponseWriter, r *http.Request, resp *proxy.Response, err error) {
	if err != nil {
		var upstreamErr *apperrors.UpstreamError
		switch {
		case apperrors.Is(err, apperrors.ErrInvalidRequest):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request", Details: err.Error()})
		case apperrors.Is(err, apperrors.ErrUnauthenticated):
			writeUnauthenticated(w)
		case apperrors.As(err, &upstreamErr):
			status := upstreamErr.Status
			if status == 0 {
				status = http.StatusBadGateway
			}
			writeJSON(w, status, errorResponse{
				Error:   "upstream request failed",
				Status:  status,
				Details: upstreamDetails(upstreamErr.Body),
			})
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("Proxy request failed")
			writeJSONError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	if resp.NoContent() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = contentTypeJSON
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write proxied response")
	}
}

// upstreamDetails embeds a JSON error body as is and anything else as a string.
func upstreamDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
