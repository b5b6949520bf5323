package errors_test

import (
	"context"
	"testing"

	apperrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapf_NilStaysNil(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "context %d", 1))
}

func TestWrapf_KeepsChain(t *testing.T) {
	err := apperrors.Wrapf(apperrors.ErrRefreshFailed, "session %s", "abc")
	require.EqualError(t, err, "session abc: refresh token exchange failed")
	require.True(t, apperrors.Is(err, apperrors.ErrRefreshFailed))
}

func TestUpstreamError(t *testing.T) {
	err := apperrors.Wrapf(&apperrors.UpstreamError{Status: 503, Body: []byte("down")}, "forward")

	var upstreamErr *apperrors.UpstreamError
	require.True(t, apperrors.As(err, &upstreamErr))
	require.Equal(t, 503, upstreamErr.Status)
	require.Equal(t, "down", string(upstreamErr.Body))
	require.Contains(t, err.Error(), "status 503")
}

func TestUpstreamError_TransportFailure(t *testing.T) {
	err := &apperrors.UpstreamError{Err: context.DeadlineExceeded}
	require.Contains(t, err.Error(), "upstream request failed")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
