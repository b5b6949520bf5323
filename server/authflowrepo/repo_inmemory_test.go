package authflowrepo_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-oauth-proxy/server/authflowrepo"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo_UpsertGetDelete(t *testing.T) {
	repo := authflowrepo.NewInMemoryRepo()

	require.NoError(t, repo.Upsert("state-1", &authflowrepo.AuthFlowState{SessionID: "session-1"}))

	found, err := repo.Get("state-1")
	require.NoError(t, err)
	require.Equal(t, "session-1", found.SessionID)
	require.False(t, found.CreatedAt.IsZero())

	require.NoError(t, repo.Delete("state-1"))
	_, err = repo.Get("state-1")
	require.ErrorIs(t, err, authflowrepo.ErrStateNotFound)
}

func TestInMemoryRepo_StateExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := authflowrepo.NewInMemoryRepo(
		authflowrepo.WithTTL(time.Minute),
		authflowrepo.WithNowFunc(func() time.Time { return now }),
	)
	require.NoError(t, repo.Upsert("state-1", &authflowrepo.AuthFlowState{SessionID: "session-1"}))

	now = now.Add(59 * time.Second)
	_, err := repo.Get("state-1")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = repo.Get("state-1")
	require.ErrorIs(t, err, authflowrepo.ErrStateExpired)

	// The next write drops it.
	require.NoError(t, repo.Upsert("state-2", &authflowrepo.AuthFlowState{SessionID: "session-2"}))
	require.Equal(t, 1, repo.Len())
}

func TestInMemoryRepo_ReturnsCopies(t *testing.T) {
	repo := authflowrepo.NewInMemoryRepo()
	state := &authflowrepo.AuthFlowState{SessionID: "session-1"}
	require.NoError(t, repo.Upsert("state-1", state))

	state.SessionID = "changed"
	found, err := repo.Get("state-1")
	require.NoError(t, err)
	require.Equal(t, "session-1", found.SessionID)
}

func TestInMemoryRepo_RejectsEmptyState(t *testing.T) {
	repo := authflowrepo.NewInMemoryRepo()

	require.Error(t, repo.Upsert("", &authflowrepo.AuthFlowState{}))
	_, err := repo.Get("")
	require.Error(t, err)
}
