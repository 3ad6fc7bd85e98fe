package persist

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/uno-backend/internal/engine"
)

func TestMemory_PromoteMovesLobbyToMatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	l, err := engine.NewLobby("AAA111", "A", 2)
	require.NoError(t, err)
	require.NoError(t, repo.SaveLobby(ctx, l, 1))

	other, err := engine.NewLobby("BBB222", "X", 3)
	require.NoError(t, err)
	require.NoError(t, repo.SaveLobby(ctx, other, 1))
	other, _, err = other.Join("Y")
	require.NoError(t, err)
	require.NoError(t, repo.SaveLobby(ctx, other, 2))

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StoredLobby{{Lobby: l, Version: 1}, {Lobby: other, Version: 2}}, snap.Lobbies)
	assert.Empty(t, snap.Matches)

	m, err := engine.NewMatch([]string{"A", "B"}, rand.New(rand.NewPCG(1, 1)))
	require.NoError(t, err)
	require.NoError(t, repo.PromoteLobby(ctx, "AAA111", m, 3))

	snap, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StoredLobby{{Lobby: other, Version: 2}}, snap.Lobbies)
	require.Contains(t, snap.Matches, "AAA111")
	assert.Equal(t, StoredMatch{Match: m, Version: 3}, snap.Matches["AAA111"])

	require.NoError(t, repo.DeleteLobby(ctx, "BBB222"))
	snap, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Lobbies)
}

func TestMemory_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := NewMemory()
	l, err := engine.NewLobby("AAA111", "A", 2)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.SaveLobby(ctx, l, 1), context.Canceled)
	snap, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Lobbies)
}
