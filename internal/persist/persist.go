// Package persist stores lobbies and matches. Room actors write through a
// Repository after every accepted mutation; the server reads everything
// back once at startup.
package persist

import (
	"context"

	"github.com/DoyleJ11/uno-backend/internal/engine"
)

// StoredLobby is a lobby as saved, with the version of its id at that point.
type StoredLobby struct {
	engine.Lobby
	Version int
}

// StoredMatch is a match as saved, with the version of its id at that point.
type StoredMatch struct {
	Match   engine.Match
	Version int
}

// Snapshot is the full persisted state, as returned by Load.
type Snapshot struct {
	Lobbies []StoredLobby
	Matches map[string]StoredMatch
}

// Repository saves every accepted change together with the version it
// brings the id to, so versions keep counting up after a restart.
type Repository interface {
	SaveLobby(ctx context.Context, l engine.Lobby, version int) error
	DeleteLobby(ctx context.Context, id string) error
	SaveMatch(ctx context.Context, id string, m engine.Match, version int) error
	// PromoteLobby deletes lobby id and stores m under the same id as one
	// atomic step.
	PromoteLobby(ctx context.Context, id string, m engine.Match, version int) error
	Load(ctx context.Context) (Snapshot, error)
	Close() error
}
