package persist

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/DoyleJ11/uno-backend/internal/engine"
)

// Memory keeps everything in process. Engine values are never modified
// in place, so storing them without a deep copy is safe.
type Memory struct {
	mu      sync.Mutex
	lobbies map[string]StoredLobby
	matches map[string]StoredMatch
}

func NewMemory() *Memory {
	return &Memory{
		lobbies: make(map[string]StoredLobby),
		matches: make(map[string]StoredMatch),
	}
}

func (m *Memory) SaveLobby(ctx context.Context, l engine.Lobby, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l.Joined = slices.Clone(l.Joined)
	m.lobbies[l.ID] = StoredLobby{Lobby: l, Version: version}
	return nil
}

func (m *Memory) DeleteLobby(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lobbies, id)
	return nil
}

func (m *Memory) SaveMatch(ctx context.Context, id string, match engine.Match, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[id] = StoredMatch{Match: match, Version: version}
	return nil
}

func (m *Memory) PromoteLobby(ctx context.Context, id string, match engine.Match, version int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lobbies, id)
	m.matches[id] = StoredMatch{Match: match, Version: version}
	return nil
}

func (m *Memory) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Lobbies: make([]StoredLobby, 0, len(m.lobbies)),
		Matches: make(map[string]StoredMatch, len(m.matches)),
	}
	for _, l := range m.lobbies {
		snap.Lobbies = append(snap.Lobbies, l)
	}
	sort.Slice(snap.Lobbies, func(i, j int) bool { return snap.Lobbies[i].ID < snap.Lobbies[j].ID })
	for id, match := range m.matches {
		snap.Matches[id] = match
	}
	return snap, nil
}

func (m *Memory) Close() error { return nil }
