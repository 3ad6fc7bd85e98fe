package engine

import (
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	MinPlayers = 2
	MaxPlayers = 4

	maxNameLen = 32
)

// Lobby is a game waiting for players. Joined keeps join order, which
// becomes seat order once the lobby fills.
type Lobby struct {
	ID       string   `json:"id"`
	Creator  string   `json:"creator"`
	Capacity int      `json:"capacity"`
	Joined   []string `json:"joined"`
}

func NewLobby(id, creator string, capacity int) (Lobby, error) {
	if capacity < MinPlayers || capacity > MaxPlayers {
		return Lobby{}, ErrInvalidCapacity
	}
	if !validName(creator) {
		return Lobby{}, ErrInvalidName
	}
	return Lobby{ID: id, Creator: creator, Capacity: capacity, Joined: []string{creator}}, nil
}

func (l Lobby) Has(name string) bool { return slices.Contains(l.Joined, name) }

func (l Lobby) Full() bool { return len(l.Joined) >= l.Capacity }

// Join adds name to the lobby. Joining twice is not an error: the lobby
// comes back unchanged and changed is false.
func (l Lobby) Join(name string) (next Lobby, changed bool, err error) {
	if !validName(name) {
		return l, false, ErrInvalidName
	}
	if l.Has(name) {
		return l, false, nil
	}
	if l.Full() {
		return l, false, ErrLobbyFull
	}
	next = l
	next.Joined = append(slices.Clone(l.Joined), name)
	return next, true, nil
}

func validName(name string) bool {
	return strings.TrimSpace(name) != "" && utf8.RuneCountInString(name) <= maxNameLen
}
