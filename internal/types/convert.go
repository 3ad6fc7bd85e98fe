package types

import (
	"github.com/DoyleJ11/uno-backend/internal/engine"
	wire "github.com/DoyleJ11/uno-backend/pkg/types"
)

func CardOf(c engine.Card) wire.Card {
	out := wire.Card{Type: string(c.Kind()), Color: string(c.Color())}
	if c.Kind() == engine.KindNumbered {
		v := c.Value()
		out.Value = &v
	}
	return out
}

func CardsOf(cards []engine.Card) []wire.Card {
	out := make([]wire.Card, len(cards))
	for i, c := range cards {
		out[i] = CardOf(c)
	}
	return out
}

func LobbyOf(l engine.Lobby) wire.Lobby {
	return wire.Lobby{
		ID:              l.ID,
		Pending:         true,
		Creator:         l.Creator,
		NumberOfPlayers: l.Capacity,
		Players:         append([]string{}, l.Joined...),
	}
}

// MatchOf builds the public view of m. Hand contents and the draw pile
// never leave this function, only their sizes.
func MatchOf(id string, m engine.Match) wire.Match {
	r := m.Round()
	players := make([]wire.Player, len(m.Players))
	for i, p := range m.Players {
		players[i] = wire.Player{ID: p.ID, Name: p.Name, Score: p.Score, HandCount: len(r.Hands[i])}
	}
	out := wire.Match{
		ID:                 id,
		Pending:            false,
		Players:            players,
		CurrentPlayerIndex: r.Current,
		Direction:          r.Direction,
		DiscardTop:         CardOf(r.Top()),
		DrawPileCount:      len(r.DrawPile),
		Round:              len(m.Rounds),
		Finished:           m.Finished,
	}
	if m.Winner != nil {
		w := players[m.Winner.ID]
		w.Score = m.Winner.Score
		out.Winner = &w
	}
	return out
}

func GameOfLobby(l engine.Lobby) wire.Game {
	lobby := LobbyOf(l)
	return wire.Game{Lobby: &lobby}
}

func GameOfMatch(id string, m engine.Match) wire.Game {
	match := MatchOf(id, m)
	return wire.Game{Match: &match}
}

// EventsOf names the seats in events after m's players.
func EventsOf(m engine.Match, events []engine.Event) []wire.Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]wire.Event, len(events))
	for i, e := range events {
		we := wire.Event{Type: string(e.Type), Count: e.Count, Points: e.Points}
		if e.Seat >= 0 && e.Seat < len(m.Players) {
			we.Player = m.Players[e.Seat].Name
		}
		if !e.Card.IsZero() {
			c := CardOf(e.Card)
			we.Card = &c
		}
		out[i] = we
	}
	return out
}
