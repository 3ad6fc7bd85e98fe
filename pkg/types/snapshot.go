package types

import (
	"encoding/json"
	"errors"
)

// Card is the public shape of a card. Value is only present on numbered
// cards; Color is absent on a wild whose color is not chosen yet.
type Card struct {
	Type  string `json:"type"`
	Color string `json:"color,omitempty"`
	Value *int   `json:"value,omitempty"`
}

type Player struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	HandCount int    `json:"handCount"`
}

// Lobby is a pending game.
type Lobby struct {
	ID              string   `json:"id"`
	Pending         bool     `json:"pending"` // always true
	Creator         string   `json:"creator"`
	NumberOfPlayers int      `json:"number_of_players"`
	Players         []string `json:"players"`
}

// Match is the public view of a started game. Hands and the draw pile
// are reduced to counts.
type Match struct {
	ID                 string   `json:"id"`
	Pending            bool     `json:"pending"` // always false
	Players            []Player `json:"players"`
	CurrentPlayerIndex int      `json:"currentPlayerIndex"`
	Direction          int      `json:"direction"`
	DiscardTop         Card     `json:"discardTop"`
	DrawPileCount      int      `json:"drawPileCount"`
	Round              int      `json:"round"`
	Finished           bool     `json:"finished"`
	Winner             *Player  `json:"winner,omitempty"`
}

// Game is either a Lobby or a Match, never both. It is what new_game and
// join return.
type Game struct {
	Lobby *Lobby
	Match *Match
}

func (g Game) Pending() bool { return g.Lobby != nil }

func (g Game) ID() string {
	switch {
	case g.Lobby != nil:
		return g.Lobby.ID
	case g.Match != nil:
		return g.Match.ID
	}
	return ""
}

func (g Game) MarshalJSON() ([]byte, error) {
	switch {
	case g.Lobby != nil:
		return json.Marshal(g.Lobby)
	case g.Match != nil:
		return json.Marshal(g.Match)
	}
	return []byte("null"), nil
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var probe struct {
		Pending *bool `json:"pending"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Pending == nil {
		return errors.New("game: missing pending discriminator")
	}
	if *probe.Pending {
		var l Lobby
		if err := json.Unmarshal(data, &l); err != nil {
			return err
		}
		*g = Game{Lobby: &l}
		return nil
	}
	var m Match
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*g = Game{Match: &m}
	return nil
}

// Event is a public description of one step of a match transition.
type Event struct {
	Type   string `json:"type"`
	Player string `json:"player,omitempty"`
	Card   *Card  `json:"card,omitempty"`
	Count  int    `json:"count,omitempty"`
	Points int    `json:"points,omitempty"`
}
