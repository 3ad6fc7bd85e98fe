package engine

import "slices"

const WinningScore = 500

// Player is a seat in a match. ID is the seat ordinal; the hand lives in
// the current Round.
type Player struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Match is a sequence of rounds played by a fixed set of players. The last
// round is the current one. Like Round, Match is a value and every
// transition returns a new one.
type Match struct {
	Players  []Player `json:"players"`
	Rounds   []Round  `json:"rounds"`
	Finished bool     `json:"finished"`
	Winner   *Player  `json:"winner,omitempty"`
}

// NewMatch seats names in the given order and deals the first round.
func NewMatch(names []string, rng RNG) (Match, error) {
	if len(names) < MinPlayers || len(names) > MaxPlayers {
		return Match{}, ErrInvalidCapacity
	}
	players := make([]Player, len(names))
	for i, name := range names {
		if !validName(name) || slices.Index(names, name) != i {
			return Match{}, ErrInvalidName
		}
		players[i] = Player{ID: i, Name: name}
	}
	return Match{
		Players: players,
		Rounds:  []Round{NewRound(len(players), rng)},
	}, nil
}

func (m Match) Round() Round { return m.Rounds[len(m.Rounds)-1] }

func (m Match) Seat(name string) (int, bool) {
	for _, p := range m.Players {
		if p.Name == name {
			return p.ID, true
		}
	}
	return -1, false
}

// Hand returns a copy of name's hand in the current round.
func (m Match) Hand(name string) ([]Card, error) {
	seat, ok := m.Seat(name)
	if !ok {
		return nil, ErrUnknownPlayer
	}
	return slices.Clone(m.Round().Hands[seat]), nil
}

func (m Match) withRound(r Round) Match {
	next := m
	next.Rounds = slices.Clone(m.Rounds)
	next.Rounds[len(next.Rounds)-1] = r
	return next
}

// FinishRound scores a round that is over. The round winner collects the
// points left in every opponent's hand. Reaching WinningScore ends the
// match; otherwise a fresh round is dealt to the same players.
func (m Match) FinishRound(rng RNG) (Match, []Event) {
	if m.Finished {
		return m, nil
	}
	r := m.Round()
	winner, over := r.Winner()
	if !over {
		return m, nil
	}

	points := 0
	for seat, hand := range r.Hands {
		if seat == winner {
			continue
		}
		for _, c := range hand {
			points += c.Points()
		}
	}

	next := m
	next.Players = slices.Clone(m.Players)
	next.Players[winner].Score += points
	events := []Event{{Type: EvtRoundFinished, Seat: winner, Points: points}}

	if leader, ok := next.leader(winner); ok {
		w := next.Players[leader]
		next.Finished = true
		next.Winner = &w
		return next, append(events, Event{Type: EvtMatchFinished, Seat: leader, Points: w.Score})
	}

	next.Rounds = append(slices.Clone(m.Rounds), NewRound(len(next.Players), rng))
	return next, events
}

// leader picks the highest score at or above WinningScore. Only the round
// winner's score moves in a round, so in practice that is the only
// candidate; on an exact tie the round winner is preferred.
func (m Match) leader(roundWinner int) (int, bool) {
	best := -1
	for _, p := range m.Players {
		if p.Score < WinningScore {
			continue
		}
		if best < 0 || p.Score > m.Players[best].Score ||
			(p.Score == m.Players[best].Score && p.ID == roundWinner) {
			best = p.ID
		}
	}
	return best, best >= 0
}
