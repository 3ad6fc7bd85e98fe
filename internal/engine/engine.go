package engine

import "errors"

var ErrOutOfTurn = errors.New("not your turn")
var ErrInvalidIndex = errors.New("hand index out of range")
var ErrIllegalMove = errors.New("illegal move")
var ErrInvalidColor = errors.New("a wild card needs a color")
var ErrUnknownPlayer = errors.New("player not in match")
var ErrRoundOver = errors.New("round already over")
var ErrMatchFinished = errors.New("match already finished")
var ErrEmptyDrawPile = errors.New("no cards left to draw")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrInvalidCapacity = errors.New("number of players must be between 2 and 4")
var ErrInvalidName = errors.New("invalid player name")
var ErrLobbyFull = errors.New("lobby is full")

type CommandType string

const (
	CmdDraw CommandType = "Draw"
	CmdPlay CommandType = "Play"
	CmdSkip CommandType = "Skip"
)

/*
	CmdDraw -> [EvtDrawPileReshuffled] -> EvtCardDrawn
	CmdPlay -> EvtCardPlayed -> effect events -> EvtTurnAdvanced -> [EvtRoundFinished -> [EvtMatchFinished]]
	CmdSkip -> EvtTurnPassed -> EvtTurnAdvanced

	Effect events: Skip -> EvtPlayerSkipped
	               Reverse -> EvtDirectionReversed (-> EvtPlayerSkipped with two players)
	               DrawTwo/WildDrawFour -> [EvtDrawPileReshuffled] -> EvtPenaltyDrawn -> EvtPlayerSkipped
*/

type Command struct {
	Type      CommandType
	Player    string
	HandIndex int
	Color     Color // only read for wild cards
}

type EventType string

const (
	EvtCardPlayed         EventType = "CardPlayed"
	EvtCardDrawn          EventType = "CardDrawn"
	EvtTurnPassed         EventType = "TurnPassed"
	EvtPlayerSkipped      EventType = "PlayerSkipped"
	EvtDirectionReversed  EventType = "DirectionReversed"
	EvtPenaltyDrawn       EventType = "PenaltyDrawn"
	EvtDrawPileReshuffled EventType = "DrawPileReshuffled"
	EvtTurnAdvanced       EventType = "TurnAdvanced"
	EvtRoundFinished      EventType = "RoundFinished"
	EvtMatchFinished      EventType = "MatchFinished"
)

// Event describes one step of a transition. Seat is -1 when no player is
// involved. Events never carry drawn cards, only counts, so they are safe
// to broadcast.
type Event struct {
	Type   EventType
	Seat   int
	Card   Card
	Count  int
	Points int
}

// Apply runs cmd against m and returns the resulting match. On error the
// returned match is m itself. A play that empties a hand also scores the
// round and either deals the next one or finishes the match.
func Apply(m Match, cmd Command, rng RNG) ([]Event, Match, error) {
	if m.Finished {
		return nil, m, ErrMatchFinished
	}

	seat, ok := m.Seat(cmd.Player)
	if !ok {
		return nil, m, ErrUnknownPlayer
	}

	r := m.Round()
	var (
		next   Round
		events []Event
		err    error
	)
	switch cmd.Type {
	case CmdDraw:
		next, events, err = r.Draw(seat, rng)
	case CmdPlay:
		next, events, err = r.Play(seat, cmd.HandIndex, cmd.Color, rng)
	case CmdSkip:
		next, events, err = r.Pass(seat)
	default:
		return nil, m, ErrUnsupportedCommand
	}
	if err != nil {
		return nil, m, err
	}

	out := m.withRound(next)
	if _, over := next.Winner(); over {
		var finished []Event
		out, finished = out.FinishRound(rng)
		events = append(events, finished...)
	}
	return events, out, nil
}
