package engine

import "slices"

const HandSize = 7

// Round is one hand of play. It is a value: every transition returns a new
// Round and never writes through slices shared with the receiver.
//
// Hands are indexed by seat, the player's ordinal position in the match.
type Round struct {
	DrawPile    []Card   `json:"drawPile"`
	DiscardPile []Card   `json:"discardPile"` // top is last
	Hands       [][]Card `json:"hands"`
	Current     int      `json:"currentPlayerIndex"`
	Direction   int      `json:"direction"` // +1 or -1
}

// NewRound shuffles a fresh deck, deals HandSize cards round-robin and
// flips the first discard. A wild is never left as the first discard: it
// goes back into the draw pile, which is reshuffled before the next flip.
func NewRound(players int, rng RNG) Round {
	deck := Shuffle(StandardDeck(), rng)

	hands := make([][]Card, players)
	for seat := range hands {
		hands[seat] = make([]Card, 0, HandSize)
	}
	for k := 0; k < HandSize; k++ {
		for seat := 0; seat < players; seat++ {
			hands[seat] = append(hands[seat], deck[k*players+seat])
		}
	}
	_, deck = Deal(deck, HandSize*players)

	for {
		first, rest := Deal(deck, 1)
		if !first[0].IsWild() {
			return Round{
				DrawPile:    rest,
				DiscardPile: first,
				Hands:       hands,
				Current:     0,
				Direction:   1,
			}
		}
		deck = Shuffle(append(rest, first[0]), rng)
	}
}

// IsLegal reports whether card may be played on top of top.
func IsLegal(card, top Card) bool {
	if top.IsZero() {
		return true
	}
	if card.IsWild() {
		return true
	}
	if card.Kind() == top.Kind() {
		if card.Kind() == KindNumbered {
			return card.Color() == top.Color() || card.Value() == top.Value()
		}
		return true
	}
	return card.Color() != ColorNone && top.Color() != ColorNone && card.Color() == top.Color()
}

func (r Round) Top() Card {
	if len(r.DiscardPile) == 0 {
		return Card{}
	}
	return r.DiscardPile[len(r.DiscardPile)-1]
}

func (r Round) next(i int) int {
	n := len(r.Hands)
	return (i + r.Direction + n) % n
}

// Winner returns the seat whose hand is empty, if any. A round is over as
// soon as it has a winner.
func (r Round) Winner() (int, bool) {
	for seat, hand := range r.Hands {
		if len(hand) == 0 {
			return seat, true
		}
	}
	return -1, false
}

// CardCount is the number of cards across both piles and every hand.
func (r Round) CardCount() int {
	n := len(r.DrawPile) + len(r.DiscardPile)
	for _, h := range r.Hands {
		n += len(h)
	}
	return n
}

func (r Round) clone() Round {
	hands := make([][]Card, len(r.Hands))
	for i, h := range r.Hands {
		hands[i] = slices.Clone(h)
	}
	return Round{
		DrawPile:    slices.Clone(r.DrawPile),
		DiscardPile: slices.Clone(r.DiscardPile),
		Hands:       hands,
		Current:     r.Current,
		Direction:   r.Direction,
	}
}

// Play plays the card at handIndex from seat's hand. chosen is required
// for wild cards and ignored otherwise.
func (r Round) Play(seat, handIndex int, chosen Color, rng RNG) (Round, []Event, error) {
	if _, over := r.Winner(); over {
		return r, nil, ErrRoundOver
	}
	if seat != r.Current {
		return r, nil, ErrOutOfTurn
	}
	hand := r.Hands[seat]
	if handIndex < 0 || handIndex >= len(hand) {
		return r, nil, ErrInvalidIndex
	}
	card := hand[handIndex]
	if !IsLegal(card, r.Top()) {
		return r, nil, ErrIllegalMove
	}
	if card.IsWild() {
		if !chosen.Valid() {
			return r, nil, ErrInvalidColor
		}
		card = card.WithColor(chosen)
	}

	next := r.clone()
	next.Hands[seat] = slices.Delete(next.Hands[seat], handIndex, handIndex+1)
	next.DiscardPile = append(next.DiscardPile, card)
	events := []Event{{Type: EvtCardPlayed, Seat: seat, Card: card}}

	switch card.Kind() {
	case KindSkip:
		next.Current = next.next(next.Current)
		events = append(events, Event{Type: EvtPlayerSkipped, Seat: next.Current})
	case KindReverse:
		next.Direction = -next.Direction
		events = append(events, Event{Type: EvtDirectionReversed, Seat: seat})
		// Heads-up, a reverse hands the turn straight back: same as a skip.
		if len(next.Hands) == 2 {
			next.Current = next.next(next.Current)
			events = append(events, Event{Type: EvtPlayerSkipped, Seat: next.Current})
		}
	case KindDrawTwo:
		events = append(events, next.penalize(2, rng)...)
	case KindWildDrawFour:
		events = append(events, next.penalize(4, rng)...)
	}

	next.Current = next.next(next.Current)
	events = append(events, Event{Type: EvtTurnAdvanced, Seat: next.Current})
	return next, events, nil
}

// Draw moves one card from the draw pile into seat's hand. The turn does
// not move; the player follows up with Play or Pass.
func (r Round) Draw(seat int, rng RNG) (Round, []Event, error) {
	if _, over := r.Winner(); over {
		return r, nil, ErrRoundOver
	}
	if seat != r.Current {
		return r, nil, ErrOutOfTurn
	}

	next := r.clone()
	cards, events := next.take(1, rng)
	if len(cards) == 0 {
		return r, nil, ErrEmptyDrawPile
	}
	next.Hands[seat] = append(next.Hands[seat], cards...)
	events = append(events, Event{Type: EvtCardDrawn, Seat: seat, Count: len(cards)})
	return next, events, nil
}

// Pass ends seat's turn without playing.
func (r Round) Pass(seat int) (Round, []Event, error) {
	if _, over := r.Winner(); over {
		return r, nil, ErrRoundOver
	}
	if seat != r.Current {
		return r, nil, ErrOutOfTurn
	}

	next := r.clone()
	next.Current = next.next(next.Current)
	return next, []Event{
		{Type: EvtTurnPassed, Seat: seat},
		{Type: EvtTurnAdvanced, Seat: next.Current},
	}, nil
}

// penalize makes the following player draw n cards and lands the turn on
// them, so the regular advance afterwards skips them.
func (r *Round) penalize(n int, rng RNG) []Event {
	target := r.next(r.Current)
	cards, events := r.take(n, rng)
	r.Hands[target] = append(r.Hands[target], cards...)
	r.Current = target
	return append(events,
		Event{Type: EvtPenaltyDrawn, Seat: target, Count: len(cards)},
		Event{Type: EvtPlayerSkipped, Seat: target},
	)
}

// take removes up to n cards from the top of the draw pile. When the draw
// pile runs dry the discard pile, minus its top card, is shuffled back in.
// Fewer than n cards come back only when every other card is in a hand.
// r must be a private clone.
func (r *Round) take(n int, rng RNG) ([]Card, []Event) {
	var (
		out    []Card
		events []Event
	)
	for len(out) < n {
		if len(r.DrawPile) == 0 {
			if !r.recycle(rng) {
				break
			}
			events = append(events, Event{Type: EvtDrawPileReshuffled, Seat: -1, Count: len(r.DrawPile)})
		}
		out = append(out, r.DrawPile[0])
		r.DrawPile = r.DrawPile[1:]
	}
	return out, events
}

func (r *Round) recycle(rng RNG) bool {
	if len(r.DiscardPile) <= 1 {
		return false
	}
	top := r.DiscardPile[len(r.DiscardPile)-1]
	under := r.DiscardPile[:len(r.DiscardPile)-1]

	pile := make([]Card, len(under))
	for i, c := range under {
		pile[i] = c.Uncolored()
	}
	r.DrawPile = Shuffle(pile, rng)
	r.DiscardPile = []Card{top}
	return true
}
