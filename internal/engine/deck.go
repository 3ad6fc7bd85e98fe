package engine

// RNG is the random source used for shuffling. *rand.Rand from
// math/rand/v2 satisfies it; tests inject a seeded one.
type RNG interface {
	IntN(n int) int
}

const DeckSize = 108

// StandardDeck returns the 108 cards of a fresh, unshuffled deck.
func StandardDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, c := range Colors {
		deck = append(deck, Numbered(c, 0))
		for n := 1; n <= 9; n++ {
			deck = append(deck, Numbered(c, n), Numbered(c, n))
		}
	}
	for _, c := range Colors {
		deck = append(deck,
			Skip(c), Skip(c),
			Reverse(c), Reverse(c),
			DrawTwo(c), DrawTwo(c),
		)
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, Wild(), WildDrawFour())
	}
	return deck
}

// Shuffle returns a uniformly permuted copy of cards (Fisher-Yates).
func Shuffle(cards []Card, rng RNG) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Deal splits off the first n cards. Both results are fresh slices; n is
// clamped to the available cards.
func Deal(cards []Card, n int) ([]Card, []Card) {
	if n > len(cards) {
		n = len(cards)
	}
	if n < 0 {
		n = 0
	}
	dealt := make([]Card, n)
	copy(dealt, cards[:n])
	rest := make([]Card, len(cards)-n)
	copy(rest, cards[n:])
	return dealt, rest
}
