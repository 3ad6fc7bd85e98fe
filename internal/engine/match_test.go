package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatch(t *testing.T) {
	m, err := NewMatch([]string{"A", "B"}, newRNG(1))
	require.NoError(t, err)

	assert.Equal(t, []Player{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}}, m.Players)
	require.Len(t, m.Rounds, 1)
	r := m.Round()
	assert.Len(t, r.Hands[0], 7)
	assert.Len(t, r.Hands[1], 7)
	assert.Len(t, r.DrawPile, 108-7*2-1)
	assert.Equal(t, 0, r.Current)
	assert.False(t, m.Finished)
	assert.Nil(t, m.Winner)

	_, err = NewMatch([]string{"A"}, newRNG(1))
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = NewMatch([]string{"A", "B", "C", "D", "E"}, newRNG(1))
	assert.ErrorIs(t, err, ErrInvalidCapacity)
	_, err = NewMatch([]string{"A", "A"}, newRNG(1))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestMatch_HandIsACopy(t *testing.T) {
	m, err := NewMatch([]string{"A", "B", "C"}, newRNG(2))
	require.NoError(t, err)

	hand, err := m.Hand("B")
	require.NoError(t, err)
	require.Len(t, hand, 7)
	original := m.Round().Hands[1][0]
	hand[0] = Card{}
	assert.Equal(t, original, m.Round().Hands[1][0])

	_, err = m.Hand("Z")
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

// finishedRoundMatch returns a three-player match whose current round was
// just won by seat 0. Opponents hold 27 + 50 = 77 points.
func finishedRoundMatch(scores ...int) Match {
	players := []Player{{ID: 0, Name: "A"}, {ID: 1, Name: "B"}, {ID: 2, Name: "C"}}
	for i, s := range scores {
		players[i].Score = s
	}
	r := testRound(Numbered(ColorRed, 5),
		[]Card{},
		[]Card{Skip(ColorRed), Numbered(ColorBlue, 7)},
		[]Card{Wild()},
	)
	return Match{Players: players, Rounds: []Round{r}}
}

func TestFinishRound_ScoresAndDealsNextRound(t *testing.T) {
	m := finishedRoundMatch(100, 40, 0)

	next, events := m.FinishRound(newRNG(1))
	assert.Equal(t, 177, next.Players[0].Score)
	assert.Equal(t, 40, next.Players[1].Score)
	assert.Equal(t, 0, next.Players[2].Score)
	assert.False(t, next.Finished)
	assert.Nil(t, next.Winner)

	require.Len(t, next.Rounds, 2)
	for seat, hand := range next.Round().Hands {
		assert.Len(t, hand, HandSize, "seat %d", seat)
	}
	assert.Equal(t, DeckSize, next.Round().CardCount())

	finished, ok := FindEvent(events, EvtRoundFinished)
	require.True(t, ok)
	assert.Equal(t, 0, finished.Seat)
	assert.Equal(t, 77, finished.Points)

	assert.Equal(t, 100, m.Players[0].Score, "input match must not change")
	assert.Len(t, m.Rounds, 1)
}

func TestFinishRound_FinishesMatchAtWinningScore(t *testing.T) {
	m := finishedRoundMatch(450, 490, 10)

	next, events := m.FinishRound(newRNG(1))
	assert.True(t, next.Finished)
	require.NotNil(t, next.Winner)
	assert.Equal(t, "A", next.Winner.Name)
	assert.Equal(t, 527, next.Winner.Score)
	assert.Len(t, next.Rounds, 1, "no round starts after the match ends")
	assert.True(t, ContainsEvent(events, EvtMatchFinished))

	again, events := next.FinishRound(newRNG(1))
	assert.Equal(t, next, again)
	assert.Nil(t, events)
}

func TestFinishRound_NoopWhileRoundInProgress(t *testing.T) {
	m, err := NewMatch([]string{"A", "B"}, newRNG(5))
	require.NoError(t, err)

	next, events := m.FinishRound(newRNG(1))
	assert.Equal(t, m, next)
	assert.Nil(t, events)
}
