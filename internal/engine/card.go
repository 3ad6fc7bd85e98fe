package engine

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Color string

const (
	ColorNone   Color = ""
	ColorRed    Color = "RED"
	ColorBlue   Color = "BLUE"
	ColorGreen  Color = "GREEN"
	ColorYellow Color = "YELLOW"
)

var Colors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

func (c Color) Valid() bool {
	switch c {
	case ColorRed, ColorBlue, ColorGreen, ColorYellow:
		return true
	}
	return false
}

type Kind string

const (
	KindNumbered     Kind = "NUMBERED"
	KindSkip         Kind = "SKIP"
	KindReverse      Kind = "REVERSE"
	KindDrawTwo      Kind = "DRAW"
	KindWild         Kind = "WILD"
	KindWildDrawFour Kind = "WILD DRAW"
)

var ErrInvalidCard = errors.New("invalid card")

// Card is an immutable UNO card. The zero Card is "no card" and is only
// ever seen as the top of an empty discard pile.
//
// Fields are unexported so that a card can only be built through the
// constructors below: a numbered card always has a color and a digit,
// action cards always have a color, and wild cards carry a color only
// once one has been chosen.
type Card struct {
	kind  Kind
	color Color
	value int
}

func Numbered(c Color, value int) Card {
	if !c.Valid() || value < 0 || value > 9 {
		panic(fmt.Sprintf("engine: invalid numbered card %s %d", c, value))
	}
	return Card{kind: KindNumbered, color: c, value: value}
}

func Skip(c Color) Card    { return colored(KindSkip, c) }
func Reverse(c Color) Card { return colored(KindReverse, c) }
func DrawTwo(c Color) Card { return colored(KindDrawTwo, c) }

func Wild() Card         { return Card{kind: KindWild} }
func WildDrawFour() Card { return Card{kind: KindWildDrawFour} }

func colored(k Kind, c Color) Card {
	if !c.Valid() {
		panic(fmt.Sprintf("engine: invalid %s card color %q", k, c))
	}
	return Card{kind: k, color: c}
}

// NewCard validates an arbitrary (kind, color, value) triple. It is the
// only way decoded data becomes a Card.
func NewCard(kind Kind, color Color, value int) (Card, error) {
	switch kind {
	case KindNumbered:
		if !color.Valid() || value < 0 || value > 9 {
			return Card{}, fmt.Errorf("%w: %s %q %d", ErrInvalidCard, kind, color, value)
		}
		return Card{kind: kind, color: color, value: value}, nil
	case KindSkip, KindReverse, KindDrawTwo:
		if !color.Valid() {
			return Card{}, fmt.Errorf("%w: %s %q", ErrInvalidCard, kind, color)
		}
		return Card{kind: kind, color: color}, nil
	case KindWild, KindWildDrawFour:
		if color != ColorNone && !color.Valid() {
			return Card{}, fmt.Errorf("%w: %s %q", ErrInvalidCard, kind, color)
		}
		return Card{kind: kind, color: color}, nil
	default:
		return Card{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidCard, kind)
	}
}

func (c Card) Kind() Kind   { return c.kind }
func (c Card) Color() Color { return c.color }

// Value is the digit of a numbered card and 0 for every other kind.
func (c Card) Value() int { return c.value }

func (c Card) IsZero() bool { return c.kind == "" }

func (c Card) IsWild() bool { return c.kind == KindWild || c.kind == KindWildDrawFour }

// Points is the card's worth when left in an opponent's hand at the end
// of a round.
func (c Card) Points() int {
	switch c.kind {
	case KindNumbered:
		return c.value
	case KindSkip, KindReverse, KindDrawTwo:
		return 20
	case KindWild, KindWildDrawFour:
		return 50
	}
	return 0
}

// WithColor stamps a chosen color on a wild card. Non-wild cards are
// returned unchanged.
func (c Card) WithColor(col Color) Card {
	if !c.IsWild() {
		return c
	}
	c.color = col
	return c
}

// Uncolored clears a previously chosen wild color, used when a played wild
// goes back into the draw pile.
func (c Card) Uncolored() Card { return c.WithColor(ColorNone) }

func (c Card) String() string {
	switch {
	case c.IsZero():
		return "<none>"
	case c.kind == KindNumbered:
		return fmt.Sprintf("%s %d", c.color, c.value)
	case c.color == ColorNone:
		return string(c.kind)
	default:
		return fmt.Sprintf("%s %s", c.color, c.kind)
	}
}

type cardJSON struct {
	Type  Kind  `json:"type"`
	Color Color `json:"color,omitempty"`
	Value *int  `json:"value,omitempty"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	out := cardJSON{Type: c.kind, Color: c.color}
	if c.kind == KindNumbered {
		v := c.value
		out.Value = &v
	}
	return json.Marshal(out)
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var in cardJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	value := 0
	if in.Value != nil {
		value = *in.Value
	}
	card, err := NewCard(in.Type, in.Color, value)
	if err != nil {
		return err
	}
	*c = card
	return nil
}
