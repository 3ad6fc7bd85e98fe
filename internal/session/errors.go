package session

import (
	"context"
	"errors"

	"github.com/DoyleJ11/uno-backend/internal/engine"
	"github.com/DoyleJ11/uno-backend/internal/room"
)

var ErrNotFound = errors.New("game not found")
var ErrTimeout = errors.New("request timed out")

// Kind is the stable, client-facing name of an error.
type Kind string

const (
	KindNotFound        Kind = "NotFound"
	KindOutOfTurn       Kind = "OutOfTurn"
	KindInvalidIndex    Kind = "InvalidIndex"
	KindIllegalMove     Kind = "IllegalMove"
	KindLobbyFull       Kind = "LobbyFull"
	KindInvalidColor    Kind = "InvalidColor"
	KindInvalidCapacity Kind = "InvalidCapacity"
	KindInvalidName     Kind = "InvalidName"
	KindMatchFinished   Kind = "MatchFinished"
	KindEmptyDrawPile   Kind = "EmptyDrawPile"
	KindTimeout         Kind = "Timeout"
	KindStorage         Kind = "Storage"
	KindInternal        Kind = "Internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{room.ErrClosed, KindNotFound},
	{room.ErrNotActive, KindNotFound},
	{room.ErrNotPending, KindNotFound},
	{engine.ErrUnknownPlayer, KindNotFound},
	{engine.ErrOutOfTurn, KindOutOfTurn},
	{engine.ErrInvalidIndex, KindInvalidIndex},
	{engine.ErrIllegalMove, KindIllegalMove},
	{engine.ErrRoundOver, KindIllegalMove},
	{engine.ErrUnsupportedCommand, KindIllegalMove},
	{engine.ErrLobbyFull, KindLobbyFull},
	{engine.ErrInvalidColor, KindInvalidColor},
	{engine.ErrInvalidCapacity, KindInvalidCapacity},
	{engine.ErrInvalidName, KindInvalidName},
	{engine.ErrMatchFinished, KindMatchFinished},
	{engine.ErrEmptyDrawPile, KindEmptyDrawPile},
	{ErrTimeout, KindTimeout},
	{context.DeadlineExceeded, KindTimeout},
	{context.Canceled, KindTimeout},
	{room.ErrStorage, KindStorage},
}

// Classify maps any error returned by a Store to its Kind. Unknown errors
// are Internal.
func Classify(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Transient reports whether retrying the same request later may succeed.
func (k Kind) Transient() bool {
	return k == KindTimeout || k == KindStorage
}
