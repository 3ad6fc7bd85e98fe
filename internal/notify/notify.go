// Package notify fans game updates out to observers outside the process.
package notify

import (
	"context"

	wire "github.com/DoyleJ11/uno-backend/pkg/types"
)

type Kind string

const (
	KindLobbyUpdated Kind = "lobby-updated"
	KindLobbyRemoved Kind = "lobby-removed"
	KindMatchUpdated Kind = "match-updated"
)

// Notification is one observable change of one game id. Version increases
// by one with every accepted mutation of that id.
type Notification struct {
	Kind    Kind         `json:"kind"`
	GameID  string       `json:"id"`
	Version int          `json:"version"`
	Game    wire.Game    `json:"game"`
	Events  []wire.Event `json:"events,omitempty"`
}

// Sink delivers a notification somewhere. Publish may block and fail;
// callers go through a Dispatcher so neither affects game state.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}
