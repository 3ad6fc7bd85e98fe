package types

import wire "github.com/DoyleJ11/uno-backend/pkg/types"

type ClientMessage struct {
	Type      string `json:"type"` // "Draw" | "Play" | "Skip"
	HandIndex int    `json:"hand_index,omitempty"`
	Color     string `json:"color,omitempty"`
}

type ServerMessage struct {
	Type    string       `json:"type"` // "StateSnapshot" | "Hand" | "Error"
	Version int          `json:"version,omitempty"`
	Kind    string       `json:"kind,omitempty"`
	Game    *wire.Game   `json:"game,omitempty"`
	Events  []wire.Event `json:"events,omitempty"`
	Hand    []wire.Card  `json:"hand,omitempty"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
}
