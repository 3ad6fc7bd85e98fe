package types

// Client -> Server (websocket, /ws?id=<game id>&player=<name>)
// Draw: {}
//
// Play:
//   hand_index: number
//   color: "RED" | "BLUE" | "GREEN" | "YELLOW" // wild cards only
//
// Skip: {}

// Server -> Client
// StateSnapshot:
//   version: number
//   kind: "lobby-updated" | "lobby-removed" | "match-updated"
//   game: Lobby | Match
//   events: Event[] // match updates only
//
// Hand (only to the connection that named a player):
//   hand: Card[]
//
// Error:
//   code: string
//   message: string

// Error is the body of every failed request, HTTP or websocket.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
