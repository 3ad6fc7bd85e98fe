package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/uno-backend/internal/engine"
	"github.com/DoyleJ11/uno-backend/internal/notify"
	"github.com/DoyleJ11/uno-backend/internal/session"
	"github.com/DoyleJ11/uno-backend/internal/types"
	wire "github.com/DoyleJ11/uno-backend/pkg/types"
)

const (
	outboxSize   = 8
	writeTimeout = 3 * time.Second
)

// Store is what a connection needs from the game store.
type Store interface {
	Subscribe(ctx context.Context, id, clientID string, buffer int) (*session.Subscription, error)
	Apply(ctx context.Context, id string, cmd engine.Command) (wire.Match, error)
	HandAt(ctx context.Context, id, player string) ([]wire.Card, int, error)
}

type Options struct {
	// OriginPatterns are passed to websocket.Accept. Empty allows same
	// origin only.
	OriginPatterns []string
	// RequestTimeout bounds each command sent by the client.
	RequestTimeout time.Duration
}

// Handler streams one game to one client: /ws?id=<game id>&player=<name>.
// Without a player the connection only watches. With one it also gets
// that player's hand after every match update and may send commands.
func Handler(s Store, log *zap.Logger, opts Options) http.HandlerFunc {
	log = log.Named("ws")
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}
		player := strings.TrimSpace(r.URL.Query().Get("player"))
		clientID := uuid.NewString()

		sub, err := s.Subscribe(r.Context(), id, clientID, outboxSize)
		if err != nil {
			if session.Classify(err) == session.KindNotFound {
				http.Error(w, "game not found", http.StatusNotFound)
				return
			}
			http.Error(w, "could not subscribe", http.StatusServiceUnavailable)
			return
		}
		defer sub.Close()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log := log.With(zap.String("game_id", id), zap.String("client_id", clientID), zap.String("player", player))
		log.Debug("client connected")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for n := range sub.C {
				if err := write(writeCtx, conn, snapshotMessage(n)); err != nil {
					return
				}
				if player == "" || n.Game.Match == nil {
					continue
				}
				// The hand may already be newer than n; label it with its own version.
				hand, version, err := s.HandAt(writeCtx, id, player)
				if err != nil {
					// Watching a game one is not seated in.
					continue
				}
				if err := write(writeCtx, conn, types.ServerMessage{Type: "Hand", Version: version, Hand: hand}); err != nil {
					return
				}
			}
			// The room dropped us or went away.
			conn.Close(websocket.StatusGoingAway, "stream ended")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						log.Debug("read failed", zap.Error(err))
					}
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(r.Context(), conn, errorMessage("BadRequest", "bad json"))
				continue
			}
			if player == "" {
				_ = write(r.Context(), conn, errorMessage("BadRequest", "connect with a player to send commands"))
				continue
			}
			cmd, ok := toEngineCommand(cm, player)
			if !ok {
				_ = write(r.Context(), conn, errorMessage("BadRequest", "unknown type"))
				continue
			}

			ctx, cancel := context.WithTimeout(r.Context(), opts.RequestTimeout)
			_, err = s.Apply(ctx, id, cmd)
			cancel()
			if err != nil {
				// Success needs no reply: the update arrives on the stream.
				_ = write(r.Context(), conn, errorMessage(string(session.Classify(err)), err.Error()))
			}
		}
	}
}

func toEngineCommand(m types.ClientMessage, player string) (engine.Command, bool) {
	switch m.Type {
	case "Draw":
		return engine.Command{Type: engine.CmdDraw, Player: player}, true
	case "Play":
		return engine.Command{
			Type:      engine.CmdPlay,
			Player:    player,
			HandIndex: m.HandIndex,
			Color:     engine.Color(strings.ToUpper(m.Color)),
		}, true
	case "Skip":
		return engine.Command{Type: engine.CmdSkip, Player: player}, true
	default:
		return engine.Command{}, false
	}
}

func snapshotMessage(n notify.Notification) types.ServerMessage {
	game := n.Game
	return types.ServerMessage{
		Type:    "StateSnapshot",
		Version: n.Version,
		Kind:    string(n.Kind),
		Game:    &game,
		Events:  n.Events,
	}
}

func errorMessage(code, message string) types.ServerMessage {
	return types.ServerMessage{Type: "Error", Code: code, Message: message}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
