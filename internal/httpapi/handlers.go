package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/uno-backend/internal/engine"
	"github.com/DoyleJ11/uno-backend/internal/session"
	wire "github.com/DoyleJ11/uno-backend/pkg/types"
)

// Store is the game store as the HTTP layer sees it.
type Store interface {
	NewGame(ctx context.Context, creator string, capacity int) (wire.Game, error)
	Join(ctx context.Context, id, player string) (wire.Game, error)
	Draw(ctx context.Context, id, player string) (wire.Match, error)
	Play(ctx context.Context, id, player string, handIndex int, color engine.Color) (wire.Match, error)
	Skip(ctx context.Context, id, player string) (wire.Match, error)
	Games(ctx context.Context) ([]wire.Match, error)
	Game(ctx context.Context, id string) (wire.Match, error)
	PendingGames(ctx context.Context) ([]wire.Lobby, error)
	PendingGame(ctx context.Context, id string) (wire.Lobby, error)
	Hand(ctx context.Context, id, player string) ([]wire.Card, error)
}

// retryAfter is sent with Timeout and Storage errors, in seconds.
const retryAfter = "1"

type newGameRequest struct {
	Creator         string `json:"creator"`
	NumberOfPlayers int    `json:"number_of_players"`
}

type playerRequest struct {
	Player string `json:"player"`
}

type playRequest struct {
	Player    string `json:"player"`
	HandIndex *int   `json:"hand_index"`
	Color     string `json:"color,omitempty"`
}

func CreateGame(s Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req newGameRequest
		if !decode(w, r, &req) {
			return
		}
		game, err := s.NewGame(r.Context(), req.Creator, req.NumberOfPlayers)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, game)
	}
}

func JoinGame(s Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playerRequest
		if !decode(w, r, &req) {
			return
		}
		game, err := s.Join(r.Context(), chi.URLParam(r, "id"), req.Player)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, game)
	}
}

func DrawCard(s Store, log *zap.Logger) http.HandlerFunc {
	return playerCommand(log, s.Draw)
}

func SkipTurn(s Store, log *zap.Logger) http.HandlerFunc {
	return playerCommand(log, s.Skip)
}

func playerCommand(log *zap.Logger, do func(ctx context.Context, id, player string) (wire.Match, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playerRequest
		if !decode(w, r, &req) {
			return
		}
		match, err := do(r.Context(), chi.URLParam(r, "id"), req.Player)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, match)
	}
}

func PlayCard(s Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playRequest
		if !decode(w, r, &req) {
			return
		}
		if req.HandIndex == nil {
			writeJSON(w, http.StatusBadRequest, wire.Error{Code: "BadRequest", Message: "hand_index is required"})
			return
		}
		color := engine.Color(strings.ToUpper(req.Color))
		match, err := s.Play(r.Context(), chi.URLParam(r, "id"), req.Player, *req.HandIndex, color)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, match)
	}
}

func ListGames(s Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games, err := s.Games(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, games)
	}
}

func GetGame(s Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		match, err := s.Game(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, match)
	}
}

func ListPending(s Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobbies, err := s.PendingGames(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, lobbies)
	}
}

func GetPending(s Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lobby, err := s.PendingGame(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, lobby)
	}
}

func GetHand(s Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := r.URL.Query().Get("player")
		if player == "" {
			writeJSON(w, http.StatusBadRequest, wire.Error{Code: "BadRequest", Message: "missing player"})
			return
		}
		hand, err := s.Hand(r.Context(), chi.URLParam(r, "id"), player)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, hand)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, wire.Error{Code: "BadRequest", Message: "bad json: " + err.Error()})
		return false
	}
	return true
}

// Status returns the HTTP status for an error kind.
func Status(k session.Kind) int {
	switch k {
	case session.KindNotFound:
		return http.StatusNotFound
	case session.KindOutOfTurn, session.KindLobbyFull, session.KindMatchFinished, session.KindEmptyDrawPile:
		return http.StatusConflict
	case session.KindInvalidIndex, session.KindIllegalMove, session.KindInvalidColor,
		session.KindInvalidCapacity, session.KindInvalidName:
		return http.StatusUnprocessableEntity
	case session.KindTimeout:
		return http.StatusGatewayTimeout
	case session.KindStorage:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := session.Classify(err)
	status := Status(kind)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	if kind.Transient() {
		w.Header().Set("Retry-After", retryAfter)
	}
	writeJSON(w, status, wire.Error{Code: string(kind), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
