// Package session is the game store the API layers talk to. It finds the
// room that owns an id, hands it the request and turns the result into a
// wire snapshot. Every mutation of an id is applied by that id's room, one
// at a time; reads come from the room's last committed view.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/uno-backend/internal/engine"
	"github.com/DoyleJ11/uno-backend/internal/hub"
	"github.com/DoyleJ11/uno-backend/internal/notify"
	"github.com/DoyleJ11/uno-backend/internal/persist"
	"github.com/DoyleJ11/uno-backend/internal/room"
	"github.com/DoyleJ11/uno-backend/internal/types"
	wire "github.com/DoyleJ11/uno-backend/pkg/types"
)

const defaultTimeout = 5 * time.Second

type Options struct {
	// Timeout bounds every request that does not already carry a deadline.
	Timeout time.Duration
	// LobbyTTL is how long a pending lobby may sit without a join before
	// ReapStale closes it. Zero keeps lobbies forever.
	LobbyTTL time.Duration
	Now      func() time.Time
}

type Store struct {
	hub     *hub.Hub
	repo    persist.Repository
	log     *zap.Logger
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time
}

func New(ctx context.Context, repo persist.Repository, notifier room.Notifier, log *zap.Logger, opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	deps := room.Deps{Repo: repo, Notifier: notifier, Log: log.Named("room"), Now: opts.Now}
	factory := func(ctx context.Context, id string, initial room.State) *room.Room {
		return room.NewRoom(ctx, id, initial, deps)
	}
	return &Store{
		hub:     hub.NewHub(ctx, factory, log),
		repo:    repo,
		log:     log.Named("session"),
		timeout: opts.Timeout,
		ttl:     opts.LobbyTTL,
		now:     opts.Now,
	}
}

// Shutdown stops every room. Queued requests fail with ErrNotFound.
func (s *Store) Shutdown() {
	select {
	case s.hub.Inbox() <- hub.ShutdownHub{}:
	case <-s.hub.Done():
	}
	<-s.hub.Done()
}

// NewGame opens a lobby with creator as its first player.
func (s *Store) NewGame(ctx context.Context, creator string, capacity int) (wire.Game, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	created, err := ask(ctx, s.hub, func(reply chan hub.Created) hub.HubMsg {
		return hub.CreateRoom{
			Build: func(id string) (room.State, error) {
				l, err := engine.NewLobby(id, creator, capacity)
				return room.Pending(l), err
			},
			Reply: reply,
		}
	})
	if err != nil {
		return wire.Game{}, err
	}
	if created.Err != nil {
		return wire.Game{}, created.Err
	}

	rm := created.Room
	view, err := s.request(ctx, rm, func(reply chan room.Result) room.Msg {
		return room.Open{Ctx: ctx, Reply: reply}
	})
	if err != nil {
		s.discard(rm)
		return wire.Game{}, err
	}
	s.log.Info("lobby created",
		zap.String("game_id", rm.ID()),
		zap.String("player", creator),
		zap.Int("capacity", capacity),
	)
	return gameOf(view), nil
}

// Join adds player to a pending lobby. Joining a lobby twice is a no-op
// and so is a seated player joining their own started game. The lobby
// that receives its last player comes back as the new match.
func (s *Store) Join(ctx context.Context, id, player string) (wire.Game, error) {
	view, err := s.mutate(ctx, id, func(ctx context.Context, reply chan room.Result) room.Msg {
		return room.Join{Ctx: ctx, Player: player, Reply: reply}
	})
	if err != nil {
		return wire.Game{}, err
	}
	return gameOf(view), nil
}

func (s *Store) Draw(ctx context.Context, id, player string) (wire.Match, error) {
	return s.command(ctx, id, engine.Command{Type: engine.CmdDraw, Player: player})
}

// Play plays the card at handIndex. color is required for wild cards and
// ignored otherwise.
func (s *Store) Play(ctx context.Context, id, player string, handIndex int, color engine.Color) (wire.Match, error) {
	return s.command(ctx, id, engine.Command{Type: engine.CmdPlay, Player: player, HandIndex: handIndex, Color: color})
}

func (s *Store) Skip(ctx context.Context, id, player string) (wire.Match, error) {
	return s.command(ctx, id, engine.Command{Type: engine.CmdSkip, Player: player})
}

// Apply runs an already-built command, as the websocket layer does.
func (s *Store) Apply(ctx context.Context, id string, cmd engine.Command) (wire.Match, error) {
	return s.command(ctx, id, cmd)
}

func (s *Store) command(ctx context.Context, id string, cmd engine.Command) (wire.Match, error) {
	view, err := s.mutate(ctx, id, func(ctx context.Context, reply chan room.Result) room.Msg {
		return room.FromClient{Ctx: ctx, Cmd: cmd, Reply: reply}
	})
	if err != nil {
		return wire.Match{}, err
	}
	return types.MatchOf(view.ID, view.Match), nil
}

// Games lists every started match, finished ones included, ordered by id.
func (s *Store) Games(ctx context.Context) ([]wire.Match, error) {
	views, err := s.views(ctx)
	if err != nil {
		return nil, err
	}
	out := []wire.Match{}
	for _, v := range views {
		if v.Active() {
			out = append(out, types.MatchOf(v.ID, v.Match))
		}
	}
	return out, nil
}

func (s *Store) Game(ctx context.Context, id string) (wire.Match, error) {
	v, err := s.view(ctx, id)
	if err != nil {
		return wire.Match{}, err
	}
	if !v.Active() {
		return wire.Match{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return types.MatchOf(v.ID, v.Match), nil
}

// PendingGames lists every lobby still waiting for players, ordered by id.
func (s *Store) PendingGames(ctx context.Context) ([]wire.Lobby, error) {
	views, err := s.views(ctx)
	if err != nil {
		return nil, err
	}
	out := []wire.Lobby{}
	for _, v := range views {
		if v.Pending() {
			out = append(out, types.LobbyOf(v.Lobby))
		}
	}
	return out, nil
}

func (s *Store) PendingGame(ctx context.Context, id string) (wire.Lobby, error) {
	v, err := s.view(ctx, id)
	if err != nil {
		return wire.Lobby{}, err
	}
	if !v.Pending() {
		return wire.Lobby{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return types.LobbyOf(v.Lobby), nil
}

// Hand returns player's cards in the current round of match id. It is the
// only way to see a hand; snapshots and notifications carry counts only.
func (s *Store) Hand(ctx context.Context, id, player string) ([]wire.Card, error) {
	hand, _, err := s.HandAt(ctx, id, player)
	return hand, err
}

// HandAt is Hand plus the version of the state the hand was read from.
func (s *Store) HandAt(ctx context.Context, id, player string) ([]wire.Card, int, error) {
	v, err := s.view(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	if !v.Active() {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	hand, err := v.Match.Hand(player)
	if err != nil {
		return nil, 0, err
	}
	return types.CardsOf(hand), v.Version, nil
}

// Subscription streams every update of one game id, starting with its
// current state. C is closed when the room drops the subscriber or stops.
type Subscription struct {
	C     <-chan notify.Notification
	close func()
}

func (s *Subscription) Close() { s.close() }

func (s *Store) Subscribe(ctx context.Context, id, clientID string, buffer int) (*Subscription, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rm, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if buffer < 1 {
		buffer = 1
	}
	out := make(chan notify.Notification, buffer)
	if err := send(ctx, rm, room.Subscribe{ClientID: clientID, Outbox: out}); err != nil {
		return nil, err
	}
	return &Subscription{
		C: out,
		close: func() {
			select {
			case rm.Inbox() <- room.Unsubscribe{ClientID: clientID}:
			case <-rm.Done():
			}
		},
	}, nil
}

// Restore starts a room for everything in the repository. Ids that are
// already live are left alone.
func (s *Store) Restore(ctx context.Context) (int, error) {
	snap, err := s.repo.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", room.ErrStorage, err)
	}
	n := 0
	for _, l := range snap.Lobbies {
		if err := s.ensure(ctx, l.ID, room.Pending(l.Lobby).At(l.Version)); err != nil {
			return n, err
		}
		n++
	}
	for id, m := range snap.Matches {
		if err := s.ensure(ctx, id, room.Active(m.Match).At(m.Version)); err != nil {
			return n, err
		}
		n++
	}
	s.log.Info("restored games", zap.Int("lobbies", len(snap.Lobbies)), zap.Int("matches", len(snap.Matches)))
	return n, nil
}

func (s *Store) ensure(ctx context.Context, id string, state room.State) error {
	_, err := ask(ctx, s.hub, func(reply chan *room.Room) hub.HubMsg {
		return hub.EnsureRoom{ID: id, State: state, Reply: reply}
	})
	return err
}

// mutate sends one request to the room owning id and waits for its answer.
func (s *Store) mutate(ctx context.Context, id string, build func(context.Context, chan room.Result) room.Msg) (room.View, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rm, err := s.lookup(ctx, id)
	if err != nil {
		return room.View{}, err
	}
	return s.request(ctx, rm, func(reply chan room.Result) room.Msg { return build(ctx, reply) })
}

// request hands msg to rm and waits for the outcome. Only the hand-off is
// bounded by ctx: a queued request is always answered, and an answer of
// Timeout means nothing was applied.
func (s *Store) request(ctx context.Context, rm *room.Room, build func(chan room.Result) room.Msg) (room.View, error) {
	reply := make(chan room.Result, 1)
	if err := send(ctx, rm, build(reply)); err != nil {
		return room.View{}, err
	}
	select {
	case res := <-reply:
		return unwrap(res)
	case <-rm.Done():
	}
	// A room replies before it stops, so a ready reply wins.
	select {
	case res := <-reply:
		return unwrap(res)
	default:
		return room.View{}, fmt.Errorf("%w: %s", ErrNotFound, rm.ID())
	}
}

func unwrap(res room.Result) (room.View, error) {
	if errors.Is(res.Err, context.DeadlineExceeded) || errors.Is(res.Err, context.Canceled) {
		return res.View, fmt.Errorf("%w: %v", ErrTimeout, res.Err)
	}
	return res.View, res.Err
}

func send(ctx context.Context, rm *room.Room, msg room.Msg) error {
	select {
	case rm.Inbox() <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case <-rm.Done():
		return fmt.Errorf("%w: %s", ErrNotFound, rm.ID())
	}
}

func (s *Store) lookup(ctx context.Context, id string) (*room.Room, error) {
	rm, err := ask(ctx, s.hub, func(reply chan *room.Room) hub.HubMsg {
		return hub.GetRoom{ID: id, Reply: reply}
	})
	if err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rm, nil
}

func (s *Store) view(ctx context.Context, id string) (room.View, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rm, err := s.lookup(ctx, id)
	if err != nil {
		return room.View{}, err
	}
	v := rm.Current()
	if v.Phase == room.PhaseClosed {
		return room.View{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v, nil
}

func (s *Store) views(ctx context.Context) ([]room.View, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rooms, err := ask(ctx, s.hub, func(reply chan []*room.Room) hub.HubMsg {
		return hub.ListRooms{Reply: reply}
	})
	if err != nil {
		return nil, err
	}
	out := make([]room.View, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Current())
	}
	return out, nil
}

// discard forgets a room that never made it into the repository.
func (s *Store) discard(rm *room.Room) {
	select {
	case s.hub.Inbox() <- hub.RemoveRoom{ID: rm.ID()}:
	case <-s.hub.Done():
	}
	select {
	case rm.Inbox() <- room.Shutdown{}:
	case <-rm.Done():
	}
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ask[T any](ctx context.Context, h *hub.Hub, build func(chan T) hub.HubMsg) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case h.Inbox() <- build(reply):
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case <-h.Done():
		return zero, ErrNotFound
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case <-h.Done():
		return zero, ErrNotFound
	}
}

func gameOf(v room.View) wire.Game {
	if v.Active() {
		return types.GameOfMatch(v.ID, v.Match)
	}
	return types.GameOfLobby(v.Lobby)
}
