package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/uno-backend/internal/engine"
	"github.com/DoyleJ11/uno-backend/internal/notify"
	"github.com/DoyleJ11/uno-backend/internal/persist"
	"github.com/DoyleJ11/uno-backend/internal/types"
)

var ErrStorage = errors.New("storage failure")
var ErrClosed = errors.New("room closed")
var ErrNotActive = errors.New("game has not started")
var ErrNotPending = errors.New("game already started")
var ErrChanged = errors.New("game changed since it was read")

type Phase string

const (
	PhasePending Phase = "pending"
	PhaseActive  Phase = "active"
	PhaseClosed  Phase = "closed"
)

// State is what a room holds: a lobby while pending, a match once active.
// Version counts the accepted changes of the id and is stored with it, so
// it keeps growing across restarts.
type State struct {
	Phase   Phase
	Lobby   engine.Lobby
	Match   engine.Match
	Version int
}

func Pending(l engine.Lobby) State              { return State{Phase: PhasePending, Lobby: l} }
func Active(m engine.Match) State               { return State{Phase: PhaseActive, Match: m} }
func (s State) At(version int) State            { s.Version = version; return s }
func (s State) Pending() bool                   { return s.Phase == PhasePending }
func (s State) Active() bool                    { return s.Phase == PhaseActive }
func (s State) HasPlayer(name string) (ok bool) { _, ok = s.Match.Seat(name); return }

// View is a consistent snapshot of a room.
type View struct {
	ID        string
	UpdatedAt time.Time
	State
}

type Msg interface{ isRoomMsg() }

// Open persists and announces a freshly created lobby.
type Open struct {
	Ctx   context.Context
	Reply chan Result
}

func (Open) isRoomMsg() {}

type Join struct {
	Ctx    context.Context
	Player string
	Reply  chan Result
}

func (Join) isRoomMsg() {}

type FromClient struct {
	Ctx   context.Context
	Cmd   engine.Command
	Reply chan Result
}

func (FromClient) isRoomMsg() {}

type Subscribe struct {
	ClientID string
	Outbox   chan notify.Notification // where this client wants to receive updates
}

func (Subscribe) isRoomMsg() {}

type Unsubscribe struct{ ClientID string }

func (Unsubscribe) isRoomMsg() {}

// Close removes a pending lobby for good, as long as it is still at
// Version. Started games cannot be closed.
type Close struct {
	Ctx     context.Context
	Version int
	Reply   chan Result
}

func (Close) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type Result struct {
	View View
	Err  error
}

// Notifier receives a copy of every accepted change. It must not block.
type Notifier interface {
	Notify(n notify.Notification)
}

type Deps struct {
	Repo     persist.Repository
	Notifier Notifier
	Log      *zap.Logger
	Now      func() time.Time
}

// Room owns one game id. All mutations of that id go through its inbox
// and are applied one at a time by loop; the latest View is also
// published through an atomic pointer so reads never wait behind writes.
type Room struct {
	id      string
	inbox   chan Msg
	state   State
	clients map[string]chan notify.Notification
	current atomic.Pointer[View]
	rng     *rand.Rand
	deps    Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewRoom(parent context.Context, id string, initial State, deps Deps) *Room {
	ctx, cancel := context.WithCancel(parent)
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	r := &Room{
		id:      id,
		inbox:   make(chan Msg, 64), // Small buffer
		state:   initial,
		clients: make(map[string]chan notify.Notification),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		deps:    deps,
		log:     deps.Log.With(zap.String("game_id", id)),
		ctx:     ctx,
		cancel:  cancel,
	}
	r.publishView(deps.Now())

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Current returns the latest committed view without going through the
// inbox.
func (r *Room) Current() View { return *r.current.Load() }

// Expose the inbox so tests or the WS layer can send messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Open:
				msg.Reply <- r.open(msg.Ctx)

			case Join:
				msg.Reply <- r.join(msg.Ctx, msg.Player)

			case FromClient:
				msg.Reply <- r.apply(msg.Ctx, msg.Cmd)

			case Subscribe:
				// Register client + send current snapshot immediately
				r.clients[msg.ClientID] = msg.Outbox
				r.send(msg.ClientID, msg.Outbox, r.notification(r.kind(), nil))

			case Unsubscribe:
				if ch, ok := r.clients[msg.ClientID]; ok {
					close(ch)
					delete(r.clients, msg.ClientID)
				}

			case Close:
				res := r.close(msg.Ctx, msg.Version)
				msg.Reply <- res
				if res.Err == nil {
					r.shutdown()
					return
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) open(ctx context.Context) Result {
	if !r.state.Pending() {
		return r.fail(ErrNotPending)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}
	if err := r.deps.Repo.SaveLobby(ctx, r.state.Lobby, r.state.Version+1); err != nil {
		return r.fail(storageErr(err))
	}
	r.commit(r.state, notify.KindLobbyUpdated, nil)
	return r.ok()
}

func (r *Room) join(ctx context.Context, player string) Result {
	switch r.state.Phase {
	case PhaseClosed:
		return r.fail(ErrClosed)
	case PhaseActive:
		if r.state.HasPlayer(player) {
			return r.ok()
		}
		return r.fail(engine.ErrLobbyFull)
	}

	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}
	next, changed, err := r.state.Lobby.Join(player)
	if err != nil {
		return r.fail(err)
	}
	if !changed {
		return r.ok()
	}

	if !next.Full() {
		if err := r.deps.Repo.SaveLobby(ctx, next, r.state.Version+1); err != nil {
			return r.fail(storageErr(err))
		}
		r.commit(Pending(next), notify.KindLobbyUpdated, nil)
		return r.ok()
	}

	match, err := engine.NewMatch(next.Joined, r.rng)
	if err != nil {
		return r.fail(err)
	}
	// Two versions: the lobby going away, then the match appearing.
	if err := r.deps.Repo.PromoteLobby(ctx, r.id, match, r.state.Version+2); err != nil {
		return r.fail(storageErr(err))
	}

	// Observers of the lobby see it go away before the match appears.
	r.state.Version++
	r.emit(notify.Notification{
		Kind:    notify.KindLobbyRemoved,
		GameID:  r.id,
		Version: r.state.Version,
		Game:    types.GameOfLobby(next),
	})
	r.commit(Active(match), notify.KindMatchUpdated, nil)
	r.log.Info("match started", zap.Strings("players", next.Joined))
	return r.ok()
}

func (r *Room) apply(ctx context.Context, cmd engine.Command) Result {
	switch r.state.Phase {
	case PhaseClosed:
		return r.fail(ErrClosed)
	case PhasePending:
		return r.fail(ErrNotActive)
	}
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	events, next, err := engine.Apply(r.state.Match, cmd, r.rng)
	if err != nil {
		return r.fail(err)
	}
	if err := r.deps.Repo.SaveMatch(ctx, r.id, next, r.state.Version+1); err != nil {
		return r.fail(storageErr(err))
	}

	r.commit(Active(next), notify.KindMatchUpdated, events)
	if next.Finished {
		r.log.Info("match finished",
			zap.String("winner", next.Winner.Name),
			zap.Int("score", next.Winner.Score),
			zap.Int("rounds", len(next.Rounds)),
		)
	}
	return r.ok()
}

func (r *Room) close(ctx context.Context, version int) Result {
	if !r.state.Pending() {
		return r.fail(ErrNotPending)
	}
	if version != r.state.Version {
		return r.fail(ErrChanged)
	}
	if err := r.deps.Repo.DeleteLobby(ctx, r.state.Lobby.ID); err != nil {
		return r.fail(storageErr(err))
	}
	lobby := r.state.Lobby
	r.state = State{Phase: PhaseClosed, Lobby: lobby, Version: r.state.Version + 1}
	r.publishView(r.deps.Now())
	r.emit(notify.Notification{
		Kind:    notify.KindLobbyRemoved,
		GameID:  r.id,
		Version: r.state.Version,
		Game:    types.GameOfLobby(lobby),
	})
	r.log.Info("lobby closed")
	return r.ok()
}

// commit swaps in the new state and tells everyone about it. It is only
// reached after the repository accepted the new state.
func (r *Room) commit(next State, kind notify.Kind, events []engine.Event) {
	next.Version = r.state.Version + 1
	r.state = next
	r.publishView(r.deps.Now())
	r.emit(r.notification(kind, events))
}

func (r *Room) kind() notify.Kind {
	switch r.state.Phase {
	case PhaseActive:
		return notify.KindMatchUpdated
	case PhaseClosed:
		return notify.KindLobbyRemoved
	}
	return notify.KindLobbyUpdated
}

func (r *Room) notification(kind notify.Kind, events []engine.Event) notify.Notification {
	n := notify.Notification{Kind: kind, GameID: r.id, Version: r.state.Version}
	if r.state.Active() {
		n.Game = types.GameOfMatch(r.id, r.state.Match)
		n.Events = types.EventsOf(r.state.Match, events)
	} else {
		n.Game = types.GameOfLobby(r.state.Lobby)
	}
	return n
}

func (r *Room) emit(n notify.Notification) {
	if r.deps.Notifier != nil {
		r.deps.Notifier.Notify(n)
	}
	r.broadcast(n)
}

func (r *Room) publishView(at time.Time) {
	r.current.Store(&View{ID: r.id, UpdatedAt: at, State: r.state})
}

// storageErr reports a failed write. A write cut short by the caller's
// context is the caller's timeout, not a storage fault.
func storageErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func (r *Room) ok() Result { return Result{View: r.Current()} }

func (r *Room) fail(err error) Result { return Result{View: r.Current(), Err: err} }

func (r *Room) shutdown() {
	for id, ch := range r.clients {
		close(ch) // Tell client no more updates
		delete(r.clients, id)
	}
	r.cancel()
}

func (r *Room) broadcast(n notify.Notification) {
	for id, ch := range r.clients {
		r.send(id, ch, n)
	}
}

func (r *Room) send(id string, ch chan notify.Notification, n notify.Notification) {
	select {
	case ch <- n:
		//ok
	default:
		// Client is slow/full - drop them.
		close(ch)
		delete(r.clients, id)
		r.log.Debug("dropped slow client", zap.String("client_id", id))
	}
}
