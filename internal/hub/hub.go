package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/uno-backend/internal/room"
)

const (
	codeLength  = 6
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxAttempts = 16
)

var ErrNoFreeCode = errors.New("could not allocate a game id")

// Factory starts the actor for one id. The hub passes its own context so
// every room stops with it.
type Factory func(ctx context.Context, id string, initial room.State) *room.Room

type HubMsg interface{ isHubMsg() }

// CreateRoom allocates a fresh id, asks Build for the initial state under
// that id and starts a room for it.
type CreateRoom struct {
	Build func(id string) (room.State, error)
	Reply chan Created
}

type Created struct {
	Room *room.Room
	Err  error
}

type GetRoom struct {
	ID    string
	Reply chan *room.Room
}

type EnsureRoom struct {
	ID    string
	State room.State // only used if creation happens
	Reply chan *room.Room
}

// ListRooms replies with every live room ordered by id.
type ListRooms struct {
	Reply chan []*room.Room
}

type RemoveRoom struct {
	ID string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	factory Factory
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, factory Factory, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		factory: factory,
		log:     log.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg.Build)

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // May be nil

			case EnsureRoom:
				if rm := h.rooms[msg.ID]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := h.factory(h.ctx, msg.ID, msg.State)
				h.rooms[msg.ID] = rm
				msg.Reply <- rm

			case ListRooms:
				out := make([]*room.Room, 0, len(h.rooms))
				for _, rm := range h.rooms {
					out = append(out, rm)
				}
				slices.SortFunc(out, func(a, b *room.Room) int { return strings.Compare(a.ID(), b.ID()) })
				msg.Reply <- out

			case RemoveRoom:
				delete(h.rooms, msg.ID)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(build func(id string) (room.State, error)) Created {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		id, err := GenerateCode()
		if err != nil {
			return Created{Err: err}
		}
		if h.rooms[id] != nil {
			h.log.Debug("collision on code, regenerating", zap.String("game_id", id))
			continue
		}
		state, err := build(id)
		if err != nil {
			return Created{Err: err}
		}
		rm := h.factory(h.ctx, id, state)
		h.rooms[id] = rm
		return Created{Room: rm}
	}
	return Created{Err: ErrNoFreeCode}
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		select {
		case rm.Inbox() <- room.Shutdown{}:
		case <-rm.Done():
		}
	}
	clear(h.rooms)
	h.cancel()
}

func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}
