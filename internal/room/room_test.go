package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/uno-backend/internal/engine"
	"github.com/DoyleJ11/uno-backend/internal/notify"
	"github.com/DoyleJ11/uno-backend/internal/persist"
)

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (n *recordingNotifier) Notify(note notify.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note)
}

func (n *recordingNotifier) all() []notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Notification(nil), n.got...)
}

// failingRepo accepts lobbies but refuses every match write.
type failingRepo struct {
	*persist.Memory
}

func (failingRepo) SaveMatch(context.Context, string, engine.Match, int) error {
	return errors.New("disk full")
}

// helper: receive one notification with a timeout so tests never hang
func recvNote(t *testing.T, ch <-chan notify.Notification, within time.Duration) notify.Notification {
	t.Helper()
	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return n
	case <-time.After(within):
		t.Fatalf("timed out waiting for notification")
		return notify.Notification{} // unreachable
	}
}

func recvNoNote(t *testing.T, ch <-chan notify.Notification, within time.Duration) {
	t.Helper()
	select {
	case n, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no notification within %v, but got: %+v", within, n)
	case <-time.After(within):
	}
}

func ask(t *testing.T, r *Room, build func(reply chan Result) Msg) Result {
	t.Helper()
	reply := make(chan Result, 1)
	r.Inbox() <- build(reply)
	select {
	case res := <-reply:
		return res
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for reply")
		return Result{} // unreachable
	}
}

func join(t *testing.T, r *Room, player string) Result {
	t.Helper()
	return ask(t, r, func(reply chan Result) Msg {
		return Join{Ctx: context.Background(), Player: player, Reply: reply}
	})
}

func play(t *testing.T, r *Room, cmd engine.Command) Result {
	t.Helper()
	return ask(t, r, func(reply chan Result) Msg {
		return FromClient{Ctx: context.Background(), Cmd: cmd, Reply: reply}
	})
}

func newPendingRoom(t *testing.T, ctx context.Context, repo persist.Repository, n Notifier, capacity int) *Room {
	t.Helper()
	l, err := engine.NewLobby("ABC123", "alice", capacity)
	if err != nil {
		t.Fatalf("NewLobby: %v", err)
	}
	r := NewRoom(ctx, "ABC123", Pending(l), Deps{Repo: repo, Notifier: n})
	res := ask(t, r, func(reply chan Result) Msg { return Open{Ctx: context.Background(), Reply: reply} })
	if res.Err != nil {
		t.Fatalf("Open: %v", res.Err)
	}
	return r
}

// Alice to move with a red seven on a red five; Bob holds only yellows.
func knownMatch() engine.Match {
	return engine.Match{
		Players: []engine.Player{{ID: 0, Name: "alice"}, {ID: 1, Name: "bob"}},
		Rounds: []engine.Round{{
			DrawPile:    []engine.Card{engine.Numbered(engine.ColorGreen, 1), engine.Numbered(engine.ColorGreen, 2)},
			DiscardPile: []engine.Card{engine.Numbered(engine.ColorRed, 5)},
			Hands: [][]engine.Card{
				{engine.Numbered(engine.ColorRed, 7), engine.Numbered(engine.ColorBlue, 2)},
				{engine.Numbered(engine.ColorYellow, 3), engine.Numbered(engine.ColorYellow, 4)},
			},
			Current:   0,
			Direction: 1,
		}},
	}
}

func TestRoom_OpenPersistsAndAnnounces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := persist.NewMemory()
	n := &recordingNotifier{}
	r := newPendingRoom(t, ctx, repo, n, 3)

	if v := r.Current(); v.Version != 1 || !v.Pending() {
		t.Fatalf("after open: want pending version 1, got %+v", v)
	}
	snap, err := repo.Load(context.Background())
	if err != nil || len(snap.Lobbies) != 1 {
		t.Fatalf("after open: want one stored lobby, got %+v (err %v)", snap, err)
	}
	notes := n.all()
	if len(notes) != 1 || notes[0].Kind != notify.KindLobbyUpdated {
		t.Fatalf("after open: want one lobby-updated, got %+v", notes)
	}

	r.Inbox() <- Shutdown{}
}

func TestRoom_JoinUntilFullPromotes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := persist.NewMemory()
	n := &recordingNotifier{}
	r := newPendingRoom(t, ctx, repo, n, 2)

	out := make(chan notify.Notification, 4)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	first := recvNote(t, out, 100*time.Millisecond)
	if first.Version != 1 || !first.Game.Pending() {
		t.Fatalf("on subscribe: want pending version 1, got %+v", first)
	}

	res := join(t, r, "bob")
	if res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if !res.View.Active() {
		t.Fatalf("full lobby should start a match, got phase %s", res.View.Phase)
	}
	if got := len(res.View.Match.Round().DrawPile); got != 108-14-1 {
		t.Fatalf("draw pile: want 93 cards, got %d", got)
	}

	removed := recvNote(t, out, 100*time.Millisecond)
	started := recvNote(t, out, 100*time.Millisecond)
	if removed.Kind != notify.KindLobbyRemoved || started.Kind != notify.KindMatchUpdated {
		t.Fatalf("want lobby-removed then match-updated, got %s then %s", removed.Kind, started.Kind)
	}
	if started.Version != removed.Version+1 {
		t.Fatalf("versions must be consecutive, got %d then %d", removed.Version, started.Version)
	}

	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Lobbies) != 0 || len(snap.Matches) != 1 {
		t.Fatalf("after promotion: want 0 lobbies and 1 match, got %d and %d", len(snap.Lobbies), len(snap.Matches))
	}

	r.Inbox() <- Shutdown{}
}

func TestRoom_VersionContinuesFromStoredState(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := persist.NewMemory()
	l, err := engine.NewLobby("ABC123", "alice", 2)
	if err != nil {
		t.Fatalf("NewLobby: %v", err)
	}
	r := NewRoom(ctx, "ABC123", Pending(l).At(5), Deps{Repo: repo})
	if v := r.Current().Version; v != 5 {
		t.Fatalf("before any change: want version 5, got %d", v)
	}

	res := join(t, r, "bob")
	if res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if res.View.Version != 7 {
		t.Fatalf("after promotion: want version 7, got %d", res.View.Version)
	}
	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := snap.Matches["ABC123"].Version; got != 7 {
		t.Fatalf("stored version: want 7, got %d", got)
	}

	res = play(t, r, engine.Command{Type: engine.CmdDraw, Player: "alice"})
	if res.Err != nil {
		t.Fatalf("draw: %v", res.Err)
	}
	snap, _ = repo.Load(context.Background())
	if res.View.Version != 8 || snap.Matches["ABC123"].Version != 8 {
		t.Fatalf("after draw: want version 8 in view and store, got %d and %d", res.View.Version, snap.Matches["ABC123"].Version)
	}

	r.Inbox() <- Shutdown{}
}

func TestRoom_JoinActive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRoom(ctx, "G1", Active(knownMatch()), Deps{Repo: persist.NewMemory()})

	if res := join(t, r, "bob"); res.Err != nil {
		t.Fatalf("seated player rejoining: want no error, got %v", res.Err)
	}
	if res := join(t, r, "carol"); !errors.Is(res.Err, engine.ErrLobbyFull) {
		t.Fatalf("stranger joining a started game: want ErrLobbyFull, got %v", res.Err)
	}
	if v := r.Current().Version; v != 0 {
		t.Fatalf("rejected joins must not bump the version, got %d", v)
	}
}

func TestRoom_Play_BroadcastsEventsAndVersionIncrements(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := &recordingNotifier{}
	r := NewRoom(ctx, "G1", Active(knownMatch()), Deps{Repo: persist.NewMemory(), Notifier: n})

	out := make(chan notify.Notification, 2)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	if first := recvNote(t, out, 100*time.Millisecond); first.Version != 0 {
		t.Fatalf("after subscribe: want version=0, got %d", first.Version)
	}

	res := play(t, r, engine.Command{Type: engine.CmdPlay, Player: "alice", HandIndex: 0})
	if res.Err != nil {
		t.Fatalf("play: %v", res.Err)
	}

	next := recvNote(t, out, 100*time.Millisecond)
	if next.Version != 1 {
		t.Fatalf("after play: want version=1, got %d", next.Version)
	}
	if next.Game.Match == nil || next.Game.Match.CurrentPlayerIndex != 1 {
		t.Fatalf("after play: want bob to move, got %+v", next.Game.Match)
	}
	if len(next.Events) == 0 || next.Events[0].Type != string(engine.EvtCardPlayed) || next.Events[0].Player != "alice" {
		t.Fatalf("after play: want alice's CardPlayed first, got %+v", next.Events)
	}
	if got := len(n.all()); got != 1 {
		t.Fatalf("notifier: want 1 notification, got %d", got)
	}
}

func TestRoom_RejectedCommandChangesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRoom(ctx, "G1", Active(knownMatch()), Deps{Repo: persist.NewMemory()})
	out := make(chan notify.Notification, 2)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	_ = recvNote(t, out, 100*time.Millisecond)

	res := play(t, r, engine.Command{Type: engine.CmdPlay, Player: "bob", HandIndex: 0})
	if !errors.Is(res.Err, engine.ErrOutOfTurn) {
		t.Fatalf("want ErrOutOfTurn, got %v", res.Err)
	}
	if res.View.Version != 0 {
		t.Fatalf("rejected command must not bump the version, got %d", res.View.Version)
	}
	recvNoNote(t, out, 100*time.Millisecond)
}

func TestRoom_StorageFailureLeavesStateUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := &recordingNotifier{}
	before := knownMatch()
	r := NewRoom(ctx, "G1", Active(before), Deps{Repo: failingRepo{persist.NewMemory()}, Notifier: n})

	res := play(t, r, engine.Command{Type: engine.CmdPlay, Player: "alice", HandIndex: 0})
	if !errors.Is(res.Err, ErrStorage) {
		t.Fatalf("want ErrStorage, got %v", res.Err)
	}
	v := r.Current()
	if v.Version != 0 || v.Match.Round().Current != 0 || len(v.Match.Round().Hands[0]) != 2 {
		t.Fatalf("state changed despite failed write: %+v", v)
	}
	if got := len(n.all()); got != 0 {
		t.Fatalf("no notification expected after failed write, got %d", got)
	}
}

func TestRoom_CommandBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newPendingRoom(t, ctx, persist.NewMemory(), nil, 3)
	res := play(t, r, engine.Command{Type: engine.CmdDraw, Player: "alice"})
	if !errors.Is(res.Err, ErrNotActive) {
		t.Fatalf("want ErrNotActive, got %v", res.Err)
	}
}

func TestRoom_CancelledRequestIsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRoom(ctx, "G1", Active(knownMatch()), Deps{Repo: persist.NewMemory()})

	gone, stop := context.WithCancel(context.Background())
	stop()
	res := ask(t, r, func(reply chan Result) Msg {
		return FromClient{Ctx: gone, Cmd: engine.Command{Type: engine.CmdPlay, Player: "alice"}, Reply: reply}
	})
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", res.Err)
	}
	if r.Current().Version != 0 {
		t.Fatalf("cancelled request must not be applied")
	}
}

func TestRoom_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRoom(ctx, "G1", Active(knownMatch()), Deps{Repo: persist.NewMemory()})

	// Room of one: the subscribe snapshot fills it, the play overflows it.
	out := make(chan notify.Notification, 1)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	if res := play(t, r, engine.Command{Type: engine.CmdPlay, Player: "alice", HandIndex: 0}); res.Err != nil {
		t.Fatalf("play: %v", res.Err)
	}

	_ = recvNote(t, out, 100*time.Millisecond)
	if _, ok := <-out; ok {
		t.Fatalf("expected slow client's outbox to be closed")
	}
}

func TestRoom_ClosePendingLobby(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := persist.NewMemory()
	n := &recordingNotifier{}
	r := newPendingRoom(t, ctx, repo, n, 3)

	stale := ask(t, r, func(reply chan Result) Msg { return Close{Ctx: context.Background(), Version: 0, Reply: reply} })
	if !errors.Is(stale.Err, ErrChanged) {
		t.Fatalf("close at an old version: want ErrChanged, got %v", stale.Err)
	}

	res := ask(t, r, func(reply chan Result) Msg { return Close{Ctx: context.Background(), Version: 1, Reply: reply} })
	if res.Err != nil {
		t.Fatalf("Close: %v", res.Err)
	}
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatalf("room still running after Close")
	}

	snap, _ := repo.Load(context.Background())
	if len(snap.Lobbies) != 0 {
		t.Fatalf("closed lobby still stored")
	}
	notes := n.all()
	if last := notes[len(notes)-1]; last.Kind != notify.KindLobbyRemoved || last.Version != 2 {
		t.Fatalf("want lobby-removed version 2 last, got %+v", last)
	}
}

func TestRoom_CloseActiveRefused(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRoom(ctx, "G1", Active(knownMatch()), Deps{Repo: persist.NewMemory()})
	res := ask(t, r, func(reply chan Result) Msg { return Close{Ctx: context.Background(), Reply: reply} })
	if !errors.Is(res.Err, ErrNotPending) {
		t.Fatalf("want ErrNotPending, got %v", res.Err)
	}
}

func TestRoom_Shutdown_ClosesOutboxes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRoom(ctx, "G1", Active(knownMatch()), Deps{Repo: persist.NewMemory()})
	out := make(chan notify.Notification, 2)
	r.Inbox() <- Subscribe{ClientID: "c1", Outbox: out}
	_ = recvNote(t, out, 100*time.Millisecond)

	r.Inbox() <- Shutdown{}
	recvNoNote(t, out, 200*time.Millisecond)
}
