package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	wire "github.com/DoyleJ11/uno-backend/pkg/types"
)

type recordingSink struct {
	mu       sync.Mutex
	failures int // fail this many publishes before succeeding
	got      []Notification
	calls    int
}

func (s *recordingSink) Publish(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.got = append(s.got, n)
	return nil
}

func (s *recordingSink) snapshot() ([]Notification, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.got...), s.calls
}

func lobbyNote(id string, version int) Notification {
	return Notification{
		Kind:    KindLobbyUpdated,
		GameID:  id,
		Version: version,
		Game:    wire.Game{Lobby: &wire.Lobby{ID: id, Pending: true}},
	}
}

func TestDispatcher_DeliversInOrderAndRetries(t *testing.T) {
	sink := &recordingSink{failures: 2}
	d := NewDispatcher(zap.NewNop(), 16, 3, sink)
	d.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	for v := 1; v <= 5; v++ {
		d.Notify(lobbyNote("G1", v))
	}

	require.Eventually(t, func() bool {
		got, _ := sink.snapshot()
		return len(got) == 5
	}, time.Second, 5*time.Millisecond)

	got, calls := sink.snapshot()
	for i, n := range got {
		assert.Equal(t, i+1, n.Version)
	}
	assert.Equal(t, 7, calls, "two failed attempts before the first success")

	cancel()
	<-d.Done()
}

func TestDispatcher_GivesUpAfterRetries(t *testing.T) {
	failing := &recordingSink{failures: 100}
	healthy := &recordingSink{}
	d := NewDispatcher(zap.NewNop(), 4, 1, failing, healthy)
	d.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	d.Notify(lobbyNote("G1", 1))

	require.Eventually(t, func() bool {
		got, _ := healthy.snapshot()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	_, calls := failing.snapshot()
	assert.Equal(t, 2, calls)

	cancel()
	<-d.Done()
}

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), 1, 0)

	done := make(chan struct{})
	go func() {
		for v := 0; v < 10; v++ {
			d.Notify(lobbyNote("G1", v))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Notify blocked with nobody draining the queue")
	}
}

func TestDispatcher_FlushesOnShutdown(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(zap.NewNop(), 8, 0, sink)
	d.Notify(lobbyNote("G1", 1))
	d.Notify(lobbyNote("G1", 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	got, _ := sink.snapshot()
	assert.Len(t, got, 2)
}

type fakePublisher struct {
	subject string
	data    []byte
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject, p.data = subject, data
	return nil
}

func TestNATSSink_Publish(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewNATSSink(pub, "uno")

	require.NoError(t, sink.Publish(context.Background(), lobbyNote("ABC123", 3)))
	assert.Equal(t, "uno.games.ABC123", pub.subject)

	var back Notification
	require.NoError(t, json.Unmarshal(pub.data, &back))
	assert.Equal(t, KindLobbyUpdated, back.Kind)
	assert.Equal(t, 3, back.Version)
	assert.True(t, back.Game.Pending())
}
