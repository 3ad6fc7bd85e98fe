package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/DoyleJ11/uno-backend/internal/hub"
	"github.com/DoyleJ11/uno-backend/internal/room"
)

// ReapStale closes every pending lobby that has not changed for longer
// than the lobby TTL and returns how many it closed. Started games are
// never reaped.
func (s *Store) ReapStale(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	views, err := s.views(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.ttl)
	reaped := 0
	for _, v := range views {
		if !v.Pending() || v.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.close(ctx, v); err != nil {
			// Joined, started or gone since the view was taken.
			if errors.Is(err, room.ErrChanged) || Classify(err) == KindNotFound {
				continue
			}
			return reaped, err
		}
		reaped++
		s.log.Info("reaped stale lobby", zap.String("game_id", v.ID), zap.Time("last_update", v.UpdatedAt))
	}
	return reaped, nil
}

func (s *Store) close(ctx context.Context, v room.View) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rm, err := s.lookup(ctx, v.ID)
	if err != nil {
		return err
	}
	if _, err := s.request(ctx, rm, func(reply chan room.Result) room.Msg {
		return room.Close{Ctx: ctx, Version: v.Version, Reply: reply}
	}); err != nil {
		return err
	}
	select {
	case s.hub.Inbox() <- hub.RemoveRoom{ID: v.ID}:
	case <-ctx.Done():
	}
	return nil
}

// StartReaper runs ReapStale every interval until the returned scheduler
// is shut down.
func (s *Store) StartReaper(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.ReapStale(ctx)
			if err != nil {
				s.log.Warn("reaping stale lobbies failed", zap.Error(err))
				return
			}
			if n > 0 {
				s.log.Debug("reaper pass done", zap.Int("reaped", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule reaper: %w", err)
	}
	sched.Start()
	return sched, nil
}
