package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	publishTimeout = 2 * time.Second
	retryBackoff   = 100 * time.Millisecond
)

// Dispatcher queues notifications and hands them to every sink from a
// single goroutine, so each sink sees them in the order they were
// queued. Notify never blocks: when the queue is full the notification is
// dropped and logged.
type Dispatcher struct {
	queue   chan Notification
	sinks   []Sink
	retries int
	backoff time.Duration
	log     *zap.Logger
	done    chan struct{}
}

func NewDispatcher(log *zap.Logger, buffer, retries int, sinks ...Sink) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	if retries < 0 {
		retries = 0
	}
	return &Dispatcher{
		queue:   make(chan Notification, buffer),
		sinks:   sinks,
		retries: retries,
		backoff: retryBackoff,
		log:     log.Named("notify"),
		done:    make(chan struct{}),
	}
}

func (d *Dispatcher) Notify(n Notification) {
	select {
	case d.queue <- n:
	default:
		d.log.Warn("notification queue full, dropping",
			zap.String("game_id", n.GameID),
			zap.String("kind", string(n.Kind)),
			zap.Int("version", n.Version),
		)
	}
}

// Run delivers until ctx is cancelled, then flushes whatever is still
// queued and closes Done.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			d.flush()
			return
		case n := <-d.queue:
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) Done() <-chan struct{} { return d.done }

func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for {
		select {
		case n := <-d.queue:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	for _, sink := range d.sinks {
		for attempt := 0; attempt <= d.retries; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(d.backoff * time.Duration(attempt)):
				}
			}
			pctx, cancel := context.WithTimeout(ctx, publishTimeout)
			err := sink.Publish(pctx, n)
			cancel()
			if err == nil {
				break
			}
			d.log.Warn("publish failed",
				zap.String("game_id", n.GameID),
				zap.String("kind", string(n.Kind)),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}
	}
}
