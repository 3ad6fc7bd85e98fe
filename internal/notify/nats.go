package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every notification as JSON on <prefix>.games.<id>.
// Observers subscribe to one id or to <prefix>.games.> for all of them.
type NATSSink struct {
	pub    Publisher
	prefix string
}

func NewNATSSink(pub Publisher, prefix string) *NATSSink {
	return &NATSSink{pub: pub, prefix: prefix}
}

func (s *NATSSink) Subject(gameID string) string {
	return fmt.Sprintf("%s.games.%s", s.prefix, gameID)
}

func (s *NATSSink) Publish(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.pub.Publish(s.Subject(n.GameID), data)
}

// ConnectNATS dials url and keeps reconnecting in the background.
func ConnectNATS(url string, log *zap.Logger) (*nats.Conn, error) {
	log = log.Named("nats")
	nc, err := nats.Connect(url,
		nats.Name("uno-backend"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// LogSink writes notifications to the log. It is the sink of last resort
// when no broker is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink { return &LogSink{log: log.Named("notify")} }

func (s *LogSink) Publish(_ context.Context, n Notification) error {
	s.log.Debug("game updated",
		zap.String("game_id", n.GameID),
		zap.String("kind", string(n.Kind)),
		zap.Int("version", n.Version),
		zap.Int("events", len(n.Events)),
	)
	return nil
}
