package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"memorywall/internal/feed"
)

// Broker carries change events from writers to every hub.
type Broker interface {
	Publish(ctx context.Context, ev feed.Event) error
	Close() error
}

// LocalBroker delivers straight to a single in-process hub.
type LocalBroker struct {
	hub *Hub
}

func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(ctx context.Context, ev feed.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.hub.Broadcast(ev)
	return nil
}

func (b *LocalBroker) Close() error {
	return nil
}

// NATSBroker publishes on a subject and forwards everything received on it
// into the local hub, so every replica's viewers see every write.
type NATSBroker struct {
	nc      *nats.Conn
	subject string
	hub     *Hub
	sub     *nats.Subscription
	logger  *zap.Logger
}

func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("memorywall"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

func NewNATSBroker(nc *nats.Conn, subject string, hub *Hub, logger *zap.Logger) (*NATSBroker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &NATSBroker{nc: nc, subject: subject, hub: hub, logger: logger}

	sub, err := nc.Subscribe(subject, b.handleMessage)
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	b.sub = sub
	return b, nil
}

func (b *NATSBroker) Publish(ctx context.Context, ev feed.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (b *NATSBroker) handleMessage(msg *nats.Msg) {
	ev, err := feed.ParseEvent(msg.Data)
	if err != nil {
		b.logger.Warn("dropping malformed change event", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}
	b.hub.Broadcast(ev)
}

// Close removes the subscription. The connection belongs to the caller.
func (b *NATSBroker) Close() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Unsubscribe()
}
