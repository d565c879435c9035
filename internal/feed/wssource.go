package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	eventBuffer           = 64
)

// WSSource subscribes to the server's WebSocket change feed and reconnects
// after a delay whenever the connection drops.
type WSSource struct {
	url            string
	header         http.Header
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	logger         *zap.Logger
}

func NewWSSource(wsURL, token string, reconnectDelay time.Duration, logger *zap.Logger) *WSSource {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &WSSource{
		url:            wsURL,
		header:         header,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

// Subscribe starts the connection loop. The returned channel is closed
// once ctx is done.
func (s *WSSource) Subscribe(ctx context.Context) (<-chan Event, error) {
	out := make(chan Event, eventBuffer)
	go s.run(ctx, out)
	return out, nil
}

func (s *WSSource) run(ctx context.Context, out chan<- Event) {
	defer close(out)

	for {
		if err := s.stream(ctx, out); err != nil && ctx.Err() == nil {
			s.logger.Warn("change feed connection error, reconnecting",
				zap.Error(err), zap.Duration("delay", s.reconnectDelay))
		}

		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *WSSource) stream(ctx context.Context, out chan<- Event) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return fmt.Errorf("dial change feed: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage when the session ends
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.logger.Info("connected to change feed", zap.String("url", s.url))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		event, err := ParseEvent(message)
		if err != nil {
			s.logger.Warn("failed to parse change event", zap.Error(err))
			continue
		}

		select {
		case out <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if !ev.Type.IsValid() {
		return Event{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.Record.ID == "" {
		return Event{}, fmt.Errorf("event %s has no record id", ev.Type)
	}
	return ev, nil
}
