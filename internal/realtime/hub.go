// Package realtime fans post change events out to connected viewers.
package realtime

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"memorywall/internal/common"
	"memorywall/internal/feed"
)

const subscriberBuffer = 32

// Scope selects which events a subscriber sees.
type Scope string

const (
	ScopeApproved Scope = "approved"
	ScopeAll      Scope = "all"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeApproved:
		return ScopeApproved, nil
	case ScopeAll:
		return ScopeAll, nil
	default:
		return "", fmt.Errorf("invalid scope %q: must be approved or all", s)
	}
}

type Subscription struct {
	id    uint64
	scope Scope
	ch    chan feed.Event
}

func (s *Subscription) C() <-chan feed.Event {
	return s.ch
}

func (s *Subscription) Scope() Scope {
	return s.scope
}

// Hub delivers each broadcast event to every registered subscription.
// A subscription whose buffer is full is dropped; the viewer's poll
// recovers what it missed.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

func (h *Hub) Register(scope Scope) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{id: h.nextID, scope: scope, ch: make(chan feed.Event, subscriberBuffer)}
	h.subs[sub.id] = sub
	h.logger.Debug("subscriber registered", zap.Uint64("id", sub.id), zap.String("scope", string(scope)))
	return sub
}

// Unregister removes the subscription and closes its channel. Safe to call twice.
func (h *Hub) Unregister(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	close(sub.ch)
}

func (h *Hub) Broadcast(ev feed.Event) {
	var slow []*Subscription

	h.mu.RLock()
	for _, sub := range h.subs {
		out, ok := eventForScope(ev, sub.scope)
		if !ok {
			continue
		}
		select {
		case sub.ch <- out:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.Warn("dropping slow subscriber", zap.Uint64("id", sub.id))
		h.Unregister(sub)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Feed adapts the hub to feed.ChangeFeed for in-process sessions.
func (h *Hub) Feed(scope Scope) feed.ChangeFeed {
	return hubFeed{hub: h, scope: scope}
}

type hubFeed struct {
	hub   *Hub
	scope Scope
}

func (f hubFeed) Subscribe(ctx context.Context) (<-chan feed.Event, error) {
	sub := f.hub.Register(f.scope)
	context.AfterFunc(ctx, func() { f.hub.Unregister(sub) })
	return sub.C(), nil
}

// eventForScope mirrors the public change feed: approved viewers only hear
// about approved inserts, and updates for posts that left the approved set
// carry only the fields needed to remove them.
func eventForScope(ev feed.Event, scope Scope) (feed.Event, bool) {
	if scope == ScopeAll {
		return ev, true
	}
	switch ev.Type {
	case common.EventInsert:
		return ev, ev.Record.Status == common.StatusApproved
	case common.EventUpdate:
		if ev.Record.Status == common.StatusApproved {
			return ev, true
		}
		return feed.Event{Type: ev.Type, Record: feed.Post{
			ID:        ev.Record.ID,
			Status:    ev.Record.Status,
			CreatedAt: ev.Record.CreatedAt,
		}}, true
	case common.EventDelete:
		return feed.Event{Type: ev.Type, Record: feed.Post{ID: ev.Record.ID}}, true
	default:
		return feed.Event{}, false
	}
}
