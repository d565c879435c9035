package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"memorywall/internal/common"
	"memorywall/internal/feed"
)

func post(id string, status common.PostStatus) feed.Post {
	name := "Asha"
	return feed.Post{
		ID:         id,
		Content:    "memory",
		AuthorName: &name,
		Status:     status,
		IsVisible:  true,
		CreatedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func receive(t *testing.T, sub *Subscription) feed.Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return feed.Event{}
	}
}

func assertNothing(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", ScopeApproved, false},
		{"approved", ScopeApproved, false},
		{"all", ScopeAll, false},
		{"pending", "", true},
	}
	for _, tc := range tests {
		got, err := ParseScope(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestHub_ScopeFiltering(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	public := hub.Register(ScopeApproved)
	admin := hub.Register(ScopeAll)

	tests := []struct {
		name       string
		event      feed.Event
		wantPublic bool
	}{
		{"approved insert", feed.Event{Type: common.EventInsert, Record: post("1", common.StatusApproved)}, true},
		{"pending insert", feed.Event{Type: common.EventInsert, Record: post("2", common.StatusPending)}, false},
		{"approved update", feed.Event{Type: common.EventUpdate, Record: post("3", common.StatusApproved)}, true},
		{"rejected update", feed.Event{Type: common.EventUpdate, Record: post("4", common.StatusRejected)}, true},
		{"delete", feed.Event{Type: common.EventDelete, Record: post("5", common.StatusApproved)}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hub.Broadcast(tc.event)

			assert.Equal(t, tc.event, receive(t, admin))
			if tc.wantPublic {
				got := receive(t, public)
				assert.Equal(t, tc.event.Type, got.Type)
				assert.Equal(t, tc.event.Record.ID, got.Record.ID)
			} else {
				assertNothing(t, public)
			}
		})
	}
}

func TestHub_RedactsNonApprovedUpdatesForPublicScope(t *testing.T) {
	hub := NewHub(nil)
	public := hub.Register(ScopeApproved)

	rejected := post("1", common.StatusRejected)
	hub.Broadcast(feed.Event{Type: common.EventUpdate, Record: rejected})

	got := receive(t, public)
	assert.Equal(t, "1", got.Record.ID)
	assert.Equal(t, common.StatusRejected, got.Record.Status)
	assert.Empty(t, got.Record.Content)
	assert.Nil(t, got.Record.AuthorName)

	hub.Broadcast(feed.Event{Type: common.EventDelete, Record: rejected})
	got = receive(t, public)
	assert.Equal(t, feed.Post{ID: "1"}, got.Record)
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	slow := hub.Register(ScopeAll)
	fast := hub.Register(ScopeAll)

	for i := 0; i < subscriberBuffer+1; i++ {
		hub.Broadcast(feed.Event{Type: common.EventDelete, Record: feed.Post{ID: "x"}})
		<-fast.C()
	}

	assert.Equal(t, 1, hub.Count())

	n := 0
	for range slow.C() {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
}

func TestHub_UnregisterTwice(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Register(ScopeApproved)
	hub.Unregister(sub)
	hub.Unregister(sub)

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Zero(t, hub.Count())
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Register(ScopeApproved)
	b := hub.Register(ScopeAll)

	hub.Close()
	_, okA := <-a.C()
	_, okB := <-b.C()
	assert.False(t, okA)
	assert.False(t, okB)
	assert.Zero(t, hub.Count())

	hub.Unregister(a)
}

func TestHub_FeedFeedsSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := NewHub(nil)
	source := feed.SourceFunc(func(context.Context) ([]feed.Post, error) {
		return []feed.Post{post("old", common.StatusApproved)}, nil
	})
	s := feed.NewSession(source, hub.Feed(ScopeApproved), zaptest.NewLogger(t), feed.WithPollInterval(time.Hour))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	fresh := post("new", common.StatusApproved)
	fresh.CreatedAt = fresh.CreatedAt.Add(time.Minute)
	hub.Broadcast(feed.Event{Type: common.EventInsert, Record: fresh})
	hub.Broadcast(feed.Event{Type: common.EventInsert, Record: post("hidden", common.StatusPending)})
	hub.Broadcast(feed.Event{Type: common.EventUpdate, Record: post("old", common.StatusRejected)})

	require.Eventually(t, func() bool {
		v := s.View()
		return len(v) == 1 && v[0].ID == "new"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 5*time.Millisecond)
}
