package feed

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memorywall/internal/common"
)

var t0 = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func at(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Minute)
}

func approved(id string, ts int) Post {
	return Post{ID: id, Content: "memory " + id, Status: common.StatusApproved, IsVisible: true, CreatedAt: at(ts)}
}

func withStatus(p Post, s common.PostStatus) Post {
	p.Status = s
	return p
}

func ids(view []Post) []string {
	out := make([]string, 0, len(view))
	for _, p := range view {
		out = append(out, p.ID)
	}
	return out
}

func assertSorted(t *testing.T, view []Post) {
	t.Helper()
	for i := 1; i < len(view); i++ {
		require.False(t, view[i].CreatedAt.After(view[i-1].CreatedAt),
			"view not sorted at %d: %v", i, ids(view))
	}
}

func assertUnique(t *testing.T, view []Post) {
	t.Helper()
	seen := map[string]bool{}
	for _, p := range view {
		require.False(t, seen[p.ID], "duplicate id %s in %v", p.ID, ids(view))
		seen[p.ID] = true
	}
}

func TestReconciler_Scenarios(t *testing.T) {
	r := NewReconciler(ApprovedOnly)

	// A
	r.LoadInitial([]Post{approved("1", 1), approved("2", 0)})
	assert.Equal(t, []string{"1", "2"}, ids(r.View()))

	// B
	r.ApplyInsert(approved("3", 2))
	assert.Equal(t, []string{"3", "1", "2"}, ids(r.View()))

	// C
	before := r.View()
	r.ApplyOptimisticInsert(approved("3", 2))
	if diff := cmp.Diff(before, r.View()); diff != "" {
		t.Fatalf("optimistic insert of known id changed view (-before +after):\n%s", diff)
	}

	// D
	r.ApplyUpdate(withStatus(approved("1", 1), common.StatusRejected))
	assert.Equal(t, []string{"3", "2"}, ids(r.View()))

	// E
	r.ApplyPollSnapshot([]Post{approved("2", 0), approved("3", 2)})
	assert.Equal(t, []string{"3", "2"}, ids(r.View()))

	// F
	r.ApplyDelete("2")
	assert.Equal(t, []string{"3"}, ids(r.View()))
}

func TestReconcile_LoadInitialIsVerbatim(t *testing.T) {
	in := []Post{approved("a", 5), withStatus(approved("b", 3), common.StatusPending)}
	out := Reconcile([]Post{approved("x", 9)}, LoadInitial(in), ApprovedOnly)

	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("load initial must copy input verbatim (-want +got):\n%s", diff)
	}
	in[0].Content = "mutated"
	assert.NotEqual(t, "mutated", out[0].Content)
}

func TestReconcile_InsertIsIdempotent(t *testing.T) {
	view := Reconcile(nil, LoadInitial([]Post{approved("1", 1)}), ApprovedOnly)
	p := approved("2", 2)

	once := Reconcile(view, Insert(p), ApprovedOnly)
	twice := Reconcile(once, Insert(p), ApprovedOnly)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second insert changed view:\n%s", diff)
	}
	assert.Equal(t, []string{"2", "1"}, ids(twice))
}

func TestReconcile_InsertIgnoresFilteredPosts(t *testing.T) {
	view := Reconcile(nil, Insert(withStatus(approved("p", 1), common.StatusPending)), ApprovedOnly)
	assert.Empty(t, view)

	view = Reconcile(nil, Insert(withStatus(approved("p", 1), common.StatusPending)), AllPosts)
	assert.Equal(t, []string{"p"}, ids(view))
}

func TestReconcile_OutOfOrderInsertKeepsOrder(t *testing.T) {
	view := Reconcile(nil, LoadInitial([]Post{approved("new", 10), approved("old", 1)}), ApprovedOnly)

	view = Reconcile(view, Insert(approved("mid", 5)), ApprovedOnly)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(view))

	view = Reconcile(view, OptimisticInsert(approved("oldest", 0)), ApprovedOnly)
	assert.Equal(t, []string{"new", "mid", "old", "oldest"}, ids(view))

	// equal timestamps: newcomer goes first, as a prepend would
	view = Reconcile(view, Insert(approved("tie", 10)), ApprovedOnly)
	assert.Equal(t, []string{"tie", "new", "mid", "old", "oldest"}, ids(view))
}

func TestReconcile_UpdateReplacesInPlace(t *testing.T) {
	view := Reconcile(nil, LoadInitial([]Post{approved("1", 3), approved("2", 2), approved("3", 1)}), ApprovedOnly)

	changed := approved("2", 2)
	changed.LikesCount = 7
	changed.IsVisible = false
	out := Reconcile(view, Update(changed), ApprovedOnly)

	assert.Equal(t, []string{"1", "2", "3"}, ids(out))
	assert.Equal(t, 7, out[1].LikesCount)
	assert.False(t, out[1].IsVisible)
	assert.Equal(t, 0, view[1].LikesCount, "input view must not be modified")
}

func TestReconcile_StatusGating(t *testing.T) {
	p := approved("1", 1)
	view := Reconcile(nil, LoadInitial([]Post{approved("2", 2), p}), ApprovedOnly)

	view = Reconcile(view, Update(withStatus(p, common.StatusPending)), ApprovedOnly)
	assert.Equal(t, []string{"2"}, ids(view))

	view = Reconcile(view, Update(p), ApprovedOnly)
	assert.Equal(t, []string{"2", "1"}, ids(view))
}

func TestReconcile_StatusGatingWithAllPosts(t *testing.T) {
	p := approved("1", 1)
	view := Reconcile(nil, LoadInitial([]Post{p}), AllPosts)

	rejected := withStatus(p, common.StatusRejected)
	view = Reconcile(view, Update(rejected), AllPosts)
	require.Len(t, view, 1)
	assert.Equal(t, common.StatusRejected, view[0].Status)
}

func TestReconcile_DeleteIsAbsorbing(t *testing.T) {
	p := approved("1", 1)
	view := Reconcile(nil, LoadInitial([]Post{p}), ApprovedOnly)

	view = Reconcile(view, Delete("1"), ApprovedOnly)
	assert.Empty(t, view)

	view = Reconcile(view, Delete("1"), ApprovedOnly)
	assert.Empty(t, view)

	view = Reconcile(view, Update(withStatus(p, common.StatusRejected)), ApprovedOnly)
	assert.Empty(t, view)

	// a stale approved update re-inserts; accepted behavior
	view = Reconcile(view, Update(p), ApprovedOnly)
	assert.Equal(t, []string{"1"}, ids(view))
}

func TestReconcile_PollSnapshotIsAuthoritative(t *testing.T) {
	view := Reconcile(nil, LoadInitial([]Post{approved("a", 3), approved("b", 2), approved("stale", 1)}), ApprovedOnly)

	fresher := approved("b", 2)
	fresher.LikesCount = 4
	snapshot := []Post{
		approved("c", 1),
		fresher,
		approved("a", 3),
		withStatus(approved("pending", 5), common.StatusPending),
		approved("c", 1),
	}

	out := Reconcile(view, PollSnapshot(snapshot), ApprovedOnly)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out))
	assert.Equal(t, 4, out[1].LikesCount)
}

func TestReconcile_PollSnapshotTiesKeepSnapshotOrder(t *testing.T) {
	out := Reconcile(nil, PollSnapshot([]Post{approved("x", 1), approved("y", 1), approved("z", 2)}), ApprovedOnly)
	assert.Equal(t, []string{"z", "x", "y"}, ids(out))
}

func TestReconcile_NilFilterMeansApprovedOnly(t *testing.T) {
	out := Reconcile(nil, Insert(withStatus(approved("p", 1), common.StatusPending)), nil)
	assert.Empty(t, out)
}

func TestEvent_Change(t *testing.T) {
	p := approved("1", 1)

	tests := []struct {
		event Event
		kind  Kind
	}{
		{Event{Type: common.EventInsert, Record: p}, KindInsert},
		{Event{Type: common.EventUpdate, Record: p}, KindUpdate},
		{Event{Type: common.EventDelete, Record: Post{ID: "1"}}, KindDelete},
	}
	for _, tc := range tests {
		c, err := tc.event.Change()
		require.NoError(t, err)
		assert.Equal(t, tc.kind, c.Kind)
	}

	c, _ := Event{Type: common.EventDelete, Record: Post{ID: "9"}}.Change()
	assert.Equal(t, "9", c.ID)

	_, err := Event{Type: "truncate"}.Change()
	assert.Error(t, err)
}

// Random interleavings of every channel must keep the view sorted and unique.
func TestReconcile_InvariantsUnderRandomInterleaving(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []common.PostStatus{common.StatusApproved, common.StatusApproved, common.StatusPending, common.StatusRejected}

	randomPost := func() Post {
		n := rng.Intn(12)
		p := approved(fmt.Sprintf("p%d", n), n)
		p.Status = statuses[rng.Intn(len(statuses))]
		p.LikesCount = rng.Intn(5)
		return p
	}

	for _, filter := range []Filter{ApprovedOnly, AllPosts} {
		for round := 0; round < 200; round++ {
			r := NewReconciler(filter)
			r.LoadInitial(Reconcile(nil, PollSnapshot([]Post{randomPost(), randomPost(), randomPost()}), filter))

			for step := 0; step < 40; step++ {
				switch rng.Intn(6) {
				case 0:
					r.ApplyInsert(randomPost())
				case 1:
					r.ApplyOptimisticInsert(randomPost())
				case 2:
					r.ApplyUpdate(randomPost())
				case 3:
					r.ApplyDelete(fmt.Sprintf("p%d", rng.Intn(12)))
				case 4:
					r.ApplyPollSnapshot([]Post{randomPost(), randomPost(), randomPost(), randomPost()})
				case 5:
					p := randomPost()
					r.ApplyInsert(p)
					before := r.View()
					r.ApplyInsert(p)
					require.Empty(t, cmp.Diff(before, r.View()), "insert not idempotent")
				}

				view := r.View()
				assertSorted(t, view)
				assertUnique(t, view)
				for _, p := range view {
					require.True(t, filter(p), "filtered post %s leaked into view", p.ID)
				}
			}
		}
	}
}
