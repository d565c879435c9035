package feed

import (
	"sort"

	"memorywall/internal/common"
)

// Filter decides whether a post belongs in a view. Each Reconciler uses
// exactly one Filter for both pushed events and poll snapshots.
type Filter func(Post) bool

// ApprovedOnly is the homepage filter.
func ApprovedOnly(p Post) bool {
	return p.Status == common.StatusApproved
}

// AllPosts is the admin filter.
func AllPosts(Post) bool {
	return true
}

type Kind int

const (
	KindLoadInitial Kind = iota + 1
	KindInsert
	KindUpdate
	KindDelete
	KindPollSnapshot
	KindOptimisticInsert
)

func (k Kind) String() string {
	switch k {
	case KindLoadInitial:
		return "load_initial"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindPollSnapshot:
		return "poll_snapshot"
	case KindOptimisticInsert:
		return "optimistic_insert"
	default:
		return "unknown"
	}
}

// Change is one input to Reconcile. Post is set for insert/update kinds,
// Posts for load/poll kinds, ID for delete.
type Change struct {
	Kind  Kind
	Post  Post
	Posts []Post
	ID    string
}

func LoadInitial(posts []Post) Change  { return Change{Kind: KindLoadInitial, Posts: posts} }
func Insert(p Post) Change             { return Change{Kind: KindInsert, Post: p} }
func Update(p Post) Change             { return Change{Kind: KindUpdate, Post: p} }
func Delete(id string) Change          { return Change{Kind: KindDelete, ID: id} }
func PollSnapshot(posts []Post) Change { return Change{Kind: KindPollSnapshot, Posts: posts} }
func OptimisticInsert(p Post) Change   { return Change{Kind: KindOptimisticInsert, Post: p} }

// Reconcile applies c to view and returns the new view. view is never
// modified. Unknown ids and duplicates are no-ops, never errors.
// A nil filter means ApprovedOnly.
func Reconcile(view []Post, c Change, filter Filter) []Post {
	if filter == nil {
		filter = ApprovedOnly
	}

	switch c.Kind {
	case KindLoadInitial:
		return clonePosts(c.Posts)

	case KindInsert, KindOptimisticInsert:
		if !filter(c.Post) || indexOf(view, c.Post.ID) >= 0 {
			return view
		}
		return insertByRecency(view, c.Post)

	case KindUpdate:
		i := indexOf(view, c.Post.ID)
		if !filter(c.Post) {
			if i < 0 {
				return view
			}
			return removeAt(view, i)
		}
		if i >= 0 {
			out := clonePosts(view)
			out[i] = c.Post
			return out
		}
		return insertByRecency(view, c.Post)

	case KindDelete:
		i := indexOf(view, c.ID)
		if i < 0 {
			return view
		}
		return removeAt(view, i)

	case KindPollSnapshot:
		return fromSnapshot(c.Posts, filter)

	default:
		return view
	}
}

func indexOf(view []Post, id string) int {
	for i := range view {
		if view[i].ID == id {
			return i
		}
	}
	return -1
}

func clonePosts(posts []Post) []Post {
	out := make([]Post, len(posts))
	copy(out, posts)
	return out
}

func removeAt(view []Post, i int) []Post {
	out := make([]Post, 0, len(view)-1)
	out = append(out, view[:i]...)
	return append(out, view[i+1:]...)
}

// insertByRecency prepends p, then lets it sink below any strictly newer
// entries so the view stays sorted when channels deliver out of order.
func insertByRecency(view []Post, p Post) []Post {
	pos := 0
	for pos < len(view) && view[pos].CreatedAt.After(p.CreatedAt) {
		pos++
	}
	out := make([]Post, 0, len(view)+1)
	out = append(out, view[:pos]...)
	out = append(out, p)
	return append(out, view[pos:]...)
}

// fromSnapshot treats the snapshot as authoritative for membership and
// field values. Ties on created_at keep snapshot order.
func fromSnapshot(snapshot []Post, filter Filter) []Post {
	seen := make(map[string]struct{}, len(snapshot))
	out := make([]Post, 0, len(snapshot))
	for _, p := range snapshot {
		if !filter(p) {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Reconciler owns one view. It is not safe for concurrent use; Session
// serializes access to it.
type Reconciler struct {
	filter Filter
	view   []Post
}

func NewReconciler(filter Filter) *Reconciler {
	if filter == nil {
		filter = ApprovedOnly
	}
	return &Reconciler{filter: filter}
}

func (r *Reconciler) Apply(c Change) {
	r.view = Reconcile(r.view, c, r.filter)
}

func (r *Reconciler) LoadInitial(posts []Post)       { r.Apply(LoadInitial(posts)) }
func (r *Reconciler) ApplyInsert(p Post)             { r.Apply(Insert(p)) }
func (r *Reconciler) ApplyUpdate(p Post)             { r.Apply(Update(p)) }
func (r *Reconciler) ApplyDelete(id string)          { r.Apply(Delete(id)) }
func (r *Reconciler) ApplyPollSnapshot(posts []Post) { r.Apply(PollSnapshot(posts)) }
func (r *Reconciler) ApplyOptimisticInsert(p Post)   { r.Apply(OptimisticInsert(p)) }

// View returns a copy of the current view.
func (r *Reconciler) View() []Post {
	return clonePosts(r.view)
}

func (r *Reconciler) Len() int {
	return len(r.view)
}
