package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultPollInterval = 30 * time.Second

var ErrSessionClosed = errors.New("session closed")

// Source returns the full, pre-filtered list of posts, newest first.
// It serves both the initial load and every poll.
type Source interface {
	Fetch(ctx context.Context) ([]Post, error)
}

type SourceFunc func(ctx context.Context) ([]Post, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]Post, error) {
	return f(ctx)
}

// ChangeFeed delivers change events until ctx is done, then closes the channel.
// Delivery and ordering are best effort.
type ChangeFeed interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// Submitter creates a post and returns it with its server-assigned id.
type Submitter interface {
	Create(ctx context.Context, s Submission) (Post, error)
}

type Option func(*Session)

func WithFilter(f Filter) Option {
	return func(s *Session) { s.rec = NewReconciler(f) }
}

func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithOnChange registers a callback that receives a copy of the view after
// every change. It runs while the session lock is held and must not call
// back into the Session.
func WithOnChange(fn func(view []Post)) Option {
	return func(s *Session) { s.onChange = fn }
}

func WithSubmitter(sub Submitter) Option {
	return func(s *Session) { s.submitter = sub }
}

// Session binds one Reconciler to its input channels for one viewer.
type Session struct {
	mu        sync.Mutex
	rec       *Reconciler
	source    Source
	changes   ChangeFeed
	submitter Submitter
	interval  time.Duration
	onChange  func(view []Post)
	logger    *zap.Logger

	started   bool
	closed    bool
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

func NewSession(source Source, changes ChangeFeed, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		rec:      NewReconciler(ApprovedOnly),
		source:   source,
		changes:  changes,
		interval: DefaultPollInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the initial view, then consumes the change feed and polls
// until ctx is done or Close is called. A failed initial load is logged;
// the next poll fills the view. Start on a closed session returns
// ErrSessionClosed.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	if posts, err := s.source.Fetch(ctx); err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("initial feed load failed", zap.Error(err))
		}
	} else {
		s.apply(LoadInitial(posts))
	}

	g, gctx := errgroup.WithContext(ctx)

	var events <-chan Event
	if s.changes != nil {
		var err error
		if events, err = s.changes.Subscribe(gctx); err != nil {
			cancel()
			return fmt.Errorf("subscribe to change feed: %w", err)
		}
	}

	// Close either sees the group and waits for it, or has already run and
	// nothing is started.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return ErrSessionClosed
	}
	if events != nil {
		g.Go(func() error {
			s.consume(gctx, events)
			return nil
		})
	}
	g.Go(func() error {
		s.poll(gctx)
		return nil
	})
	s.group = g
	return nil
}

func (s *Session) consume(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				s.logger.Info("change feed closed, relying on polling")
				return
			}
			change, err := ev.Change()
			if err != nil {
				s.logger.Warn("dropping change event", zap.Error(err))
				continue
			}
			s.apply(change)
		}
	}
}

func (s *Session) poll(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

// Refresh fetches a snapshot and applies it as a poll.
func (s *Session) Refresh(ctx context.Context) error {
	posts, err := s.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("feed poll failed, view may be stale", zap.Error(err))
		}
		return err
	}
	s.apply(PollSnapshot(posts))
	return nil
}

// Submit creates the post, then shows it immediately. The change-feed
// insert for the same id arrives later and is absorbed.
func (s *Session) Submit(ctx context.Context, sub Submission) (Post, error) {
	if s.submitter == nil {
		return Post{}, errors.New("session has no submitter")
	}
	post, err := s.submitter.Create(ctx, sub)
	if err != nil {
		return Post{}, err
	}
	s.apply(OptimisticInsert(post))
	return post, nil
}

func (s *Session) apply(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rec.Apply(c)
	if s.onChange != nil {
		s.onChange(s.rec.View())
	}
	s.logger.Debug("feed change applied", zap.Stringer("kind", c.Kind), zap.Int("size", s.rec.Len()))
}

// View returns a copy of the current view, newest first.
func (s *Session) View() []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.View()
}

// Close stops polling and releases the change-feed subscription. It waits
// for both goroutines to exit and is safe to call more than once, including
// while Start is still loading.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		cancel, group := s.cancel, s.group
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if group != nil {
			_ = group.Wait()
		}
	})
	return nil
}
