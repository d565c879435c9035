// Package wall is the server side of the memory wall: storage, moderation,
// engagement and the HTTP API that feeds client sessions.
package wall

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"memorywall/internal/common"
	"memorywall/internal/dbmysql"
	"memorywall/internal/feed"
)

//go:generate mockgen -destination=mock_deps.go -package=wall memorywall/internal/wall Publisher
//go:generate mockgen -destination=mock_blobstore.go -package=wall memorywall/internal/common BlobStore

const (
	DefaultCommentLimit = 10
	MaxCommentLimit     = 100
)

// Publisher receives every change so viewers can reconcile without polling.
type Publisher interface {
	Publish(ctx context.Context, ev feed.Event) error
}

type Service struct {
	repo          Repository
	blobs         common.BlobStore
	publisher     Publisher
	cache         SnapshotCache
	logger        *zap.Logger
	maxImageBytes int64
	now           func() time.Time
}

func NewService(repo Repository, blobs common.BlobStore, publisher Publisher, cache SnapshotCache, logger *zap.Logger, maxImageBytes int64) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxImageBytes <= 0 {
		maxImageBytes = common.MaxImageBytes
	}
	return &Service{
		repo:          repo,
		blobs:         blobs,
		publisher:     publisher,
		cache:         cache,
		logger:        logger,
		maxImageBytes: maxImageBytes,
		now:           time.Now,
	}
}

func toFeedPost(p dbmysql.Post) feed.Post {
	return feed.Post{
		ID:          p.ID,
		Content:     p.Content,
		AuthorName:  p.Name,
		IsAnonymous: p.IsAnonymous,
		ImageURL:    p.ImageURL,
		Status:      common.PostStatus(p.Status),
		IsVisible:   p.IsVisible,
		LikesCount:  p.LikesCount,
		CreatedAt:   p.CreatedAt,
	}
}

func toFeedPosts(rows []dbmysql.Post) []feed.Post {
	out := make([]feed.Post, 0, len(rows))
	for _, p := range rows {
		out = append(out, toFeedPost(p))
	}
	return out
}

// --------- READS ---------

// Fetch returns approved posts, newest first. It makes Service a feed.Source.
func (s *Service) Fetch(ctx context.Context) ([]feed.Post, error) {
	return s.FetchApproved(ctx)
}

func (s *Service) FetchApproved(ctx context.Context) ([]feed.Post, error) {
	return s.cachedList(ctx, SnapshotApproved, PostQuery{Status: common.StatusApproved})
}

func (s *Service) FetchVisible(ctx context.Context) ([]feed.Post, error) {
	return s.cachedList(ctx, SnapshotVisible, PostQuery{Status: common.StatusApproved, VisibleOnly: true})
}

func (s *Service) FetchPending(ctx context.Context) ([]feed.Post, error) {
	return s.list(ctx, PostQuery{Status: common.StatusPending})
}

// FetchAll lists every post regardless of status, narrowed by a date filter.
func (s *Service) FetchAll(ctx context.Context, filter common.DateFilter) ([]feed.Post, error) {
	return s.list(ctx, PostQuery{Since: filter.Since(s.now())})
}

func (s *Service) GetPost(ctx context.Context, id string) (feed.Post, error) {
	row, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return feed.Post{}, databaseError("get post", err, ErrPostNotFound)
	}
	return toFeedPost(*row), nil
}

func (s *Service) cachedList(ctx context.Context, key string, q PostQuery) ([]feed.Post, error) {
	if posts, ok := s.cache.Get(ctx, key); ok {
		return posts, nil
	}
	gen := s.cache.Generation(ctx)
	posts, err := s.list(ctx, q)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, gen, posts)
	return posts, nil
}

func (s *Service) list(ctx context.Context, q PostQuery) ([]feed.Post, error) {
	rows, err := s.repo.ListPosts(ctx, q)
	if err != nil {
		return nil, databaseError("list posts", err, ErrPostNotFound)
	}
	return toFeedPosts(rows), nil
}

// --------- SUBMISSION ---------

// Create validates and stores a submission. An image is uploaded first;
// if the row cannot be written the image is removed again.
func (s *Service) Create(ctx context.Context, sub feed.Submission) (feed.Post, error) {
	const op = "create post"

	content := strings.TrimSpace(sub.Content)
	if err := common.ValidateContent(content); err != nil {
		return feed.Post{}, validationError(op, err)
	}
	if err := common.ValidateName(sub.Name); err != nil {
		return feed.Post{}, validationError(op, err)
	}
	link, err := socialLink(sub)
	if err != nil {
		return feed.Post{}, validationError(op, err)
	}

	var imageURL *string
	if sub.HasImage() {
		it, err := common.ValidateImage(sub.ImageName, sub.ImageSize, s.maxImageBytes)
		if err != nil {
			return feed.Post{}, validationError(op, err)
		}
		url, err := s.blobs.Upload(ctx, sub.ImageName, it, sub.Image)
		if err != nil {
			return feed.Post{}, storageError(op, err)
		}
		imageURL = &url
	}

	row := &dbmysql.Post{
		Content:     content,
		Name:        common.AuthorName(sub.Name, sub.IsAnonymous),
		IsAnonymous: sub.IsAnonymous,
		ImageURL:    imageURL,
		Status:      string(common.StatusApproved),
		IsVisible:   true,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.repo.CreatePost(ctx, row, link); err != nil {
		if imageURL != nil {
			s.deleteImage(ctx, *imageURL)
		}
		return feed.Post{}, databaseError(op, err, ErrPostNotFound)
	}

	post := toFeedPost(*row)
	s.logger.Info("memory posted", zap.String("post_id", post.ID), zap.Bool("has_image", imageURL != nil))
	s.changed(ctx, common.EventInsert, post)
	return post, nil
}

func socialLink(sub feed.Submission) (*dbmysql.SocialLink, error) {
	if sub.SocialLinks == nil {
		return nil, nil
	}
	l := sub.SocialLinks
	link := &dbmysql.SocialLink{Name: *common.AuthorName(sub.Name, false)}
	fields := []struct {
		value string
		dst   **string
	}{
		{l.Instagram, &link.Instagram},
		{l.Facebook, &link.Facebook},
		{l.Threads, &link.Threads},
		{l.X, &link.X},
		{l.WhatsApp, &link.WhatsApp},
	}
	for _, f := range fields {
		v := strings.TrimSpace(f.value)
		if v == "" {
			continue
		}
		if err := common.ValidateLink(v); err != nil {
			return nil, err
		}
		*f.dst = &v
	}
	if link.IsEmpty() {
		return nil, nil
	}
	return link, nil
}

// --------- MODERATION ---------

func (s *Service) SetStatus(ctx context.Context, id string, status common.PostStatus) (feed.Post, error) {
	const op = "set status"
	if !status.IsValid() {
		return feed.Post{}, validationError(op, errors.New("status must be pending, approved or rejected"))
	}
	row, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return feed.Post{}, databaseError(op, err, ErrPostNotFound)
	}
	post := toFeedPost(*row)
	s.logger.Info("post status changed", zap.String("post_id", id), zap.String("status", string(status)))
	s.changed(ctx, common.EventUpdate, post)
	return post, nil
}

func (s *Service) SetVisibility(ctx context.Context, id string, visible bool) (feed.Post, error) {
	row, err := s.repo.UpdateVisibility(ctx, id, visible)
	if err != nil {
		return feed.Post{}, databaseError("set visibility", err, ErrPostNotFound)
	}
	post := toFeedPost(*row)
	s.changed(ctx, common.EventUpdate, post)
	return post, nil
}

// Delete removes the post. Its image and the images of its comments are
// deleted best effort; a failure there is logged and does not fail the delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	row, commentImages, err := s.repo.DeletePost(ctx, id)
	if err != nil {
		return databaseError("delete post", err, ErrPostNotFound)
	}
	if row.ImageURL != nil && *row.ImageURL != "" {
		s.deleteImage(ctx, *row.ImageURL)
	}
	for _, url := range commentImages {
		s.deleteImage(ctx, url)
	}
	s.logger.Info("post deleted", zap.String("post_id", id), zap.Int("comment_images", len(commentImages)))
	s.changed(ctx, common.EventDelete, feed.Post{ID: row.ID})
	return nil
}

func (s *Service) deleteImage(ctx context.Context, url string) {
	if err := s.blobs.DeleteByURL(ctx, url); err != nil {
		s.logger.Warn("failed to delete image", zap.String("url", url), zap.Error(err))
	}
}

// changed publishes the event and drops cached snapshots. Publishing is
// best effort; viewers that miss it catch up on their next poll.
func (s *Service) changed(ctx context.Context, et common.EventType, post feed.Post) {
	s.cache.Invalidate(ctx)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, feed.Event{Type: et, Record: post}); err != nil {
		s.logger.Warn("failed to publish change", zap.String("event", string(et)), zap.String("post_id", post.ID), zap.Error(err))
	}
}

// --------- ENGAGEMENT ---------

// ToggleLike likes or unlikes the post for actorID and returns the new state.
func (s *Service) ToggleLike(ctx context.Context, postID, actorID string) (bool, int, error) {
	const op = "toggle like"
	if actorID == "" {
		return false, 0, &Error{Kind: KindUnauthorized, Op: op, Err: errors.New("visitor token required")}
	}
	liked, err := s.repo.ToggleLike(ctx, postID, actorID)
	if err != nil {
		return false, 0, databaseError(op, err, ErrPostNotFound)
	}
	row, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return false, 0, databaseError(op, err, ErrPostNotFound)
	}
	post := toFeedPost(*row)
	s.changed(ctx, common.EventUpdate, post)
	return liked, post.LikesCount, nil
}

func (s *Service) LikeStatus(ctx context.Context, postID, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	liked, err := s.repo.HasLiked(ctx, postID, actorID)
	if err != nil {
		return false, databaseError("like status", err, ErrPostNotFound)
	}
	return liked, nil
}

func (s *Service) AddReaction(ctx context.Context, postID, emoji string) (*dbmysql.Reaction, error) {
	const op = "add reaction"
	emoji = strings.TrimSpace(emoji)
	if err := common.ValidateEmoji(emoji); err != nil {
		return nil, validationError(op, err)
	}
	if _, err := s.repo.GetPost(ctx, postID); err != nil {
		return nil, databaseError(op, err, ErrPostNotFound)
	}
	reaction := &dbmysql.Reaction{PostID: postID, Emoji: emoji, CreatedAt: s.now().UTC()}
	if err := s.repo.AddReaction(ctx, reaction); err != nil {
		return nil, databaseError(op, err, ErrPostNotFound)
	}
	return reaction, nil
}

func (s *Service) RemoveReaction(ctx context.Context, id string) error {
	if err := s.repo.DeleteReaction(ctx, id); err != nil {
		return databaseError("remove reaction", err, ErrReactionNotFound)
	}
	return nil
}

func (s *Service) ReactionCounts(ctx context.Context, postID string) (map[string]int, error) {
	counts, err := s.repo.ReactionCounts(ctx, postID)
	if err != nil {
		return nil, databaseError("reaction counts", err, ErrPostNotFound)
	}
	return counts, nil
}

// CommentInput is a comment with an optional image.
type CommentInput struct {
	Content   string
	Image     io.Reader
	ImageName string
	ImageSize int64
}

func (c CommentInput) HasImage() bool {
	return c.Image != nil && c.ImageSize > 0
}

// AddComment stores a comment on an existing post. An attached image is
// uploaded first and removed again if the row cannot be written.
func (s *Service) AddComment(ctx context.Context, postID string, in CommentInput) (*dbmysql.Comment, error) {
	const op = "add comment"
	content := strings.TrimSpace(in.Content)
	if err := common.ValidateComment(content); err != nil {
		return nil, validationError(op, err)
	}
	var imageType common.ImageType
	if in.HasImage() {
		it, err := common.ValidateImage(in.ImageName, in.ImageSize, s.maxImageBytes)
		if err != nil {
			return nil, validationError(op, err)
		}
		imageType = it
	}
	if _, err := s.repo.GetPost(ctx, postID); err != nil {
		return nil, databaseError(op, err, ErrPostNotFound)
	}

	comment := &dbmysql.Comment{PostID: postID, Content: content, CreatedAt: s.now().UTC()}
	if in.HasImage() {
		url, err := s.blobs.Upload(ctx, in.ImageName, imageType, in.Image)
		if err != nil {
			return nil, storageError(op, err)
		}
		comment.ImageURL = &url
	}

	if err := s.repo.AddComment(ctx, comment); err != nil {
		if comment.ImageURL != nil {
			s.deleteImage(ctx, *comment.ImageURL)
		}
		return nil, databaseError(op, err, ErrPostNotFound)
	}
	return comment, nil
}

// ListComments pages through a post's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, postID string, limit, offset int) ([]dbmysql.Comment, error) {
	if limit <= 0 {
		limit = DefaultCommentLimit
	}
	if limit > MaxCommentLimit {
		limit = MaxCommentLimit
	}
	if offset < 0 {
		offset = 0
	}
	comments, err := s.repo.ListComments(ctx, postID, limit, offset)
	if err != nil {
		return nil, databaseError("list comments", err, ErrPostNotFound)
	}
	return comments, nil
}
