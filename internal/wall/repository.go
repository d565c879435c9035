package wall

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"memorywall/internal/common"
	"memorywall/internal/dbmysql"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=wall

// PostQuery narrows ListPosts. Zero values mean no constraint.
type PostQuery struct {
	Status      common.PostStatus
	VisibleOnly bool
	Since       time.Time
}

type Repository interface {
	CreatePost(ctx context.Context, post *dbmysql.Post, link *dbmysql.SocialLink) error
	GetPost(ctx context.Context, id string) (*dbmysql.Post, error)
	ListPosts(ctx context.Context, q PostQuery) ([]dbmysql.Post, error)
	UpdateStatus(ctx context.Context, id string, status common.PostStatus) (*dbmysql.Post, error)
	UpdateVisibility(ctx context.Context, id string, visible bool) (*dbmysql.Post, error)
	DeletePost(ctx context.Context, id string) (*dbmysql.Post, []string, error)

	ToggleLike(ctx context.Context, postID, actorID string) (bool, error)
	HasLiked(ctx context.Context, postID, actorID string) (bool, error)

	AddReaction(ctx context.Context, reaction *dbmysql.Reaction) error
	DeleteReaction(ctx context.Context, id string) error
	ReactionCounts(ctx context.Context, postID string) (map[string]int, error)

	AddComment(ctx context.Context, comment *dbmysql.Comment) error
	ListComments(ctx context.Context, postID string, limit, offset int) ([]dbmysql.Comment, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &postRepository{db: db}
}

// CreatePost stores the post and, when given, its social links in one transaction.
func (r *postRepository) CreatePost(ctx context.Context, post *dbmysql.Post, link *dbmysql.SocialLink) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		if link == nil {
			return nil
		}
		link.PostID = &post.ID
		return tx.Create(link).Error
	})
}

func (r *postRepository) GetPost(ctx context.Context, id string) (*dbmysql.Post, error) {
	var post dbmysql.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListPosts(ctx context.Context, q PostQuery) ([]dbmysql.Post, error) {
	tx := r.db.WithContext(ctx).Model(&dbmysql.Post{})
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}
	if q.VisibleOnly {
		tx = tx.Where("is_visible = ?", true)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("created_at >= ?", q.Since)
	}

	var posts []dbmysql.Post
	if err := tx.Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, id string, status common.PostStatus) (*dbmysql.Post, error) {
	return r.updatePost(ctx, id, "status", string(status))
}

func (r *postRepository) UpdateVisibility(ctx context.Context, id string, visible bool) (*dbmysql.Post, error) {
	return r.updatePost(ctx, id, "is_visible", visible)
}

func (r *postRepository) updatePost(ctx context.Context, id, column string, value any) (*dbmysql.Post, error) {
	var post dbmysql.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			return err
		}
		if err := tx.Model(&post).Update(column, value).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&post).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes the post with its likes, reactions, comments and links.
// It returns the removed row and the image URLs of the removed comments.
func (r *postRepository) DeletePost(ctx context.Context, id string) (*dbmysql.Post, []string, error) {
	var post dbmysql.Post
	var commentImages []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			return err
		}
		if err := tx.Model(&dbmysql.Comment{}).
			Where("post_id = ? AND image_url IS NOT NULL AND image_url <> ''", id).
			Pluck("image_url", &commentImages).Error; err != nil {
			return err
		}
		for _, model := range []any{&dbmysql.Like{}, &dbmysql.Reaction{}, &dbmysql.Comment{}, &dbmysql.SocialLink{}} {
			if err := tx.Where("post_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &post, commentImages, nil
}

// ToggleLike adds the actor's like or removes it, keeping likes_count in
// step and never below zero. Returns whether the post is now liked. The
// DB must translate driver errors so a lost insert race is recognised.
func (r *postRepository) ToggleLike(ctx context.Context, postID, actorID string) (bool, error) {
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post dbmysql.Post
		if err := tx.Select("id").Where("id = ?", postID).First(&post).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&dbmysql.Like{}).Where("post_id = ? AND actor_id = ?", postID, actorID).Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			if err := tx.Where("post_id = ? AND actor_id = ?", postID, actorID).Delete(&dbmysql.Like{}).Error; err != nil {
				return err
			}
			liked = false
			return tx.Model(&dbmysql.Post{}).Where("id = ?", postID).
				Update("likes_count", gorm.Expr("CASE WHEN likes_count > 0 THEN likes_count - 1 ELSE 0 END")).Error
		}

		// a concurrent toggle by the same actor may have inserted since the
		// count; its increment already covers this like
		if err := tx.Create(&dbmysql.Like{PostID: postID, ActorID: actorID}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				liked = true
				return nil
			}
			return err
		}
		liked = true
		return tx.Model(&dbmysql.Post{}).Where("id = ?", postID).
			Update("likes_count", gorm.Expr("likes_count + 1")).Error
	})
	return liked, err
}

func (r *postRepository) HasLiked(ctx context.Context, postID, actorID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&dbmysql.Like{}).
		Where("post_id = ? AND actor_id = ?", postID, actorID).Count(&count).Error
	return count > 0, err
}

func (r *postRepository) AddReaction(ctx context.Context, reaction *dbmysql.Reaction) error {
	return r.db.WithContext(ctx).Create(reaction).Error
}

func (r *postRepository) DeleteReaction(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&dbmysql.Reaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReactionCounts groups a post's reactions by emoji.
func (r *postRepository) ReactionCounts(ctx context.Context, postID string) (map[string]int, error) {
	var rows []struct {
		Emoji string
		Total int
	}
	err := r.db.WithContext(ctx).Model(&dbmysql.Reaction{}).
		Select("emoji, COUNT(*) AS total").
		Where("post_id = ?", postID).
		Group("emoji").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Emoji] = row.Total
	}
	return counts, nil
}

func (r *postRepository) AddComment(ctx context.Context, comment *dbmysql.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// ListComments returns a page of comments, oldest first.
func (r *postRepository) ListComments(ctx context.Context, postID string, limit, offset int) ([]dbmysql.Comment, error) {
	var comments []dbmysql.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}
