package dbmysql

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is one memory on the wall.
type Post struct {
	ID          string    `gorm:"primaryKey;size:36;column:id" json:"id"`
	Content     string    `gorm:"type:text;not null;column:content" json:"content"`
	Name        *string   `gorm:"size:100;column:name" json:"name"`
	IsAnonymous bool      `gorm:"not null;default:false;column:is_anonymous" json:"is_anonymous"`
	ImageURL    *string   `gorm:"size:500;column:image_url" json:"image_url"`
	Status      string    `gorm:"size:16;not null;default:approved;index;column:status" json:"status"`
	IsVisible   bool      `gorm:"not null;default:true;column:is_visible" json:"is_visible"`
	LikesCount  int       `gorm:"not null;default:0;column:likes_count" json:"likes_count"`
	CreatedAt   time.Time `gorm:"index;column:created_at" json:"created_at"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Like records that one actor liked one post.
type Like struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PostID    string    `gorm:"size:36;not null;uniqueIndex:idx_likes_post_actor;column:post_id" json:"post_id"`
	ActorID   string    `gorm:"size:64;not null;uniqueIndex:idx_likes_post_actor;column:actor_id" json:"actor_id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Like) TableName() string {
	return "likes"
}
