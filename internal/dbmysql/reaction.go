package dbmysql

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Reaction struct {
	ID        string    `gorm:"primaryKey;size:36;column:id" json:"id"`
	PostID    string    `gorm:"size:36;not null;index;column:post_id" json:"post_id"`
	Emoji     string    `gorm:"size:32;not null;column:emoji" json:"emoji"` // ❤️, 😂, 🎉 ...
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Reaction) TableName() string {
	return "reactions"
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type Comment struct {
	ID        string    `gorm:"primaryKey;size:36;column:id" json:"id"`
	PostID    string    `gorm:"size:36;not null;index;column:post_id" json:"post_id"`
	Content   string    `gorm:"type:text;not null;column:content" json:"content"`
	ImageURL  *string   `gorm:"size:500;column:image_url" json:"image_url"`
	CreatedAt time.Time `gorm:"index;column:created_at" json:"created_at"`
}

func (Comment) TableName() string {
	return "comments"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// SocialLink holds optional profile handles left with a submission.
type SocialLink struct {
	ID        string    `gorm:"primaryKey;size:36;column:id" json:"id"`
	PostID    *string   `gorm:"size:36;index;column:post_id" json:"post_id,omitempty"`
	Name      string    `gorm:"size:100;not null;column:name" json:"name"`
	Instagram *string   `gorm:"size:255;column:instagram" json:"instagram,omitempty"`
	Facebook  *string   `gorm:"size:255;column:facebook" json:"facebook,omitempty"`
	Threads   *string   `gorm:"size:255;column:threads" json:"threads,omitempty"`
	X         *string   `gorm:"size:255;column:x" json:"x,omitempty"`
	WhatsApp  *string   `gorm:"size:255;column:whatsapp" json:"whatsapp,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (SocialLink) TableName() string {
	return "social_links"
}

func (s *SocialLink) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// IsEmpty reports whether no handle was given.
func (s *SocialLink) IsEmpty() bool {
	for _, v := range []*string{s.Instagram, s.Facebook, s.Threads, s.X, s.WhatsApp} {
		if v != nil && *v != "" {
			return false
		}
	}
	return true
}
