package dbmysql

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestMigrate(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(db))
	// idempotent
	require.NoError(t, Migrate(db))

	for _, table := range []string{"posts", "likes", "reactions", "comments", "social_links"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex(&Like{}, "idx_likes_post_actor"))
}

func TestBeforeCreateAssignsIDs(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(db))

	post := &Post{Content: "hello"}
	require.NoError(t, db.Create(post).Error)
	_, err := uuid.Parse(post.ID)
	require.NoError(t, err)

	var stored Post
	require.NoError(t, db.First(&stored, "id = ?", post.ID).Error)
	assert.Equal(t, "approved", stored.Status)
	assert.True(t, stored.IsVisible)
	assert.Zero(t, stored.LikesCount)

	kept := &Post{ID: "fixed-id", Content: "keep my id"}
	require.NoError(t, db.Create(kept).Error)
	assert.Equal(t, "fixed-id", kept.ID)

	reaction := &Reaction{PostID: post.ID, Emoji: "🎉"}
	comment := &Comment{PostID: post.ID, Content: "nice"}
	link := &SocialLink{PostID: &post.ID, Name: "Asha"}
	require.NoError(t, db.Create(reaction).Error)
	require.NoError(t, db.Create(comment).Error)
	require.NoError(t, db.Create(link).Error)
	assert.NotEmpty(t, reaction.ID)
	assert.NotEmpty(t, comment.ID)
	assert.NotEmpty(t, link.ID)
}

func TestLikeIsUniquePerActor(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&Like{PostID: "p", ActorID: "a"}).Error)
	assert.ErrorIs(t, db.Create(&Like{PostID: "p", ActorID: "a"}).Error, gorm.ErrDuplicatedKey)
	assert.NoError(t, db.Create(&Like{PostID: "p", ActorID: "b"}).Error)
}

func TestSocialLinkIsEmpty(t *testing.T) {
	empty := ""
	handle := "@asha"
	tests := []struct {
		name string
		link SocialLink
		want bool
	}{
		{"no handles", SocialLink{}, true},
		{"blank handle", SocialLink{Instagram: &empty}, true},
		{"one handle", SocialLink{WhatsApp: &handle}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.link.IsEmpty())
		})
	}
}
