// Package testutil provides shared database fixtures for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory SQLite database with the schema applied.
// Each call gets its own database, so tests may run in parallel.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(database.SQLiteDSN(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// A single connection keeps the shared in-memory database alive for the whole test.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// CreateUser persists a user with the given username and optional names.
func CreateUser(t *testing.T, db *gorm.DB, username string, names ...string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Password: "not-a-real-hash"}
	if len(names) > 0 {
		user.FirstName = names[0]
	}
	if len(names) > 1 {
		user.LastName = names[1]
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// PostOption customizes a fixture post before it is stored.
type PostOption func(*models.Post)

// WithViews sets the stored view counter.
func WithViews(views uint) PostOption {
	return func(p *models.Post) { p.Views = views }
}

// WithCreatedAt sets the stored creation time.
func WithCreatedAt(ts time.Time) PostOption {
	return func(p *models.Post) { p.CreatedAt = ts }
}

// WithContent sets the post body.
func WithContent(content string) PostOption {
	return func(p *models.Post) { p.Content = content }
}

// CreatePost persists a post authored by author.
func CreatePost(t *testing.T, db *gorm.DB, author *models.User, title string, opts ...PostOption) *models.Post {
	t.Helper()
	post := &models.Post{Title: title, Content: "body of " + title, AuthorID: author.ID}
	for _, opt := range opts {
		opt(post)
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("create post %s: %v", title, err)
	}
	return post
}

// CreateLike persists a like of post by user.
func CreateLike(t *testing.T, db *gorm.DB, post *models.Post, user *models.User) {
	t.Helper()
	if err := db.Create(&models.Like{PostID: post.ID, UserID: user.ID}).Error; err != nil {
		t.Fatalf("create like: %v", err)
	}
}
