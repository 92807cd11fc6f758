package database

import (
	"path/filepath"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
)

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "blog.db?_foreign_keys=on", SQLiteDSN("blog.db"))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on", SQLiteDSN("file:x?mode=memory"))
}

func TestDialector(t *testing.T) {
	d, err := Dialector(&config.Config{DBDriver: "sqlite", SQLitePath: "x.db"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())

	d, err = Dialector(&config.Config{DBDriver: "postgres", DBHost: "db", DBPort: "5432"})
	require.NoError(t, err)
	pg, ok := d.(*postgres.Dialector)
	require.True(t, ok)
	assert.Contains(t, pg.Config.DSN, "host=db")
	assert.Contains(t, pg.Config.DSN, "sslmode=disable")

	_, err = Dialector(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestConnect_SQLiteMigratesAndCascades(t *testing.T) {
	cfg := &config.Config{
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "inkwell.db"),
		Env:        "test",
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	author := models.User{Username: "author", Password: "x"}
	require.NoError(t, db.Create(&author).Error)
	post := models.Post{Title: "Hello", Content: "World", AuthorID: author.ID}
	require.NoError(t, db.Create(&post).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, UserID: &author.ID, Text: "hi"}).Error)
	require.NoError(t, db.Create(&models.Like{PostID: post.ID, UserID: author.ID}).Error)

	require.NoError(t, db.Delete(&models.Post{}, post.ID).Error)

	var comments, likes int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	assert.Zero(t, comments)
	assert.Zero(t, likes)

	require.NoError(t, Ping(t.Context(), db))
}

func TestMigrate_UniqueConstraints(t *testing.T) {
	cfg := &config.Config{
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "unique.db"),
		Env:        "test",
	}
	db, err := Connect(cfg)
	require.NoError(t, err)

	author := models.User{Username: "author", Password: "x"}
	require.NoError(t, db.Create(&author).Error)
	require.NoError(t, db.Create(&models.Post{Title: "Same", Content: "a", AuthorID: author.ID}).Error)
	assert.Error(t, db.Create(&models.Post{Title: "Same", Content: "b", AuthorID: author.ID}).Error)

	var post models.Post
	require.NoError(t, db.Where("title = ?", "Same").First(&post).Error)
	require.NoError(t, db.Create(&models.Like{PostID: post.ID, UserID: author.ID}).Error)
	assert.Error(t, db.Create(&models.Like{PostID: post.ID, UserID: author.ID}).Error)
}

func TestConnectWithOptions_SkipsSchema(t *testing.T) {
	cfg := &config.Config{
		DBDriver:   "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "bare.db"),
		Env:        "test",
	}
	db, err := ConnectWithOptions(cfg, ConnectOptions{ApplySchema: false})
	require.NoError(t, err)
	assert.False(t, db.Migrator().HasTable(&models.Post{}))

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&models.Post{}))
}
