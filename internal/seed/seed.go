package seed

import (
	"fmt"
	"log/slog"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Users              int
	Posts              int
	MaxCommentsPerPost int
	// MaxDays bounds how far back post creation times are spread.
	MaxDays    int
	Clean      bool
	DryRun     bool
	SkipBcrypt bool
	RandSeed   int64
}

// Result summarizes what a run created.
type Result struct {
	Users    int
	Posts    int
	Comments int
	Likes    int
}

// Seeder fills a database with fake users, posts, comments and likes.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder builds a seeder for db.
func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	factory, err := NewFactory(db, opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{db: db, opts: opts, factory: factory}, nil
}

// ClearAll removes every row the blog owns, children first.
func (s *Seeder) ClearAll() error {
	if s.opts.DryRun {
		return nil
	}
	for _, model := range []any{&models.Comment{}, &models.Like{}, &models.Post{}, &models.User{}} {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	middleware.Logger.Info("cleared existing data")
	return nil
}

// Run seeds according to the options and reports the totals.
func (s *Seeder) Run() (*Result, error) {
	if s.opts.Clean {
		if err := s.ClearAll(); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u, err := s.factory.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)
	if len(users) == 0 {
		return res, nil
	}

	posts := make([]*models.Post, 0, s.opts.Posts)
	for i := 0; i < s.opts.Posts; i++ {
		author := users[s.factory.faker.Number(0, len(users)-1)]
		posts = append(posts, s.factory.BuildPost(author))
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	res.Posts = len(posts)

	for _, post := range posts {
		likers := s.factory.pick(users, s.factory.faker.Number(0, len(users)))
		if err := s.factory.LikeBy(post, likers); err != nil {
			return nil, fmt.Errorf("like post %d: %w", post.ID, err)
		}
		res.Likes += len(likers)

		if s.opts.MaxCommentsPerPost <= 0 {
			continue
		}
		for n := s.factory.faker.Number(0, s.opts.MaxCommentsPerPost); n > 0; n-- {
			commenter := users[s.factory.faker.Number(0, len(users)-1)]
			if _, err := s.factory.CreateComment(post, commenter); err != nil {
				return nil, fmt.Errorf("comment on post %d: %w", post.ID, err)
			}
			res.Comments++
		}
	}

	middleware.Logger.Info("seeding complete",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("comments", res.Comments),
		slog.Int("likes", res.Likes),
		slog.Bool("dry_run", s.opts.DryRun),
	)
	return res, nil
}
