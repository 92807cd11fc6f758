// Package seed creates demo data for development databases.
// It is not used by the running server.
package seed

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"inkwell/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded user can log in with.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	hash   string
	titles map[string]struct{}
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. A zero Options.RandSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	f := &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(seed),
		titles: make(map[string]struct{}),
		nextID: 1000,
	}

	if opts.SkipBcrypt {
		f.hash = DefaultPassword
	} else {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password: %w", err)
		}
		f.hash = string(hashed)
	}
	return f, nil
}

func (f *Factory) assignID() uint {
	f.nextID++
	return f.nextID
}

// usernameFrom joins the names into a lowercase login made only of letters, digits and dots.
func usernameFrom(first, last string, n int) string {
	keep := func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}
	return fmt.Sprintf("%s.%s%d", strings.Map(keep, first), strings.Map(keep, last), n)
}

// BuildUser constructs a user without saving it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		Username:  usernameFrom(first, last, f.faker.Number(10, 9999)),
		FirstName: first,
		LastName:  last,
		Email:     f.faker.Email(),
		Password:  f.hash,
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if f.opts.DryRun {
		user.ID = f.assignID()
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// uniqueTitle returns a sentence not yet handed out by this factory.
func (f *Factory) uniqueTitle() string {
	base := strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 7)), ".")
	if len(base) > 190 {
		base = base[:190]
	}
	title := base
	for n := 2; ; n++ {
		if _, taken := f.titles[title]; !taken {
			break
		}
		title = fmt.Sprintf("%s (%d)", base, n)
	}
	f.titles[title] = struct{}{}
	return title
}

// BuildPost constructs a post by author with a creation time spread over
// the last MaxDays days. It is not saved.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	now := time.Now()

	post := &models.Post{
		Title:     f.uniqueTitle(),
		Content:   f.faker.Paragraph(f.faker.Number(1, 4), f.faker.Number(2, 6), 12, "\n\n"),
		AuthorID:  author.ID,
		Views:     uint(f.faker.Number(0, 500)),
		CreatedAt: f.faker.DateRange(now.AddDate(0, 0, -maxDays), now),
	}
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists posts in a single insert.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			p.ID = f.assignID()
		}
		return nil
	}
	return f.db.Omit("Author").CreateInBatches(posts, 100).Error
}

// CreateComment persists a comment by user on post.
func (f *Factory) CreateComment(post *models.Post, user *models.User) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:    post.ID,
		UserID:    &user.ID,
		Text:      f.faker.Sentence(f.faker.Number(4, 20)),
		CreatedAt: f.faker.DateRange(post.CreatedAt, time.Now()),
	}
	if f.opts.DryRun {
		comment.ID = f.assignID()
		return comment, nil
	}
	if err := f.db.Omit("User").Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// LikeBy persists likes of post by each of users.
func (f *Factory) LikeBy(post *models.Post, users []*models.User) error {
	if len(users) == 0 || f.opts.DryRun {
		return nil
	}
	likes := make([]models.Like, 0, len(users))
	for _, u := range users {
		likes = append(likes, models.Like{PostID: post.ID, UserID: u.ID})
	}
	return f.db.Create(&likes).Error
}

// pick returns up to n distinct users chosen at random.
func (f *Factory) pick(users []*models.User, n int) []*models.User {
	if n > len(users) {
		n = len(users)
	}
	shuffled := make([]*models.User, len(users))
	copy(shuffled, users)
	f.faker.ShuffleAnySlice(shuffled)
	return shuffled[:n]
}
