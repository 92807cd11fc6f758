package repository

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// Feed sort keys accepted by FeedQuery.SortBy. Anything else sorts by recency.
const (
	SortByViews = "views"
	SortByLikes = "likes"
)

// FeedQuery selects one page of the post feed.
type FeedQuery struct {
	// Search is matched case-insensitively against title, content and the
	// author's username, first name and last name. Blank means no filter.
	Search string
	SortBy string
	Limit  int
	Offset int
	// ViewerID fills Post.Liked; 0 for anonymous viewers.
	ViewerID uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	Exists(ctx context.Context, id uint) (bool, error)
	TitleExists(ctx context.Context, title string, excludeID uint) (bool, error)
	Feed(ctx context.Context, q FeedQuery) ([]*models.Post, int64, error)
	IncrementViews(ctx context.Context, id uint) error
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func titleTakenError() error {
	return models.NewFieldValidationError(map[string][]string{
		"title": {"Blog post with this title already exists."},
	})
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("Author", "Comments", "Likes").Create(post).Error; err != nil {
		if isUniqueConstraintError(err) {
			return titleTakenError()
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx), viewerID).
		Preload("Author").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *postRepository) TitleExists(ctx context.Context, title string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Post{}).Where("title = ?", title)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Feed returns one page of posts matching q together with the total number of matches.
func (r *postRepository) Feed(ctx context.Context, q FeedQuery) ([]*models.Post, int64, error) {
	search := q.Search

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Scopes(searchScope(search)).
		Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	posts := []*models.Post{}
	if total == 0 {
		return posts, 0, nil
	}

	query := r.applyPostDetails(r.db.WithContext(ctx), q.ViewerID).
		Scopes(searchScope(search)).
		Preload("Author")
	query = r.applySort(query, q.SortBy)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

// searchColumns are the columns a feed search looks in.
var searchColumns = []string{"posts.title", "posts.content", "authors.username", "authors.first_name", "authors.last_name"}

// searchScope restricts posts to those whose title, content or author names contain search.
// SQLite's LIKE folds ASCII case only and compares other characters exactly; PostgreSQL's
// ILIKE folds case for the whole collation.
func searchScope(search string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if search == "" {
			return db
		}
		op := "ILIKE"
		if db.Dialector.Name() == "sqlite" {
			op = "LIKE"
		}
		p := containsPattern(search)

		conds := make([]string, 0, len(searchColumns))
		args := make([]any, 0, len(searchColumns))
		for _, col := range searchColumns {
			conds = append(conds, col+" "+op+` ? ESCAPE '\'`)
			args = append(args, p)
		}
		return db.
			Joins("JOIN users AS authors ON authors.id = posts.author_id").
			Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// applySort appends the ORDER BY clause for the requested sort key.
// likes_count is a SELECT alias from applyPostDetails; both PostgreSQL and SQLite
// allow referencing it in ORDER BY within the same query level.
func (r *postRepository) applySort(db *gorm.DB, sortBy string) *gorm.DB {
	switch sortBy {
	case SortByViews:
		return db.Order("posts.views DESC, posts.id DESC")
	case SortByLikes:
		return db.Order("likes_count DESC, posts.views DESC, posts.id DESC")
	default:
		return db.Order("posts.created_at DESC, posts.views DESC, posts.id DESC")
	}
}

// applyPostDetails adds subqueries to fetch counts and liked status in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked", viewerID)
	}

	return db.Select(selectQuery + ", false AS liked")
}

func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// Update writes the editable fields of post. Views and authorship are left untouched.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).
		Model(post).
		Select("title", "content", "media", "updated_at").
		Updates(map[string]interface{}{
			"title":   post.Title,
			"content": post.Content,
			"media":   post.Media,
		})
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return titleTakenError()
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

// Delete removes the post with its comments and likes in one transaction.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}
