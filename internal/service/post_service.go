// Package service holds the blog's business rules on top of the repositories.
package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultPageSize is the number of posts per feed page when none is configured.
const DefaultPageSize = 10

// LastPage is the page token that selects the final feed page.
const LastPage = "last"

// MediaStore persists uploaded post images.
type MediaStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// Upload is an image attached to a create or update request.
type Upload struct {
	Filename string
	Reader   io.Reader
}

type PostService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	media       MediaStore
	pageSize    int
}

type CreatePostInput struct {
	AuthorID uint
	Title    string
	Content  string
	Media    *Upload
}

// UpdatePostInput carries the fields to change; nil fields keep their value.
type UpdatePostInput struct {
	UserID  uint
	PostID  uint
	Title   *string
	Content *string
	Media   *Upload
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// FeedInput is a feed request as received from the query string.
type FeedInput struct {
	Search   string
	SortBy   string
	Page     string
	ViewerID uint
}

// FeedPage is one page of the feed with paginator metadata.
type FeedPage struct {
	Results     []*models.Post `json:"results"`
	Count       int64          `json:"count"`
	Page        int            `json:"page"`
	NumPages    int            `json:"num_pages"`
	HasNext     bool           `json:"has_next"`
	HasPrevious bool           `json:"has_previous"`
	Search      string         `json:"search,omitempty"`
	SortedBy    string         `json:"sorted_by,omitempty"`
}

type postForm struct {
	Title   string `json:"title" validate:"notblank,max=200"`
	Content string `json:"content" validate:"notblank"`
}

func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	media MediaStore,
	pageSize int,
) *PostService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &PostService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		media:       media,
		pageSize:    pageSize,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, finish := observability.StartSpan(ctx, "PostService.CreatePost", attribute.Int64("author.id", int64(in.AuthorID)))
	defer func() { finish(err) }()

	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	form := postForm{Title: strings.TrimSpace(in.Title), Content: in.Content}
	if fields := validation.Struct(form); fields != nil {
		return nil, models.NewFieldValidationError(fields)
	}
	if err := s.ensureTitleFree(ctx, form.Title, 0); err != nil {
		return nil, err
	}

	post = &models.Post{
		Title:    form.Title,
		Content:  form.Content,
		AuthorID: in.AuthorID,
	}
	if in.Media != nil {
		path, err := s.saveMedia(ctx, in.Media)
		if err != nil {
			return nil, err
		}
		post.Media = path
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.discardMedia(ctx, post.Media)
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "post created",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.Uint64("author_id", uint64(in.AuthorID)),
	)
	return s.postRepo.GetByID(ctx, post.ID, in.AuthorID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (post *models.Post, err error) {
	ctx, finish := observability.StartSpan(ctx, "PostService.UpdatePost", attribute.Int64("post.id", int64(in.PostID)))
	defer func() { finish(err) }()

	post, err = s.authorizedPost(ctx, in.UserID, in.PostID, "You can only update your own posts")
	if err != nil {
		return nil, err
	}

	form := postForm{Title: post.Title, Content: post.Content}
	if in.Title != nil {
		form.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		form.Content = *in.Content
	}
	if fields := validation.Struct(form); fields != nil {
		return nil, models.NewFieldValidationError(fields)
	}
	if form.Title != post.Title {
		if err := s.ensureTitleFree(ctx, form.Title, post.ID); err != nil {
			return nil, err
		}
	}

	oldMedia := post.Media
	post.Title = form.Title
	post.Content = form.Content
	if in.Media != nil {
		path, err := s.saveMedia(ctx, in.Media)
		if err != nil {
			return nil, err
		}
		post.Media = path
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		if post.Media != oldMedia {
			s.discardMedia(ctx, post.Media)
		}
		return nil, err
	}
	if post.Media != oldMedia {
		s.discardMedia(ctx, oldMedia)
	}

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (err error) {
	ctx, finish := observability.StartSpan(ctx, "PostService.DeletePost", attribute.Int64("post.id", int64(in.PostID)))
	defer func() { finish(err) }()

	post, err := s.authorizedPost(ctx, in.UserID, in.PostID, "You can only delete your own posts")
	if err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, post.ID); err != nil {
		return err
	}
	s.discardMedia(ctx, post.Media)

	middleware.Logger.InfoContext(ctx, "post deleted", slog.Uint64("post_id", uint64(post.ID)))
	return nil
}

// ViewPost counts one view of the post and returns it with its comments, newest first.
func (s *PostService) ViewPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	if err := s.postRepo.IncrementViews(ctx, id); err != nil {
		return nil, err
	}
	middleware.PostViews.Inc()

	post, err := s.postRepo.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByPost(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Comments = make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		post.Comments = append(post.Comments, *c)
	}
	return post, nil
}

// Feed returns the requested page of the filtered, sorted feed.
// An unparsable page or one past the end is reported as not found.
func (s *PostService) Feed(ctx context.Context, in FeedInput) (page *FeedPage, err error) {
	ctx, finish := observability.StartSpan(ctx, "PostService.Feed",
		attribute.String("feed.sort", in.SortBy),
		attribute.Bool("feed.search", in.Search != ""),
	)
	defer func() { finish(err) }()

	q := repository.FeedQuery{
		Search:   in.Search,
		SortBy:   in.SortBy,
		Limit:    s.pageSize,
		ViewerID: in.ViewerID,
	}

	number := 1
	pageToken := strings.TrimSpace(in.Page)
	switch {
	case pageToken == "":
	case pageToken == LastPage:
		number = 0
	default:
		n, convErr := strconv.Atoi(pageToken)
		if convErr != nil || n < 1 {
			return nil, models.NewNotFoundError("Page", pageToken)
		}
		number = n
	}

	if number == 0 {
		// Resolve "last" from the total before fetching the page itself.
		_, total, err := s.postRepo.Feed(ctx, repository.FeedQuery{Search: q.Search, Limit: 1})
		if err != nil {
			return nil, err
		}
		number = numPages(total, s.pageSize)
	}

	q.Offset = (number - 1) * s.pageSize
	posts, total, err := s.postRepo.Feed(ctx, q)
	if err != nil {
		return nil, err
	}

	pages := numPages(total, s.pageSize)
	if number > pages {
		return nil, models.NewNotFoundError("Page", number)
	}

	return &FeedPage{
		Results:     posts,
		Count:       total,
		Page:        number,
		NumPages:    pages,
		HasNext:     number < pages,
		HasPrevious: number > 1,
		Search:      q.Search,
		SortedBy:    in.SortBy,
	}, nil
}

// numPages counts pages for total items; an empty feed still has one page.
func numPages(total int64, size int) int {
	if total <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

func (s *PostService) authorizedPost(ctx context.Context, userID, postID uint, denied string) (*models.Post, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, models.NewForbiddenError(denied)
	}
	return post, nil
}

func (s *PostService) ensureTitleFree(ctx context.Context, title string, excludeID uint) error {
	taken, err := s.postRepo.TitleExists(ctx, title, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return models.NewFieldValidationError(map[string][]string{
			"title": {"Blog post with this title already exists."},
		})
	}
	return nil
}

func (s *PostService) saveMedia(ctx context.Context, up *Upload) (string, error) {
	if s.media == nil {
		return "", models.NewValidationError("Media uploads are not enabled")
	}
	return s.media.Save(ctx, up.Filename, up.Reader)
}

// discardMedia removes a stored file; failures are logged since the post change already happened.
func (s *PostService) discardMedia(ctx context.Context, path string) {
	if path == "" || s.media == nil {
		return
	}
	if err := s.media.Delete(ctx, path); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to remove media file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
