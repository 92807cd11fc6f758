package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	getByIDFn        func(context.Context, uint, uint) (*models.Post, error)
	existsFn         func(context.Context, uint) (bool, error)
	titleExistsFn    func(context.Context, string, uint) (bool, error)
	feedFn           func(context.Context, repository.FeedQuery) ([]*models.Post, int64, error)
	incrementViewsFn func(context.Context, uint) error
	updateFn         func(context.Context, *models.Post) error
	deleteFn         func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	return s.existsFn(ctx, id)
}
func (s *postRepoStub) TitleExists(ctx context.Context, title string, excludeID uint) (bool, error) {
	return s.titleExistsFn(ctx, title, excludeID)
}
func (s *postRepoStub) Feed(ctx context.Context, q repository.FeedQuery) ([]*models.Post, int64, error) {
	return s.feedFn(ctx, q)
}
func (s *postRepoStub) IncrementViews(ctx context.Context, id uint) error {
	return s.incrementViewsFn(ctx, id)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:      func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:     func(_ context.Context, id, _ uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		existsFn:      func(_ context.Context, _ uint) (bool, error) { return true, nil },
		titleExistsFn: func(_ context.Context, _ string, _ uint) (bool, error) { return false, nil },
		feedFn: func(_ context.Context, _ repository.FeedQuery) ([]*models.Post, int64, error) {
			return []*models.Post{}, 0, nil
		},
		incrementViewsFn: func(_ context.Context, _ uint) error { return nil },
		updateFn:         func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:         func(_ context.Context, _ uint) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	listByPostFn func(context.Context, uint) ([]*models.Comment, error)
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.listByPostFn(ctx, postID)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn:     func(_ context.Context, _ *models.Comment) error { return nil },
		listByPostFn: func(_ context.Context, _ uint) ([]*models.Comment, error) { return []*models.Comment{}, nil },
	}
}

// likeRepoStub keeps likes in memory so toggles can be observed end to end.
type likeRepoStub struct {
	likes     map[[2]uint]bool
	createErr error
}

func newLikeRepoStub() *likeRepoStub {
	return &likeRepoStub{likes: map[[2]uint]bool{}}
}

func (s *likeRepoStub) Exists(_ context.Context, postID, userID uint) (bool, error) {
	return s.likes[[2]uint{postID, userID}], nil
}
func (s *likeRepoStub) Create(_ context.Context, postID, userID uint) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.likes[[2]uint{postID, userID}] = true
	return nil
}
func (s *likeRepoStub) Delete(_ context.Context, postID, userID uint) error {
	delete(s.likes, [2]uint{postID, userID})
	return nil
}
func (s *likeRepoStub) CountByPost(_ context.Context, postID uint) (int64, error) {
	var n int64
	for k := range s.likes {
		if k[0] == postID {
			n++
		}
	}
	return n, nil
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}

// mediaStub records saved and deleted paths.
type mediaStub struct {
	saved   []string
	deleted []string
	saveErr error
}

func (m *mediaStub) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	path := "blog_media/" + filename
	m.saved = append(m.saved, path)
	return path, nil
}

func (m *mediaStub) Delete(_ context.Context, path string) error {
	m.deleted = append(m.deleted, path)
	return nil
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}
