package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestPostService_CreatePostValidation(t *testing.T) {
	svc := NewPostService(noopPostRepo(), noopCommentRepo(), nil, 10)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    CreatePostInput
		field string
	}{
		{"Missing Title", CreatePostInput{AuthorID: 1, Content: "c"}, "title"},
		{"Blank Title", CreatePostInput{AuthorID: 1, Title: "   ", Content: "c"}, "title"},
		{"Title Too Long", CreatePostInput{AuthorID: 1, Title: strings.Repeat("t", 201), Content: "c"}, "title"},
		{"Missing Content", CreatePostInput{AuthorID: 1, Title: "t"}, "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tt.in)
			assertValidationError(t, err)
			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}

	_, err := svc.CreatePost(ctx, CreatePostInput{Title: "t", Content: "c"})
	assertCode(t, err, models.CodeUnauthorized)
}

func TestPostService_CreatePostDuplicateTitle(t *testing.T) {
	repo := noopPostRepo()
	repo.titleExistsFn = func(_ context.Context, title string, exclude uint) (bool, error) {
		assert.Equal(t, "Hello", title)
		assert.Zero(t, exclude)
		return true, nil
	}
	repo.createFn = func(_ context.Context, _ *models.Post) error {
		t.Fatal("create must not be called")
		return nil
	}
	svc := NewPostService(repo, noopCommentRepo(), nil, 10)

	_, err := svc.CreatePost(context.Background(), CreatePostInput{AuthorID: 1, Title: " Hello ", Content: "c"})
	assertValidationError(t, err)
}

func TestPostService_CreatePostWithMedia(t *testing.T) {
	repo := noopPostRepo()
	var stored *models.Post
	repo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 42
		stored = p
		return nil
	}
	media := &mediaStub{}
	svc := NewPostService(repo, noopCommentRepo(), media, 10)

	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 3,
		Title:    "Pic",
		Content:  "look",
		Media:    &Upload{Filename: "cat.png", Reader: strings.NewReader("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(42), post.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "blog_media/cat.png", stored.Media)
	assert.Equal(t, uint(3), stored.AuthorID)

	// A failed insert removes the file it just stored.
	repo.createFn = func(_ context.Context, _ *models.Post) error { return models.NewInternalError(errors.New("db down")) }
	_, err = svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 3, Title: "Pic2", Content: "look",
		Media: &Upload{Filename: "dog.png", Reader: strings.NewReader("png")},
	})
	assertCode(t, err, models.CodeInternal)
	assert.Equal(t, []string{"blog_media/dog.png"}, media.deleted)
}

func TestPostService_UpdateAndDeleteAuthorOnly(t *testing.T) {
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1, Title: "Old", Content: "old", Media: "blog_media/old.png"}, nil
	}
	media := &mediaStub{}
	svc := NewPostService(repo, noopCommentRepo(), media, 10)
	ctx := context.Background()

	_, err := svc.UpdatePost(ctx, UpdatePostInput{UserID: 2, PostID: 5, Title: strPtr("New")})
	assertCode(t, err, models.CodeForbidden)

	_, err = svc.UpdatePost(ctx, UpdatePostInput{PostID: 5, Title: strPtr("New")})
	assertCode(t, err, models.CodeUnauthorized)

	err = svc.DeletePost(ctx, DeletePostInput{UserID: 2, PostID: 5})
	assertCode(t, err, models.CodeForbidden)

	var updated models.Post
	repo.updateFn = func(_ context.Context, p *models.Post) error {
		updated = *p
		return nil
	}
	_, err = svc.UpdatePost(ctx, UpdatePostInput{
		UserID: 1, PostID: 5,
		Content: strPtr("new body"),
		Media:   &Upload{Filename: "new.png", Reader: strings.NewReader("x")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Old", updated.Title)
	assert.Equal(t, "new body", updated.Content)
	assert.Equal(t, "blog_media/new.png", updated.Media)
	assert.Equal(t, []string{"blog_media/old.png"}, media.deleted)

	deleted := uint(0)
	repo.deleteFn = func(_ context.Context, id uint) error {
		deleted = id
		return nil
	}
	require.NoError(t, svc.DeletePost(ctx, DeletePostInput{UserID: 1, PostID: 5}))
	assert.Equal(t, uint(5), deleted)
	assert.Equal(t, []string{"blog_media/old.png", "blog_media/old.png"}, media.deleted)
}

func TestPostService_UpdateKeepsTitleCheckToOtherPosts(t *testing.T) {
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1, Title: "Mine", Content: "c"}, nil
	}
	repo.titleExistsFn = func(_ context.Context, _ string, exclude uint) (bool, error) {
		assert.Equal(t, uint(9), exclude)
		return true, nil
	}
	svc := NewPostService(repo, noopCommentRepo(), nil, 10)

	// Unchanged title skips the uniqueness lookup.
	_, err := svc.UpdatePost(context.Background(), UpdatePostInput{UserID: 1, PostID: 9, Title: strPtr("Mine")})
	require.NoError(t, err)

	_, err = svc.UpdatePost(context.Background(), UpdatePostInput{UserID: 1, PostID: 9, Title: strPtr("Taken")})
	assertValidationError(t, err)
}

func TestPostService_ViewPost(t *testing.T) {
	repo := noopPostRepo()
	views := 0
	repo.incrementViewsFn = func(_ context.Context, _ uint) error {
		views++
		return nil
	}
	comments := noopCommentRepo()
	comments.listByPostFn = func(_ context.Context, _ uint) ([]*models.Comment, error) {
		return []*models.Comment{{ID: 2, Text: "newer"}, {ID: 1, Text: "older"}}, nil
	}
	svc := NewPostService(repo, comments, nil, 10)

	for i := 0; i < 3; i++ {
		post, err := svc.ViewPost(context.Background(), 7, 0)
		require.NoError(t, err)
		require.Len(t, post.Comments, 2)
		assert.Equal(t, "newer", post.Comments[0].Text)
	}
	assert.Equal(t, 3, views)

	repo.incrementViewsFn = func(_ context.Context, id uint) error { return models.NewNotFoundError("Post", id) }
	_, err := svc.ViewPost(context.Background(), 8, 0)
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_FeedPagination(t *testing.T) {
	repo := noopPostRepo()
	var queries []repository.FeedQuery
	repo.feedFn = func(_ context.Context, q repository.FeedQuery) ([]*models.Post, int64, error) {
		queries = append(queries, q)
		return []*models.Post{{ID: 1}}, 25, nil
	}
	svc := NewPostService(repo, noopCommentRepo(), nil, 10)
	ctx := context.Background()

	page, err := svc.Feed(ctx, FeedInput{Search: "  go ", SortBy: "likes", ViewerID: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.NumPages)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrevious)
	assert.Equal(t, repository.FeedQuery{Search: "  go ", SortBy: "likes", Limit: 10, ViewerID: 4}, queries[0])

	page, err = svc.Feed(ctx, FeedInput{Page: "2"})
	require.NoError(t, err)
	assert.Equal(t, 10, queries[len(queries)-1].Offset)
	assert.True(t, page.HasPrevious)

	page, err = svc.Feed(ctx, FeedInput{Page: "last"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.False(t, page.HasNext)
	assert.Equal(t, 20, queries[len(queries)-1].Offset)

	for _, bad := range []string{"4", "0", "-1", "abc"} {
		_, err = svc.Feed(ctx, FeedInput{Page: bad})
		assertCode(t, err, models.CodeNotFound)
	}
}

func TestPostService_FeedEmpty(t *testing.T) {
	svc := NewPostService(noopPostRepo(), noopCommentRepo(), nil, 0)

	page, err := svc.Feed(context.Background(), FeedInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.NumPages)
	assert.Empty(t, page.Results)
	assert.False(t, page.HasNext)

	_, err = svc.Feed(context.Background(), FeedInput{Page: "2"})
	assertCode(t, err, models.CodeNotFound)
}
