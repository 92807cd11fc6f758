package service

import (
	"context"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

// MaxCommentLength caps comment text, in characters.
const MaxCommentLength = 10000

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

type CreateCommentInput struct {
	UserID uint
	PostID uint
	Text   string
	// MalformedBody marks a request body that could not be decoded.
	MalformedBody bool
}

type commentForm struct {
	Text string `json:"text" validate:"notblank,max=10000"`
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
	}
}

// CreateComment checks identity, then the post, then the body, in that order.
// The stored text is trimmed of surrounding whitespace.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.UserID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := s.requirePost(ctx, in.PostID); err != nil {
		return nil, err
	}
	if in.MalformedBody {
		return nil, models.NewValidationError("Invalid request body")
	}
	text := strings.TrimSpace(in.Text)
	if fields := validation.Struct(commentForm{Text: text}); fields != nil {
		return nil, models.NewFieldValidationError(fields)
	}

	userID := in.UserID
	comment := &models.Comment{
		PostID: in.PostID,
		UserID: &userID,
		Text:   text,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	middleware.CommentsCreated.Inc()
	return comment, nil
}

// ListComments returns a post's comments, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

func (s *CommentService) requirePost(ctx context.Context, postID uint) error {
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return err
	}
	if !exists {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}
