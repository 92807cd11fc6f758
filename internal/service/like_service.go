package service

import (
	"context"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

type LikeService struct {
	postRepo repository.PostRepository
	likeRepo repository.LikeRepository
}

// ToggleResult reports the like state after a toggle and the post's new like count.
type ToggleResult struct {
	Liked      bool
	LikesCount int64
}

func NewLikeService(postRepo repository.PostRepository, likeRepo repository.LikeRepository) *LikeService {
	return &LikeService{postRepo: postRepo, likeRepo: likeRepo}
}

// Toggle likes the post if the user has not liked it yet and unlikes it otherwise.
// The check and the write are not atomic; the unique (post, user) index stops a racing duplicate.
func (s *LikeService) Toggle(ctx context.Context, userID, postID uint) (*ToggleResult, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", postID)
	}

	liked, err := s.likeRepo.Exists(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	if liked {
		if err := s.likeRepo.Delete(ctx, postID, userID); err != nil {
			return nil, err
		}
	} else if err := s.likeRepo.Create(ctx, postID, userID); err != nil && !models.IsCode(err, models.CodeConflict) {
		return nil, err
	}

	count, err := s.likeRepo.CountByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	result := &ToggleResult{Liked: !liked, LikesCount: count}
	if result.Liked {
		middleware.LikeToggles.WithLabelValues("liked").Inc()
	} else {
		middleware.LikeToggles.WithLabelValues("unliked").Inc()
	}
	return result, nil
}
