package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// LikeRepository stores which users like which posts.
type LikeRepository interface {
	Exists(ctx context.Context, postID, userID uint) (bool, error)
	Create(ctx context.Context, postID, userID uint) error
	Delete(ctx context.Context, postID, userID uint) error
	CountByPost(ctx context.Context, postID uint) (int64, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository returns a gorm-backed LikeRepository.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Exists(ctx context.Context, postID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Create inserts a like. A concurrent duplicate is rejected by the unique index and reported as a conflict.
func (r *likeRepository) Create(ctx context.Context, postID, userID uint) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(&models.Like{PostID: postID, UserID: userID}).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Post already liked")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *likeRepository) Delete(ctx context.Context, postID, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Like{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *likeRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}
