package repositories

import (
	"context"

	"manyame-permits/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// commentRepository implements CommentRepository interface
type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create appends a comment
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// ListByApplication lists comments oldest first
func (r *commentRepository) ListByApplication(ctx context.Context, applicationID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("application_id = ?", applicationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	return comments, err
}

// Count counts comments created within rng
func (r *commentRepository) Count(ctx context.Context, rng DateRange) (int64, error) {
	var count int64
	err := withinRange(r.db.WithContext(ctx).Model(&models.Comment{}), "created_at", rng).
		Count(&count).Error
	return count, err
}
