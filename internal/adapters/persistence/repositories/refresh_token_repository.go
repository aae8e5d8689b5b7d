package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"manyame-permits/internal/adapters/persistence/models"
)

// ErrTokenAlreadyRevoked is returned by Rotate when the presented token lost a race with another rotation or a logout.
var ErrTokenAlreadyRevoked = errors.New("refresh token already revoked")

type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// GetByTokenHash returns the token row for hash, revoked or not
func (r *refreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// Rotate revokes oldID and stores next in one transaction. Only one caller can
// rotate a given token.
func (r *refreshTokenRepository) Rotate(ctx context.Context, oldID uint, next *models.RefreshToken) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := revoke(tx.Where("id = ?", oldID))
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrTokenAlreadyRevoked
		}
		return tx.Create(next).Error
	})
}

// RevokeByTokenHash revokes one token. Revoking an unknown or revoked token is not an error.
func (r *refreshTokenRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := revoke(r.db.WithContext(ctx).Where("token_hash = ?", tokenHash))
	return err
}

// RevokeAllByUserID ends every session of a user
func (r *refreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID uint) (int64, error) {
	return revoke(r.db.WithContext(ctx).Where("user_id = ?", userID))
}

// DeleteExpired purges tokens that expired or were revoked before at
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at < ?", at, at).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}

// CountActiveByUserID counts the user's live sessions at the given instant
func (r *refreshTokenRepository) CountActiveByUserID(ctx context.Context, userID uint, at time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, at).
		Count(&count).Error
	return count, err
}

// revoke stamps revoked_at on the still-live rows matched by scope
func revoke(scope *gorm.DB) (int64, error) {
	res := scope.
		Model(&models.RefreshToken{}).
		Where("revoked_at IS NULL").
		Update("revoked_at", time.Now())
	return res.RowsAffected, res.Error
}
