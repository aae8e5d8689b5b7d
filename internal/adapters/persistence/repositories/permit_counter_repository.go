package repositories

import (
	"context"

	"manyame-permits/internal/adapters/persistence/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// permitCounterRepository implements PermitCounterRepository interface
type permitCounterRepository struct {
	db *gorm.DB
}

// NewPermitCounterRepository creates a new permit counter repository
func NewPermitCounterRepository(db *gorm.DB) PermitCounterRepository {
	return &permitCounterRepository{db: db}
}

// Next increments and returns the sequence for year. Call it inside the
// approval transaction so a rolled back approval does not consume a number.
func (r *permitCounterRepository) Next(ctx context.Context, year int) (int, error) {
	db := r.db.WithContext(ctx)

	seed := models.PermitCounter{Year: year}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	err := db.Model(&models.PermitCounter{}).
		Where("year = ?", year).
		UpdateColumn("last_seq", gorm.Expr("last_seq + ?", 1)).Error
	if err != nil {
		return 0, err
	}

	var counter models.PermitCounter
	if err := db.Where("year = ?", year).First(&counter).Error; err != nil {
		return 0, err
	}
	return counter.LastSeq, nil
}
