package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"manyame-permits/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// applicationRepository implements ApplicationRepository interface
type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository creates a new permit application repository
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

var groupableColumns = map[string]bool{
	"status":       true,
	"permit_type":  true,
	"water_source": true,
}

// Create creates a new application
func (r *applicationRepository) Create(ctx context.Context, app *models.PermitApplication) error {
	return r.db.WithContext(ctx).Create(app).Error
}

// GetByID gets an application by ID with its creator
func (r *applicationRepository) GetByID(ctx context.Context, id uint) (*models.PermitApplication, error) {
	var app models.PermitApplication
	err := r.db.WithContext(ctx).
		Preload("Creator").
		First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// List lists applications newest first
func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter, offset, limit int) ([]*models.PermitApplication, int64, error) {
	var apps []*models.PermitApplication
	var total int64

	q := r.db.WithContext(ctx).Model(&models.PermitApplication{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CreatedBy != 0 {
		q = q.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.Search != "" {
		like := containsPattern(filter.Search)
		q = q.Where("applicant_name LIKE ? ESCAPE '!' OR permit_number LIKE ? ESCAPE '!' OR physical_address LIKE ? ESCAPE '!'", like, like, like)
	}
	q = q.Session(&gorm.Session{})

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.
		Preload("Creator").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&apps).Error

	return apps, total, err
}

// UpdateIfStatus is a compare-and-swap on the status column.
func (r *applicationRepository) UpdateIfStatus(ctx context.Context, id uint, status string, changes map[string]interface{}) (bool, error) {
	if _, ok := changes["updated_at"]; !ok {
		changes["updated_at"] = time.Now()
	}
	res := r.db.WithContext(ctx).
		Model(&models.PermitApplication{}).
		Where("id = ? AND status = ?", id, status).
		Updates(changes)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Delete removes an application together with its documents, comments and log rows
func (r *applicationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("application_id = ?", id).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		if err := tx.Where("application_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("application_id = ?", id).Delete(&models.ActivityLog{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.PermitApplication{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CountBy groups applications created within rng by one of status, permit_type or water_source
func (r *applicationRepository) CountBy(ctx context.Context, column string, rng DateRange) ([]GroupCount, error) {
	if !groupableColumns[column] {
		return nil, fmt.Errorf("cannot group applications by %q", column)
	}

	var rows []GroupCount
	err := withinRange(r.db.WithContext(ctx).Model(&models.PermitApplication{}), "created_at", rng).
		Select(column + " AS label, COUNT(*) AS total").
		Group(column).
		Order("total DESC").
		Scan(&rows).Error
	return rows, err
}

// ListDecided lists approved or rejected applications created within rng
func (r *applicationRepository) ListDecided(ctx context.Context, rng DateRange) ([]*models.PermitApplication, error) {
	var apps []*models.PermitApplication
	err := withinRange(r.db.WithContext(ctx), "created_at", rng).
		Where("status IN ?", []string{"Approved", "Rejected"}).
		Find(&apps).Error
	return apps, err
}

// ListExpiringBetween lists approved permits whose validity ends in [from, to)
func (r *applicationRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.PermitApplication, error) {
	var apps []*models.PermitApplication
	err := r.db.WithContext(ctx).
		Where("status = ?", "Approved").
		Where("valid_until >= ? AND valid_until < ?", from, to).
		Order("valid_until ASC").
		Find(&apps).Error
	return apps, err
}

// CountExpired counts approved permits whose validity ended before at
func (r *applicationRepository) CountExpired(ctx context.Context, at time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PermitApplication{}).
		Where("status = ?", "Approved").
		Where("valid_until < ?", at).
		Count(&count).Error
	return count, err
}

func withinRange(q *gorm.DB, column string, rng DateRange) *gorm.DB {
	if rng.From != nil {
		q = q.Where(column+" >= ?", *rng.From)
	}
	if rng.To != nil {
		q = q.Where(column+" < ?", *rng.To)
	}
	return q
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern builds a LIKE pattern matching s literally anywhere, for use with ESCAPE '!'
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
