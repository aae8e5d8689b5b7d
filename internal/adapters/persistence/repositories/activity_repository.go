package repositories

import (
	"context"

	"manyame-permits/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// activityRepository implements ActivityRepository interface
type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new activity log repository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

// Create appends a log row
func (r *activityRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Query returns one page of matching rows, newest first, and the total match count
func (r *activityRepository) Query(ctx context.Context, filter ActivityFilter, offset, limit int) ([]*models.ActivityLog, int64, error) {
	var logs []*models.ActivityLog
	var total int64

	q := r.filtered(ctx, filter).Session(&gorm.Session{})

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.
		Preload("User").
		Preload("Application", selectPermitNumber).
		Order("activity_logs.timestamp DESC").
		Order("activity_logs.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&logs).Error

	return logs, total, err
}

// FindAll returns every matching row, newest first
func (r *activityRepository) FindAll(ctx context.Context, filter ActivityFilter) ([]*models.ActivityLog, error) {
	var logs []*models.ActivityLog
	err := r.filtered(ctx, filter).
		Preload("User").
		Preload("Application", selectPermitNumber).
		Order("activity_logs.timestamp DESC").
		Order("activity_logs.id DESC").
		Find(&logs).Error
	return logs, err
}

// MostActiveUsers ranks usernames by number of log rows within rng
func (r *activityRepository) MostActiveUsers(ctx context.Context, rng DateRange, limit int) ([]GroupCount, error) {
	var rows []GroupCount
	err := withinRange(r.db.WithContext(ctx).Model(&models.ActivityLog{}), "activity_logs.timestamp", rng).
		Select("users.username AS label, COUNT(activity_logs.id) AS total").
		Joins("JOIN users ON users.id = activity_logs.user_id").
		Group("users.username").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func selectPermitNumber(db *gorm.DB) *gorm.DB {
	return db.Select("id", "permit_number")
}

func (r *activityRepository) filtered(ctx context.Context, f ActivityFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.ActivityLog{})

	if f.Start != nil {
		q = q.Where("activity_logs.timestamp >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("activity_logs.timestamp < ?", *f.End)
	}
	if f.Action != "" {
		q = q.Where("activity_logs.action = ?", f.Action)
	}
	if f.ApplicationID != 0 {
		q = q.Where("activity_logs.application_id = ?", f.ApplicationID)
	}
	if f.DocumentID != 0 {
		q = q.Where("activity_logs.document_id = ?", f.DocumentID)
	}
	if f.Role != "" {
		q = q.Joins("JOIN users ON users.id = activity_logs.user_id").
			Where("users.role = ?", f.Role)
	}
	if f.Status != "" {
		q = q.Joins("JOIN permit_applications ON permit_applications.id = activity_logs.application_id").
			Where("permit_applications.status = ?", f.Status)
	}
	return q
}
