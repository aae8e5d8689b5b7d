package repositories

import (
	"context"

	"manyame-permits/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// documentRepository implements DocumentRepository interface
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create creates document metadata
func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// GetByID gets a document by ID
func (r *documentRepository) GetByID(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Preload("Uploader").
		First(&doc, id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByApplication lists an application's documents, newest first
func (r *documentRepository) ListByApplication(ctx context.Context, applicationID uint) ([]*models.Document, error) {
	var docs []*models.Document
	err := r.db.WithContext(ctx).
		Preload("Uploader").
		Where("application_id = ?", applicationID).
		Order("uploaded_at DESC").
		Order("id DESC").
		Find(&docs).Error
	return docs, err
}

// TypesForApplication returns the distinct document types attached to an application
func (r *documentRepository) TypesForApplication(ctx context.Context, applicationID uint) ([]string, error) {
	var types []string
	err := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("application_id = ?", applicationID).
		Distinct().
		Pluck("document_type", &types).Error
	return types, err
}

// Delete deletes document metadata
func (r *documentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Document{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByType groups documents uploaded within rng by type
func (r *documentRepository) CountByType(ctx context.Context, rng DateRange) ([]GroupCount, error) {
	var rows []GroupCount
	err := withinRange(r.db.WithContext(ctx).Model(&models.Document{}), "uploaded_at", rng).
		Select("document_type AS label, COUNT(*) AS total").
		Group("document_type").
		Order("total DESC").
		Scan(&rows).Error
	return rows, err
}
