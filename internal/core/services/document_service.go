package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/workflow"
	"manyame-permits/internal/pkg/metrics"
)

// ErrIntegrity is returned when stored bytes no longer match the recorded hash.
var ErrIntegrity = errors.New("document content does not match its recorded hash")

// DocumentService manages supporting documents
type DocumentService struct {
	store    *repositories.Store
	files    FileStore
	maxBytes int64
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDocumentService creates a new document service
func NewDocumentService(store *repositories.Store, files FileStore, maxBytes int64, logger zerolog.Logger) *DocumentService {
	return &DocumentService{
		store:    store,
		files:    files,
		maxBytes: maxBytes,
		logger:   logger.With().Str("service", "documents").Logger(),
		now:      time.Now,
	}
}

// UploadInput is one file destined for an application's checklist
type UploadInput struct {
	ApplicationID uint
	DocumentType  string
	Filename      string
	Data          []byte
}

// DocumentSlot is one checklist entry with whatever has been attached to it
type DocumentSlot struct {
	DocumentType string                     `json:"document_type"`
	Required     bool                       `json:"required"`
	Documents    []*models.DocumentResponse `json:"documents"`
}

// DocumentGroup is one checklist category
type DocumentGroup struct {
	Category string          `json:"category"`
	Slots    []*DocumentSlot `json:"slots"`
}

// UploadDocument stores the file first and only then records its metadata.
// If the metadata transaction fails the stored file is removed again.
func (s *DocumentService) UploadDocument(ctx context.Context, actor *domain.Actor, input *UploadInput) (_ *models.Document, err error) {
	defer func() { observe(workflow.ActionUploadDocument, err) }()

	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}

	app, err := loadApplication(ctx, s.store.Applications, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if _, err := workflow.Plan(actor, workflow.ActionUploadDocument, ptr(subjectOf(app))); err != nil {
		return nil, err
	}

	docType, filename, err := s.checkUpload(input)
	if err != nil {
		return nil, err
	}
	contentType, _ := domain.ContentTypeFor(filename)

	sum := sha256.Sum256(input.Data)
	key := fmt.Sprintf("%d/%s_%s", app.ID, uuid.NewString(), filename)
	locator, err := s.files.Store(ctx, key, input.Data)
	if err != nil {
		return nil, domain.NewStorageError("store document", err)
	}

	doc := &models.Document{
		ApplicationID:    app.ID,
		DocumentType:     string(docType),
		OriginalFilename: filename,
		FilePath:         locator,
		FileHash:         hex.EncodeToString(sum[:]),
		FileSize:         int64(len(input.Data)),
		ContentType:      contentType,
		UploadedBy:       actor.UserID,
	}

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		// status may have moved since the pre-check
		current, err := loadApplication(ctx, tx.Applications, app.ID)
		if err != nil {
			return err
		}
		tr, err := workflow.Plan(actor, workflow.ActionUploadDocument, ptr(subjectOf(current)))
		if err != nil {
			return err
		}

		now := s.now()
		ok, err := tx.Applications.UpdateIfStatus(ctx, current.ID, current.Status, map[string]interface{}{"updated_at": now})
		if err != nil {
			return domain.NewStorageError("lock application", err)
		}
		if !ok {
			return concurrentChange(workflow.ActionUploadDocument, current)
		}

		doc.UploadedAt = now
		if err := tx.Documents.Create(ctx, doc); err != nil {
			return domain.NewStorageError("record document", err)
		}
		details := fmt.Sprintf("Uploaded %s: %s", doc.DocumentType, doc.OriginalFilename)
		return recordDocumentActivity(ctx, tx.Activities, actor, doc, tr.LogAction, details, now)
	})
	if err != nil {
		if derr := s.files.Delete(ctx, locator); derr != nil {
			s.logger.Error().Err(derr).Str("locator", locator).Msg("failed to remove orphaned upload")
		}
		return nil, err
	}

	metrics.DocumentsUploaded.WithLabelValues(doc.DocumentType).Inc()
	metrics.DocumentBytes.Observe(float64(doc.FileSize))
	s.logger.Info().
		Uint("application_id", doc.ApplicationID).
		Uint("document_id", doc.ID).
		Str("document_type", doc.DocumentType).
		Int64("size", doc.FileSize).
		Msg("document uploaded")
	return doc, nil
}

func (s *DocumentService) checkUpload(input *UploadInput) (domain.DocumentType, string, error) {
	docType, err := domain.ParseDocumentType(strings.TrimSpace(input.DocumentType))
	if err != nil {
		return "", "", err
	}
	filename := sanitizeFilename(input.Filename)
	if filename == "" {
		return "", "", domain.NewValidationError("file", "no file selected")
	}
	if !domain.AllowedFile(filename) {
		return "", "", domain.NewValidationError("file", "file type not allowed; accepted: %s", strings.Join(domain.AllowedExtensions, ", "))
	}
	if len(input.Data) == 0 {
		return "", "", domain.NewValidationError("file", "file is empty")
	}
	if s.maxBytes > 0 && int64(len(input.Data)) > s.maxBytes {
		return "", "", domain.NewValidationError("file", "file exceeds the %d MB limit", s.maxBytes>>20)
	}
	return docType, filename, nil
}

// sanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-].
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}

// DeleteDocument removes the metadata row and its log entry in one transaction,
// then the stored file. A file that cannot be removed after commit is logged as
// an orphan; the metadata never points at a missing file.
func (s *DocumentService) DeleteDocument(ctx context.Context, actor *domain.Actor, documentID uint) (err error) {
	defer func() { observe(workflow.ActionDeleteDocument, err) }()

	if actor == nil {
		return domain.ErrAuthenticationRequired
	}

	var doc *models.Document
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		doc, err = s.loadDocument(ctx, tx, documentID)
		if err != nil {
			return err
		}
		app, err := loadApplication(ctx, tx.Applications, doc.ApplicationID)
		if err != nil {
			return err
		}
		tr, err := workflow.Plan(actor, workflow.ActionDeleteDocument, ptr(subjectOf(app)))
		if err != nil {
			return err
		}

		if err := tx.Documents.Delete(ctx, doc.ID); err != nil {
			return domain.NewStorageError("delete document", err)
		}
		details := fmt.Sprintf("Deleted %s: %s", doc.DocumentType, doc.OriginalFilename)
		return recordDocumentActivity(ctx, tx.Activities, actor, doc, tr.LogAction, details, s.now())
	})
	if err != nil {
		return err
	}

	if derr := s.files.Delete(ctx, doc.FilePath); derr != nil {
		s.logger.Error().Err(derr).
			Uint("document_id", doc.ID).
			Str("locator", doc.FilePath).
			Msg("failed to remove deleted document file")
	}
	return nil
}

// OpenDocument returns a document's bytes after checking them against the stored hash
func (s *DocumentService) OpenDocument(ctx context.Context, actor *domain.Actor, documentID uint) (*models.Document, []byte, error) {
	if actor == nil {
		return nil, nil, domain.ErrAuthenticationRequired
	}

	doc, err := s.loadDocument(ctx, s.store, documentID)
	if err != nil {
		return nil, nil, err
	}
	app, err := loadApplication(ctx, s.store.Applications, doc.ApplicationID)
	if err != nil {
		return nil, nil, err
	}
	if err := workflow.CanRead(actor, subjectOf(app)); err != nil {
		return nil, nil, err
	}

	data, err := s.files.Retrieve(ctx, doc.FilePath)
	if err != nil {
		return nil, nil, domain.NewStorageError("retrieve document", err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != doc.FileHash {
		s.logger.Error().Uint("document_id", doc.ID).Msg("document hash mismatch")
		return nil, nil, domain.NewStorageError("verify document", ErrIntegrity)
	}

	details := fmt.Sprintf("Viewed %s: %s", doc.DocumentType, doc.OriginalFilename)
	if err := recordDocumentActivity(ctx, s.store.Activities, actor, doc, domain.ActionDocumentViewed, details, s.now()); err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// ListDocumentsGrouped returns the checklist for an application in display order
func (s *DocumentService) ListDocumentsGrouped(ctx context.Context, actor *domain.Actor, applicationID uint) ([]*DocumentGroup, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	app, err := loadApplication(ctx, s.store.Applications, applicationID)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanRead(actor, subjectOf(app)); err != nil {
		return nil, err
	}

	docs, err := s.store.Documents.ListByApplication(ctx, app.ID)
	if err != nil {
		return nil, domain.NewStorageError("list documents", err)
	}
	byType := make(map[string][]*models.DocumentResponse)
	for _, d := range docs {
		byType[d.DocumentType] = append(byType[d.DocumentType], d.ToResponse())
	}

	groups := make([]*DocumentGroup, 0, len(domain.DocumentCategories))
	for i, c := range domain.DocumentCategories {
		g := &DocumentGroup{Category: c.Name}
		for _, t := range c.Types {
			g.Slots = append(g.Slots, &DocumentSlot{
				DocumentType: string(t),
				Required:     i == 0,
				Documents:    byType[string(t)],
			})
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// DocumentHistory returns the activity rows recorded against one document
func (s *DocumentService) DocumentHistory(ctx context.Context, actor *domain.Actor, documentID uint) ([]*models.ActivityLog, error) {
	if actor == nil {
		return nil, domain.ErrAuthenticationRequired
	}
	doc, err := s.loadDocument(ctx, s.store, documentID)
	if err != nil {
		return nil, err
	}
	app, err := loadApplication(ctx, s.store.Applications, doc.ApplicationID)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanRead(actor, subjectOf(app)); err != nil {
		return nil, err
	}

	logs, err := s.store.Activities.FindAll(ctx, repositories.ActivityFilter{
		ApplicationID: app.ID,
		DocumentID:    doc.ID,
	})
	if err != nil {
		return nil, domain.NewStorageError("document history", err)
	}
	return logs, nil
}

func (s *DocumentService) loadDocument(ctx context.Context, store *repositories.Store, id uint) (*models.Document, error) {
	doc, err := store.Documents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		return nil, domain.NewStorageError("load document", err)
	}
	return doc, nil
}
