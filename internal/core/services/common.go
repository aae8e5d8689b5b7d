package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"manyame-permits/internal/adapters/persistence/models"
	"manyame-permits/internal/adapters/persistence/repositories"
	"manyame-permits/internal/core/domain"
	"manyame-permits/internal/core/workflow"
	"manyame-permits/internal/pkg/metrics"
)

// recordActivity appends one log row unless the actor is log exempt.
func recordActivity(ctx context.Context, repo repositories.ActivityRepository, actor *domain.Actor, applicationID uint, action, details string, at time.Time) error {
	return appendActivity(ctx, repo, actor, &models.ActivityLog{
		ApplicationID: applicationID,
		Action:        action,
		Details:       details,
		Timestamp:     at,
	})
}

// recordDocumentActivity is recordActivity for a row about one document
func recordDocumentActivity(ctx context.Context, repo repositories.ActivityRepository, actor *domain.Actor, doc *models.Document, action, details string, at time.Time) error {
	return appendActivity(ctx, repo, actor, &models.ActivityLog{
		ApplicationID: doc.ApplicationID,
		DocumentID:    ptr(doc.ID),
		Action:        action,
		Details:       details,
		Timestamp:     at,
	})
}

func appendActivity(ctx context.Context, repo repositories.ActivityRepository, actor *domain.Actor, entry *models.ActivityLog) error {
	if actor.LogExempt() {
		return nil
	}
	entry.UserID = actor.UserID
	if err := repo.Create(ctx, entry); err != nil {
		return domain.NewStorageError("record activity", err)
	}
	return nil
}

// loadApplication maps a missing row to domain.ErrNotFound and anything else to a storage failure.
func loadApplication(ctx context.Context, repo repositories.ApplicationRepository, id uint) (*models.PermitApplication, error) {
	app, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("application %d: %w", id, domain.ErrNotFound)
		}
		return nil, domain.NewStorageError("load application", err)
	}
	return app, nil
}

func subjectOf(app *models.PermitApplication) workflow.Subject {
	return workflow.Subject{OwnerID: app.CreatedBy, Status: domain.Status(app.Status)}
}

// observe counts the outcome of a workflow operation.
func observe(action workflow.Action, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPermissionDenied), errors.Is(err, domain.ErrAuthenticationRequired):
		outcome = metrics.OutcomeDenied
	case errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrMissingRequiredDocument),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound):
		outcome = metrics.OutcomeInvalid
	default:
		outcome = metrics.OutcomeError
	}
	metrics.TransitionsTotal.WithLabelValues(string(action), outcome).Inc()
}

// pageBounds normalises page and limit the same way the pagination package does.
func pageBounds(page, limit, defaultLimit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}

func totalPages(total int64, limit int) int {
	pages := int(total) / limit
	if int(total)%limit > 0 {
		pages++
	}
	return pages
}
