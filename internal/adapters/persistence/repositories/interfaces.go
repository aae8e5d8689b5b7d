package repositories

import (
	"context"
	"time"

	"manyame-permits/internal/adapters/persistence/models"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	SetActive(ctx context.Context, id uint, active bool) error
	SetPassword(ctx context.Context, id uint, hash string) error
	List(ctx context.Context, role string, offset, limit int) ([]*models.User, int64, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Rotate(ctx context.Context, oldID uint, next *models.RefreshToken) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID uint) (int64, error)
	DeleteExpired(ctx context.Context, at time.Time) (int64, error)
	CountActiveByUserID(ctx context.Context, userID uint, at time.Time) (int64, error)
}

// ApplicationRepository defines permit application repository interface
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.PermitApplication) error
	GetByID(ctx context.Context, id uint) (*models.PermitApplication, error)
	List(ctx context.Context, filter ApplicationFilter, offset, limit int) ([]*models.PermitApplication, int64, error)
	// UpdateIfStatus applies changes only while the row still has the given
	// status and reports whether the row was updated.
	UpdateIfStatus(ctx context.Context, id uint, status string, changes map[string]interface{}) (bool, error)
	Delete(ctx context.Context, id uint) error
	CountBy(ctx context.Context, column string, rng DateRange) ([]GroupCount, error)
	ListDecided(ctx context.Context, rng DateRange) ([]*models.PermitApplication, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.PermitApplication, error)
	CountExpired(ctx context.Context, at time.Time) (int64, error)
}

// PermitCounterRepository issues permit sequence numbers.
type PermitCounterRepository interface {
	Next(ctx context.Context, year int) (int, error)
}

// DocumentRepository defines document metadata repository interface
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uint) (*models.Document, error)
	ListByApplication(ctx context.Context, applicationID uint) ([]*models.Document, error)
	TypesForApplication(ctx context.Context, applicationID uint) ([]string, error)
	Delete(ctx context.Context, id uint) error
	CountByType(ctx context.Context, rng DateRange) ([]GroupCount, error)
}

// CommentRepository defines comment repository interface
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByApplication(ctx context.Context, applicationID uint) ([]*models.Comment, error)
	Count(ctx context.Context, rng DateRange) (int64, error)
}

// ActivityRepository defines activity log repository interface. The log is
// append-only: there is no update or delete.
type ActivityRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	Query(ctx context.Context, filter ActivityFilter, offset, limit int) ([]*models.ActivityLog, int64, error)
	FindAll(ctx context.Context, filter ActivityFilter) ([]*models.ActivityLog, error)
	MostActiveUsers(ctx context.Context, rng DateRange, limit int) ([]GroupCount, error)
}

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	Status    string
	CreatedBy uint
	Search    string
}

// ActivityFilter narrows activity log queries. End is exclusive.
type ActivityFilter struct {
	Start         *time.Time
	End           *time.Time
	Action        string
	Role          string
	Status        string
	ApplicationID uint
	DocumentID    uint
}

// DateRange bounds a report window. Nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// GroupCount is one row of a GROUP BY aggregate.
type GroupCount struct {
	Label string `json:"label"`
	Total int64  `json:"total"`
}
