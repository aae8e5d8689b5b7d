package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store groups every repository over one database handle.
type Store struct {
	db *gorm.DB

	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	Applications  ApplicationRepository
	Counters      PermitCounterRepository
	Documents     DocumentRepository
	Comments      CommentRepository
	Activities    ActivityRepository
}

// NewStore creates a store whose repositories share db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Users:         NewUserRepository(db),
		RefreshTokens: NewRefreshTokenRepository(db),
		Applications:  NewApplicationRepository(db),
		Counters:      NewPermitCounterRepository(db),
		Documents:     NewDocumentRepository(db),
		Comments:      NewCommentRepository(db),
		Activities:    NewActivityRepository(db),
	}
}

// DB returns the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn with a store bound to a single database transaction.
// Returning an error from fn rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
