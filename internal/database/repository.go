package database

import (
	"github.com/talkline/counters/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	counter *models.CounterModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		counter: models.NewCounter(db, logger),
	}
}

// Counter returns the unread counter model repository.
func (r *Repository) Counter() *models.CounterModel {
	return r.counter
}
