package repository

import (
	"gorm.io/gorm"

	"nifty-walkforward/pkg/logger"
)

type Repository struct {
	RunRepo RunRepository
}

// NewRepository wires the artifact-store repositories. db may be nil when
// no database is configured; callers must then treat persistence as
// disabled.
func NewRepository(db *gorm.DB, log *logger.Logger) *Repository {
	if db == nil {
		return &Repository{}
	}
	return &Repository{
		RunRepo: NewRunRepository(db),
	}
}
