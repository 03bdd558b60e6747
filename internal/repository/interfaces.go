package repository

import (
	"detectserver/internal/model"
)

// PredictionRepository stores the outcome of each prediction request.
type PredictionRepository interface {
	// Create operations
	Insert(rec *model.PredictionRecord) (int64, error)

	// Read operations
	GetByID(id int64) (*model.PredictionRecord, error)
	GetRecent(limit int) ([]model.PredictionRecord, error)
	GetStats() (*model.PredictionStats, error)

	// Delete operations
	DeleteAll() error
}
