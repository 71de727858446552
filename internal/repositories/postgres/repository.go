package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db       *gorm.DB
	survey   repositories.SurveyRepository
	response repositories.ResponseRepository
}

// NewRepository wires the PostgreSQL repositories onto one connection.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:       db,
		survey:   NewSurveyPostgreSQL(db),
		response: NewResponsePostgreSQL(db),
	}
}

func (r *repository) Survey() repositories.SurveyRepository {
	return r.survey
}

func (r *repository) Response() repositories.ResponseRepository {
	return r.response
}

func (r *repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
