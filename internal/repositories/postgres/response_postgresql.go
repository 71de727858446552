package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"gorm.io/gorm"
)

type ResponsePostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewResponsePostgreSQL(db *gorm.DB) repositories.ResponseRepository {
	return &ResponsePostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (r *ResponsePostgreSQL) Create(ctx context.Context, response *models.SurveyResponse) error {
	if err := r.db.WithContext(ctx).Create(response).Error; err != nil {
		return fmt.Errorf("failed to store response: %w", err)
	}
	return nil
}

func (r *ResponsePostgreSQL) GetByID(ctx context.Context, id string) (*models.SurveyResponse, error) {
	var response models.SurveyResponse
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&response).Error; err != nil {
		return nil, err
	}
	return &response, nil
}

func (r *ResponsePostgreSQL) ListBySurvey(ctx context.Context, surveyID string, filters repositories.ResponseFilters) ([]*models.SurveyResponse, int64, error) {
	var responses []*models.SurveyResponse
	var total int64

	query := r.db.WithContext(ctx).Model(&models.SurveyResponse{}).Where("survey_id = ?", surveyID)
	if filters.DateFrom != nil {
		query = query.Where("completed_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("completed_at <= ?", *filters.DateTo)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.helpers.ApplyPaginationAndSort(query, "completed_at", "desc", filters.Limit, filters.Offset, "completed_at")
	if err := query.Find(&responses).Error; err != nil {
		return nil, 0, err
	}

	return responses, total, nil
}

func (r *ResponsePostgreSQL) CountBySurvey(ctx context.Context, surveyID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SurveyResponse{}).
		Where("survey_id = ?", surveyID).
		Count(&count).Error
	return count, err
}

func (r *ResponsePostgreSQL) ExistsBySession(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SurveyResponse{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count > 0, err
}
