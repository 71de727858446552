package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"gorm.io/gorm"
)

type SurveyPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewSurveyPostgreSQL(db *gorm.DB) repositories.SurveyRepository {
	return &SurveyPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (s *SurveyPostgreSQL) Create(ctx context.Context, survey *models.Survey) error {
	if survey.Status == "" {
		survey.Status = models.SurveyStatusDraft
	}
	if survey.Version == 0 {
		survey.Version = 1
	}
	if err := s.db.WithContext(ctx).Create(survey).Error; err != nil {
		return fmt.Errorf("failed to create survey: %w", err)
	}
	return nil
}

func (s *SurveyPostgreSQL) GetByID(ctx context.Context, id string) (*models.Survey, error) {
	var survey models.Survey
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&survey).Error; err != nil {
		return nil, err
	}
	return &survey, nil
}

func (s *SurveyPostgreSQL) Update(ctx context.Context, survey *models.Survey) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&models.Survey{}).
			Where("id = ? AND version = ?", survey.ID, survey.Version).
			Updates(map[string]interface{}{
				"title":       survey.Title,
				"description": survey.Description,
				"category":    survey.Category,
				"document":    survey.Document,
				"version":     gorm.Expr("version + 1"),
				"updated_at":  now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update survey: %w", result.Error)
		}

		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Survey{}).Where("id = ?", survey.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check survey: %w", err)
			}
			if count == 0 {
				return gorm.ErrRecordNotFound
			}
			return repositories.ErrVersionConflict
		}

		survey.Version++
		survey.UpdatedAt = now
		return nil
	})
}

func (s *SurveyPostgreSQL) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Survey{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete survey: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SurveyPostgreSQL) List(ctx context.Context, filters repositories.SurveyFilters) ([]*models.Survey, int64, error) {
	var surveys []*models.Survey
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Survey{})
	query = s.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = s.applyPaginationAndSort(query, filters)

	// the document blob is not needed for catalog listings
	if err := query.Omit("document").Find(&surveys).Error; err != nil {
		return nil, 0, err
	}

	if err := s.attachResponseCounts(ctx, surveys); err != nil {
		return nil, 0, err
	}

	return surveys, total, nil
}

func (s *SurveyPostgreSQL) UpdateStatus(ctx context.Context, id string, status models.SurveyStatus, publishedAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if publishedAt != nil {
		updates["published_at"] = publishedAt
	}

	result := s.db.WithContext(ctx).Model(&models.Survey{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update survey status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SurveyPostgreSQL) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).Model(&models.Survey{}).
		Where("category <> ''").
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// Helper functions

func (s *SurveyPostgreSQL) applyFilters(query *gorm.DB, filters repositories.SurveyFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}
	if filters.Search != "" {
		pattern := s.helpers.SearchPattern(filters.Search)
		query = query.Where("title ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	return query
}

func (s *SurveyPostgreSQL) applyPaginationAndSort(query *gorm.DB, filters repositories.SurveyFilters) *gorm.DB {
	return s.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		"created_at", "updated_at", "title", "published_at")
}

func (s *SurveyPostgreSQL) attachResponseCounts(ctx context.Context, surveys []*models.Survey) error {
	if len(surveys) == 0 {
		return nil
	}

	ids := make([]string, len(surveys))
	for i, survey := range surveys {
		ids[i] = survey.ID
	}

	var rows []struct {
		SurveyID string
		Count    int64
	}
	err := s.db.WithContext(ctx).Model(&models.SurveyResponse{}).
		Select("survey_id, COUNT(*) as count").
		Where("survey_id IN ?", ids).
		Group("survey_id").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to count responses: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.SurveyID] = row.Count
	}
	for _, survey := range surveys {
		survey.ResponseCount = counts[survey.ID]
	}
	return nil
}
