package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"gorm.io/gorm"
)

// ErrVersionConflict is returned when a survey was changed by someone else
// between read and write.
var ErrVersionConflict = errors.New("survey was modified concurrently")

// ===== SHARED FILTER STRUCTS =====

type SurveyFilters struct {
	Status    *models.SurveyStatus `json:"status" form:"status" validate:"omitempty,survey_status"`
	Category  string               `json:"category" form:"category"`
	Search    string               `json:"search" form:"search" validate:"max=200"`
	Limit     int                  `json:"limit" form:"limit" validate:"min=0,max=100"`
	Offset    int                  `json:"offset" form:"offset" validate:"min=0"`
	SortBy    string               `json:"sort_by" form:"sort_by"`       // "created_at", "title", "updated_at"
	SortOrder string               `json:"sort_order" form:"sort_order"` // "asc", "desc"
}

type ResponseFilters struct {
	DateFrom *time.Time `json:"date_from" form:"date_from"`
	DateTo   *time.Time `json:"date_to" form:"date_to"`
	Limit    int        `json:"limit" form:"limit"`
	Offset   int        `json:"offset" form:"offset"`
}

// ===== REPOSITORIES =====

// SurveyRepository stores survey documents together with their catalog
// metadata.
type SurveyRepository interface {
	Create(ctx context.Context, survey *models.Survey) error
	GetByID(ctx context.Context, id string) (*models.Survey, error)
	// Update writes the survey if its stored version still equals
	// survey.Version and bumps the version.
	Update(ctx context.Context, survey *models.Survey) error
	Delete(ctx context.Context, id string) error

	List(ctx context.Context, filters SurveyFilters) ([]*models.Survey, int64, error)
	UpdateStatus(ctx context.Context, id string, status models.SurveyStatus, publishedAt *time.Time) error
	ListCategories(ctx context.Context) ([]string, error)
}

// ResponseRepository stores finished responses.
type ResponseRepository interface {
	Create(ctx context.Context, response *models.SurveyResponse) error
	GetByID(ctx context.Context, id string) (*models.SurveyResponse, error)
	ListBySurvey(ctx context.Context, surveyID string, filters ResponseFilters) ([]*models.SurveyResponse, int64, error)
	CountBySurvey(ctx context.Context, surveyID string) (int64, error)
	ExistsBySession(ctx context.Context, sessionID string) (bool, error)
}

// Repository groups the repositories of the service.
type Repository interface {
	Survey() SurveyRepository
	Response() ResponseRepository
	Ping(ctx context.Context) error
}

// IsNotFoundError reports whether err means the record does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
