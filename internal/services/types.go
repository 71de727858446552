package services

import (
	"time"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/navigation"
	"github.com/SAP-F-2025/survey-service/internal/survey"
)

// ===== SURVEY DTOs =====

type CreateSurveyRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=1000"`
	Category    string `json:"category" validate:"max=100"`
}

type UpdateSurveyRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
}

type SurveyDetail struct {
	*models.Survey
	Document *models.SurveyDocument `json:"document"`
	Stats    models.SurveyStats     `json:"stats"`
}

type SurveyListResponse struct {
	Surveys []*models.Survey `json:"surveys"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// PreviewRequest evaluates one navigation step of a survey without a session.
type PreviewRequest struct {
	QuestionID string             `json:"question_id" validate:"required"`
	Answer     models.AnswerValue `json:"answer"`
	SectionID  string             `json:"section_id"`
}

// ===== SESSION DTOs =====

type AnswerRequest struct {
	QuestionID string             `json:"question_id" validate:"required"`
	Answer     models.AnswerValue `json:"answer"`
}

// SessionView is what a respondent sees of a session.
type SessionView struct {
	ID           string                   `json:"id"`
	SurveyID     string                   `json:"survey_id"`
	SurveyTitle  string                   `json:"survey_title"`
	State        survey.SessionState      `json:"state"`
	Section      models.Section           `json:"section"`
	SectionIndex int                      `json:"section_index"`
	SectionCount int                      `json:"section_count"`
	Questions    []models.Question        `json:"questions"`
	Answers      models.AnswerSet         `json:"answers"`
	StartedAt    time.Time                `json:"started_at"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
	Response     *models.FinishedResponse `json:"response,omitempty"`
}

type NextResult struct {
	Decision navigation.NavigationDecision `json:"decision"`
	Session  *SessionView                  `json:"session"`
}

// ===== METRICS =====

// MetricsRecorder receives domain counters. *metrics.Metrics implements it.
type MetricsRecorder interface {
	NavigationDecision(kind string)
	SessionStarted()
	ResponseSubmitted()
	SurveyPublished()
}

type noopMetrics struct{}

func (noopMetrics) NavigationDecision(string) {}
func (noopMetrics) SessionStarted()           {}
func (noopMetrics) ResponseSubmitted()        {}
func (noopMetrics) SurveyPublished()          {}
