package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SurveyStatus string

const (
	SurveyStatusDraft  SurveyStatus = "draft"
	SurveyStatusActive SurveyStatus = "active"
	SurveyStatusClosed SurveyStatus = "closed"
)

// Survey is the stored form of a survey document plus its catalog metadata.
type Survey struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	Title       string         `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description string         `json:"description" gorm:"type:text" validate:"max=1000"`
	Category    string         `json:"category" gorm:"size:100;index" validate:"max=100"`
	Status      SurveyStatus   `json:"status" gorm:"default:draft;index" validate:"omitempty,survey_status"`
	Document    datatypes.JSON `json:"-" gorm:"type:jsonb;not null"`
	PublishedAt *time.Time     `json:"published_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Version is bumped on every document change
	Version int `json:"version" gorm:"default:1"`

	// Computed fields (not stored)
	ResponseCount int64 `json:"response_count" gorm:"-"`
}

func (Survey) TableName() string {
	return "surveys"
}

// LoadDocument decodes the stored document.
func (s *Survey) LoadDocument() (*SurveyDocument, error) {
	var doc SurveyDocument
	if err := json.Unmarshal(s.Document, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode survey document %s: %w", s.ID, err)
	}
	return &doc, nil
}

// StoreDocument encodes doc into the record and syncs the catalog fields.
func (s *Survey) StoreDocument(doc *SurveyDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode survey document %s: %w", s.ID, err)
	}
	s.Document = datatypes.JSON(data)
	s.Title = doc.Title
	s.Description = doc.Description
	return nil
}

// SurveyResponse is the stored form of a FinishedResponse.
type SurveyResponse struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	SurveyID    string         `json:"survey_id" gorm:"not null;size:36;index"`
	SessionID   string         `json:"session_id" gorm:"not null;size:36;uniqueIndex"`
	Answers     datatypes.JSON `json:"answers" gorm:"type:jsonb;not null"`
	CompletedAt time.Time      `json:"completed_at" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (SurveyResponse) TableName() string {
	return "survey_responses"
}

// NewSurveyResponse converts a finished response into its stored form.
func NewSurveyResponse(resp *FinishedResponse) (*SurveyResponse, error) {
	data, err := json.Marshal(resp.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	return &SurveyResponse{
		ID:          resp.ID,
		SurveyID:    resp.SurveyID,
		SessionID:   resp.SessionID,
		Answers:     datatypes.JSON(data),
		CompletedAt: resp.CompletedAt,
	}, nil
}

// Finished converts the stored row back into a FinishedResponse.
func (r *SurveyResponse) Finished() (*FinishedResponse, error) {
	answers := AnswerSet{}
	if len(r.Answers) > 0 {
		if err := json.Unmarshal(r.Answers, &answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers of response %s: %w", r.ID, err)
		}
	}
	return &FinishedResponse{
		ID:          r.ID,
		SurveyID:    r.SurveyID,
		SessionID:   r.SessionID,
		Answers:     answers,
		CompletedAt: r.CompletedAt,
	}, nil
}

// SurveyStats summarizes a survey for the builder sidebar and catalog.
type SurveyStats struct {
	Sections         int   `json:"sections"`
	Questions        int   `json:"questions"`
	Required         int   `json:"required"`
	BranchingRules   int   `json:"branching_rules"`
	EstimatedMinutes int   `json:"estimated_minutes"`
	Responses        int64 `json:"responses"`
}

// ComputeStats derives the document part of SurveyStats. Estimated time is
// half a minute per question, at least one minute.
func ComputeStats(doc *SurveyDocument) SurveyStats {
	stats := SurveyStats{
		Sections:  len(doc.Sections),
		Questions: len(doc.Questions),
	}
	for _, q := range doc.Questions {
		if q.Required {
			stats.Required++
		}
		stats.BranchingRules += len(q.BranchingRules)
	}
	stats.EstimatedMinutes = (stats.Questions + 1) / 2
	if stats.EstimatedMinutes < 1 {
		stats.EstimatedMinutes = 1
	}
	return stats
}
