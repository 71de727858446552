package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	eventSource  = "survey-service"
	eventVersion = "1.0"
)

// EventType represents the kinds of events the service emits
type EventType string

const (
	EventSurveyPublished   EventType = "survey.published"
	EventSurveyClosed      EventType = "survey.closed"
	EventResponseSubmitted EventType = "response.submitted"
)

// SurveyEvent is the envelope of every published event
type SurveyEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	SurveyID  string                 `json:"survey_id"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type SurveyPublishedEvent struct {
	SurveyID    string    `json:"survey_id"`
	Title       string    `json:"title"`
	Category    string    `json:"category,omitempty"`
	Sections    int       `json:"sections"`
	Questions   int       `json:"questions"`
	PublishedAt time.Time `json:"published_at"`
}

type SurveyClosedEvent struct {
	SurveyID  string    `json:"survey_id"`
	Title     string    `json:"title"`
	Responses int64     `json:"responses"`
	ClosedAt  time.Time `json:"closed_at"`
}

type ResponseSubmittedEvent struct {
	ResponseID  string    `json:"response_id"`
	SurveyID    string    `json:"survey_id"`
	SessionID   string    `json:"session_id"`
	Answered    int       `json:"answered"`
	CompletedAt time.Time `json:"completed_at"`
}

// Event factory functions

func NewSurveyPublishedEvent(data SurveyPublishedEvent) *SurveyEvent {
	return newEvent(EventSurveyPublished, data.SurveyID, data)
}

func NewSurveyClosedEvent(data SurveyClosedEvent) *SurveyEvent {
	return newEvent(EventSurveyClosed, data.SurveyID, data)
}

func NewResponseSubmittedEvent(data ResponseSubmittedEvent) *SurveyEvent {
	return newEvent(EventResponseSubmitted, data.SurveyID, data)
}

func newEvent(eventType EventType, surveyID string, data interface{}) *SurveyEvent {
	return &SurveyEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		SurveyID:  surveyID,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}
