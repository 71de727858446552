package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/cache"
	"github.com/SAP-F-2025/survey-service/internal/events"
	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/navigation"
	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"github.com/SAP-F-2025/survey-service/internal/survey"
	"github.com/SAP-F-2025/survey-service/internal/validator"
)

// SessionService drives respondent sessions. Session state lives in the
// session store between requests.
type SessionService interface {
	Start(ctx context.Context, surveyID string) (*SessionView, error)
	Get(ctx context.Context, sessionID string) (*SessionView, error)
	Answer(ctx context.Context, sessionID string, req *AnswerRequest) (*SessionView, error)
	Next(ctx context.Context, sessionID string) (*NextResult, error)
	Previous(ctx context.Context, sessionID string) (*SessionView, error)
	Submit(ctx context.Context, sessionID string) (*models.FinishedResponse, error)

	// Finished responses
	GetResponse(ctx context.Context, responseID string) (*models.FinishedResponse, error)
	ListResponses(ctx context.Context, surveyID string, filters repositories.ResponseFilters) ([]*models.FinishedResponse, int64, error)
}

type sessionService struct {
	surveys   SurveyService
	repo      repositories.Repository
	store     cache.SessionStore
	publisher events.EventPublisher
	validator *validator.Validator
	evaluator *navigation.Evaluator
	metrics   MetricsRecorder
	clock     func() time.Time
	logger    *ServiceLogger
}

func NewSessionService(surveys SurveyService, deps Dependencies) SessionService {
	deps = deps.withDefaults()
	return &sessionService{
		surveys:   surveys,
		repo:      deps.Repo,
		store:     deps.Sessions,
		publisher: deps.Publisher,
		validator: deps.Validator,
		evaluator: navigation.NewEvaluator(deps.Logger),
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		logger:    NewServiceLogger(deps.Logger, LogConfig{Service: "survey-service", Component: "sessions"}),
	}
}

// loaded is a restored session together with the survey it runs on.
type loaded struct {
	session *survey.Session
	record  *models.Survey
	doc     *models.SurveyDocument
}

func (s *sessionService) Start(ctx context.Context, surveyID string) (view *SessionView, err error) {
	op := s.logger.WithOperation(ctx, "start_session")
	defer func() { op.LogResult(surveyID, "survey", err) }()

	record, doc, err := s.surveys.LoadDocument(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.SurveyStatusActive {
		return nil, ErrSurveyNotActive
	}

	sess, err := survey.NewSession(doc, s.evaluator, survey.WithClock(s.utcClock))
	if err != nil {
		return nil, err
	}

	l := &loaded{session: sess, record: record, doc: doc}
	if err := s.save(ctx, l); err != nil {
		return nil, err
	}
	s.metrics.SessionStarted()

	s.logger.Slog().InfoContext(ctx, "Session started", "session_id", sess.ID(), "survey_id", surveyID)
	return s.view(l), nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*SessionView, error) {
	l, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(l), nil
}

func (s *sessionService) Answer(ctx context.Context, sessionID string, req *AnswerRequest) (*SessionView, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	l, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := l.session.Answer(req.QuestionID, req.Answer); err != nil {
		return nil, s.mapSessionError(err)
	}
	if err := s.save(ctx, l); err != nil {
		return nil, err
	}
	return s.view(l), nil
}

func (s *sessionService) Next(ctx context.Context, sessionID string) (result *NextResult, err error) {
	op := s.logger.WithOperation(ctx, "next_section")
	defer func() { op.LogResult(sessionID, "session", err) }()

	l, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	decision, err := l.session.Next()
	if err != nil {
		return nil, s.mapSessionError(err)
	}
	if err := s.save(ctx, l); err != nil {
		return nil, err
	}
	s.metrics.NavigationDecision(string(decision.Kind))

	return &NextResult{Decision: decision, Session: s.view(l)}, nil
}

func (s *sessionService) Previous(ctx context.Context, sessionID string) (*SessionView, error) {
	l, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := l.session.Previous(); err != nil {
		return nil, s.mapSessionError(err)
	}
	if err := s.save(ctx, l); err != nil {
		return nil, err
	}
	return s.view(l), nil
}

func (s *sessionService) Submit(ctx context.Context, sessionID string) (resp *models.FinishedResponse, err error) {
	op := s.logger.WithOperation(ctx, "submit_session")
	defer func() { op.LogResult(sessionID, "session", err) }()

	l, err := s.loadActive(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if l.session.State() == survey.SessionSubmitted {
		return nil, ErrSessionAlreadySubmitted
	}

	exists, err := s.repo.Response().ExistsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check stored responses: %w", err)
	}
	if exists {
		return nil, ErrSessionAlreadySubmitted
	}

	finished, err := l.session.Submit()
	if err != nil {
		return nil, s.mapSessionError(err)
	}

	row, err := models.NewSurveyResponse(finished)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Response().Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to store response: %w", err)
	}

	// retries after a failed save are refused by ExistsBySession
	if err := s.save(ctx, l); err != nil {
		s.logger.Slog().WarnContext(ctx, "Failed to store submitted session", "session_id", sessionID, "error", err)
	}

	event := events.NewResponseSubmittedEvent(events.ResponseSubmittedEvent{
		ResponseID:  finished.ID,
		SurveyID:    finished.SurveyID,
		SessionID:   finished.SessionID,
		Answered:    len(finished.Answers),
		CompletedAt: finished.CompletedAt,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Slog().ErrorContext(ctx, "Failed to publish event", "event_type", event.Type, "error", err)
	}
	s.metrics.ResponseSubmitted()

	op.LogAudit(AuditEventSubmit, finished.ID, "response", nil, finished.SurveyID)
	return finished, nil
}

func (s *sessionService) GetResponse(ctx context.Context, responseID string) (*models.FinishedResponse, error) {
	row, err := s.repo.Response().GetByID(ctx, responseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return row.Finished()
}

func (s *sessionService) ListResponses(ctx context.Context, surveyID string, filters repositories.ResponseFilters) ([]*models.FinishedResponse, int64, error) {
	if _, _, err := s.surveys.LoadDocument(ctx, surveyID); err != nil {
		return nil, 0, err
	}

	rows, total, err := s.repo.Response().ListBySurvey(ctx, surveyID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list responses: %w", err)
	}

	responses := make([]*models.FinishedResponse, 0, len(rows))
	for _, row := range rows {
		finished, err := row.Finished()
		if err != nil {
			return nil, 0, err
		}
		responses = append(responses, finished)
	}
	return responses, total, nil
}

// ===== HELPERS =====

func (s *sessionService) load(ctx context.Context, sessionID string) (*loaded, error) {
	snapshot, err := s.store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, cache.ErrSessionExpired) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	record, doc, err := s.surveys.LoadDocument(ctx, snapshot.SurveyID)
	if err != nil {
		return nil, err
	}

	sess, err := survey.RestoreSession(doc, s.evaluator, *snapshot, survey.WithClock(s.utcClock))
	if err != nil {
		return nil, fmt.Errorf("failed to restore session %s: %w", sessionID, err)
	}
	return &loaded{session: sess, record: record, doc: doc}, nil
}

// loadActive loads a session whose survey still accepts responses.
func (s *sessionService) loadActive(ctx context.Context, sessionID string) (*loaded, error) {
	l, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if l.record.Status != models.SurveyStatusActive {
		return nil, ErrSurveyNotActive
	}
	return l, nil
}

func (s *sessionService) save(ctx context.Context, l *loaded) error {
	if err := s.store.Save(ctx, l.session.Snapshot()); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *sessionService) mapSessionError(err error) error {
	if errors.Is(err, survey.ErrSessionSubmitted) {
		return ErrSessionAlreadySubmitted
	}
	return err
}

func (s *sessionService) utcClock() time.Time {
	return s.clock().UTC()
}

func (s *sessionService) view(l *loaded) *SessionView {
	snapshot := l.session.Snapshot()
	view := &SessionView{
		ID:           snapshot.ID,
		SurveyID:     snapshot.SurveyID,
		SurveyTitle:  l.doc.Title,
		State:        snapshot.State,
		SectionIndex: l.session.CurrentSectionIndex(),
		SectionCount: len(l.doc.Sections),
		Questions:    l.session.VisibleQuestions(),
		Answers:      snapshot.Answers,
		StartedAt:    snapshot.StartedAt,
		CompletedAt:  snapshot.CompletedAt,
		Response:     snapshot.Response,
	}
	if section, ok := l.doc.Section(snapshot.Position.SectionID); ok {
		view.Section = *section
	}
	return view
}
