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
	"github.com/google/uuid"
)

// SurveyService manages survey documents and their lifecycle
type SurveyService interface {
	// Catalog operations
	Create(ctx context.Context, req *CreateSurveyRequest) (*SurveyDetail, error)
	Get(ctx context.Context, id string) (*SurveyDetail, error)
	List(ctx context.Context, filters repositories.SurveyFilters) (*SurveyListResponse, error)
	ListCategories(ctx context.Context) ([]string, error)
	UpdateInfo(ctx context.Context, id string, req *UpdateSurveyRequest) (*SurveyDetail, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, id string) (*models.SurveyStats, error)

	// Lifecycle
	Publish(ctx context.Context, id string) (*SurveyDetail, error)
	Close(ctx context.Context, id string) (*SurveyDetail, error)

	// Edit runs edit against a builder over the draft document and stores the
	// result. expectedVersion 0 skips the version check.
	Edit(ctx context.Context, id string, expectedVersion int, edit func(b *survey.Builder) error, opts ...survey.BuilderOption) (*SurveyDetail, error)
	Preview(ctx context.Context, id string, req *PreviewRequest) (navigation.NavigationDecision, error)

	// Document access for sessions and import/export
	LoadDocument(ctx context.Context, id string) (*models.Survey, *models.SurveyDocument, error)
	ExportDocument(ctx context.Context, id string, format models.DocumentFormat) ([]byte, error)
	ImportDocument(ctx context.Context, data []byte, format models.DocumentFormat) (*SurveyDetail, error)
}

type surveyService struct {
	repo         repositories.Repository
	documents    cache.DocumentCache
	publisher    events.EventPublisher
	validator    *validator.Validator
	evaluator    *navigation.Evaluator
	metrics      MetricsRecorder
	logger       *ServiceLogger
	deletePolicy survey.SectionDeletePolicy
	clock        func() time.Time
}

func NewSurveyService(deps Dependencies) SurveyService {
	deps = deps.withDefaults()
	return &surveyService{
		repo:         deps.Repo,
		documents:    deps.Documents,
		publisher:    deps.Publisher,
		validator:    deps.Validator,
		evaluator:    navigation.NewEvaluator(deps.Logger),
		metrics:      deps.Metrics,
		logger:       NewServiceLogger(deps.Logger, LogConfig{Service: "survey-service", Component: "surveys"}),
		deletePolicy: deps.DeletePolicy,
		clock:        deps.Clock,
	}
}

// ===== CATALOG OPERATIONS =====

func (s *surveyService) Create(ctx context.Context, req *CreateSurveyRequest) (detail *SurveyDetail, err error) {
	op := s.logger.WithOperation(ctx, "create_survey")
	defer func() { op.LogResult(resourceID(detail), "survey", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	doc := survey.NewDocument(req.Title, uuid.NewString)
	doc.Description = req.Description

	record := &models.Survey{
		ID:       doc.ID,
		Category: req.Category,
		Status:   models.SurveyStatusDraft,
		Version:  1,
	}
	if err := record.StoreDocument(doc); err != nil {
		return nil, err
	}

	if err := s.repo.Survey().Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create survey: %w", err)
	}

	op.LogAudit(AuditEventCreate, record.ID, "survey", nil, record.Title)
	return s.detail(record, doc), nil
}

func (s *surveyService) Get(ctx context.Context, id string) (*SurveyDetail, error) {
	record, doc, err := s.LoadDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := s.detail(record, doc)
	count, err := s.repo.Response().CountBySurvey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}
	record.ResponseCount = count
	detail.Stats.Responses = count
	return detail, nil
}

func (s *surveyService) List(ctx context.Context, filters repositories.SurveyFilters) (*SurveyListResponse, error) {
	if err := s.validator.Validate(filters); err != nil {
		return nil, err
	}

	surveys, total, err := s.repo.Survey().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}

	return &SurveyListResponse{
		Surveys: surveys,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}, nil
}

func (s *surveyService) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.Survey().ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *surveyService) UpdateInfo(ctx context.Context, id string, req *UpdateSurveyRequest) (detail *SurveyDetail, err error) {
	op := s.logger.WithOperation(ctx, "update_survey_info")
	defer func() { op.LogResult(id, "survey", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	record, doc, err := s.LoadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.SurveyStatusDraft {
		return nil, ErrSurveyNotEditable
	}

	oldTitle := doc.Title
	updated := doc.Clone()
	if req.Title != nil {
		updated.Title = *req.Title
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.Category != nil {
		record.Category = *req.Category
	}

	if err := s.save(ctx, record, updated); err != nil {
		return nil, err
	}

	op.LogAudit(AuditEventUpdate, id, "survey", oldTitle, updated.Title)
	return s.detail(record, updated), nil
}

func (s *surveyService) Delete(ctx context.Context, id string) (err error) {
	op := s.logger.WithOperation(ctx, "delete_survey")
	defer func() { op.LogResult(id, "survey", err) }()

	if _, err := s.getRecord(ctx, id); err != nil {
		return err
	}

	count, err := s.repo.Response().CountBySurvey(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count responses: %w", err)
	}
	if count > 0 {
		return ErrSurveyHasResponses
	}

	if err := s.repo.Survey().Delete(ctx, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSurveyNotFound
		}
		return fmt.Errorf("failed to delete survey: %w", err)
	}
	s.invalidate(ctx, id)

	op.LogAudit(AuditEventDelete, id, "survey", nil, nil)
	return nil
}

func (s *surveyService) Stats(ctx context.Context, id string) (*models.SurveyStats, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &detail.Stats, nil
}

// ===== LIFECYCLE =====

func (s *surveyService) Publish(ctx context.Context, id string) (detail *SurveyDetail, err error) {
	op := s.logger.WithOperation(ctx, "publish_survey")
	defer func() { op.LogResult(id, "survey", err) }()

	record, doc, err := s.LoadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.SurveyStatusDraft {
		return nil, NewBusinessRuleError("publish_requires_draft",
			"only draft surveys can be published", map[string]interface{}{"status": record.Status})
	}

	if errs := s.validator.Document().ValidateForPublish(doc); len(errs) > 0 {
		return nil, errs
	}

	now := s.clock().UTC()
	if err := s.repo.Survey().UpdateStatus(ctx, id, models.SurveyStatusActive, &now); err != nil {
		return nil, s.wrapRepoError(err, "failed to publish survey")
	}
	record.Status = models.SurveyStatusActive
	record.PublishedAt = &now

	stats := models.ComputeStats(doc)
	s.publish(ctx, events.NewSurveyPublishedEvent(events.SurveyPublishedEvent{
		SurveyID:    id,
		Title:       doc.Title,
		Category:    record.Category,
		Sections:    stats.Sections,
		Questions:   stats.Questions,
		PublishedAt: now,
	}))
	s.metrics.SurveyPublished()

	op.LogAudit(AuditEventUpdate, id, "survey", models.SurveyStatusDraft, models.SurveyStatusActive)
	return s.detail(record, doc), nil
}

func (s *surveyService) Close(ctx context.Context, id string) (detail *SurveyDetail, err error) {
	op := s.logger.WithOperation(ctx, "close_survey")
	defer func() { op.LogResult(id, "survey", err) }()

	record, doc, err := s.LoadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.SurveyStatusActive {
		return nil, ErrSurveyInvalidStatus
	}

	if err := s.repo.Survey().UpdateStatus(ctx, id, models.SurveyStatusClosed, nil); err != nil {
		return nil, s.wrapRepoError(err, "failed to close survey")
	}
	record.Status = models.SurveyStatusClosed

	count, err := s.repo.Response().CountBySurvey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}
	s.publish(ctx, events.NewSurveyClosedEvent(events.SurveyClosedEvent{
		SurveyID:  id,
		Title:     doc.Title,
		Responses: count,
		ClosedAt:  s.clock().UTC(),
	}))

	op.LogAudit(AuditEventUpdate, id, "survey", models.SurveyStatusActive, models.SurveyStatusClosed)
	return s.detail(record, doc), nil
}

// ===== AUTHORING =====

func (s *surveyService) Edit(ctx context.Context, id string, expectedVersion int, edit func(b *survey.Builder) error, opts ...survey.BuilderOption) (detail *SurveyDetail, err error) {
	op := s.logger.WithOperation(ctx, "edit_survey")
	defer func() { op.LogResult(id, "survey", err) }()

	record, doc, err := s.LoadDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.SurveyStatusDraft {
		return nil, ErrSurveyNotEditable
	}
	if expectedVersion != 0 && expectedVersion != record.Version {
		return nil, fmt.Errorf("%w: survey is at version %d", ErrConflict, record.Version)
	}

	// edits apply to a copy; a failed edit stores nothing
	working := doc.Clone()
	builder := survey.NewBuilder(working, append([]survey.BuilderOption{
		survey.WithDeletePolicy(s.deletePolicy),
		survey.WithLogger(s.logger.Slog()),
	}, opts...)...)
	if err := edit(builder); err != nil {
		return nil, err
	}

	if err := s.save(ctx, record, working); err != nil {
		return nil, err
	}
	return s.detail(record, working), nil
}

func (s *surveyService) Preview(ctx context.Context, id string, req *PreviewRequest) (navigation.NavigationDecision, error) {
	if err := s.validator.Validate(req); err != nil {
		return navigation.NavigationDecision{}, err
	}

	_, doc, err := s.LoadDocument(ctx, id)
	if err != nil {
		return navigation.NavigationDecision{}, err
	}

	q, ok := doc.Question(req.QuestionID)
	if !ok {
		return navigation.NavigationDecision{}, &survey.ReferenceError{Kind: "question", ID: req.QuestionID}
	}
	sectionID := req.SectionID
	if sectionID == "" {
		sectionID = q.SectionID
	}
	return s.evaluator.EvaluateNext(doc, req.QuestionID, req.Answer, sectionID), nil
}

// ===== DOCUMENT ACCESS =====

func (s *surveyService) LoadDocument(ctx context.Context, id string) (*models.Survey, *models.SurveyDocument, error) {
	record, err := s.getRecord(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if doc, ok := s.documents.Get(ctx, id, record.Version); ok {
		return record, doc, nil
	}

	doc, err := record.LoadDocument()
	if err != nil {
		return nil, nil, err
	}
	if err := s.documents.Set(ctx, id, record.Version, doc); err != nil {
		s.logger.Slog().WarnContext(ctx, "Failed to cache survey document", "survey_id", id, "error", err)
	}
	return record, doc, nil
}

func (s *surveyService) ExportDocument(ctx context.Context, id string, format models.DocumentFormat) ([]byte, error) {
	_, doc, err := s.LoadDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := models.EncodeDocument(doc, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return data, nil
}

// ImportDocument stores a decoded document as a new draft. The document gets
// a fresh survey id; section and question ids are kept.
func (s *surveyService) ImportDocument(ctx context.Context, data []byte, format models.DocumentFormat) (detail *SurveyDetail, err error) {
	op := s.logger.WithOperation(ctx, "import_survey")
	defer func() { op.LogResult(resourceID(detail), "survey", err) }()

	doc, err := models.DecodeDocument(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if errs := s.validator.Document().Validate(doc); len(errs) > 0 {
		return nil, errs
	}

	doc.ID = uuid.NewString()
	record := &models.Survey{
		ID:      doc.ID,
		Status:  models.SurveyStatusDraft,
		Version: 1,
	}
	if err := record.StoreDocument(doc); err != nil {
		return nil, err
	}
	if err := s.repo.Survey().Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create survey: %w", err)
	}

	op.LogAudit(AuditEventCreate, record.ID, "survey", nil, record.Title)
	return s.detail(record, doc), nil
}

// ===== HELPERS =====

func (s *surveyService) getRecord(ctx context.Context, id string) (*models.Survey, error) {
	record, err := s.repo.Survey().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSurveyNotFound
		}
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}
	return record, nil
}

func (s *surveyService) save(ctx context.Context, record *models.Survey, doc *models.SurveyDocument) error {
	if err := record.StoreDocument(doc); err != nil {
		return err
	}
	if err := s.repo.Survey().Update(ctx, record); err != nil {
		return s.wrapRepoError(err, "failed to update survey")
	}
	s.invalidate(ctx, record.ID)
	return nil
}

func (s *surveyService) wrapRepoError(err error, message string) error {
	switch {
	case repositories.IsNotFoundError(err):
		return ErrSurveyNotFound
	case errors.Is(err, repositories.ErrVersionConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", message, err)
	}
}

func (s *surveyService) invalidate(ctx context.Context, id string) {
	if err := s.documents.Invalidate(ctx, id); err != nil {
		s.logger.Slog().WarnContext(ctx, "Failed to invalidate cached document", "survey_id", id, "error", err)
	}
}

// publish logs delivery failures and does not return them.
func (s *surveyService) publish(ctx context.Context, event *events.SurveyEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Slog().ErrorContext(ctx, "Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func (s *surveyService) detail(record *models.Survey, doc *models.SurveyDocument) *SurveyDetail {
	stats := models.ComputeStats(doc)
	stats.Responses = record.ResponseCount
	return &SurveyDetail{Survey: record, Document: doc, Stats: stats}
}

func resourceID(detail *SurveyDetail) string {
	if detail == nil || detail.Survey == nil {
		return ""
	}
	return detail.ID
}
