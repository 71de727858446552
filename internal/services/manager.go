package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/cache"
	"github.com/SAP-F-2025/survey-service/internal/events"
	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"github.com/SAP-F-2025/survey-service/internal/survey"
	"github.com/SAP-F-2025/survey-service/internal/validator"
)

// Dependencies are shared by all services. Repo and Sessions are required;
// the rest fall back to no-op implementations.
type Dependencies struct {
	Repo         repositories.Repository
	Documents    cache.DocumentCache
	Sessions     cache.SessionStore
	Publisher    events.EventPublisher
	Validator    *validator.Validator
	Metrics      MetricsRecorder
	Logger       *slog.Logger
	DeletePolicy survey.SectionDeletePolicy
	Clock        func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Documents == nil {
		d.Documents = noDocumentCache{}
	}
	if d.Publisher == nil {
		d.Publisher = events.NewMockEventPublisher(d.Logger)
	}
	if d.Validator == nil {
		d.Validator = validator.New()
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.DeletePolicy == "" {
		d.DeletePolicy = survey.DeletePolicyReassign
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// ServiceManager gives handlers access to every service
type ServiceManager interface {
	Survey() SurveyService
	Session() SessionService
	ImportExport() ImportExportService
}

type serviceManager struct {
	survey       SurveyService
	session      SessionService
	importExport ImportExportService
}

func NewServiceManager(deps Dependencies) ServiceManager {
	deps = deps.withDefaults()
	surveys := NewSurveyService(deps)
	return &serviceManager{
		survey:       surveys,
		session:      NewSessionService(surveys, deps),
		importExport: NewImportExportService(surveys, deps),
	}
}

func (m *serviceManager) Survey() SurveyService {
	return m.survey
}

func (m *serviceManager) Session() SessionService {
	return m.session
}

func (m *serviceManager) ImportExport() ImportExportService {
	return m.importExport
}

type noDocumentCache struct{}

func (noDocumentCache) Get(context.Context, string, int) (*models.SurveyDocument, bool) {
	return nil, false
}

func (noDocumentCache) Set(context.Context, string, int, *models.SurveyDocument) error {
	return nil
}

func (noDocumentCache) Invalidate(context.Context, string) error {
	return nil
}
