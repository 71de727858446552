package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/cache"
	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"github.com/SAP-F-2025/survey-service/internal/services"
	"github.com/SAP-F-2025/survey-service/internal/survey"
	"github.com/SAP-F-2025/survey-service/internal/utils"
	"github.com/SAP-F-2025/survey-service/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ===== IN-MEMORY REPOSITORY =====

type memoryRepository struct {
	mu        sync.Mutex
	surveys   map[string]models.Survey
	responses map[string]models.SurveyResponse
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		surveys:   map[string]models.Survey{},
		responses: map[string]models.SurveyResponse{},
	}
}

func (r *memoryRepository) Survey() repositories.SurveyRepository     { return memorySurveys{r} }
func (r *memoryRepository) Response() repositories.ResponseRepository { return memoryResponses{r} }
func (r *memoryRepository) Ping(context.Context) error                { return nil }

type memorySurveys struct{ *memoryRepository }

func (r memorySurveys) Create(_ context.Context, s *models.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surveys[s.ID] = *s
	return nil
}

func (r memorySurveys) GetByID(_ context.Context, id string) (*models.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r memorySurveys) Update(_ context.Context, s *models.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.surveys[s.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != s.Version {
		return repositories.ErrVersionConflict
	}
	s.Version++
	r.surveys[s.ID] = *s
	return nil
}

func (r memorySurveys) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surveys[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.surveys, id)
	return nil
}

func (r memorySurveys) List(_ context.Context, filters repositories.SurveyFilters) ([]*models.Survey, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Survey
	for _, s := range r.surveys {
		if filters.Status != nil && s.Status != *filters.Status {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, int64(len(out)), nil
}

func (r memorySurveys) UpdateStatus(_ context.Context, id string, status models.SurveyStatus, publishedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = status
	if publishedAt != nil {
		s.PublishedAt = publishedAt
	}
	r.surveys[id] = s
	return nil
}

func (r memorySurveys) ListCategories(context.Context) ([]string, error) {
	return nil, nil
}

type memoryResponses struct{ *memoryRepository }

func (r memoryResponses) Create(_ context.Context, resp *models.SurveyResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[resp.ID] = *resp
	return nil
}

func (r memoryResponses) GetByID(_ context.Context, id string) (*models.SurveyResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &resp, nil
}

func (r memoryResponses) ListBySurvey(_ context.Context, surveyID string, _ repositories.ResponseFilters) ([]*models.SurveyResponse, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SurveyResponse
	for _, resp := range r.responses {
		if resp.SurveyID == surveyID {
			resp := resp
			out = append(out, &resp)
		}
	}
	return out, int64(len(out)), nil
}

func (r memoryResponses) CountBySurvey(ctx context.Context, surveyID string) (int64, error) {
	_, total, err := r.ListBySurvey(ctx, surveyID, repositories.ResponseFilters{})
	return total, err
}

func (r memoryResponses) ExistsBySession(_ context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resp := range r.responses {
		if resp.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

type memorySessions struct {
	mu    sync.Mutex
	items map[string]survey.SessionSnapshot
}

func (s *memorySessions) Save(_ context.Context, snapshot survey.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[snapshot.ID] = snapshot
	return nil
}

func (s *memorySessions) Load(_ context.Context, id string) (*survey.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.items[id]
	if !ok {
		return nil, cache.ErrSessionExpired
	}
	return &snapshot, nil
}

func (s *memorySessions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// ===== HELPERS =====

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger := utils.NewSlogLogger(slogger)
	v := validator.New()
	manager := services.NewServiceManager(services.Dependencies{
		Repo:      newMemoryRepository(),
		Sessions:  &memorySessions{items: map[string]survey.SessionSnapshot{}},
		Validator: v,
		Logger:    slogger,
	})

	router := gin.New()
	router.Use(utils.ContextLogger(logger))
	NewHandlerManager(manager, v, logger, map[string]HealthChecker{
		"database": func(context.Context) error { return nil },
	}).SetupRoutes(router, nil)
	return router
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func (a apiClient) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// ===== TESTS =====

func TestSurveyLifecycleOverHTTP(t *testing.T) {
	api := apiClient{t: t, router: setupRouter(t)}

	w := api.do(http.MethodPost, "/surveys", services.CreateSurveyRequest{Title: "Event feedback"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[services.SurveyDetail](t, w)
	id := created.ID
	defaultSection := created.Document.DefaultSectionID
	assert.Equal(t, 1, created.Version)

	// question in the default section
	w = api.do(http.MethodPost, "/surveys/"+id+"/questions", AddQuestionRequest{Type: models.QuestionSingleChoice})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, `"2"`, w.Header().Get("ETag"))
	q1 := decode[BuilderResponse](t, w).Question
	require.NotNil(t, q1)
	assert.Equal(t, defaultSection, q1.SectionID)

	prompt, required := "Did you enjoy it?", true
	update := survey.QuestionUpdate{Prompt: &prompt, Required: &required, Options: []string{"Yes", "No"}}

	w = api.do(http.MethodPatch, "/surveys/"+id+"/questions/"+q1.ID, update, "If-Match", `"1"`)
	assert.Equal(t, http.StatusConflict, w.Code, "stale version")

	w = api.do(http.MethodPatch, "/surveys/"+id+"/questions/"+q1.ID, update, "If-Match", `"2"`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// second section with a text question
	w = api.do(http.MethodPost, "/surveys/"+id+"/sections", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s2 := decode[BuilderResponse](t, w).Section
	require.NotNil(t, s2)

	w = api.do(http.MethodPost, "/surveys/"+id+"/questions", AddQuestionRequest{SectionID: s2.ID, Type: models.QuestionText})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	q2 := decode[BuilderResponse](t, w).Question
	textPrompt := "What could be better?"
	w = api.do(http.MethodPatch, "/surveys/"+id+"/questions/"+q2.ID, survey.QuestionUpdate{Prompt: &textPrompt})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// "No" ends the survey
	w = api.do(http.MethodPost, "/surveys/"+id+"/questions/"+q1.ID+"/rules", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rule := decode[BuilderResponse](t, w).Rule
	require.NotNil(t, rule)

	cond, value, action := models.ConditionEquals, models.ComparisonValue("No"), models.ActionEndSurvey
	w = api.do(http.MethodPatch, "/surveys/"+id+"/questions/"+q1.ID+"/rules/"+rule.ID,
		survey.RuleUpdate{Condition: &cond, ComparisonValue: &value, Action: &action})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodDelete, "/surveys/"+id+"/sections/"+defaultSection, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invariant_violation", decode[ErrorResponse](t, w).Code)

	w = api.do(http.MethodPost, "/surveys/"+id+"/preview", services.PreviewRequest{QuestionID: q1.ID, Answer: models.TextAnswer("Yes")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), s2.ID)

	w = api.do(http.MethodPost, "/surveys/"+id+"/publish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.SurveyStatusActive, decode[services.SurveyDetail](t, w).Status)

	w = api.do(http.MethodPost, "/surveys/"+id+"/sections", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "published surveys are frozen")

	// respondent answers "No" and finishes in the first section
	w = api.do(http.MethodPost, "/surveys/"+id+"/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode[services.SessionView](t, w)

	w = api.do(http.MethodPost, "/sessions/"+session.ID+"/next", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "required question unanswered")

	w = api.do(http.MethodPut, "/sessions/"+session.ID+"/answers", services.AnswerRequest{QuestionID: q1.ID, Answer: models.TextAnswer("No")})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/sessions/"+session.ID+"/next", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	next := decode[services.NextResult](t, w)
	assert.Equal(t, survey.SessionCompleted, next.Session.State)

	w = api.do(http.MethodPost, "/sessions/"+session.ID+"/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	finished := decode[models.FinishedResponse](t, w)
	assert.Equal(t, models.AnswerSet{q1.ID: models.TextAnswer("No")}, finished.Answers)

	w = api.do(http.MethodPost, "/sessions/"+session.ID+"/submit", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodGet, "/responses/"+finished.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/surveys/"+id+"/responses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[ResponseListResponse](t, w).Total)

	w = api.do(http.MethodDelete, "/surveys/"+id, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "surveys with responses are kept")
}

func TestExportDocumentOverHTTP(t *testing.T) {
	api := apiClient{t: t, router: setupRouter(t)}

	w := api.do(http.MethodPost, "/surveys", services.CreateSurveyRequest{Title: "Export me"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[services.SurveyDetail](t, w).ID

	w = api.do(http.MethodGet, "/surveys/"+id+"/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("survey-%s.yaml", id))
	assert.Contains(t, w.Body.String(), "title: Export me")

	w = api.do(http.MethodGet, "/surveys/"+id+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestErrors(t *testing.T) {
	api := apiClient{t: t, router: setupRouter(t)}

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"missing title", http.MethodPost, "/surveys", services.CreateSurveyRequest{}, http.StatusBadRequest},
		{"unknown survey", http.MethodGet, "/surveys/nope", nil, http.StatusNotFound},
		{"unknown session", http.MethodGet, "/sessions/nope", nil, http.StatusNotFound},
		{"unknown question type", http.MethodPost, "/surveys/nope/questions", map[string]string{"type": "slider"}, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/surveys?status=archived", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestHandleServiceErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBaseHandler(utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), nil)

	tests := []struct {
		err    error
		status int
	}{
		{services.ValidationErrors{{Field: "title", Message: "required"}}, http.StatusBadRequest},
		{fmt.Errorf("%w: yaml", services.ErrUnsupportedFormat), http.StatusBadRequest},
		{services.ErrSurveyNotFound, http.StatusNotFound},
		{&survey.ReferenceError{Kind: "section", ID: "s9"}, http.StatusNotFound},
		{fmt.Errorf("%w: survey is at version 4", services.ErrConflict), http.StatusConflict},
		{services.ErrSessionAlreadySubmitted, http.StatusConflict},
		{&survey.InvariantViolation{Operation: "delete section", Err: survey.ErrDefaultSection}, http.StatusUnprocessableEntity},
		{services.NewBusinessRuleError("publish_requires_draft", "only drafts", nil), http.StatusUnprocessableEntity},
		{services.ErrSurveyNotActive, http.StatusUnprocessableEntity},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			h.handleServiceError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hm := &HandlerManager{health: map[string]HealthChecker{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("dial tcp: refused") },
	}}
	router := gin.New()
	router.GET("/health", hm.HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, map[string]interface{}{"database": "ok", "redis": "dial tcp: refused"}, body["checks"])
}
