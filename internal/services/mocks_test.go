package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/survey-service/internal/cache"
	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/repositories"
	"github.com/SAP-F-2025/survey-service/internal/survey"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSurveyRepository is a mock implementation of SurveyRepository
type MockSurveyRepository struct {
	mock.Mock
}

func (m *MockSurveyRepository) Create(ctx context.Context, s *models.Survey) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSurveyRepository) GetByID(ctx context.Context, id string) (*models.Survey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy so service mutations do not leak into later calls
	record := *args.Get(0).(*models.Survey)
	return &record, args.Error(1)
}

func (m *MockSurveyRepository) Update(ctx context.Context, s *models.Survey) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSurveyRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockSurveyRepository) List(ctx context.Context, filters repositories.SurveyFilters) ([]*models.Survey, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.Survey), args.Get(1).(int64), args.Error(2)
}

func (m *MockSurveyRepository) UpdateStatus(ctx context.Context, id string, status models.SurveyStatus, publishedAt *time.Time) error {
	args := m.Called(ctx, id, status, publishedAt)
	return args.Error(0)
}

func (m *MockSurveyRepository) ListCategories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

// MockResponseRepository is a mock implementation of ResponseRepository
type MockResponseRepository struct {
	mock.Mock
}

func (m *MockResponseRepository) Create(ctx context.Context, r *models.SurveyResponse) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockResponseRepository) GetByID(ctx context.Context, id string) (*models.SurveyResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SurveyResponse), args.Error(1)
}

func (m *MockResponseRepository) ListBySurvey(ctx context.Context, surveyID string, filters repositories.ResponseFilters) ([]*models.SurveyResponse, int64, error) {
	args := m.Called(ctx, surveyID, filters)
	return args.Get(0).([]*models.SurveyResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockResponseRepository) CountBySurvey(ctx context.Context, surveyID string) (int64, error) {
	args := m.Called(ctx, surveyID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockResponseRepository) ExistsBySession(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

// MockRepository groups the repository mocks
type MockRepository struct {
	surveys   *MockSurveyRepository
	responses *MockResponseRepository
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		surveys:   &MockSurveyRepository{},
		responses: &MockResponseRepository{},
	}
}

func (m *MockRepository) Survey() repositories.SurveyRepository     { return m.surveys }
func (m *MockRepository) Response() repositories.ResponseRepository { return m.responses }
func (m *MockRepository) Ping(context.Context) error                { return nil }

// MockMetrics records domain counters
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) NavigationDecision(kind string) { m.Called(kind) }
func (m *MockMetrics) SessionStarted()                { m.Called() }
func (m *MockMetrics) ResponseSubmitted()             { m.Called() }
func (m *MockMetrics) SurveyPublished()               { m.Called() }

// memorySessionStore serializes snapshots like the Redis store does.
type memorySessionStore struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{items: map[string][]byte{}}
}

func (s *memorySessionStore) Save(_ context.Context, snapshot survey.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[snapshot.ID] = data
	return nil
}

func (s *memorySessionStore) Load(_ context.Context, sessionID string) (*survey.SessionSnapshot, error) {
	s.mu.Lock()
	data, ok := s.items[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, cache.ErrSessionExpired
	}
	var snapshot survey.SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *memorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}

// ===== FIXTURES =====

var fixedNow = time.Date(2025, 5, 4, 9, 30, 0, 0, time.UTC)

// feedbackDocument has a required single choice question in the default
// section that ends the survey on "No", and a free text question in a second
// section.
func feedbackDocument() *models.SurveyDocument {
	return &models.SurveyDocument{
		ID:               "survey-1",
		Title:            "Feedback",
		DefaultSectionID: "s1",
		Sections: []models.Section{
			{ID: "s1", Title: "General Questions", OrderIndex: 0},
			{ID: "s2", Title: "Details", OrderIndex: 1},
		},
		Questions: []models.Question{
			{
				ID: "q1", SectionID: "s1", Prompt: "Did you enjoy the event?", Type: models.QuestionSingleChoice,
				Options: []string{"Yes", "No"}, Required: true,
				BranchingRules: []models.BranchingRule{
					{ID: "r1", Condition: models.ConditionEquals, ComparisonValue: "No", Action: models.ActionEndSurvey},
				},
			},
			{
				ID: "q2", SectionID: "s2", Prompt: "What did you like most?", Type: models.QuestionText,
				BranchingRules: []models.BranchingRule{},
			},
		},
	}
}

func surveyRecord(t *testing.T, doc *models.SurveyDocument, status models.SurveyStatus) *models.Survey {
	t.Helper()
	record := &models.Survey{ID: doc.ID, Status: status, Version: 3}
	require.NoError(t, record.StoreDocument(doc))
	return record
}
