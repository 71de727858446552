package survey

import (
	"testing"
	"time"

	apperrors "github.com/SAP-F-2025/survey-service/internal/errors"
	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/navigation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestSession(t *testing.T, doc *models.SurveyDocument) *Session {
	t.Helper()
	s, err := NewSession(doc, navigation.NewEvaluator(nil),
		WithSessionID("session-1"),
		WithClock(func() time.Time { return fixedNow }),
		WithResponseIDGenerator(sequentialIDs("response")),
	)
	require.NoError(t, err)
	return s
}

func twoSectionDocument() *models.SurveyDocument {
	return &models.SurveyDocument{
		ID:               "survey-1",
		Title:            "Feedback",
		DefaultSectionID: "S1",
		Sections: []models.Section{
			{ID: "S1", Title: "General Questions", OrderIndex: 0},
			{ID: "S2", Title: "Rating", OrderIndex: 1},
		},
		Questions: []models.Question{
			{ID: "Q1", SectionID: "S1", Prompt: "Say something", Type: models.QuestionText, Required: true},
			{ID: "Q2", SectionID: "S2", Prompt: "Rate us", Type: models.QuestionRating},
		},
	}
}

func validationErrors(t *testing.T, err error) apperrors.ValidationErrors {
	t.Helper()
	var verrs apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	return verrs
}

func TestSession_ScenarioA(t *testing.T) {
	s := newTestSession(t, twoSectionDocument())

	require.NoError(t, s.Answer("Q1", models.TextAnswer("hi")))
	decision, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, navigation.GotoSection("S2"), decision)
	assert.Equal(t, SessionInProgress, s.State())
	assert.Equal(t, 1, s.CurrentSectionIndex())

	resp, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, SessionSubmitted, s.State())
	assert.Equal(t, models.AnswerSet{"Q1": models.TextAnswer("hi")}, resp.Answers)
	assert.Equal(t, "survey-1", resp.SurveyID)
	assert.Equal(t, "session-1", resp.SessionID)
	assert.Equal(t, "response-1", resp.ID)
	assert.Equal(t, fixedNow, resp.CompletedAt)
}

func TestSession_ScenarioB_EndSurvey(t *testing.T) {
	doc := twoSectionDocument()
	doc.Questions[0] = models.Question{
		ID: "Q1", SectionID: "S1", Prompt: "Continue?", Type: models.QuestionSingleChoice,
		Options: []string{"Yes", "No"},
		BranchingRules: []models.BranchingRule{
			{ID: "r1", Condition: models.ConditionEquals, ComparisonValue: "No", Action: models.ActionEndSurvey},
		},
	}
	s := newTestSession(t, doc)

	require.NoError(t, s.Answer("Q1", models.TextAnswer("No")))
	decision, err := s.Next()
	require.NoError(t, err)

	assert.Equal(t, navigation.DecisionComplete, decision.Kind)
	assert.Equal(t, SessionCompleted, s.State())
	assert.Equal(t, "S1", s.Position().SectionID)

	resp, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, models.AnswerSet{"Q1": models.TextAnswer("No")}, resp.Answers)
}

func TestSession_ScenarioC_JumpToLaterSection(t *testing.T) {
	doc := &models.SurveyDocument{
		ID:               "survey-1",
		DefaultSectionID: "S1",
		Sections: []models.Section{
			{ID: "S1", OrderIndex: 0},
			{ID: "S2", OrderIndex: 1},
			{ID: "S3", OrderIndex: 2},
		},
		Questions: []models.Question{
			{
				ID: "Q1", SectionID: "S1", Type: models.QuestionSingleChoice, Options: []string{"Yes", "No"},
				BranchingRules: []models.BranchingRule{{
					ID: "r1", Condition: models.ConditionOptionSelected, ComparisonValue: "Yes",
					Action: models.ActionShowQuestion, TargetQuestionID: models.StringPtr("Q3"),
				}},
			},
			{ID: "Q2", SectionID: "S2", Type: models.QuestionText, Required: true},
			{ID: "Q3", SectionID: "S3", Type: models.QuestionText},
		},
	}
	s := newTestSession(t, doc)

	require.NoError(t, s.Answer("Q1", models.TextAnswer("Yes")))
	_, err := s.Next()
	require.NoError(t, err)

	assert.Equal(t, Position{SectionID: "S3", EntryQuestionID: "Q3"}, s.Position())
	assert.Equal(t, 2, s.CurrentSectionIndex())

	require.NoError(t, s.Previous())
	assert.Equal(t, Position{SectionID: "S1"}, s.Position())
}

func TestSession_RequiredGate(t *testing.T) {
	s := newTestSession(t, twoSectionDocument())

	_, err := s.Next()
	verrs := validationErrors(t, err)
	require.Len(t, verrs, 1)
	assert.Equal(t, "Q1", verrs[0].Field)
	assert.Equal(t, "required", verrs[0].Rule)
	assert.Equal(t, 0, s.CurrentSectionIndex())
	assert.Equal(t, SessionInProgress, s.State())

	require.NoError(t, s.Answer("Q1", models.TextAnswer("   ")))
	_, err = s.Next()
	validationErrors(t, err)
	assert.Equal(t, 0, s.CurrentSectionIndex())
}

func TestSession_HiddenRequiredQuestionIsNotRequired(t *testing.T) {
	doc := &models.SurveyDocument{
		ID:               "survey-1",
		DefaultSectionID: "S1",
		Sections:         []models.Section{{ID: "S1", OrderIndex: 0}},
		Questions: []models.Question{
			{
				ID: "Q1", SectionID: "S1", Type: models.QuestionSingleChoice, Options: []string{"Yes", "No"},
				BranchingRules: []models.BranchingRule{{
					ID: "r1", Condition: models.ConditionEquals, ComparisonValue: "No",
					Action: models.ActionSkipTo, TargetQuestionID: models.StringPtr("Q3"),
				}},
			},
			{ID: "Q2", SectionID: "S1", Type: models.QuestionText, Required: true},
			{ID: "Q3", SectionID: "S1", Type: models.QuestionText},
		},
	}
	s := newTestSession(t, doc)

	require.NoError(t, s.Answer("Q2", models.TextAnswer("stale")))
	require.NoError(t, s.Answer("Q1", models.TextAnswer("No")))

	visible := s.VisibleQuestions()
	require.Len(t, visible, 2)
	assert.Equal(t, "Q1", visible[0].ID)
	assert.Equal(t, "Q3", visible[1].ID)

	resp, err := s.Submit()
	require.NoError(t, err)
	assert.Equal(t, models.AnswerSet{"Q1": models.TextAnswer("No")}, resp.Answers)
}

func TestSession_PreviousAtFirstSectionIsNoop(t *testing.T) {
	s := newTestSession(t, twoSectionDocument())

	require.NoError(t, s.Previous())
	assert.Equal(t, 0, s.CurrentSectionIndex())
	assert.Equal(t, SessionInProgress, s.State())
}

func TestSession_PreviousFromCompleted(t *testing.T) {
	s := newTestSession(t, twoSectionDocument())
	require.NoError(t, s.Answer("Q1", models.TextAnswer("hi")))
	_, err := s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, SessionCompleted, s.State())

	require.NoError(t, s.Previous())
	assert.Equal(t, SessionInProgress, s.State())
	assert.Equal(t, "S2", s.Position().SectionID)
}

func TestSession_SubmittedIsTerminal(t *testing.T) {
	s := newTestSession(t, twoSectionDocument())
	require.NoError(t, s.Answer("Q1", models.TextAnswer("hi")))
	_, err := s.Next()
	require.NoError(t, err)
	_, err = s.Submit()
	require.NoError(t, err)

	err = s.Answer("Q2", models.RatingAnswer(4))
	assert.True(t, IsInvariantViolation(err))
	assert.ErrorIs(t, err, ErrSessionSubmitted)

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrSessionSubmitted)
	assert.ErrorIs(t, s.Previous(), ErrSessionSubmitted)
	_, err = s.Submit()
	assert.ErrorIs(t, err, ErrSessionSubmitted)

	resp, ok := s.Response()
	require.True(t, ok)
	assert.Equal(t, models.AnswerSet{"Q1": models.TextAnswer("hi")}, resp.Answers)
}

func TestSession_SubmitBeforeLastSection(t *testing.T) {
	s := newTestSession(t, twoSectionDocument())
	require.NoError(t, s.Answer("Q1", models.TextAnswer("hi")))

	_, err := s.Submit()

	assert.ErrorIs(t, err, ErrSessionNotComplete)
	assert.Equal(t, SessionInProgress, s.State())
}

func TestSession_CompletedRefusesAnswers(t *testing.T) {
	s := newTestSession(t, twoSectionDocument())
	require.NoError(t, s.Answer("Q1", models.TextAnswer("hi")))
	_, err := s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	require.NoError(t, err)

	err = s.Answer("Q2", models.RatingAnswer(3))
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestSession_AnswerValidation(t *testing.T) {
	doc := &models.SurveyDocument{
		ID:               "survey-1",
		DefaultSectionID: "S1",
		Sections: []models.Section{
			{ID: "S1", OrderIndex: 0},
			{ID: "S2", OrderIndex: 1},
		},
		Questions: []models.Question{
			{ID: "rating", SectionID: "S1", Type: models.QuestionRating},
			{ID: "date", SectionID: "S1", Type: models.QuestionDate},
			{ID: "single", SectionID: "S1", Type: models.QuestionSingleChoice, Options: []string{"A", "B"}},
			{ID: "multi", SectionID: "S1", Type: models.QuestionMultiChoice, Options: []string{"A", "B"}},
			{ID: "text", SectionID: "S1", Type: models.QuestionText},
			{ID: "later", SectionID: "S2", Type: models.QuestionText},
		},
	}

	tests := []struct {
		name       string
		questionID string
		value      models.AnswerValue
		wantRule   string
	}{
		{"rating too high", "rating", models.RatingAnswer(6), "rating_range"},
		{"rating as text", "rating", models.TextAnswer("5"), "answer_shape"},
		{"bad date", "date", models.TextAnswer("14/03/2025"), "answer_date"},
		{"unknown single option", "single", models.TextAnswer("C"), "answer_option"},
		{"unknown multi option", "multi", models.OptionsAnswer("A", "C"), "answer_option"},
		{"text as options", "text", models.OptionsAnswer("A"), "answer_shape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, doc)
			verrs := validationErrors(t, s.Answer(tt.questionID, tt.value))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.wantRule, verrs[0].Rule)
			assert.Empty(t, s.Answers())
		})
	}

	t.Run("valid answers", func(t *testing.T) {
		s := newTestSession(t, doc)
		require.NoError(t, s.Answer("rating", models.RatingAnswer(5)))
		require.NoError(t, s.Answer("date", models.TextAnswer("2025-03-14")))
		require.NoError(t, s.Answer("single", models.TextAnswer("B")))
		require.NoError(t, s.Answer("multi", models.OptionsAnswer("A", "B")))
		assert.Len(t, s.Answers(), 4)

		require.NoError(t, s.Answer("multi", models.OptionsAnswer()))
		assert.Len(t, s.Answers(), 3)
	})

	t.Run("question outside current section", func(t *testing.T) {
		s := newTestSession(t, doc)
		err := s.Answer("later", models.TextAnswer("x"))
		assert.ErrorIs(t, err, ErrQuestionNotInSection)

		err = s.Answer("missing", models.TextAnswer("x"))
		assert.True(t, IsReferenceError(err))
	})
}

func TestSession_DefaultTraversalVisitsSectionsInOrder(t *testing.T) {
	doc := &models.SurveyDocument{
		ID:               "survey-1",
		DefaultSectionID: "a",
		Sections: []models.Section{
			{ID: "c", OrderIndex: 7},
			{ID: "a", OrderIndex: 0},
			{ID: "b", OrderIndex: 3},
		},
		Questions: []models.Question{
			{ID: "q-c", SectionID: "c", Type: models.QuestionText},
			{ID: "q-a", SectionID: "a", Type: models.QuestionText},
			{ID: "q-b", SectionID: "b", Type: models.QuestionText},
		},
	}
	s := newTestSession(t, doc)

	var visited []string
	for s.State() == SessionInProgress {
		visited = append(visited, s.Position().SectionID)
		_, err := s.Next()
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b", "c"}, visited)
	assert.Equal(t, SessionCompleted, s.State())
}

func TestSession_SnapshotRestore(t *testing.T) {
	doc := twoSectionDocument()
	s := newTestSession(t, doc)
	require.NoError(t, s.Answer("Q1", models.TextAnswer("hi")))
	_, err := s.Next()
	require.NoError(t, err)

	snap := s.Snapshot()
	restored, err := RestoreSession(doc, navigation.NewEvaluator(nil), snap,
		WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	assert.Equal(t, "session-1", restored.ID())
	assert.Equal(t, s.Position(), restored.Position())
	assert.Equal(t, s.Answers(), restored.Answers())

	require.NoError(t, restored.Previous())
	assert.Equal(t, "S1", restored.Position().SectionID)

	other := twoSectionDocument()
	other.ID = "survey-2"
	_, err = RestoreSession(other, nil, snap)
	assert.ErrorIs(t, err, ErrSurveyMismatch)
}

func TestNewSession_NoSections(t *testing.T) {
	_, err := NewSession(&models.SurveyDocument{ID: "empty"}, nil)
	assert.ErrorIs(t, err, ErrNoSections)
}
