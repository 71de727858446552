package survey

import (
	"time"

	apperrors "github.com/SAP-F-2025/survey-service/internal/errors"
	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/navigation"
	"github.com/google/uuid"
)

type SessionState string

const (
	SessionInProgress SessionState = "in_progress"
	SessionCompleted  SessionState = "completed"
	SessionSubmitted  SessionState = "submitted"
)

const answerDateLayout = "2006-01-02"

// Position is where a respondent is inside the survey: a section, entered
// either at its first question or at a question a rule jumped to.
type Position struct {
	SectionID       string `json:"section_id"`
	EntryQuestionID string `json:"entry_question_id,omitempty"`
}

type SessionOption func(*Session)

func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

func WithResponseIDGenerator(gen IDGenerator) SessionOption {
	return func(s *Session) { s.newID = gen }
}

// Session walks one respondent through a survey document. The document is
// read only for the whole session; the session owns its answers.
type Session struct {
	id        string
	doc       *models.SurveyDocument
	evaluator *navigation.Evaluator
	now       func() time.Time
	newID     IDGenerator

	state       SessionState
	position    Position
	history     []Position
	answers     models.AnswerSet
	startedAt   time.Time
	completedAt *time.Time
	response    *models.FinishedResponse
}

// NewSession starts a session at the first section of doc.
func NewSession(doc *models.SurveyDocument, evaluator *navigation.Evaluator, opts ...SessionOption) (*Session, error) {
	sections := doc.OrderedSections()
	if len(sections) == 0 {
		return nil, refuse("start session", ErrNoSections)
	}
	s := newSession(doc, evaluator, opts...)
	s.state = SessionInProgress
	s.position = Position{SectionID: sections[0].ID}
	s.startedAt = s.now()
	return s, nil
}

func newSession(doc *models.SurveyDocument, evaluator *navigation.Evaluator, opts ...SessionOption) *Session {
	s := &Session{
		doc:       doc,
		evaluator: evaluator,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		answers:   models.AnswerSet{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.evaluator == nil {
		s.evaluator = navigation.NewEvaluator(nil)
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) SurveyID() string {
	return s.doc.ID
}

func (s *Session) State() SessionState {
	return s.state
}

func (s *Session) Position() Position {
	return s.position
}

// CurrentSectionIndex is the index of the current section by order index.
func (s *Session) CurrentSectionIndex() int {
	return s.doc.SectionIndex(s.position.SectionID)
}

// Answers returns a copy of the collected answers.
func (s *Session) Answers() models.AnswerSet {
	return s.answers.Clone()
}

// Response returns the finished response once the session is submitted.
func (s *Session) Response() (*models.FinishedResponse, bool) {
	return s.response, s.response != nil
}

// Walk returns the visible questions of the current section and where the
// section is left to with the current answers.
func (s *Session) Walk() navigation.SectionWalk {
	return s.evaluator.WalkSection(s.doc, s.position.SectionID, s.position.EntryQuestionID, s.answers)
}

// VisibleQuestions returns the questions currently shown in the section.
func (s *Session) VisibleQuestions() []models.Question {
	walk := s.Walk()
	questions := make([]models.Question, 0, len(walk.Visible))
	for _, id := range walk.Visible {
		if q, ok := s.doc.Question(id); ok {
			questions = append(questions, q.Clone())
		}
	}
	return questions
}

// Answer records the answer to a question of the current section. An empty
// value removes the answer.
func (s *Session) Answer(questionID string, value models.AnswerValue) error {
	if err := s.requireInProgress("answer"); err != nil {
		return err
	}
	q, ok := s.doc.Question(questionID)
	if !ok {
		return newReferenceError("question", questionID)
	}
	if q.SectionID != s.position.SectionID {
		return refuse("answer", ErrQuestionNotInSection)
	}

	if value.IsEmpty() {
		delete(s.answers, questionID)
		return nil
	}
	if errs := ValidateAnswer(q, value); len(errs) > 0 {
		return errs
	}

	stored := value
	if value.Options != nil {
		stored.Options = append([]string(nil), value.Options...)
	}
	s.answers[questionID] = stored
	return nil
}

// Next leaves the current section once every visible required question is
// answered. It returns the decision that was applied.
func (s *Session) Next() (navigation.NavigationDecision, error) {
	if err := s.requireInProgress("next"); err != nil {
		return navigation.NavigationDecision{}, err
	}

	walk := s.Walk()
	if errs := s.validateRequired(walk); len(errs) > 0 {
		return navigation.NavigationDecision{}, errs
	}
	s.dropHiddenAnswers(walk)

	s.history = append(s.history, s.position)
	s.apply(walk.Exit)
	return walk.Exit, nil
}

func (s *Session) apply(decision navigation.NavigationDecision) {
	switch decision.Kind {
	case navigation.DecisionComplete:
		s.state = SessionCompleted
		completedAt := s.now()
		s.completedAt = &completedAt
	case navigation.DecisionGotoSection:
		s.position = Position{SectionID: decision.SectionID}
	case navigation.DecisionGotoQuestion:
		q, _ := s.doc.Question(decision.QuestionID)
		s.position = Position{SectionID: q.SectionID, EntryQuestionID: q.ID}
	}
}

// Previous returns to the section visited before the current one. At the
// first section it does nothing.
func (s *Session) Previous() error {
	if s.state == SessionSubmitted {
		return refuse("previous", ErrSessionSubmitted)
	}
	if len(s.history) == 0 {
		return nil
	}
	last := len(s.history) - 1
	s.position = s.history[last]
	s.history = s.history[:last]
	s.state = SessionInProgress
	s.completedAt = nil
	return nil
}

// Submit freezes the answers and produces the finished response. A session
// still in progress can submit from the section that ends the survey; its
// required questions are checked first.
func (s *Session) Submit() (*models.FinishedResponse, error) {
	switch s.state {
	case SessionSubmitted:
		return nil, refuse("submit", ErrSessionSubmitted)
	case SessionInProgress:
		walk := s.Walk()
		if walk.Exit.Kind != navigation.DecisionComplete {
			return nil, refuse("submit", ErrSessionNotComplete)
		}
		if errs := s.validateRequired(walk); len(errs) > 0 {
			return nil, errs
		}
		s.dropHiddenAnswers(walk)
		s.history = append(s.history, s.position)
		s.apply(walk.Exit)
	}

	if s.completedAt == nil {
		completedAt := s.now()
		s.completedAt = &completedAt
	}
	s.response = &models.FinishedResponse{
		ID:          s.newID(),
		SurveyID:    s.doc.ID,
		SessionID:   s.id,
		Answers:     s.answers.Clone(),
		CompletedAt: *s.completedAt,
	}
	s.state = SessionSubmitted
	return s.response, nil
}

func (s *Session) requireInProgress(operation string) error {
	switch s.state {
	case SessionInProgress:
		return nil
	case SessionSubmitted:
		return refuse(operation, ErrSessionSubmitted)
	default:
		return refuse(operation, ErrNotInProgress)
	}
}

func (s *Session) validateRequired(walk navigation.SectionWalk) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors
	for _, id := range walk.Visible {
		q, ok := s.doc.Question(id)
		if !ok || !q.Required {
			continue
		}
		if !s.answers.Answered(id) {
			errs.Add(id, "is required", "required", nil)
		}
	}
	return errs
}

// dropHiddenAnswers discards answers to questions of the section that the
// final path no longer shows.
func (s *Session) dropHiddenAnswers(walk navigation.SectionWalk) {
	for id := range s.answers {
		q, ok := s.doc.Question(id)
		if ok && q.SectionID == walk.SectionID && !walk.IsVisible(id) {
			delete(s.answers, id)
		}
	}
}

// ValidateAnswer checks that value has the shape the question type expects.
func ValidateAnswer(q *models.Question, value models.AnswerValue) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors
	fail := func(message, rule string, v interface{}) {
		errs.Add(q.ID, message, rule, v)
	}

	switch q.Type {
	case models.QuestionText, models.QuestionLongText:
		if value.Kind != models.AnswerKindText {
			fail("does not match the question type", "answer_shape", value.Kind)
		}
	case models.QuestionDate:
		if value.Kind != models.AnswerKindText {
			fail("does not match the question type", "answer_shape", value.Kind)
		} else if _, err := time.Parse(answerDateLayout, value.Text); err != nil {
			fail("must be a date in YYYY-MM-DD format", "answer_date", value.Text)
		}
	case models.QuestionSingleChoice, models.QuestionDropdown:
		if value.Kind != models.AnswerKindText {
			fail("does not match the question type", "answer_shape", value.Kind)
		} else if !q.HasOption(value.Text) {
			fail("must be one of the question options", "answer_option", value.Text)
		}
	case models.QuestionMultiChoice:
		if value.Kind != models.AnswerKindOptions {
			fail("does not match the question type", "answer_shape", value.Kind)
			break
		}
		for _, o := range value.Options {
			if !q.HasOption(o) {
				fail("must be one of the question options", "answer_option", o)
			}
		}
	case models.QuestionRating:
		if value.Kind != models.AnswerKindRating {
			fail("does not match the question type", "answer_shape", value.Kind)
		} else if value.Rating < 1 || value.Rating > 5 {
			fail("must be between 1 and 5", "rating_range", value.Rating)
		}
	}
	return errs
}

// SessionSnapshot is the serializable state of a session.
type SessionSnapshot struct {
	ID          string                   `json:"id"`
	SurveyID    string                   `json:"survey_id"`
	State       SessionState             `json:"state"`
	Position    Position                 `json:"position"`
	History     []Position               `json:"history"`
	Answers     models.AnswerSet         `json:"answers"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	Response    *models.FinishedResponse `json:"response,omitempty"`
}

func (s *Session) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:          s.id,
		SurveyID:    s.doc.ID,
		State:       s.state,
		Position:    s.position,
		History:     append([]Position(nil), s.history...),
		Answers:     s.answers.Clone(),
		StartedAt:   s.startedAt,
		CompletedAt: s.completedAt,
		Response:    s.response,
	}
}

// RestoreSession rebuilds a session from a snapshot taken against doc.
func RestoreSession(doc *models.SurveyDocument, evaluator *navigation.Evaluator, snap SessionSnapshot, opts ...SessionOption) (*Session, error) {
	if snap.SurveyID != doc.ID {
		return nil, refuse("restore session", ErrSurveyMismatch)
	}
	if _, ok := doc.Section(snap.Position.SectionID); !ok {
		return nil, newReferenceError("section", snap.Position.SectionID)
	}

	s := newSession(doc, evaluator, append([]SessionOption{WithSessionID(snap.ID)}, opts...)...)
	s.state = snap.State
	s.position = snap.Position
	s.history = append([]Position(nil), snap.History...)
	if snap.Answers != nil {
		s.answers = snap.Answers.Clone()
	}
	s.startedAt = snap.StartedAt
	s.completedAt = snap.CompletedAt
	s.response = snap.Response
	return s, nil
}
