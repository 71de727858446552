// Package survey holds the authoring and respondent sides of a survey: the
// Builder that edits a SurveyDocument and the Session that walks one.
package survey

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultSectionTitle = "General Questions"
	NewSectionTitle     = "New Section"
	NewQuestionPrompt   = "New Question"
)

// SectionDeletePolicy decides what happens to the questions of a deleted
// section.
type SectionDeletePolicy string

const (
	DeletePolicyReassign SectionDeletePolicy = "reassign"
	DeletePolicyDelete   SectionDeletePolicy = "delete"
)

func (p SectionDeletePolicy) IsValid() bool {
	return p == DeletePolicyReassign || p == DeletePolicyDelete
}

type IDGenerator func() string

// CascadeConfirmer is asked whether the question created by a create_question
// rule should be deleted together with the rule.
type CascadeConfirmer func(rule models.BranchingRule, created models.Question) bool

func keepCreatedQuestion(models.BranchingRule, models.Question) bool { return false }

type BuilderOption func(*Builder)

func WithIDGenerator(gen IDGenerator) BuilderOption {
	return func(b *Builder) { b.newID = gen }
}

func WithDeletePolicy(policy SectionDeletePolicy) BuilderOption {
	return func(b *Builder) { b.policy = policy }
}

func WithCascadeConfirmer(confirm CascadeConfirmer) BuilderOption {
	return func(b *Builder) { b.confirm = confirm }
}

func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

// Builder mutates one SurveyDocument and keeps its references consistent:
// every question points at an existing section, every parent link points at a
// question one level up and no rule targets a deleted question or section.
type Builder struct {
	doc     *models.SurveyDocument
	newID   IDGenerator
	policy  SectionDeletePolicy
	confirm CascadeConfirmer
	logger  *slog.Logger
}

func NewBuilder(doc *models.SurveyDocument, opts ...BuilderOption) *Builder {
	b := &Builder{
		doc:     doc,
		newID:   uuid.NewString,
		policy:  DeletePolicyReassign,
		confirm: keepCreatedQuestion,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !b.policy.IsValid() {
		b.policy = DeletePolicyReassign
	}
	return b
}

// NewDocument returns an empty document holding only the default section.
func NewDocument(title string, newID IDGenerator) *models.SurveyDocument {
	if newID == nil {
		newID = uuid.NewString
	}
	sectionID := newID()
	return &models.SurveyDocument{
		ID:               newID(),
		Title:            title,
		DefaultSectionID: sectionID,
		Sections: []models.Section{
			{ID: sectionID, Title: DefaultSectionTitle, OrderIndex: 0},
		},
		Questions: []models.Question{},
	}
}

// Document returns the document being edited.
func (b *Builder) Document() *models.SurveyDocument {
	return b.doc
}

// AddSection appends a section after the last one.
func (b *Builder) AddSection() models.Section {
	section := models.Section{
		ID:         b.newID(),
		Title:      NewSectionTitle,
		OrderIndex: b.doc.NextOrderIndex(),
	}
	b.doc.Sections = append(b.doc.Sections, section)
	return section
}

type SectionUpdate struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

func (b *Builder) UpdateSection(sectionID string, update SectionUpdate) (models.Section, error) {
	section, ok := b.doc.Section(sectionID)
	if !ok {
		return models.Section{}, newReferenceError("section", sectionID)
	}
	if update.Title != nil {
		section.Title = *update.Title
	}
	if update.Description != nil {
		if *update.Description == "" {
			section.Description = nil
		} else {
			section.Description = models.StringPtr(*update.Description)
		}
	}
	return *section, nil
}

// DeleteSection removes a section. Its questions are moved to the default
// section or deleted depending on the delete policy, and rules pointing at
// the section are removed. The default section cannot be deleted.
func (b *Builder) DeleteSection(sectionID string) error {
	if sectionID == b.doc.DefaultSectionID {
		return refuse("delete section", ErrDefaultSection)
	}
	if _, ok := b.doc.Section(sectionID); !ok {
		return newReferenceError("section", sectionID)
	}

	var moved []string
	for i := range b.doc.Questions {
		if b.doc.Questions[i].SectionID == sectionID {
			moved = append(moved, b.doc.Questions[i].ID)
		}
	}

	switch b.policy {
	case DeletePolicyDelete:
		for _, id := range moved {
			b.removeQuestion(id)
		}
	default:
		for _, id := range moved {
			q, _ := b.doc.Question(id)
			q.SectionID = b.doc.DefaultSectionID
		}
	}

	sections := b.doc.Sections[:0]
	for _, s := range b.doc.Sections {
		if s.ID != sectionID {
			sections = append(sections, s)
		}
	}
	b.doc.Sections = sections

	for i := range b.doc.Questions {
		b.doc.Questions[i].BranchingRules = filterRules(b.doc.Questions[i].BranchingRules, func(r models.BranchingRule) bool {
			return r.TargetSectionID != nil && *r.TargetSectionID == sectionID
		})
	}

	b.logger.Info("Section deleted",
		"section_id", sectionID,
		"policy", string(b.policy),
		"questions", len(moved))
	return nil
}

// AddQuestion appends a top level question to a section.
func (b *Builder) AddQuestion(sectionID string, qType models.QuestionType) (models.Question, error) {
	if _, ok := b.doc.Section(sectionID); !ok {
		return models.Question{}, newReferenceError("section", sectionID)
	}
	if !qType.IsValid() {
		return models.Question{}, fmt.Errorf("%w: %q", ErrUnknownQuestionType, qType)
	}

	question := models.Question{
		ID:             b.newID(),
		SectionID:      sectionID,
		Prompt:         NewQuestionPrompt,
		Type:           qType,
		Options:        defaultOptions(qType),
		BranchingRules: []models.BranchingRule{},
	}
	b.doc.Questions = append(b.doc.Questions, question)
	return question.Clone(), nil
}

// QuestionUpdate carries the fields to merge into a question. Nil fields are
// left unchanged; a nil Options slice keeps the current options.
type QuestionUpdate struct {
	Prompt      *string              `json:"prompt" validate:"omitempty,max=500"`
	Description *string              `json:"description" validate:"omitempty,max=1000"`
	Type        *models.QuestionType `json:"type" validate:"omitempty,question_type"`
	Options     []string             `json:"options" validate:"omitempty,dive,max=200"`
	Required    *bool                `json:"required"`
	SectionID   *string              `json:"section_id"`
}

// UpdateQuestion merges update into a question. Switching to a type without
// options clears them; switching to one with options seeds two defaults when
// the question has none.
func (b *Builder) UpdateQuestion(questionID string, update QuestionUpdate) (models.Question, error) {
	q, ok := b.doc.Question(questionID)
	if !ok {
		return models.Question{}, newReferenceError("question", questionID)
	}
	if update.Type != nil && !update.Type.IsValid() {
		return models.Question{}, fmt.Errorf("%w: %q", ErrUnknownQuestionType, *update.Type)
	}
	if update.SectionID != nil {
		if _, ok := b.doc.Section(*update.SectionID); !ok {
			return models.Question{}, newReferenceError("section", *update.SectionID)
		}
	}

	next := q.Clone()
	applyQuestionUpdate(&next, update)
	if next.Type.HasOptions() && update.Options != nil && len(next.Options) == 0 {
		return models.Question{}, refuse("update question", ErrLastOption)
	}

	*q = next
	return q.Clone(), nil
}

func applyQuestionUpdate(q *models.Question, update QuestionUpdate) {
	if update.Prompt != nil {
		q.Prompt = *update.Prompt
	}
	if update.Description != nil {
		if *update.Description == "" {
			q.Description = nil
		} else {
			q.Description = models.StringPtr(*update.Description)
		}
	}
	if update.Required != nil {
		q.Required = *update.Required
	}
	if update.SectionID != nil {
		q.SectionID = *update.SectionID
	}
	if update.Type != nil {
		q.Type = *update.Type
	}
	if update.Options != nil {
		q.Options = append([]string(nil), update.Options...)
	}

	switch {
	case !q.Type.HasOptions():
		q.Options = nil
	case len(q.Options) == 0 && update.Options == nil:
		q.Options = defaultOptions(q.Type)
	}
}

// DeleteQuestion removes a question and every rule elsewhere that targets
// it. Questions branched from it move one level up.
func (b *Builder) DeleteQuestion(questionID string) error {
	if _, ok := b.doc.Question(questionID); !ok {
		return newReferenceError("question", questionID)
	}
	b.removeQuestion(questionID)
	return nil
}

func (b *Builder) removeQuestion(questionID string) {
	removed, ok := b.doc.Question(questionID)
	if !ok {
		return
	}
	parent := removed.ParentQuestionID
	if parent != nil {
		v := *parent
		parent = &v
	}

	questions := b.doc.Questions[:0]
	for _, q := range b.doc.Questions {
		if q.ID != questionID {
			questions = append(questions, q)
		}
	}
	b.doc.Questions = questions

	for i := range b.doc.Questions {
		q := &b.doc.Questions[i]
		q.BranchingRules = filterRules(q.BranchingRules, func(r models.BranchingRule) bool {
			return r.TargetQuestionID != nil && *r.TargetQuestionID == questionID
		})
	}

	var children []string
	for i := range b.doc.Questions {
		q := &b.doc.Questions[i]
		if q.ParentQuestionID != nil && *q.ParentQuestionID == questionID {
			q.ParentQuestionID = parent
			children = append(children, q.ID)
		}
	}
	for _, id := range children {
		b.shiftLevels(id, -1)
	}
}

// shiftLevels moves a question and everything branched below it by delta
// levels.
func (b *Builder) shiftLevels(rootID string, delta int) {
	seen := map[string]bool{}
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		for i := range b.doc.Questions {
			q := &b.doc.Questions[i]
			if q.ID == id {
				q.BranchingLevel += delta
				if q.BranchingLevel < 0 {
					q.BranchingLevel = 0
				}
			}
			if q.ParentQuestionID != nil && *q.ParentQuestionID == id {
				queue = append(queue, q.ID)
			}
		}
	}
}

// AddOption appends an option to a choice question. An empty text gets a
// numbered default label.
func (b *Builder) AddOption(questionID, text string) (models.Question, error) {
	q, err := b.choiceQuestion(questionID)
	if err != nil {
		return models.Question{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = fmt.Sprintf("Option %d", len(q.Options)+1)
	}
	q.Options = append(q.Options, text)
	return q.Clone(), nil
}

func (b *Builder) UpdateOption(questionID string, index int, text string) (models.Question, error) {
	q, err := b.choiceQuestion(questionID)
	if err != nil {
		return models.Question{}, err
	}
	if index < 0 || index >= len(q.Options) {
		return models.Question{}, newReferenceError("option", strconv.Itoa(index))
	}
	q.Options[index] = text
	return q.Clone(), nil
}

// RemoveOption deletes an option. The last option of a question is kept.
func (b *Builder) RemoveOption(questionID string, index int) (models.Question, error) {
	q, err := b.choiceQuestion(questionID)
	if err != nil {
		return models.Question{}, err
	}
	if index < 0 || index >= len(q.Options) {
		return models.Question{}, newReferenceError("option", strconv.Itoa(index))
	}
	if len(q.Options) <= 1 {
		return models.Question{}, refuse("remove option", ErrLastOption)
	}
	q.Options = append(q.Options[:index], q.Options[index+1:]...)
	return q.Clone(), nil
}

func (b *Builder) choiceQuestion(questionID string) (*models.Question, error) {
	q, ok := b.doc.Question(questionID)
	if !ok {
		return nil, newReferenceError("question", questionID)
	}
	if !q.Type.HasOptions() {
		return nil, refuse("edit options", ErrNoOptions)
	}
	return q, nil
}

// AddBranchingRule appends a rule with condition equals and action
// show_question and no target.
func (b *Builder) AddBranchingRule(questionID string) (models.BranchingRule, error) {
	q, ok := b.doc.Question(questionID)
	if !ok {
		return models.BranchingRule{}, newReferenceError("question", questionID)
	}
	rule := models.BranchingRule{
		ID:        b.newID(),
		Condition: models.ConditionEquals,
		Action:    models.ActionShowQuestion,
	}
	q.BranchingRules = append(q.BranchingRules, rule)
	return rule, nil
}

// RuleUpdate carries the fields to merge into a branching rule. An empty
// target id clears the target.
type RuleUpdate struct {
	Condition        *models.Condition       `json:"condition" validate:"omitempty,branching_condition"`
	ComparisonValue  *models.ComparisonValue `json:"comparison_value"`
	Action           *models.Action          `json:"action" validate:"omitempty,branching_action"`
	TargetQuestionID *string                 `json:"target_question_id"`
	TargetSectionID  *string                 `json:"target_section_id"`
}

// UpdateBranchingRule merges update into a rule. Targets must resolve, and
// targets the action does not use are cleared.
func (b *Builder) UpdateBranchingRule(questionID, ruleID string, update RuleUpdate) (models.BranchingRule, error) {
	q, ok := b.doc.Question(questionID)
	if !ok {
		return models.BranchingRule{}, newReferenceError("question", questionID)
	}
	rule, ok := q.Rule(ruleID)
	if !ok {
		return models.BranchingRule{}, newReferenceError("branching rule", ruleID)
	}
	if update.Condition != nil && !update.Condition.IsValid() {
		return models.BranchingRule{}, fmt.Errorf("%w: %q", ErrUnknownCondition, *update.Condition)
	}
	if update.Action != nil && !update.Action.IsValid() {
		return models.BranchingRule{}, fmt.Errorf("%w: %q", ErrUnknownAction, *update.Action)
	}
	if id := update.TargetQuestionID; id != nil && *id != "" {
		if _, ok := b.doc.Question(*id); !ok {
			return models.BranchingRule{}, newReferenceError("question", *id)
		}
	}
	if id := update.TargetSectionID; id != nil && *id != "" {
		if _, ok := b.doc.Section(*id); !ok {
			return models.BranchingRule{}, newReferenceError("section", *id)
		}
	}

	if update.Condition != nil {
		rule.Condition = *update.Condition
	}
	if update.ComparisonValue != nil {
		rule.ComparisonValue = *update.ComparisonValue
	}
	if update.Action != nil {
		rule.Action = *update.Action
	}
	if update.TargetQuestionID != nil {
		rule.TargetQuestionID = optionalID(*update.TargetQuestionID)
	}
	if update.TargetSectionID != nil {
		rule.TargetSectionID = optionalID(*update.TargetSectionID)
	}

	switch {
	case rule.Action == models.ActionEndSurvey:
		rule.TargetQuestionID = nil
		rule.TargetSectionID = nil
	case rule.Action == models.ActionShowSection:
		rule.TargetQuestionID = nil
	case rule.Action.TargetsQuestion():
		rule.TargetSectionID = nil
	}

	out := *rule
	out.TargetQuestionID = clonePtr(rule.TargetQuestionID)
	out.TargetSectionID = clonePtr(rule.TargetSectionID)
	return out, nil
}

// DeleteBranchingRule removes a rule. When the rule created a question, the
// cascade confirmer decides whether that question goes too.
func (b *Builder) DeleteBranchingRule(questionID, ruleID string) error {
	q, ok := b.doc.Question(questionID)
	if !ok {
		return newReferenceError("question", questionID)
	}
	rule, ok := q.Rule(ruleID)
	if !ok {
		return newReferenceError("branching rule", ruleID)
	}
	removed := *rule
	q.BranchingRules = filterRules(q.BranchingRules, func(r models.BranchingRule) bool {
		return r.ID == ruleID
	})

	if removed.Action != models.ActionCreateQuestion || removed.TargetQuestionID == nil {
		return nil
	}
	created, ok := b.doc.Question(*removed.TargetQuestionID)
	if !ok {
		return nil
	}
	if b.confirm(removed, created.Clone()) {
		b.logger.Info("Deleting question created by branching rule",
			"rule_id", removed.ID,
			"question_id", created.ID)
		b.removeQuestion(created.ID)
	}
	return nil
}

// CreateBranchedQuestion creates a question one level below parentID and
// points the parent's rule ruleID at it. The rule keeps the create_question
// action so deleting it can offer to delete the created question.
func (b *Builder) CreateBranchedQuestion(parentID, ruleID string, fields QuestionUpdate) (models.Question, error) {
	parent, ok := b.doc.Question(parentID)
	if !ok {
		return models.Question{}, newReferenceError("question", parentID)
	}
	if _, ok := parent.Rule(ruleID); !ok {
		return models.Question{}, newReferenceError("branching rule", ruleID)
	}
	if fields.Type != nil && !fields.Type.IsValid() {
		return models.Question{}, fmt.Errorf("%w: %q", ErrUnknownQuestionType, *fields.Type)
	}
	if fields.SectionID != nil {
		if _, ok := b.doc.Section(*fields.SectionID); !ok {
			return models.Question{}, newReferenceError("section", *fields.SectionID)
		}
	}

	question := models.Question{
		ID:               b.newID(),
		SectionID:        parent.SectionID,
		Prompt:           NewQuestionPrompt,
		Type:             models.QuestionText,
		BranchingRules:   []models.BranchingRule{},
		ParentQuestionID: models.StringPtr(parent.ID),
		BranchingLevel:   parent.BranchingLevel + 1,
	}
	applyQuestionUpdate(&question, fields)
	if question.Type.HasOptions() && len(question.Options) == 0 {
		question.Options = defaultOptions(question.Type)
	}

	rule, _ := parent.Rule(ruleID)
	rule.Action = models.ActionCreateQuestion
	rule.TargetQuestionID = models.StringPtr(question.ID)
	rule.TargetSectionID = nil

	// parent points into the slice, so append only after the rule is linked
	b.doc.Questions = append(b.doc.Questions, question)
	return question.Clone(), nil
}

func defaultOptions(qType models.QuestionType) []string {
	if !qType.HasOptions() {
		return nil
	}
	return []string{"Option 1", "Option 2"}
}

func filterRules(rules []models.BranchingRule, drop func(models.BranchingRule) bool) []models.BranchingRule {
	if rules == nil {
		return nil
	}
	out := make([]models.BranchingRule, 0, len(rules))
	for _, r := range rules {
		if !drop(r) {
			out = append(out, r)
		}
	}
	return out
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return models.StringPtr(id)
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	return models.StringPtr(*s)
}
