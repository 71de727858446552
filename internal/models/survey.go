package models

import (
	"fmt"
	"sort"
	"strings"
)

type QuestionType string

const (
	QuestionText         QuestionType = "text"
	QuestionLongText     QuestionType = "long_text"
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionDropdown     QuestionType = "dropdown"
	QuestionRating       QuestionType = "rating"
	QuestionDate         QuestionType = "date"
)

// legacyQuestionTypes maps the type names used by older survey documents to
// the canonical enum. The older views disagree on naming, so none of them is
// treated as authoritative.
var legacyQuestionTypes = map[string]QuestionType{
	"textarea":        QuestionLongText,
	"longtext":        QuestionLongText,
	"multiple-choice": QuestionSingleChoice,
	"multiple_choice": QuestionSingleChoice,
	"checkbox":        QuestionMultiChoice,
	"checkboxes":      QuestionMultiChoice,
}

// QuestionTypes lists the canonical question types.
func QuestionTypes() []QuestionType {
	return []QuestionType{
		QuestionText,
		QuestionLongText,
		QuestionSingleChoice,
		QuestionMultiChoice,
		QuestionDropdown,
		QuestionRating,
		QuestionDate,
	}
}

// ParseQuestionType resolves a canonical name or a legacy alias.
func ParseQuestionType(s string) (QuestionType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range QuestionTypes() {
		if string(t) == s {
			return t, true
		}
	}
	if t, ok := legacyQuestionTypes[strings.ToLower(s)]; ok {
		return t, true
	}
	return "", false
}

func (t QuestionType) IsValid() bool {
	for _, known := range QuestionTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// HasOptions reports whether questions of this type carry an option list.
func (t QuestionType) HasOptions() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiChoice, QuestionDropdown:
		return true
	}
	return false
}

func (t *QuestionType) UnmarshalText(text []byte) error {
	parsed, ok := ParseQuestionType(string(text))
	if !ok {
		return fmt.Errorf("unknown question type %q", string(text))
	}
	*t = parsed
	return nil
}

type Condition string

const (
	ConditionEquals         Condition = "equals"
	ConditionNotEquals      Condition = "not_equals"
	ConditionGreaterThan    Condition = "greater_than"
	ConditionLessThan       Condition = "less_than"
	ConditionContains       Condition = "contains"
	ConditionOptionSelected Condition = "option_selected"
)

func Conditions() []Condition {
	return []Condition{
		ConditionEquals,
		ConditionNotEquals,
		ConditionGreaterThan,
		ConditionLessThan,
		ConditionContains,
		ConditionOptionSelected,
	}
}

func (c Condition) IsValid() bool {
	for _, known := range Conditions() {
		if c == known {
			return true
		}
	}
	return false
}

func (c *Condition) UnmarshalText(text []byte) error {
	value := Condition(strings.TrimSpace(string(text)))
	if value == "selected" {
		value = ConditionOptionSelected
	}
	if !value.IsValid() {
		return fmt.Errorf("unknown branching condition %q", string(text))
	}
	*c = value
	return nil
}

type Action string

const (
	ActionShowQuestion   Action = "show_question"
	ActionCreateQuestion Action = "create_question"
	ActionShowSection    Action = "show_section"
	ActionSkipTo         Action = "skip_to"
	ActionEndSurvey      Action = "end_survey"
)

func Actions() []Action {
	return []Action{
		ActionShowQuestion,
		ActionCreateQuestion,
		ActionShowSection,
		ActionSkipTo,
		ActionEndSurvey,
	}
}

func (a Action) IsValid() bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}

// TargetsQuestion reports whether the action navigates to a question.
func (a Action) TargetsQuestion() bool {
	return a == ActionShowQuestion || a == ActionSkipTo || a == ActionCreateQuestion
}

func (a *Action) UnmarshalText(text []byte) error {
	value := Action(strings.TrimSpace(string(text)))
	if !value.IsValid() {
		return fmt.Errorf("unknown branching action %q", string(text))
	}
	*a = value
	return nil
}

type Section struct {
	ID          string  `json:"id" yaml:"id" validate:"required"`
	Title       string  `json:"title" yaml:"title" validate:"max=200"`
	Description *string `json:"description,omitempty" yaml:"description,omitempty" validate:"omitempty,max=1000"`
	OrderIndex  int     `json:"order_index" yaml:"order_index" validate:"min=0"`
}

type BranchingRule struct {
	ID               string          `json:"id" yaml:"id" validate:"required"`
	Condition        Condition       `json:"condition" yaml:"condition" validate:"branching_condition"`
	ComparisonValue  ComparisonValue `json:"comparison_value" yaml:"comparison_value"`
	Action           Action          `json:"action" yaml:"action" validate:"branching_action"`
	TargetQuestionID *string         `json:"target_question_id,omitempty" yaml:"target_question_id,omitempty"`
	TargetSectionID  *string         `json:"target_section_id,omitempty" yaml:"target_section_id,omitempty"`
}

type Question struct {
	ID               string          `json:"id" yaml:"id" validate:"required"`
	SectionID        string          `json:"section_id" yaml:"section_id" validate:"required"`
	Prompt           string          `json:"prompt" yaml:"prompt" validate:"max=500"`
	Description      *string         `json:"description,omitempty" yaml:"description,omitempty" validate:"omitempty,max=1000"`
	Type             QuestionType    `json:"type" yaml:"type" validate:"question_type"`
	Options          []string        `json:"options,omitempty" yaml:"options,omitempty"`
	Required         bool            `json:"required" yaml:"required"`
	BranchingRules   []BranchingRule `json:"branching_rules" yaml:"branching_rules" validate:"dive"`
	ParentQuestionID *string         `json:"parent_question_id,omitempty" yaml:"parent_question_id,omitempty"`
	BranchingLevel   int             `json:"branching_level" yaml:"branching_level" validate:"min=0"`
}

// SurveyDocument is the authoring model of a survey. Questions are kept in
// declaration order.
type SurveyDocument struct {
	ID               string     `json:"id" yaml:"id"`
	Title            string     `json:"title" yaml:"title" validate:"max=200"`
	Description      string     `json:"description" yaml:"description" validate:"max=1000"`
	DefaultSectionID string     `json:"default_section_id" yaml:"default_section_id" validate:"required"`
	Sections         []Section  `json:"sections" yaml:"sections" validate:"min=1,dive"`
	Questions        []Question `json:"questions" yaml:"questions" validate:"dive"`
}

// Section returns the section with the given id.
func (d *SurveyDocument) Section(id string) (*Section, bool) {
	for i := range d.Sections {
		if d.Sections[i].ID == id {
			return &d.Sections[i], true
		}
	}
	return nil, false
}

// Question returns the question with the given id.
func (d *SurveyDocument) Question(id string) (*Question, bool) {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return &d.Questions[i], true
		}
	}
	return nil, false
}

// OrderedSections returns the sections sorted by ascending order index.
func (d *SurveyDocument) OrderedSections() []Section {
	sections := make([]Section, len(d.Sections))
	copy(sections, d.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].OrderIndex < sections[j].OrderIndex
	})
	return sections
}

// SectionIndex returns the position of a section in OrderedSections.
func (d *SurveyDocument) SectionIndex(id string) int {
	for i, s := range d.OrderedSections() {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// SectionQuestions returns the questions of a section in default traversal
// order: ascending branching level, then declaration order.
func (d *SurveyDocument) SectionQuestions(sectionID string) []Question {
	var questions []Question
	for _, q := range d.Questions {
		if q.SectionID == sectionID {
			questions = append(questions, q)
		}
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].BranchingLevel < questions[j].BranchingLevel
	})
	return questions
}

// NextOrderIndex returns the order index a newly appended section gets.
func (d *SurveyDocument) NextOrderIndex() int {
	next := 0
	for _, s := range d.Sections {
		if s.OrderIndex >= next {
			next = s.OrderIndex + 1
		}
	}
	return next
}

// Clone returns a deep copy of the document.
func (d *SurveyDocument) Clone() *SurveyDocument {
	if d == nil {
		return nil
	}
	out := *d
	out.Sections = make([]Section, len(d.Sections))
	for i, s := range d.Sections {
		s.Description = cloneString(s.Description)
		out.Sections[i] = s
	}
	out.Questions = make([]Question, len(d.Questions))
	for i, q := range d.Questions {
		out.Questions[i] = q.Clone()
	}
	return &out
}

func (q Question) Clone() Question {
	out := q
	out.Description = cloneString(q.Description)
	out.ParentQuestionID = cloneString(q.ParentQuestionID)
	if q.Options != nil {
		out.Options = append([]string(nil), q.Options...)
	}
	if q.BranchingRules == nil {
		return out
	}
	out.BranchingRules = make([]BranchingRule, len(q.BranchingRules))
	for i, r := range q.BranchingRules {
		r.TargetQuestionID = cloneString(r.TargetQuestionID)
		r.TargetSectionID = cloneString(r.TargetSectionID)
		out.BranchingRules[i] = r
	}
	return out
}

// HasOption reports whether the question offers the given option.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Rule returns the branching rule with the given id.
func (q *Question) Rule(id string) (*BranchingRule, bool) {
	for i := range q.BranchingRules {
		if q.BranchingRules[i].ID == id {
			return &q.BranchingRules[i], true
		}
	}
	return nil, false
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
