package validator

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/survey-service/internal/models"
)

const (
	maxOptions      = 50
	maxOptionLength = 200
)

// QuestionValidator handles question-specific validation
type QuestionValidator struct{}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateOptions checks that options are present exactly for choice types
// and that they are non-empty and distinct.
func (v *QuestionValidator) ValidateOptions(questionType models.QuestionType, options []string) error {
	if !questionType.HasOptions() {
		if len(options) > 0 {
			return fmt.Errorf("%s questions cannot have options", questionType)
		}
		return nil
	}

	if len(options) == 0 {
		return fmt.Errorf("must have at least 1 option")
	}
	if len(options) > maxOptions {
		return fmt.Errorf("cannot have more than %d options", maxOptions)
	}

	seen := make(map[string]bool, len(options))
	for _, option := range options {
		if strings.TrimSpace(option) == "" {
			return fmt.Errorf("option text cannot be empty")
		}
		if len(option) > maxOptionLength {
			return fmt.Errorf("option %q exceeds %d characters", option, maxOptionLength)
		}
		if seen[option] {
			return fmt.Errorf("duplicate option %q", option)
		}
		seen[option] = true
	}
	return nil
}

// ValidateRule checks that a rule carries the target its action needs.
func (v *QuestionValidator) ValidateRule(rule models.BranchingRule) error {
	if !rule.Condition.IsValid() {
		return fmt.Errorf("rule %s: unknown condition %q", rule.ID, rule.Condition)
	}
	switch {
	case rule.Action == models.ActionEndSurvey:
		return nil
	case rule.Action == models.ActionShowSection:
		if rule.TargetSectionID == nil || *rule.TargetSectionID == "" {
			return fmt.Errorf("rule %s: %s requires a target section", rule.ID, rule.Action)
		}
	case rule.Action.TargetsQuestion():
		if rule.TargetQuestionID == nil || *rule.TargetQuestionID == "" {
			return fmt.Errorf("rule %s: %s requires a target question", rule.ID, rule.Action)
		}
	default:
		return fmt.Errorf("rule %s: unknown action %q", rule.ID, rule.Action)
	}
	return nil
}

// ValidateQuestion validates a complete question object
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	if strings.TrimSpace(question.Prompt) == "" {
		return fmt.Errorf("question prompt is required")
	}
	if !question.Type.IsValid() {
		return fmt.Errorf("unsupported question type: %s", question.Type)
	}
	if err := v.ValidateOptions(question.Type, question.Options); err != nil {
		return err
	}
	if question.BranchingLevel < 0 {
		return fmt.Errorf("branching level cannot be negative")
	}
	if question.ParentQuestionID == nil && question.BranchingLevel != 0 {
		return fmt.Errorf("top level question must have branching level 0")
	}

	seen := make(map[string]bool, len(question.BranchingRules))
	for _, rule := range question.BranchingRules {
		if seen[rule.ID] {
			return fmt.Errorf("duplicate branching rule id %q", rule.ID)
		}
		seen[rule.ID] = true
		if err := v.ValidateRule(rule); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBatch validates multiple questions
func (v *QuestionValidator) ValidateBatch(questions []*models.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("question batch cannot be empty")
	}

	for i, question := range questions {
		if err := v.ValidateQuestion(question); err != nil {
			return fmt.Errorf("validation failed for question %d: %w", i+1, err)
		}
	}

	return nil
}
