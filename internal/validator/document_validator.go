package validator

import (
	"fmt"

	apperrors "github.com/SAP-F-2025/survey-service/internal/errors"
	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/navigation"
	"github.com/go-playground/validator/v10"
)

// DocumentValidator checks a whole survey document before it is published or
// imported.
type DocumentValidator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

func NewDocumentValidator(structValidator *validator.Validate, questionValidator *QuestionValidator) *DocumentValidator {
	return &DocumentValidator{
		structValidator:   structValidator,
		questionValidator: questionValidator,
	}
}

// Validate returns every problem found in doc. Field names point at the
// offending element, e.g. questions[q1].options.
func (v *DocumentValidator) Validate(doc *models.SurveyDocument) ValidationErrors {
	var errs ValidationErrors
	add := errs.Add

	if err := v.structValidator.Struct(doc); err != nil {
		errs = append(errs, ToValidationErrors(err)...)
	}

	if _, ok := doc.Section(doc.DefaultSectionID); !ok {
		add("default_section_id", "must reference an existing section", "reference", doc.DefaultSectionID)
	}

	sectionIDs := make(map[string]bool, len(doc.Sections))
	orderIndexes := make(map[int]string, len(doc.Sections))
	for _, s := range doc.Sections {
		if sectionIDs[s.ID] {
			add(apperrors.SectionPath(s.ID), "duplicate section id", "unique", s.ID)
		}
		sectionIDs[s.ID] = true
		if other, ok := orderIndexes[s.OrderIndex]; ok {
			add(apperrors.SectionPath(s.ID, "order_index"), fmt.Sprintf("duplicates the order index of section %s", other), "unique", s.OrderIndex)
		}
		orderIndexes[s.OrderIndex] = s.ID
	}

	questionIDs := make(map[string]bool, len(doc.Questions))
	for i := range doc.Questions {
		q := &doc.Questions[i]
		field := apperrors.QuestionPath(q.ID)
		if questionIDs[q.ID] {
			add(field, "duplicate question id", "unique", q.ID)
		}
		questionIDs[q.ID] = true

		if !sectionIDs[q.SectionID] {
			add(field+".section_id", "must reference an existing section", "reference", q.SectionID)
		}
		if q.ParentQuestionID != nil {
			parent, ok := doc.Question(*q.ParentQuestionID)
			switch {
			case !ok:
				add(field+".parent_question_id", "must reference an existing question", "reference", *q.ParentQuestionID)
			case parent.BranchingLevel+1 != q.BranchingLevel:
				add(field+".branching_level", "must be one more than the parent level", "branching_level", q.BranchingLevel)
			}
		}
		if err := v.questionValidator.ValidateQuestion(q); err != nil {
			add(field, err.Error(), "question", nil)
		}
	}

	for _, ref := range navigation.FindDanglingReferences(doc) {
		if ref.TargetID == "" {
			// missing targets are already reported by ValidateQuestion
			continue
		}
		add(apperrors.RulePath(ref.QuestionID, ref.RuleID),
			"targets a question or section that does not exist", "reference", ref.TargetID)
	}

	return errs
}

// ValidateForPublish additionally requires at least one question.
func (v *DocumentValidator) ValidateForPublish(doc *models.SurveyDocument) ValidationErrors {
	errs := v.Validate(doc)
	if len(doc.Questions) == 0 {
		errs.Add("questions", "survey must have at least one question", "min", 0)
	}
	return errs
}
