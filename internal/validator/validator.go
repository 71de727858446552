package validator

import (
	"reflect"
	"strings"

	apperrors "github.com/SAP-F-2025/survey-service/internal/errors"
	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/survey"
	"github.com/go-playground/validator/v10"
)

type (
	ValidationError  = apperrors.ValidationError
	ValidationErrors = apperrors.ValidationErrors
)

// ToValidationErrors converts struct tag failures to ValidationErrors.
func ToValidationErrors(err error) ValidationErrors {
	return apperrors.ToValidationErrors(err)
}

// Validator is the main validator instance that combines all validation types
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
	documentValidator *DocumentValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	// Register all custom validators once
	registerCustomValidators(structValidator)

	questionValidator := NewQuestionValidator()
	return &Validator{
		structValidator:   structValidator,
		questionValidator: questionValidator,
		documentValidator: NewDocumentValidator(structValidator, questionValidator),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates struct tags and converts failures to ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Question returns the question validator
func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

// Document returns the document validator
func (v *Validator) Document() *DocumentValidator {
	return v.documentValidator
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("branching_condition", validateBranchingCondition)
	validate.RegisterValidation("branching_action", validateBranchingAction)
	validate.RegisterValidation("survey_status", validateSurveyStatus)
	validate.RegisterValidation("delete_policy", validateDeletePolicy)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validation functions
func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(fl.Field().String()).IsValid()
}

func validateBranchingCondition(fl validator.FieldLevel) bool {
	return models.Condition(fl.Field().String()).IsValid()
}

func validateBranchingAction(fl validator.FieldLevel) bool {
	return models.Action(fl.Field().String()).IsValid()
}

func validateSurveyStatus(fl validator.FieldLevel) bool {
	validStatuses := []models.SurveyStatus{
		models.SurveyStatusDraft,
		models.SurveyStatusActive,
		models.SurveyStatusClosed,
	}

	value := fl.Field().String()
	for _, validStatus := range validStatuses {
		if string(validStatus) == value {
			return true
		}
	}
	return false
}

func validateDeletePolicy(fl validator.FieldLevel) bool {
	return survey.SectionDeletePolicy(fl.Field().String()).IsValid()
}
