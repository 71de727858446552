package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is one problem found on a field. Document fields are
// addressed by element id, e.g. questions[q1].branching_rules[r2].
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	if len(ve) == 1 {
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	}
	return fmt.Sprintf("validation failed: %d field errors", len(ve))
}

// Add appends a problem found on field.
func (ve *ValidationErrors) Add(field, message, rule string, value interface{}) {
	*ve = append(*ve, ValidationError{Field: field, Message: message, Rule: rule, Value: value})
}

// Fields returns the distinct fields with problems in report order.
func (ve ValidationErrors) Fields() []string {
	seen := make(map[string]bool, len(ve))
	var fields []string
	for _, e := range ve {
		if !seen[e.Field] {
			seen[e.Field] = true
			fields = append(fields, e.Field)
		}
	}
	return fields
}

// Err returns nil for an empty collection so callers can return it as error.
func (ve ValidationErrors) Err() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

func (pe *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", pe.Field, pe.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ===== FIELD PATHS =====

func SectionPath(sectionID string, attrs ...string) string {
	return path(fmt.Sprintf("sections[%s]", sectionID), attrs)
}

func QuestionPath(questionID string, attrs ...string) string {
	return path(fmt.Sprintf("questions[%s]", questionID), attrs)
}

func RulePath(questionID, ruleID string, attrs ...string) string {
	return path(fmt.Sprintf("questions[%s].branching_rules[%s]", questionID, ruleID), attrs)
}

func path(base string, attrs []string) string {
	if len(attrs) == 0 {
		return base
	}
	return base + "." + strings.Join(attrs, ".")
}

// ToValidationErrors converts struct tag failures. Field names come from the
// json tags registered on the validator, nested fields keep their path
// below the validated struct.
func ToValidationErrors(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return nil
	}

	errs := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs.Add(fieldPath(fe), getErrorMessage(fe), fe.Tag(), fe.Value())
	}
	return errs
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 && i < len(ns)-1 {
		return ns[i+1:]
	}
	return fe.Field()
}

// getErrorMessage returns user-friendly error messages
func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		if err.Kind().String() == "slice" {
			return fmt.Sprintf("must have at least %s items", err.Param())
		}
		return fmt.Sprintf("must be at least %s", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", err.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())

	case "question_type":
		return "must be a valid question type (text, long_text, single_choice, multi_choice, dropdown, rating, date)"
	case "branching_condition":
		return "must be a valid condition (equals, not_equals, greater_than, less_than, contains, option_selected)"
	case "branching_action":
		return "must be a valid action (show_question, create_question, show_section, skip_to, end_survey)"
	case "survey_status":
		return "must be a valid survey status (draft, active, closed)"
	case "delete_policy":
		return "must be reassign or delete"

	default:
		return fmt.Sprintf("validation failed for rule '%s'", err.Tag())
	}
}
