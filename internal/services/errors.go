package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/survey-service/internal/errors"
	"github.com/SAP-F-2025/survey-service/internal/survey"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Survey specific errors
	ErrSurveyNotFound      = errors.New("survey not found")
	ErrSurveyNotEditable   = errors.New("survey can only be edited while in draft")
	ErrSurveyNotActive     = errors.New("survey is not accepting responses")
	ErrSurveyInvalidStatus = errors.New("invalid survey status transition")
	ErrSurveyHasResponses  = errors.New("survey cannot be deleted - has collected responses")

	// Session specific errors
	ErrSessionNotFound         = errors.New("session not found or expired")
	ErrSessionAlreadySubmitted = errors.New("session already submitted")

	// Response specific errors
	ErrResponseNotFound = errors.New("response not found")

	// Import/export errors
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSurveyNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrResponseNotFound) ||
		survey.IsReferenceError(err)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		survey.IsInvalidInput(err) {
		return true
	}
	var ve apperrors.ValidationErrors
	var single *apperrors.ValidationError
	return errors.As(err, &ve) || errors.As(err, &single)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre) ||
		survey.IsInvariantViolation(err) ||
		errors.Is(err, ErrSurveyNotEditable) ||
		errors.Is(err, ErrSurveyNotActive) ||
		errors.Is(err, ErrSurveyInvalidStatus)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSurveyHasResponses) ||
		errors.Is(err, ErrSessionAlreadySubmitted)
}
