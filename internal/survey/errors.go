package survey

import (
	"errors"
	"fmt"
)

var (
	ErrDefaultSection     = errors.New("default section cannot be deleted")
	ErrLastOption         = errors.New("question must keep at least one option")
	ErrSessionSubmitted   = errors.New("session already submitted")
	ErrSessionNotComplete = errors.New("session has not reached the end of the survey")
	ErrFirstSection       = errors.New("already at the first section")
)

// ReferenceError reports an id that does not resolve in the document.
type ReferenceError struct {
	Kind string
	ID   string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func newReferenceError(kind, id string) *ReferenceError {
	return &ReferenceError{Kind: kind, ID: id}
}

// InvariantViolation reports an operation that was refused because it would
// break a document or session invariant. The document or session is left
// unchanged.
type InvariantViolation struct {
	Operation string
	Err       error
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("%s refused: %v", e.Operation, e.Err)
}

func (e *InvariantViolation) Unwrap() error {
	return e.Err
}

func refuse(operation string, err error) *InvariantViolation {
	return &InvariantViolation{Operation: operation, Err: err}
}

func IsReferenceError(err error) bool {
	var refErr *ReferenceError
	return errors.As(err, &refErr)
}

func IsInvariantViolation(err error) bool {
	var violation *InvariantViolation
	return errors.As(err, &violation)
}

var (
	ErrUnknownQuestionType  = errors.New("unknown question type")
	ErrUnknownCondition     = errors.New("unknown branching condition")
	ErrUnknownAction        = errors.New("unknown branching action")
	ErrNoOptions            = errors.New("question type does not carry options")
	ErrQuestionNotInSection = errors.New("question is not in the current section")
	ErrNotInProgress        = errors.New("session is not in progress")
	ErrNoSections           = errors.New("survey has no sections")
	ErrSurveyMismatch       = errors.New("snapshot belongs to another survey")
)

// IsInvalidInput reports errors caused by malformed builder input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrUnknownQuestionType) ||
		errors.Is(err, ErrUnknownCondition) ||
		errors.Is(err, ErrUnknownAction)
}
