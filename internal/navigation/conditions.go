package navigation

import (
	"strings"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/shopspring/decimal"
)

// EvaluateCondition applies a branching condition to an answer of the given
// question type. Unknown conditions, empty answers and comparisons that need
// numbers on both sides but do not get them are non-matches.
func EvaluateCondition(questionType models.QuestionType, cond models.Condition, answer models.AnswerValue, comparison models.ComparisonValue) bool {
	if answer.IsEmpty() {
		return false
	}

	switch cond {
	case models.ConditionEquals:
		return equals(answer, comparison)
	case models.ConditionNotEquals:
		return !equals(answer, comparison)
	case models.ConditionGreaterThan:
		a, b, ok := numbers(answer, comparison)
		return ok && a.GreaterThan(b)
	case models.ConditionLessThan:
		a, b, ok := numbers(answer, comparison)
		return ok && a.LessThan(b)
	case models.ConditionContains:
		return contains(answer, comparison)
	case models.ConditionOptionSelected:
		return optionSelected(questionType, answer, comparison)
	default:
		return false
	}
}

func equals(answer models.AnswerValue, comparison models.ComparisonValue) bool {
	if a, b, ok := numbers(answer, comparison); ok {
		return a.Equal(b)
	}

	want := strings.TrimSpace(comparison.String())
	switch answer.Kind {
	case models.AnswerKindText:
		return strings.TrimSpace(answer.Text) == want
	case models.AnswerKindOptions:
		return len(answer.Options) == 1 && answer.Options[0] == want
	default:
		return false
	}
}

func numbers(answer models.AnswerValue, comparison models.ComparisonValue) (a, b decimal.Decimal, ok bool) {
	left, okLeft := answer.Number()
	right, okRight := comparison.Number()
	if !okLeft || !okRight {
		return a, b, false
	}
	return left, right, true
}

func contains(answer models.AnswerValue, comparison models.ComparisonValue) bool {
	switch answer.Kind {
	case models.AnswerKindText:
		return strings.Contains(answer.Text, comparison.String())
	case models.AnswerKindOptions:
		return answer.Selected(strings.TrimSpace(comparison.String()))
	default:
		return false
	}
}

func optionSelected(questionType models.QuestionType, answer models.AnswerValue, comparison models.ComparisonValue) bool {
	want := strings.TrimSpace(comparison.String())
	switch answer.Kind {
	case models.AnswerKindOptions:
		return answer.Selected(want)
	case models.AnswerKindText:
		if questionType != models.QuestionSingleChoice && questionType != models.QuestionDropdown {
			return false
		}
		return answer.Text == want
	default:
		return false
	}
}
