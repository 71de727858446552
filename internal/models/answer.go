package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ComparisonValue is the right-hand side of a branching condition. Documents
// may carry it as a JSON string or number; it is always stored as text.
type ComparisonValue string

func (v *ComparisonValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = ComparisonValue(s)
		return nil
	}
	if string(data) == "null" {
		*v = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("comparison value must be a string or number: %w", err)
	}
	*v = ComparisonValue(n.String())
	return nil
}

func (v ComparisonValue) String() string {
	return string(v)
}

// Number parses the value as a decimal number.
func (v ComparisonValue) Number() (decimal.Decimal, bool) {
	return parseDecimal(string(v))
}

type AnswerKind string

const (
	AnswerKindText    AnswerKind = "text"
	AnswerKindOptions AnswerKind = "options"
	AnswerKindRating  AnswerKind = "rating"
)

// AnswerValue is a respondent answer. Its shape follows the question type:
// text for text, long_text, date, single_choice and dropdown questions,
// options for multi_choice and rating for rating questions.
type AnswerValue struct {
	Kind    AnswerKind `json:"kind" yaml:"kind"`
	Text    string     `json:"text,omitempty" yaml:"text,omitempty"`
	Options []string   `json:"options,omitempty" yaml:"options,omitempty"`
	Rating  int        `json:"rating,omitempty" yaml:"rating,omitempty"`
}

func TextAnswer(text string) AnswerValue {
	return AnswerValue{Kind: AnswerKindText, Text: text}
}

func OptionsAnswer(options ...string) AnswerValue {
	return AnswerValue{Kind: AnswerKindOptions, Options: options}
}

func RatingAnswer(rating int) AnswerValue {
	return AnswerValue{Kind: AnswerKindRating, Rating: rating}
}

// IsEmpty reports whether the answer carries no value at all.
func (a AnswerValue) IsEmpty() bool {
	switch a.Kind {
	case AnswerKindText:
		return strings.TrimSpace(a.Text) == ""
	case AnswerKindOptions:
		return len(a.Options) == 0
	case AnswerKindRating:
		return a.Rating == 0
	default:
		return true
	}
}

// Number returns the numeric reading of the answer. Ratings are numbers;
// text answers are numbers when they parse as one.
func (a AnswerValue) Number() (decimal.Decimal, bool) {
	switch a.Kind {
	case AnswerKindRating:
		return decimal.NewFromInt(int64(a.Rating)), true
	case AnswerKindText:
		return parseDecimal(a.Text)
	default:
		return decimal.Zero, false
	}
}

// Selected reports whether option is among the selected options.
func (a AnswerValue) Selected(option string) bool {
	for _, o := range a.Options {
		if o == option {
			return true
		}
	}
	return false
}

// String renders the answer as flat text, used for exports.
func (a AnswerValue) String() string {
	switch a.Kind {
	case AnswerKindText:
		return a.Text
	case AnswerKindOptions:
		return strings.Join(a.Options, "; ")
	case AnswerKindRating:
		return fmt.Sprintf("%d", a.Rating)
	default:
		return ""
	}
}

// AnswerSet maps question ids to answers for one respondent session.
type AnswerSet map[string]AnswerValue

func (s AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(s))
	for k, v := range s {
		if v.Options != nil {
			v.Options = append([]string(nil), v.Options...)
		}
		out[k] = v
	}
	return out
}

// Answered reports whether the question has a non-empty answer.
func (s AnswerSet) Answered(questionID string) bool {
	v, ok := s[questionID]
	return ok && !v.IsEmpty()
}

// FinishedResponse is the record produced when a session is submitted.
type FinishedResponse struct {
	ID          string    `json:"id"`
	SurveyID    string    `json:"survey_id"`
	SessionID   string    `json:"session_id"`
	Answers     AnswerSet `json:"answers"`
	CompletedAt time.Time `json:"completed_at"`
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
