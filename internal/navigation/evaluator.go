// Package navigation decides where a respondent goes next. Everything here is
// a pure function of the survey document and the answers: the same inputs
// always produce the same decision.
package navigation

import (
	"context"
	"io"
	"log/slog"

	"github.com/SAP-F-2025/survey-service/internal/models"
)

type DecisionKind string

const (
	DecisionGotoQuestion DecisionKind = "goto_question"
	DecisionGotoSection  DecisionKind = "goto_section"
	DecisionComplete     DecisionKind = "complete"
)

// NavigationDecision is the outcome of evaluating one answered question.
// RuleID is set when a branching rule produced the decision.
type NavigationDecision struct {
	Kind       DecisionKind `json:"kind"`
	QuestionID string       `json:"question_id,omitempty"`
	SectionID  string       `json:"section_id,omitempty"`
	RuleID     string       `json:"rule_id,omitempty"`
}

func GotoQuestion(id string) NavigationDecision {
	return NavigationDecision{Kind: DecisionGotoQuestion, QuestionID: id}
}

func GotoSection(id string) NavigationDecision {
	return NavigationDecision{Kind: DecisionGotoSection, SectionID: id}
}

func Complete() NavigationDecision {
	return NavigationDecision{Kind: DecisionComplete}
}

// DanglingReference describes a branching rule whose target no longer exists.
type DanglingReference struct {
	QuestionID string
	RuleID     string
	Action     models.Action
	TargetID   string
}

// Evaluator applies branching rules. Dangling rule targets are logged for
// survey authors and otherwise ignored.
type Evaluator struct {
	logger *slog.Logger
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Evaluator{logger: logger.With("component", "navigation")}
}

// EvaluateNext decides the next navigation step after answeredQuestionID was
// answered with answer. Rules are tried first match, declaration order; when
// none matches the default traversal applies.
func (e *Evaluator) EvaluateNext(doc *models.SurveyDocument, answeredQuestionID string, answer models.AnswerValue, currentSectionID string) NavigationDecision {
	question, ok := doc.Question(answeredQuestionID)
	if !ok {
		e.logger.Warn("Evaluated question does not exist", "question_id", answeredQuestionID, "section_id", currentSectionID)
		return NextSection(doc, currentSectionID)
	}

	if decision, matched := e.MatchRule(doc, question, answer); matched {
		return decision
	}
	return DefaultNext(doc, question.ID, currentSectionID)
}

// MatchRule returns the decision of the first rule on question whose
// condition holds for answer and whose target resolves.
func (e *Evaluator) MatchRule(doc *models.SurveyDocument, question *models.Question, answer models.AnswerValue) (NavigationDecision, bool) {
	for _, rule := range question.BranchingRules {
		if !EvaluateCondition(question.Type, rule.Condition, answer, rule.ComparisonValue) {
			continue
		}
		decision, ref := resolve(doc, rule)
		if ref != nil {
			ref.QuestionID = question.ID
			e.logDangling(*ref)
			continue
		}
		decision.RuleID = rule.ID
		return decision, true
	}
	return NavigationDecision{}, false
}

// resolve turns a matching rule into a decision, or reports the reference it
// could not resolve.
func resolve(doc *models.SurveyDocument, rule models.BranchingRule) (NavigationDecision, *DanglingReference) {
	switch {
	case rule.Action == models.ActionEndSurvey:
		return Complete(), nil
	case rule.Action.TargetsQuestion():
		if rule.TargetQuestionID == nil {
			return NavigationDecision{}, &DanglingReference{RuleID: rule.ID, Action: rule.Action}
		}
		if _, ok := doc.Question(*rule.TargetQuestionID); !ok {
			return NavigationDecision{}, &DanglingReference{RuleID: rule.ID, Action: rule.Action, TargetID: *rule.TargetQuestionID}
		}
		return GotoQuestion(*rule.TargetQuestionID), nil
	case rule.Action == models.ActionShowSection:
		if rule.TargetSectionID == nil {
			return NavigationDecision{}, &DanglingReference{RuleID: rule.ID, Action: rule.Action}
		}
		if _, ok := doc.Section(*rule.TargetSectionID); !ok {
			return NavigationDecision{}, &DanglingReference{RuleID: rule.ID, Action: rule.Action, TargetID: *rule.TargetSectionID}
		}
		return GotoSection(*rule.TargetSectionID), nil
	default:
		return NavigationDecision{}, &DanglingReference{RuleID: rule.ID, Action: rule.Action}
	}
}

func (e *Evaluator) logDangling(ref DanglingReference) {
	e.logger.LogAttrs(context.Background(), slog.LevelWarn, "Branching rule target does not resolve, falling back to default navigation",
		slog.String("question_id", ref.QuestionID),
		slog.String("rule_id", ref.RuleID),
		slog.String("action", string(ref.Action)),
		slog.String("target_id", ref.TargetID),
	)
}

// DefaultNext is the navigation applied when no rule matches: the next
// question of the section in default order, else the next section, else
// completion.
func DefaultNext(doc *models.SurveyDocument, fromQuestionID, currentSectionID string) NavigationDecision {
	sectionID := currentSectionID
	if q, ok := doc.Question(fromQuestionID); ok {
		sectionID = q.SectionID
	}

	questions := doc.SectionQuestions(sectionID)
	for i, q := range questions {
		if q.ID == fromQuestionID && i+1 < len(questions) {
			return GotoQuestion(questions[i+1].ID)
		}
	}
	return NextSection(doc, sectionID)
}

// NextSection returns the section after sectionID by order index, or
// completion when sectionID is the last one.
func NextSection(doc *models.SurveyDocument, sectionID string) NavigationDecision {
	sections := doc.OrderedSections()
	idx := -1
	for i, s := range sections {
		if s.ID == sectionID {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(sections) {
		return Complete()
	}
	return GotoSection(sections[idx+1].ID)
}

// FindDanglingReferences lists every rule in the document whose target is
// missing, in declaration order.
func FindDanglingReferences(doc *models.SurveyDocument) []DanglingReference {
	var refs []DanglingReference
	for _, q := range doc.Questions {
		for _, rule := range q.BranchingRules {
			if _, ref := resolve(doc, rule); ref != nil {
				ref.QuestionID = q.ID
				refs = append(refs, *ref)
			}
		}
	}
	return refs
}
