package navigation

import "github.com/SAP-F-2025/survey-service/internal/models"

// SectionWalk is the part of a section a respondent currently sees, and where
// the section is left to once all of it is answered.
type SectionWalk struct {
	SectionID string
	Visible   []string
	Exit      NavigationDecision
}

// IsVisible reports whether questionID is on the visible path.
func (w SectionWalk) IsVisible(questionID string) bool {
	for _, id := range w.Visible {
		if id == questionID {
			return true
		}
	}
	return false
}

// WalkSection follows navigation decisions through a section starting at its
// entry question. Answered questions follow their branching rules, unanswered
// ones the default order. The walk stops at the first decision that leaves the
// section; a question reached twice ends the walk at the next section.
func (e *Evaluator) WalkSection(doc *models.SurveyDocument, sectionID, entryQuestionID string, answers models.AnswerSet) SectionWalk {
	walk := SectionWalk{SectionID: sectionID}

	current := entryQuestionID
	if current == "" {
		questions := doc.SectionQuestions(sectionID)
		if len(questions) == 0 {
			walk.Exit = NextSection(doc, sectionID)
			return walk
		}
		current = questions[0].ID
	}

	visited := make(map[string]bool)
	for {
		q, ok := doc.Question(current)
		if !ok || q.SectionID != sectionID {
			walk.Exit = NextSection(doc, sectionID)
			return walk
		}
		visited[current] = true
		walk.Visible = append(walk.Visible, current)

		var decision NavigationDecision
		if answers.Answered(current) {
			decision = e.EvaluateNext(doc, current, answers[current], sectionID)
		} else {
			decision = DefaultNext(doc, current, sectionID)
		}

		if decision.Kind != DecisionGotoQuestion {
			walk.Exit = decision
			return walk
		}
		next, ok := doc.Question(decision.QuestionID)
		if !ok || next.SectionID != sectionID {
			walk.Exit = decision
			return walk
		}
		if visited[next.ID] {
			e.logger.Warn("Branching cycle detected, leaving section", "section_id", sectionID, "question_id", next.ID)
			walk.Exit = NextSection(doc, sectionID)
			return walk
		}
		current = next.ID
	}
}
