package survey

import (
	"fmt"
	"testing"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestBuilder(t *testing.T, opts ...BuilderOption) *Builder {
	t.Helper()
	ids := sequentialIDs("id")
	doc := NewDocument("Customer feedback", ids)
	return NewBuilder(doc, append([]BuilderOption{WithIDGenerator(ids)}, opts...)...)
}

// assertReferencesResolve checks the document invariants every builder
// operation must keep.
func assertReferencesResolve(t *testing.T, doc *models.SurveyDocument) {
	t.Helper()
	for _, q := range doc.Questions {
		_, ok := doc.Section(q.SectionID)
		assert.True(t, ok, "question %s points at missing section %s", q.ID, q.SectionID)

		if q.ParentQuestionID != nil {
			parent, ok := doc.Question(*q.ParentQuestionID)
			if assert.True(t, ok, "question %s points at missing parent", q.ID) {
				assert.Equal(t, parent.BranchingLevel+1, q.BranchingLevel, "question %s level", q.ID)
			}
		} else {
			assert.Equal(t, 0, q.BranchingLevel, "question %s level", q.ID)
		}

		for _, r := range q.BranchingRules {
			if r.TargetQuestionID != nil {
				_, ok := doc.Question(*r.TargetQuestionID)
				assert.True(t, ok, "rule %s targets missing question", r.ID)
			}
			if r.TargetSectionID != nil {
				_, ok := doc.Section(*r.TargetSectionID)
				assert.True(t, ok, "rule %s targets missing section", r.ID)
			}
		}
	}
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument("Feedback", sequentialIDs("x"))

	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "x-1", doc.DefaultSectionID)
	assert.Equal(t, "x-2", doc.ID)
	assert.Equal(t, DefaultSectionTitle, doc.Sections[0].Title)
	assert.Equal(t, 0, doc.Sections[0].OrderIndex)
	assert.Empty(t, doc.Questions)
}

func TestBuilder_AddSection(t *testing.T) {
	b := newTestBuilder(t)

	s1 := b.AddSection()
	s2 := b.AddSection()

	assert.Equal(t, 1, s1.OrderIndex)
	assert.Equal(t, 2, s2.OrderIndex)
	assert.Equal(t, NewSectionTitle, s1.Title)
	assert.Len(t, b.Document().Sections, 3)
}

func TestBuilder_UpdateSection(t *testing.T) {
	b := newTestBuilder(t)
	s := b.AddSection()

	title := "About you"
	desc := "Tell us a bit about yourself"
	updated, err := b.UpdateSection(s.ID, SectionUpdate{Title: &title, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)

	empty := ""
	updated, err = b.UpdateSection(s.ID, SectionUpdate{Description: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)

	_, err = b.UpdateSection("missing", SectionUpdate{Title: &title})
	assert.True(t, IsReferenceError(err))
}

func TestBuilder_DeleteDefaultSectionRefused(t *testing.T) {
	b := newTestBuilder(t)
	defaultID := b.Document().DefaultSectionID

	err := b.DeleteSection(defaultID)

	require.Error(t, err)
	assert.True(t, IsInvariantViolation(err))
	assert.ErrorIs(t, err, ErrDefaultSection)
	assert.Len(t, b.Document().Sections, 1)
}

func TestBuilder_DeleteSectionReassigns(t *testing.T) {
	b := newTestBuilder(t)
	doc := b.Document()
	s := b.AddSection()
	q, err := b.AddQuestion(s.ID, models.QuestionText)
	require.NoError(t, err)

	other, err := b.AddQuestion(doc.DefaultSectionID, models.QuestionText)
	require.NoError(t, err)
	rule, err := b.AddBranchingRule(other.ID)
	require.NoError(t, err)
	action := models.ActionShowSection
	_, err = b.UpdateBranchingRule(other.ID, rule.ID, RuleUpdate{Action: &action, TargetSectionID: &s.ID})
	require.NoError(t, err)

	require.NoError(t, b.DeleteSection(s.ID))

	moved, ok := doc.Question(q.ID)
	require.True(t, ok)
	assert.Equal(t, doc.DefaultSectionID, moved.SectionID)
	remaining, _ := doc.Question(other.ID)
	assert.Empty(t, remaining.BranchingRules)
	assertReferencesResolve(t, doc)
}

func TestBuilder_DeleteSectionDeletesQuestions(t *testing.T) {
	b := newTestBuilder(t, WithDeletePolicy(DeletePolicyDelete))
	doc := b.Document()
	s := b.AddSection()
	q, err := b.AddQuestion(s.ID, models.QuestionText)
	require.NoError(t, err)

	keep, err := b.AddQuestion(doc.DefaultSectionID, models.QuestionText)
	require.NoError(t, err)
	rule, err := b.AddBranchingRule(keep.ID)
	require.NoError(t, err)
	_, err = b.UpdateBranchingRule(keep.ID, rule.ID, RuleUpdate{TargetQuestionID: &q.ID})
	require.NoError(t, err)

	require.NoError(t, b.DeleteSection(s.ID))

	_, ok := doc.Question(q.ID)
	assert.False(t, ok)
	require.Len(t, doc.Questions, 1)
	assert.Empty(t, doc.Questions[0].BranchingRules)
	assertReferencesResolve(t, doc)
}

func TestBuilder_AddQuestion(t *testing.T) {
	b := newTestBuilder(t)
	sectionID := b.Document().DefaultSectionID

	text, err := b.AddQuestion(sectionID, models.QuestionText)
	require.NoError(t, err)
	assert.Equal(t, NewQuestionPrompt, text.Prompt)
	assert.Nil(t, text.Options)
	assert.NotNil(t, text.BranchingRules)
	assert.Empty(t, text.BranchingRules)
	assert.Equal(t, 0, text.BranchingLevel)
	assert.Nil(t, text.ParentQuestionID)

	choice, err := b.AddQuestion(sectionID, models.QuestionDropdown)
	require.NoError(t, err)
	assert.Equal(t, []string{"Option 1", "Option 2"}, choice.Options)

	_, err = b.AddQuestion("missing", models.QuestionText)
	assert.True(t, IsReferenceError(err))

	_, err = b.AddQuestion(sectionID, models.QuestionType("essay"))
	assert.ErrorIs(t, err, ErrUnknownQuestionType)
}

func TestBuilder_UpdateQuestionTypeChange(t *testing.T) {
	b := newTestBuilder(t)
	q, err := b.AddQuestion(b.Document().DefaultSectionID, models.QuestionText)
	require.NoError(t, err)

	toChoice := models.QuestionSingleChoice
	updated, err := b.UpdateQuestion(q.ID, QuestionUpdate{Type: &toChoice})
	require.NoError(t, err)
	assert.Equal(t, []string{"Option 1", "Option 2"}, updated.Options)

	updated, err = b.UpdateQuestion(q.ID, QuestionUpdate{Options: []string{"Yes", "No", "Maybe"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yes", "No", "Maybe"}, updated.Options)

	toMulti := models.QuestionMultiChoice
	updated, err = b.UpdateQuestion(q.ID, QuestionUpdate{Type: &toMulti})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yes", "No", "Maybe"}, updated.Options)

	toRating := models.QuestionRating
	updated, err = b.UpdateQuestion(q.ID, QuestionUpdate{Type: &toRating})
	require.NoError(t, err)
	assert.Nil(t, updated.Options)
}

func TestBuilder_UpdateQuestionFields(t *testing.T) {
	b := newTestBuilder(t)
	doc := b.Document()
	s := b.AddSection()
	q, err := b.AddQuestion(doc.DefaultSectionID, models.QuestionText)
	require.NoError(t, err)

	prompt := "What is your name?"
	required := true
	updated, err := b.UpdateQuestion(q.ID, QuestionUpdate{Prompt: &prompt, Required: &required, SectionID: &s.ID})
	require.NoError(t, err)
	assert.Equal(t, prompt, updated.Prompt)
	assert.True(t, updated.Required)
	assert.Equal(t, s.ID, updated.SectionID)

	missing := "missing"
	_, err = b.UpdateQuestion(q.ID, QuestionUpdate{SectionID: &missing})
	assert.True(t, IsReferenceError(err))
	stored, _ := doc.Question(q.ID)
	assert.Equal(t, s.ID, stored.SectionID)

	choice := models.QuestionSingleChoice
	_, err = b.UpdateQuestion(q.ID, QuestionUpdate{Type: &choice, Options: []string{}})
	assert.ErrorIs(t, err, ErrLastOption)
	stored, _ = doc.Question(q.ID)
	assert.Equal(t, models.QuestionText, stored.Type)

	_, err = b.UpdateQuestion("missing", QuestionUpdate{Prompt: &prompt})
	assert.True(t, IsReferenceError(err))
}

func TestBuilder_DeleteQuestionStripsRules(t *testing.T) {
	b := newTestBuilder(t)
	doc := b.Document()
	sectionID := doc.DefaultSectionID
	q1, _ := b.AddQuestion(sectionID, models.QuestionSingleChoice)
	q2, _ := b.AddQuestion(sectionID, models.QuestionText)
	q3, _ := b.AddQuestion(sectionID, models.QuestionText)

	toQ2, err := b.AddBranchingRule(q1.ID)
	require.NoError(t, err)
	_, err = b.UpdateBranchingRule(q1.ID, toQ2.ID, RuleUpdate{TargetQuestionID: &q2.ID})
	require.NoError(t, err)
	toQ3, err := b.AddBranchingRule(q1.ID)
	require.NoError(t, err)
	_, err = b.UpdateBranchingRule(q1.ID, toQ3.ID, RuleUpdate{TargetQuestionID: &q3.ID})
	require.NoError(t, err)

	require.NoError(t, b.DeleteQuestion(q2.ID))

	remaining, _ := doc.Question(q1.ID)
	require.Len(t, remaining.BranchingRules, 1)
	assert.Equal(t, toQ3.ID, remaining.BranchingRules[0].ID)
	assertReferencesResolve(t, doc)

	assert.True(t, IsReferenceError(b.DeleteQuestion(q2.ID)))
}

func TestBuilder_DeleteQuestionPromotesBranchChildren(t *testing.T) {
	b := newTestBuilder(t)
	doc := b.Document()
	root, _ := b.AddQuestion(doc.DefaultSectionID, models.QuestionSingleChoice)

	r1, _ := b.AddBranchingRule(root.ID)
	child, err := b.CreateBranchedQuestion(root.ID, r1.ID, QuestionUpdate{})
	require.NoError(t, err)
	r2, _ := b.AddBranchingRule(child.ID)
	grandchild, err := b.CreateBranchedQuestion(child.ID, r2.ID, QuestionUpdate{})
	require.NoError(t, err)
	r3, _ := b.AddBranchingRule(grandchild.ID)
	leaf, err := b.CreateBranchedQuestion(grandchild.ID, r3.ID, QuestionUpdate{})
	require.NoError(t, err)
	assert.Equal(t, 3, leaf.BranchingLevel)

	require.NoError(t, b.DeleteQuestion(child.ID))

	promoted, _ := doc.Question(grandchild.ID)
	require.NotNil(t, promoted.ParentQuestionID)
	assert.Equal(t, root.ID, *promoted.ParentQuestionID)
	assert.Equal(t, 1, promoted.BranchingLevel)
	leafAfter, _ := doc.Question(leaf.ID)
	assert.Equal(t, 2, leafAfter.BranchingLevel)

	rootAfter, _ := doc.Question(root.ID)
	assert.Empty(t, rootAfter.BranchingRules)
	assertReferencesResolve(t, doc)
}

func TestBuilder_Options(t *testing.T) {
	b := newTestBuilder(t)
	q, _ := b.AddQuestion(b.Document().DefaultSectionID, models.QuestionMultiChoice)

	updated, err := b.AddOption(q.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Option 1", "Option 2", "Option 3"}, updated.Options)

	updated, err = b.UpdateOption(q.ID, 0, "Red")
	require.NoError(t, err)
	assert.Equal(t, "Red", updated.Options[0])

	updated, err = b.RemoveOption(q.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Red", "Option 3"}, updated.Options)

	_, err = b.RemoveOption(q.ID, 5)
	assert.True(t, IsReferenceError(err))

	_, err = b.RemoveOption(q.ID, 0)
	require.NoError(t, err)
	_, err = b.RemoveOption(q.ID, 0)
	assert.ErrorIs(t, err, ErrLastOption)

	text, _ := b.AddQuestion(b.Document().DefaultSectionID, models.QuestionText)
	_, err = b.AddOption(text.ID, "A")
	assert.ErrorIs(t, err, ErrNoOptions)
}

func TestBuilder_BranchingRules(t *testing.T) {
	b := newTestBuilder(t)
	doc := b.Document()
	q1, _ := b.AddQuestion(doc.DefaultSectionID, models.QuestionRating)
	q2, _ := b.AddQuestion(doc.DefaultSectionID, models.QuestionText)
	s := b.AddSection()

	rule, err := b.AddBranchingRule(q1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConditionEquals, rule.Condition)
	assert.Equal(t, models.ActionShowQuestion, rule.Action)
	assert.Nil(t, rule.TargetQuestionID)

	cond := models.ConditionGreaterThan
	value := models.ComparisonValue("3")
	updated, err := b.UpdateBranchingRule(q1.ID, rule.ID, RuleUpdate{
		Condition:        &cond,
		ComparisonValue:  &value,
		TargetQuestionID: &q2.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, cond, updated.Condition)
	assert.Equal(t, value, updated.ComparisonValue)
	require.NotNil(t, updated.TargetQuestionID)
	assert.Equal(t, q2.ID, *updated.TargetQuestionID)

	toSection := models.ActionShowSection
	updated, err = b.UpdateBranchingRule(q1.ID, rule.ID, RuleUpdate{Action: &toSection, TargetSectionID: &s.ID})
	require.NoError(t, err)
	assert.Nil(t, updated.TargetQuestionID)
	require.NotNil(t, updated.TargetSectionID)
	assert.Equal(t, s.ID, *updated.TargetSectionID)

	end := models.ActionEndSurvey
	updated, err = b.UpdateBranchingRule(q1.ID, rule.ID, RuleUpdate{Action: &end})
	require.NoError(t, err)
	assert.Nil(t, updated.TargetQuestionID)
	assert.Nil(t, updated.TargetSectionID)

	missing := "missing"
	_, err = b.UpdateBranchingRule(q1.ID, rule.ID, RuleUpdate{TargetQuestionID: &missing})
	assert.True(t, IsReferenceError(err))

	bad := models.Condition("matches")
	_, err = b.UpdateBranchingRule(q1.ID, rule.ID, RuleUpdate{Condition: &bad})
	assert.ErrorIs(t, err, ErrUnknownCondition)
	assert.True(t, IsInvalidInput(err))

	_, err = b.UpdateBranchingRule(q1.ID, "missing", RuleUpdate{})
	assert.True(t, IsReferenceError(err))

	require.NoError(t, b.DeleteBranchingRule(q1.ID, rule.ID))
	stored, _ := doc.Question(q1.ID)
	assert.Empty(t, stored.BranchingRules)
}

func TestBuilder_CreateBranchedQuestion(t *testing.T) {
	b := newTestBuilder(t)
	doc := b.Document()
	parent, _ := b.AddQuestion(doc.DefaultSectionID, models.QuestionSingleChoice)
	rule, _ := b.AddBranchingRule(parent.ID)

	qType := models.QuestionDropdown
	prompt := "Which one?"
	created, err := b.CreateBranchedQuestion(parent.ID, rule.ID, QuestionUpdate{Type: &qType, Prompt: &prompt})
	require.NoError(t, err)

	assert.Equal(t, parent.SectionID, created.SectionID)
	assert.Equal(t, 1, created.BranchingLevel)
	require.NotNil(t, created.ParentQuestionID)
	assert.Equal(t, parent.ID, *created.ParentQuestionID)
	assert.Equal(t, prompt, created.Prompt)
	assert.Equal(t, []string{"Option 1", "Option 2"}, created.Options)

	stored, _ := doc.Question(parent.ID)
	linked, ok := stored.Rule(rule.ID)
	require.True(t, ok)
	assert.Equal(t, models.ActionCreateQuestion, linked.Action)
	require.NotNil(t, linked.TargetQuestionID)
	assert.Equal(t, created.ID, *linked.TargetQuestionID)
	assertReferencesResolve(t, doc)

	_, err = b.CreateBranchedQuestion(parent.ID, "missing", QuestionUpdate{})
	assert.True(t, IsReferenceError(err))
}

func TestBuilder_DeleteCreateQuestionRuleAsksForCascade(t *testing.T) {
	tests := []struct {
		name        string
		confirm     bool
		wantCreated bool
	}{
		{"keep created question", false, true},
		{"cascade delete", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var asked []string
			b := newTestBuilder(t, WithCascadeConfirmer(func(rule models.BranchingRule, created models.Question) bool {
				asked = append(asked, created.ID)
				return tt.confirm
			}))
			doc := b.Document()
			parent, _ := b.AddQuestion(doc.DefaultSectionID, models.QuestionSingleChoice)
			rule, _ := b.AddBranchingRule(parent.ID)
			created, err := b.CreateBranchedQuestion(parent.ID, rule.ID, QuestionUpdate{})
			require.NoError(t, err)

			require.NoError(t, b.DeleteBranchingRule(parent.ID, rule.ID))

			assert.Equal(t, []string{created.ID}, asked)
			_, ok := doc.Question(created.ID)
			assert.Equal(t, tt.wantCreated, ok)
			assertReferencesResolve(t, doc)
		})
	}
}

func TestBuilder_DeletePlainRuleDoesNotAsk(t *testing.T) {
	asked := false
	b := newTestBuilder(t, WithCascadeConfirmer(func(models.BranchingRule, models.Question) bool {
		asked = true
		return true
	}))
	doc := b.Document()
	q1, _ := b.AddQuestion(doc.DefaultSectionID, models.QuestionText)
	q2, _ := b.AddQuestion(doc.DefaultSectionID, models.QuestionText)
	rule, _ := b.AddBranchingRule(q1.ID)
	_, err := b.UpdateBranchingRule(q1.ID, rule.ID, RuleUpdate{TargetQuestionID: &q2.ID})
	require.NoError(t, err)

	require.NoError(t, b.DeleteBranchingRule(q1.ID, rule.ID))

	assert.False(t, asked)
	_, ok := doc.Question(q2.ID)
	assert.True(t, ok)
}
