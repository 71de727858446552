package handlers

import (
	"net/http"
	"strconv"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/services"
	"github.com/SAP-F-2025/survey-service/internal/survey"
	"github.com/SAP-F-2025/survey-service/internal/utils"
	"github.com/SAP-F-2025/survey-service/internal/validator"
	"github.com/gin-gonic/gin"
)

// BuilderHandler exposes the builder operations on draft surveys. Every
// request edits the stored document and answers with the new version.
type BuilderHandler struct {
	BaseHandler
	surveyService services.SurveyService
}

func NewBuilderHandler(
	surveyService services.SurveyService,
	validator *validator.Validator,
	logger utils.Logger,
) *BuilderHandler {
	return &BuilderHandler{
		BaseHandler:   NewBaseHandler(logger, validator),
		surveyService: surveyService,
	}
}

// BuilderResponse is the edited survey plus the element the edit touched.
type BuilderResponse struct {
	Survey   *services.SurveyDetail `json:"survey"`
	Section  *models.Section        `json:"section,omitempty"`
	Question *models.Question       `json:"question,omitempty"`
	Rule     *models.BranchingRule  `json:"rule,omitempty"`
}

type AddQuestionRequest struct {
	SectionID string              `json:"section_id"`
	Type      models.QuestionType `json:"type" validate:"required,question_type"`
}

type OptionRequest struct {
	Text string `json:"text" validate:"max=200"`
}

func etag(detail *services.SurveyDetail) string {
	return strconv.Quote(strconv.Itoa(detail.Version))
}

// edit runs fn through SurveyService.Edit and writes the response with
// status on success.
func (h *BuilderHandler) edit(c *gin.Context, status int, fn func(b *survey.Builder, resp *BuilderResponse) error, opts ...survey.BuilderOption) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	version, ok := parseExpectedVersion(c)
	if !ok {
		return
	}

	resp := &BuilderResponse{}
	detail, err := h.surveyService.Edit(c.Request.Context(), id, version, func(b *survey.Builder) error {
		return fn(b, resp)
	}, opts...)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	resp.Survey = detail
	c.Header("ETag", etag(detail))
	c.JSON(status, resp)
}

// ===== SECTIONS =====

// AddSection appends a section
// @Router /surveys/{id}/sections [post]
func (h *BuilderHandler) AddSection(c *gin.Context) {
	h.edit(c, http.StatusCreated, func(b *survey.Builder, resp *BuilderResponse) error {
		section := b.AddSection()
		resp.Section = &section
		return nil
	})
}

// UpdateSection changes a section's title or description
// @Router /surveys/{id}/sections/{section_id} [patch]
func (h *BuilderHandler) UpdateSection(c *gin.Context) {
	var req survey.SectionUpdate
	if !h.bindJSON(c, &req) {
		return
	}
	sectionID := c.Param("section_id")

	h.edit(c, http.StatusOK, func(b *survey.Builder, resp *BuilderResponse) error {
		section, err := b.UpdateSection(sectionID, req)
		if err != nil {
			return err
		}
		resp.Section = &section
		return nil
	})
}

// DeleteSection removes a section; its questions follow the configured
// delete policy
// @Router /surveys/{id}/sections/{section_id} [delete]
func (h *BuilderHandler) DeleteSection(c *gin.Context) {
	sectionID := c.Param("section_id")
	h.LogRequest(c, "Deleting section", "section_id", sectionID)

	h.edit(c, http.StatusOK, func(b *survey.Builder, _ *BuilderResponse) error {
		return b.DeleteSection(sectionID)
	})
}

// ===== QUESTIONS =====

// AddQuestion appends a question to a section, the default section when
// section_id is empty
// @Router /surveys/{id}/questions [post]
func (h *BuilderHandler) AddQuestion(c *gin.Context) {
	var req AddQuestionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.edit(c, http.StatusCreated, func(b *survey.Builder, resp *BuilderResponse) error {
		sectionID := req.SectionID
		if sectionID == "" {
			sectionID = b.Document().DefaultSectionID
		}
		question, err := b.AddQuestion(sectionID, req.Type)
		if err != nil {
			return err
		}
		resp.Question = &question
		return nil
	})
}

// UpdateQuestion merges fields into a question
// @Router /surveys/{id}/questions/{question_id} [patch]
func (h *BuilderHandler) UpdateQuestion(c *gin.Context) {
	var req survey.QuestionUpdate
	if !h.bindJSON(c, &req) {
		return
	}
	questionID := c.Param("question_id")

	h.edit(c, http.StatusOK, func(b *survey.Builder, resp *BuilderResponse) error {
		question, err := b.UpdateQuestion(questionID, req)
		if err != nil {
			return err
		}
		resp.Question = &question
		return nil
	})
}

// DeleteQuestion removes a question and the rules targeting it
// @Router /surveys/{id}/questions/{question_id} [delete]
func (h *BuilderHandler) DeleteQuestion(c *gin.Context) {
	questionID := c.Param("question_id")
	h.LogRequest(c, "Deleting question", "question_id", questionID)

	h.edit(c, http.StatusOK, func(b *survey.Builder, _ *BuilderResponse) error {
		return b.DeleteQuestion(questionID)
	})
}

// ===== OPTIONS =====

// AddOption appends an option to a choice question
// @Router /surveys/{id}/questions/{question_id}/options [post]
func (h *BuilderHandler) AddOption(c *gin.Context) {
	var req OptionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	questionID := c.Param("question_id")

	h.edit(c, http.StatusCreated, func(b *survey.Builder, resp *BuilderResponse) error {
		question, err := b.AddOption(questionID, req.Text)
		if err != nil {
			return err
		}
		resp.Question = &question
		return nil
	})
}

// UpdateOption replaces the text of an option
// @Router /surveys/{id}/questions/{question_id}/options/{index} [put]
func (h *BuilderHandler) UpdateOption(c *gin.Context) {
	index, ok := parseIndexParam(c, "index")
	if !ok {
		return
	}
	var req OptionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	questionID := c.Param("question_id")

	h.edit(c, http.StatusOK, func(b *survey.Builder, resp *BuilderResponse) error {
		question, err := b.UpdateOption(questionID, index, req.Text)
		if err != nil {
			return err
		}
		resp.Question = &question
		return nil
	})
}

// RemoveOption deletes an option; the last one is kept
// @Router /surveys/{id}/questions/{question_id}/options/{index} [delete]
func (h *BuilderHandler) RemoveOption(c *gin.Context) {
	index, ok := parseIndexParam(c, "index")
	if !ok {
		return
	}
	questionID := c.Param("question_id")

	h.edit(c, http.StatusOK, func(b *survey.Builder, resp *BuilderResponse) error {
		question, err := b.RemoveOption(questionID, index)
		if err != nil {
			return err
		}
		resp.Question = &question
		return nil
	})
}

// ===== BRANCHING RULES =====

// AddBranchingRule appends a rule with default condition and action
// @Router /surveys/{id}/questions/{question_id}/rules [post]
func (h *BuilderHandler) AddBranchingRule(c *gin.Context) {
	questionID := c.Param("question_id")

	h.edit(c, http.StatusCreated, func(b *survey.Builder, resp *BuilderResponse) error {
		rule, err := b.AddBranchingRule(questionID)
		if err != nil {
			return err
		}
		resp.Rule = &rule
		return nil
	})
}

// UpdateBranchingRule changes condition, comparison value, action or target
// @Router /surveys/{id}/questions/{question_id}/rules/{rule_id} [patch]
func (h *BuilderHandler) UpdateBranchingRule(c *gin.Context) {
	var req survey.RuleUpdate
	if !h.bindJSON(c, &req) {
		return
	}
	questionID, ruleID := c.Param("question_id"), c.Param("rule_id")

	h.edit(c, http.StatusOK, func(b *survey.Builder, resp *BuilderResponse) error {
		rule, err := b.UpdateBranchingRule(questionID, ruleID, req)
		if err != nil {
			return err
		}
		resp.Rule = &rule
		return nil
	})
}

// DeleteBranchingRule removes a rule. With delete_created=true a question
// the rule created is deleted as well.
// @Router /surveys/{id}/questions/{question_id}/rules/{rule_id} [delete]
func (h *BuilderHandler) DeleteBranchingRule(c *gin.Context) {
	questionID, ruleID := c.Param("question_id"), c.Param("rule_id")
	deleteCreated := c.Query("delete_created") == "true"

	h.edit(c, http.StatusOK, func(b *survey.Builder, _ *BuilderResponse) error {
		return b.DeleteBranchingRule(questionID, ruleID)
	}, survey.WithCascadeConfirmer(func(models.BranchingRule, models.Question) bool {
		return deleteCreated
	}))
}

// CreateBranchedQuestion creates a question one level below the parent and
// points the rule at it
// @Router /surveys/{id}/questions/{question_id}/rules/{rule_id}/question [post]
func (h *BuilderHandler) CreateBranchedQuestion(c *gin.Context) {
	var req survey.QuestionUpdate
	if !h.bindJSON(c, &req) {
		return
	}
	questionID, ruleID := c.Param("question_id"), c.Param("rule_id")

	h.edit(c, http.StatusCreated, func(b *survey.Builder, resp *BuilderResponse) error {
		question, err := b.CreateBranchedQuestion(questionID, ruleID, req)
		if err != nil {
			return err
		}
		resp.Question = &question
		return nil
	})
}
